package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dyastin/wormhole/dashboard"
	"github.com/dyastin/wormhole/logging"
	"github.com/dyastin/wormhole/tunnel"
	"github.com/dyastin/wormhole/wire"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:    "wormhole",
		Usage:   "expose a local service through a public rendezvous server",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Commands: []*cli.Command{
			protoCommand("http", "expose a local HTTP service", wire.ProtoHTTP),
			protoCommand("tcp", "expose a local TCP service", wire.ProtoTCP),
		},
	}
}

func protoCommand(name, usage string, proto uint8) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Aliases:  []string{"n"},
				Usage:    "subdomain to register",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target-address",
				Aliases:  []string{"t"},
				Usage:    "local address to forward to (host may be empty for loopback)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Value:   "wormhole.dyastin.dev:443",
				Usage:   "rendezvous server address",
			},
			&cli.BoolFlag{
				Name:  "target-tls",
				Usage: "local target speaks TLS (certificate verification is off)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "request metrics streaming and serve the dashboard",
			},
			&cli.StringFlag{
				Name:  "dashboard-addr",
				Value: "127.0.0.1:4040",
				Usage: "dashboard listen address",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output logs in JSONL format",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "minimum log level (debug, info, warn, error)",
			},
		},
		Action: func(c *cli.Context) error {
			return run(runConfig{
				proto:         proto,
				name:          c.String("name"),
				targetAddr:    c.String("target-address"),
				addr:          c.String("address"),
				targetTLS:     c.Bool("target-tls"),
				metrics:       c.Bool("metrics"),
				dashboardAddr: c.String("dashboard-addr"),
				jsonOutput:    c.Bool("json"),
				logLevel:      c.String("log-level"),
			})
		},
	}
}

type runConfig struct {
	proto         uint8
	name          string
	targetAddr    string
	addr          string
	targetTLS     bool
	metrics       bool
	dashboardAddr string
	jsonOutput    bool
	logLevel      string
}

func run(cfg runConfig) error {
	if err := tunnel.ValidateName(cfg.name); err != nil {
		return fmt.Errorf("invalid name: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nDisconnecting...")
		cancel()
	}()

	logger := newLogger(cfg)

	client := tunnel.NewClient(tunnel.Config{
		Addr:        cfg.addr,
		Name:        cfg.name,
		Proto:       cfg.proto,
		TargetAddr:  cfg.targetAddr,
		TargetTLS:   cfg.targetTLS,
		WithMetrics: cfg.metrics,
		Logger:      logger,
	})

	if cfg.metrics {
		dashSrv, err := dashboard.NewServer(dashboard.ServerConfig{
			Addr:   cfg.dashboardAddr,
			Feed:   client.Metrics(),
			Stats:  client.Stats,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("init dashboard: %w", err)
		}

		dashSrv.SetReadyCallback(func() {
			fmt.Printf("Dashboard: http://%s\n", dashSrv.Addr())
		})

		go func() {
			if dashErr := dashSrv.Start(ctx); dashErr != nil {
				logger.WithError(dashErr).Error("dashboard", "serve", "Dashboard stopped")
			}
		}()
	}

	return client.Run(ctx)
}

func newLogger(cfg runConfig) logging.Logger {
	var formatter logging.Formatter
	if cfg.jsonOutput {
		formatter = &logging.JSONFormatter{}
	} else {
		formatter = logging.NewHumanFormatter(os.Stdout)
	}
	return logging.NewLogger(logging.LoggerConfig{
		Output:    os.Stdout,
		Formatter: formatter,
		Level:     logging.ParseLevel(cfg.logLevel),
	})
}
