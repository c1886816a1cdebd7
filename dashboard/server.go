package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyastin/wormhole/logging"
	"github.com/dyastin/wormhole/tunnel"
	"github.com/dyastin/wormhole/wire"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Server renders live tunnel metrics on a local address. It consumes the
// client's metrics event stream and pushes each event to connected
// websocket subscribers.
type Server struct {
	addr      string
	feed      <-chan wire.Metrics
	stats     func() tunnel.Stats
	log       logging.Logger
	templates *template.Template
	upgrader  websocket.Upgrader
	readyCb   func()

	mu          sync.RWMutex
	listenAddr  string
	latest      *wire.Metrics
	subscribers map[chan wire.Metrics]struct{}
}

type ServerConfig struct {
	Addr   string
	Feed   <-chan wire.Metrics
	Stats  func() tunnel.Stats
	Logger logging.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		addr:      cfg.Addr,
		feed:      cfg.Feed,
		stats:     cfg.Stats,
		log:       logger,
		templates: tmpl,
		upgrader: websocket.Upgrader{
			// dashboard binds to loopback; same-machine pages are fine
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subscribers: make(map[chan wire.Metrics]struct{}),
	}, nil
}

// Addr returns the bound listen address once Start has opened the listener.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}

func (s *Server) SetReadyCallback(fn func()) {
	s.readyCb = fn
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/metrics", s.handleAPIMetrics)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start serves until ctx is canceled. The metrics pump runs alongside the
// HTTP server and stops when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen dashboard: %w", err)
	}

	s.mu.Lock()
	s.listenAddr = ln.Addr().String()
	s.mu.Unlock()

	httpServer := &http.Server{Handler: s.buildMux()}

	if s.readyCb != nil {
		s.readyCb()
	}

	go s.pump(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// pump drains the metrics feed into the latest snapshot and every
// subscriber. Slow subscribers drop events instead of stalling the feed.
func (s *Server) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-s.feed:
			if !ok {
				return
			}
			s.mu.Lock()
			snapshot := m
			s.latest = &snapshot
			for ch := range s.subscribers {
				select {
				case ch <- m:
				default:
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) subscribe() chan wire.Metrics {
	ch := make(chan wire.Metrics, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan wire.Metrics) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type metricsPayload struct {
	Ingress           uint64 `json:"ingress"`
	Egress            uint64 `json:"egress"`
	UptimeSeconds     uint64 `json:"uptime_seconds"`
	ConnectionCount   uint64 `json:"connection_count"`
	ActiveConnections uint32 `json:"active_connections"`
}

func toPayload(m wire.Metrics) metricsPayload {
	return metricsPayload{
		Ingress:           m.Ingress,
		Egress:            m.Egress,
		UptimeSeconds:     m.Uptime / uint64(time.Second),
		ConnectionCount:   m.ConnectionCount,
		ActiveConnections: m.ActiveConnections,
	}
}

func (s *Server) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	resp := struct {
		Server *metricsPayload `json:"server,omitempty"`
		Local  *tunnel.Stats   `json:"local,omitempty"`
	}{}

	if latest != nil {
		p := toPayload(*latest)
		resp.Server = &p
	}
	if s.stats != nil {
		local := s.stats()
		resp.Local = &local
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("dashboard", "ws", "Failed to upgrade connection")
		return
	}
	defer conn.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case m := <-ch:
			if err := conn.WriteJSON(toPayload(m)); err != nil {
				return
			}
		}
	}
}
