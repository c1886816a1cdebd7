package tunnel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/oklog/ulid/v2"

	"github.com/dyastin/wormhole/logging"
	"github.com/dyastin/wormhole/wire"
)

const (
	keepAliveInterval = 1 * time.Second
	acceptBacklog     = 1000
)

// Stats is a snapshot of the client's local transfer counters.
type Stats struct {
	BytesIn           uint64 `json:"bytes_in"`
	BytesOut          uint64 `json:"bytes_out"`
	ConnectionCount   uint64 `json:"connection_count"`
	ActiveConnections int64  `json:"active_connections"`
}

type Config struct {
	// Addr is the rendezvous server, host:port. The host doubles as the SNI
	// name on the TLS handshake.
	Addr string

	Name        string
	Proto       uint8
	TargetAddr  string
	TargetTLS   bool
	WithMetrics bool

	// TLSConfig overrides the rendezvous-leg TLS config. Verification stays
	// on unless the caller's config says otherwise.
	TLSConfig *tls.Config

	Logger logging.Logger
}

// Client runs one tunnel session: it dials the rendezvous server, registers
// the name, then forwards every inbound stream to the local target until the
// session dies or the context is canceled.
type Client struct {
	cfg Config
	id  string
	log logging.Logger

	mu      sync.RWMutex
	domain  string
	expiry  time.Time
	session *yamux.Session
	conn    net.Conn
	sessErr error

	done      chan struct{}
	doneOnce  sync.Once
	metricsCh chan wire.Metrics

	onRegistered func(endpoint string)

	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
	connTotal  atomic.Uint64
	connActive atomic.Int64
}

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	id := ulid.Make().String()
	return &Client{
		cfg:       cfg,
		id:        id,
		log:       logger.WithFields(logging.Fields{"session_id": id}),
		done:      make(chan struct{}),
		metricsCh: make(chan wire.Metrics, 16),
	}
}

// OnRegistered is called once with the public endpoint after the server
// accepts the registration.
func (c *Client) OnRegistered(fn func(endpoint string)) {
	c.onRegistered = fn
}

// Metrics is the event stream fed by the server's metrics frames. Single
// producer, intended for a single consumer.
func (c *Client) Metrics() <-chan wire.Metrics {
	return c.metricsCh
}

// Domain returns the assigned domain after a successful registration.
func (c *Client) Domain() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.domain
}

// Expiry returns when the tunnel lapses, per the handshake TTL.
func (c *Client) Expiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiry
}

// Stats snapshots the local transfer counters.
func (c *Client) Stats() Stats {
	return Stats{
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		ConnectionCount:   c.connTotal.Load(),
		ActiveConnections: c.connActive.Load(),
	}
}

// Run is the single-shot session entry. It returns nil on normal session
// termination (including registration rejections and context cancellation)
// and an error on dial, protocol, or transport failures.
func (c *Client) Run(ctx context.Context) error {
	host, _, err := net.SplitHostPort(c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("split server address: %w", err)
	}

	tlsCfg := c.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	}
	tlsCfg = tlsCfg.Clone()
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = host
	}

	c.log.WithFields(logging.Fields{
		"server_addr": c.cfg.Addr,
		"name":        c.cfg.Name,
	}).Info("client", "dial", "Connecting to server")

	dialer := &tls.Dialer{Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dial tunnel: %w", err)
	}

	ycfg := yamux.DefaultConfig()
	ycfg.KeepAliveInterval = keepAliveInterval
	ycfg.AcceptBacklog = acceptBacklog

	session, err := yamux.Client(conn, ycfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("yamux client: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()

	defer c.shutdown()

	registered, err := c.handshake(session)
	if err != nil {
		return err
	}
	if !registered {
		// rejection already reported; not an error
		return nil
	}

	go c.acceptStreams(session)

	select {
	case <-ctx.Done():
		// destroying the socket cascades: every stream errors and every
		// forwarder cleans up
		conn.Close()
		session.Close()
		return nil
	case <-session.CloseChan():
		c.mu.RLock()
		sessErr := c.sessErr
		c.mu.RUnlock()
		if sessErr != nil {
			return fmt.Errorf("session: %w", sessErr)
		}
		return nil
	}
}

// handshake runs the registration exchange on the control stream. It returns
// false when the server rejected the name and the session should end quietly.
func (c *Client) handshake(session *yamux.Session) (bool, error) {
	stream, err := session.Open()
	if err != nil {
		return false, fmt.Errorf("open control stream: %w", err)
	}
	defer stream.Close()

	body, err := wire.EncodeRequest(wire.NewRequest(c.cfg.Proto, c.cfg.Name))
	if err != nil {
		return false, fmt.Errorf("encode request: %w", err)
	}

	flags := wire.FlagNone
	if c.cfg.WithMetrics {
		flags = wire.SetFlag(flags, wire.FlagMetrics)
	}

	if err := wire.WriteFrame(stream, wire.NewHeader(wire.TypeRequest, flags, uint64(len(body))), body); err != nil {
		return false, fmt.Errorf("write request: %w", err)
	}

	h, err := wire.ReadHeader(stream)
	if err != nil {
		return false, fmt.Errorf("read response header: %w", err)
	}

	switch h.Type {
	case wire.TypeResponse:
	case wire.TypeError:
		msg, err := wire.ReadPayload(stream, h)
		if err != nil {
			return false, fmt.Errorf("read error body: %w", err)
		}
		return false, &ServerError{Msg: string(msg)}
	default:
		return false, fmt.Errorf("%w: type 0x%02x in handshake", ErrProtocol, h.Type)
	}

	payload, err := wire.ReadPayload(stream, h)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	resp, err := wire.DecodeResponse(payload)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	switch resp.Status {
	case wire.StatusOK:
		// the TTL field arrives as nanoseconds of remaining lifetime
		expiry := time.Now().Add(time.Duration(resp.TTLHours))
		c.mu.Lock()
		c.domain = resp.Domain
		c.expiry = expiry
		c.mu.Unlock()

		endpoint := Endpoint(c.cfg.Proto, resp.Domain)
		c.log.WithFields(logging.Fields{
			"endpoint":   endpoint,
			"expires_at": expiry.Format(time.RFC3339),
		}).Info("client", "register", fmt.Sprintf("Tunnel ready at %s", endpoint))

		if c.onRegistered != nil {
			c.onRegistered(endpoint)
		}
		return true, nil
	case wire.StatusNameTaken:
		c.log.Error("client", "register", fmt.Sprintf("'%s' is already in use", c.cfg.Name))
		return false, nil
	case wire.StatusUnsupportedProto:
		c.log.Error("client", "register", "Protocol not supported by server")
		return false, nil
	default:
		return false, fmt.Errorf("%w: status 0x%02x", ErrProtocol, resp.Status)
	}
}

func (c *Client) setSessionErr(err error) {
	c.mu.Lock()
	if c.sessErr == nil {
		c.sessErr = err
	}
	c.mu.Unlock()
}

// shutdown closes the transport and releases everything waiting on the
// session. Safe to call more than once.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
	})

	c.mu.RLock()
	session := c.session
	conn := c.conn
	c.mu.RUnlock()

	if session != nil {
		session.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

// isClosedErr reports whether err is ordinary connection teardown rather
// than something worth surfacing.
func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, wire.ErrUnexpectedEOF) ||
		errors.Is(err, yamux.ErrSessionShutdown) ||
		errors.Is(err, yamux.ErrStreamClosed) ||
		errors.Is(err, yamux.ErrConnectionReset) ||
		errors.Is(err, yamux.ErrRemoteGoAway)
}
