package tunnel

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/stretchr/testify/require"

	"github.com/dyastin/wormhole/wire"
)

// testServer is a scripted rendezvous endpoint: TLS listener plus one yamux
// session per test. Tests drive the protocol by hand on its streams.
type testServer struct {
	t      *testing.T
	ln     net.Listener
	pool   *x509.CertPool
	sessCh chan *yamux.Session
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cert, pool := newTestCert(t)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
	})
	require.NoError(t, err)

	s := &testServer{t: t, ln: ln, pool: pool, sessCh: make(chan *yamux.Session, 1)}
	go s.acceptOne()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *testServer) acceptOne() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	sess, err := yamux.Server(conn, yamux.DefaultConfig())
	if err != nil {
		conn.Close()
		return
	}
	s.sessCh <- sess
}

func (s *testServer) addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) clientTLS() *tls.Config {
	return &tls.Config{RootCAs: s.pool}
}

func (s *testServer) session() *yamux.Session {
	s.t.Helper()
	select {
	case sess := <-s.sessCh:
		return sess
	case <-time.After(2 * time.Second):
		s.t.Fatal("client never connected")
		return nil
	}
}

// control accepts the client's control stream and returns it with the parsed
// registration request.
func (s *testServer) control(sess *yamux.Session) (net.Conn, wire.Header, wire.Request) {
	s.t.Helper()

	stream, err := sess.Accept()
	require.NoError(s.t, err)

	h, err := wire.ReadHeader(stream)
	require.NoError(s.t, err)
	require.Equal(s.t, wire.TypeRequest, h.Type)

	payload, err := wire.ReadPayload(stream, h)
	require.NoError(s.t, err)

	req, err := wire.DecodeRequest(payload)
	require.NoError(s.t, err)

	return stream, h, req
}

func (s *testServer) respond(ctrl net.Conn, resp wire.Response) {
	s.t.Helper()

	body, err := wire.EncodeResponse(resp)
	require.NoError(s.t, err)
	require.NoError(s.t, wire.WriteFrame(ctrl, wire.NewHeader(wire.TypeResponse, wire.FlagNone, uint64(len(body))), body))
}

func newTestCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, pool
}

// syncBuffer lets tests read log output while the client is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newLocalListener stands in for the local target service.
func newLocalListener(t *testing.T) (string, chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	connCh := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			connCh <- conn
		}
	}()
	return ln.Addr().String(), connCh
}
