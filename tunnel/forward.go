package tunnel

import (
	"crypto/tls"
	"io"
	"net"

	"github.com/oklog/ulid/v2"

	"github.com/dyastin/wormhole/logging"
	"github.com/dyastin/wormhole/wire"
)

// forward pairs one inbound Access stream with a fresh connection to the
// local target and splices them until either half closes. Both halves are
// closed together exactly once; an error here never touches the session.
func (c *Client) forward(stream net.Conn) {
	logger := c.log.WithTraceID(ulid.Make().String()).WithFields(logging.Fields{
		"target": c.cfg.TargetAddr,
	})

	// acknowledge before dialing so the server can start relaying
	if err := wire.WriteFrame(stream, wire.NewHeader(wire.TypeAck, wire.FlagNone, 0), nil); err != nil {
		logger.WithError(err).Error("forward", "ack", "Failed to acknowledge stream")
		stream.Close()
		return
	}

	local, err := c.dialTarget()
	if err != nil {
		logger.WithError(logging.WrapError("dial target", err)).Error("forward", "dial", "Failed to reach local target")
		stream.Close()
		return
	}

	c.connTotal.Add(1)
	c.connActive.Add(1)
	defer c.connActive.Add(-1)

	counted := NewCountingConn(stream)

	errCh := make(chan error, 2)
	go func() {
		_, err := io.Copy(local, counted)
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(counted, local)
		errCh <- err
	}()

	// first completion wins; closing both unblocks the other copy
	copyErr := <-errCh
	counted.Close()
	local.Close()
	<-errCh

	c.bytesIn.Add(counted.Ingress())
	c.bytesOut.Add(counted.Egress())

	fields := logging.Fields{
		"bytes_in":  counted.Ingress(),
		"bytes_out": counted.Egress(),
	}
	if copyErr != nil && !isClosedErr(copyErr) {
		logger.WithError(copyErr).WithFields(fields).Error("forward", "splice", "Forwarded connection failed")
		return
	}
	logger.WithFields(fields).Debug("forward", "splice", "Forwarded connection closed")
}

func (c *Client) dialTarget() (net.Conn, error) {
	addr := ResolveTarget(c.cfg.TargetAddr)
	if c.cfg.TargetTLS {
		// local self-signed services; the rendezvous leg stays verified
		return tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	}
	return net.Dial("tcp", addr)
}
