package tunnel

import (
	"net"

	"github.com/hashicorp/yamux"

	"github.com/dyastin/wormhole/logging"
	"github.com/dyastin/wormhole/wire"
)

// acceptStreams hands every server-initiated stream to the dispatcher. It
// exits when the session dies; an abnormal accept failure is recorded so Run
// can surface it.
func (c *Client) acceptStreams(session *yamux.Session) {
	for {
		stream, err := session.Accept()
		if err != nil {
			if !isClosedErr(err) {
				c.setSessionErr(err)
				session.Close()
			}
			return
		}
		go c.dispatch(stream)
	}
}

// dispatch reads one header off an inbound stream and routes it. Streams are
// independent; nothing here orders one against another.
func (c *Client) dispatch(stream net.Conn) {
	h, err := wire.ReadHeader(stream)
	if err != nil {
		// peer EOF and transport teardown are ordinary during shutdown
		if !isClosedErr(err) {
			c.log.WithError(err).Error("session", "dispatch", "Failed to read stream header")
		}
		stream.Close()
		return
	}

	switch h.Type {
	case wire.TypeAccess:
		c.forward(stream)
	case wire.TypeMetrics:
		c.consumeMetrics(stream, h)
	case wire.TypeEnd:
		stream.Close()
		c.log.Info("session", "end", "tunnel timed out")
		c.shutdown()
	default:
		c.log.WithFields(logging.Fields{"type": h.Type}).Debug("session", "dispatch", "Ignoring stream with unexpected type")
		stream.Close()
	}
}
