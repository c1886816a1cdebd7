package tunnel

import (
	"net"

	"github.com/dyastin/wormhole/wire"
)

// consumeMetrics reads successive Metrics frames off the dedicated stream
// and publishes each one on the client's event channel. The dispatcher has
// already consumed the first header.
func (c *Client) consumeMetrics(stream net.Conn, h wire.Header) {
	defer stream.Close()

	for {
		payload, err := wire.ReadPayload(stream, h)
		if err != nil {
			if !isClosedErr(err) {
				c.log.WithError(err).Error("metrics", "read", "Failed to read metrics frame")
			}
			return
		}

		m, err := wire.DecodeMetrics(payload)
		if err != nil {
			c.log.WithError(err).Error("metrics", "decode", "Malformed metrics frame")
			return
		}

		select {
		case c.metricsCh <- m:
		case <-c.done:
			return
		}

		h, err = wire.ReadHeader(stream)
		if err != nil {
			if !isClosedErr(err) {
				c.log.WithError(err).Error("metrics", "read", "Failed to read metrics header")
			}
			return
		}
	}
}
