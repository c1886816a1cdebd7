package tunnel

import (
	"fmt"
	"net"

	"github.com/dyastin/wormhole/wire"
)

// Endpoint renders the public endpoint for a registered domain.
func Endpoint(proto uint8, domain string) string {
	if proto == wire.ProtoTCP {
		return "tcp:" + domain
	}
	return "https://" + domain
}

// ResolveTarget normalizes a target address, defaulting an empty host to
// loopback (":3000" means "127.0.0.1:3000").
func ResolveTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// ValidateName checks a subdomain name before it is sent in a Request.
func ValidateName(name string) error {
	if len(name) == 0 {
		return wire.ErrEmptyName
	}
	if len(name) > wire.MaxNameLen {
		return fmt.Errorf("%w: name is %d bytes, max %d", wire.ErrStringTooLong, len(name), wire.MaxNameLen)
	}
	return nil
}
