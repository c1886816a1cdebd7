package tunnel

import (
	"errors"
	"fmt"
)

// ErrProtocol marks frames the server should never send on the control path:
// unexpected types, malformed payloads, unknown status values.
var ErrProtocol = errors.New("protocol violation")

// ServerError carries the UTF-8 body of an Error frame verbatim.
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Msg)
}
