package wire

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed 12-byte frame header that precedes every payload.
// Length is authoritative: readers size the payload read from it.
type Header struct {
	Version  uint8
	Type     uint8
	Flags    uint8
	Length   uint64
	Reserved uint8
}

// NewHeader builds a header for the given type and payload length with the
// current protocol version.
func NewHeader(typ uint8, flags uint8, length uint64) Header {
	return Header{
		Version: Version,
		Type:    typ,
		Flags:   flags,
		Length:  length,
	}
}

func (h Header) validate() error {
	if h.Version != Version {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidVersion, h.Version)
	}
	if h.Length > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.Length)
	}
	if h.Reserved != 0 {
		return fmt.Errorf("%w: 0x%02x", ErrReservedNonZero, h.Reserved)
	}
	return nil
}

// EncodeHeader serializes h big-endian. The header is validated first so a
// malformed value never reaches the wire.
func EncodeHeader(h Header) ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = h.Type
	buf[2] = h.Flags
	binary.BigEndian.PutUint64(buf[3:11], h.Length)
	buf[11] = h.Reserved
	return buf, nil
}

// DecodeHeader parses and validates a 12-byte header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(buf))
	}

	h := Header{
		Version:  buf[0],
		Type:     buf[1],
		Flags:    buf[2],
		Length:   binary.BigEndian.Uint64(buf[3:11]),
		Reserved: buf[11],
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// HasFlag reports whether flag is set on h.
func (h Header) HasFlag(flag uint8) bool {
	return h.Flags&flag != 0
}

// SetFlag returns flags with flag set. Idempotent.
func SetFlag(flags, flag uint8) uint8 {
	return flags | flag
}

// ClearFlag returns flags with flag cleared.
func ClearFlag(flags, flag uint8) uint8 {
	return flags &^ flag
}

// HasFlag reports whether flag is set in flags.
func HasFlag(flags, flag uint8) bool {
	return flags&flag != 0
}
