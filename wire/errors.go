package wire

import "errors"

var (
	ErrInvalidVersion  = errors.New("invalid protocol version")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrReservedNonZero = errors.New("reserved byte is non-zero")
	ErrUnknownProto    = errors.New("unknown application protocol")
	ErrUnknownStatus   = errors.New("unknown response status")
	ErrEmptyName       = errors.New("name is empty")
	ErrStringTooLong   = errors.New("string exceeds maximum length")
	ErrLengthMismatch  = errors.New("declared length disagrees with value")
	ErrTruncated       = errors.New("buffer shorter than declared length")
	ErrUnexpectedEOF   = errors.New("stream ended before full read")
)
