package wire

import (
	"errors"
	"fmt"
	"io"
)

// ReadN reads exactly n bytes from r, concatenating partial arrivals. It
// never consumes more than n bytes. A stream that ends early fails with
// ErrUnexpectedEOF; other read failures are returned as-is.
func ReadN(r io.Reader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: wanted %d bytes", ErrUnexpectedEOF, n)
		}
		return nil, err
	}
	return buf, nil
}

// ReadHeader reads and decodes one frame header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf, err := ReadN(r, HeaderSize)
	if err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf)
}

// ReadPayload reads the payload announced by h. The header's Length field is
// authoritative for the read size.
func ReadPayload(r io.Reader, h Header) ([]byte, error) {
	if h.Length == 0 {
		return nil, nil
	}
	return ReadN(r, h.Length)
}

// WriteFrame encodes h and writes it followed by payload. Callers pass the
// payload they sized the header with.
func WriteFrame(w io.Writer, h Header, payload []byte) error {
	buf, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}
