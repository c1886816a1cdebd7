package wire

import (
	"encoding/binary"
	"fmt"
)

// Request registers a name under an application protocol.
type Request struct {
	Proto      uint8
	NameLength uint32
	Name       string
}

// NewRequest builds a Request with NameLength derived from the name.
func NewRequest(proto uint8, name string) Request {
	return Request{
		Proto:      proto,
		NameLength: uint32(len(name)),
		Name:       name,
	}
}

func (r Request) validate() error {
	if r.Proto != ProtoHTTP && r.Proto != ProtoTCP {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownProto, r.Proto)
	}
	if r.NameLength == 0 {
		return ErrEmptyName
	}
	if r.NameLength > MaxNameLen {
		return fmt.Errorf("%w: name is %d bytes", ErrStringTooLong, r.NameLength)
	}
	if int(r.NameLength) != len(r.Name) {
		return fmt.Errorf("%w: nameLength=%d, name is %d bytes", ErrLengthMismatch, r.NameLength, len(r.Name))
	}
	return nil
}

// EncodeRequest serializes r big-endian: proto, nameLength, name bytes.
func EncodeRequest(r Request) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, RequestSize+len(r.Name))
	buf[0] = r.Proto
	binary.BigEndian.PutUint32(buf[1:5], r.NameLength)
	copy(buf[RequestSize:], r.Name)
	return buf, nil
}

// DecodeRequest parses and validates a Request payload.
func DecodeRequest(buf []byte) (Request, error) {
	if len(buf) < RequestSize {
		return Request{}, fmt.Errorf("%w: request needs %d bytes, have %d", ErrTruncated, RequestSize, len(buf))
	}

	nameLen := binary.BigEndian.Uint32(buf[1:5])
	if uint64(len(buf)) < RequestSize+uint64(nameLen) {
		return Request{}, fmt.Errorf("%w: request declares %d name bytes, have %d", ErrTruncated, nameLen, len(buf)-RequestSize)
	}

	r := Request{
		Proto:      buf[0],
		NameLength: nameLen,
		Name:       string(buf[RequestSize : RequestSize+int(nameLen)]),
	}
	if err := r.validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Response answers a registration Request.
type Response struct {
	Status       uint8
	TTLHours     uint64
	DomainLength uint32
	Domain       string
}

// NewResponse builds a Response with DomainLength derived from the domain.
func NewResponse(status uint8, ttl uint64, domain string) Response {
	return Response{
		Status:       status,
		TTLHours:     ttl,
		DomainLength: uint32(len(domain)),
		Domain:       domain,
	}
}

// validate checks the status domain and that DomainLength matches the
// domain; only when the registration succeeded does it require a non-empty
// domain within MaxNameLen. Rejections legitimately carry no domain.
func (r Response) validate() error {
	switch r.Status {
	case StatusOK, StatusNameTaken, StatusUnsupportedProto:
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownStatus, r.Status)
	}
	if int(r.DomainLength) != len(r.Domain) {
		return fmt.Errorf("%w: domainLength=%d, domain is %d bytes", ErrLengthMismatch, r.DomainLength, len(r.Domain))
	}
	if r.Status == StatusOK {
		if r.DomainLength == 0 {
			return fmt.Errorf("%w: domain", ErrEmptyName)
		}
		if r.DomainLength > MaxNameLen {
			return fmt.Errorf("%w: domain is %d bytes", ErrStringTooLong, r.DomainLength)
		}
	}
	return nil
}

// EncodeResponse serializes r big-endian: status, ttlHours, domainLength, domain.
func EncodeResponse(r Response) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, ResponseSize+len(r.Domain))
	buf[0] = r.Status
	binary.BigEndian.PutUint64(buf[1:9], r.TTLHours)
	binary.BigEndian.PutUint32(buf[9:13], r.DomainLength)
	copy(buf[ResponseSize:], r.Domain)
	return buf, nil
}

// DecodeResponse parses and validates a Response payload.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) < ResponseSize {
		return Response{}, fmt.Errorf("%w: response needs %d bytes, have %d", ErrTruncated, ResponseSize, len(buf))
	}

	domainLen := binary.BigEndian.Uint32(buf[9:13])
	if uint64(len(buf)) < ResponseSize+uint64(domainLen) {
		return Response{}, fmt.Errorf("%w: response declares %d domain bytes, have %d", ErrTruncated, domainLen, len(buf)-ResponseSize)
	}

	r := Response{
		Status:       buf[0],
		TTLHours:     binary.BigEndian.Uint64(buf[1:9]),
		DomainLength: domainLen,
		Domain:       string(buf[ResponseSize : ResponseSize+int(domainLen)]),
	}
	if err := r.validate(); err != nil {
		return Response{}, err
	}
	return r, nil
}

// Metrics is one fixed-size counters snapshot streamed by the server.
type Metrics struct {
	Ingress           uint64
	Egress            uint64
	Uptime            uint64
	ConnectionCount   uint64
	ActiveConnections uint32
}

// EncodeMetrics serializes m big-endian into its fixed 36-byte form.
func EncodeMetrics(m Metrics) ([]byte, error) {
	buf := make([]byte, MetricsSize)
	binary.BigEndian.PutUint64(buf[0:8], m.Ingress)
	binary.BigEndian.PutUint64(buf[8:16], m.Egress)
	binary.BigEndian.PutUint64(buf[16:24], m.Uptime)
	binary.BigEndian.PutUint64(buf[24:32], m.ConnectionCount)
	binary.BigEndian.PutUint32(buf[32:36], m.ActiveConnections)
	return buf, nil
}

// DecodeMetrics parses a fixed 36-byte Metrics payload.
func DecodeMetrics(buf []byte) (Metrics, error) {
	if len(buf) < MetricsSize {
		return Metrics{}, fmt.Errorf("%w: metrics needs %d bytes, have %d", ErrTruncated, MetricsSize, len(buf))
	}

	return Metrics{
		Ingress:           binary.BigEndian.Uint64(buf[0:8]),
		Egress:            binary.BigEndian.Uint64(buf[8:16]),
		Uptime:            binary.BigEndian.Uint64(buf[16:24]),
		ConnectionCount:   binary.BigEndian.Uint64(buf[24:32]),
		ActiveConnections: binary.BigEndian.Uint32(buf[32:36]),
	}, nil
}
