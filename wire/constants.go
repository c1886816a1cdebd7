package wire

const (
	// Version is the only protocol version this client speaks.
	Version uint8 = 0x10

	TypeRequest  uint8 = 0x01
	TypeResponse uint8 = 0x02
	TypeAccess   uint8 = 0x03
	TypeAck      uint8 = 0x04
	TypeMetrics  uint8 = 0x05
	TypeEnd      uint8 = 0x06
	TypeError    uint8 = 0xFF

	// FlagMetrics asks the server to stream metrics frames back.
	FlagNone    uint8 = 0
	FlagMetrics uint8 = 1 << 0

	ProtoHTTP uint8 = 0x01
	ProtoTCP  uint8 = 0x02

	StatusOK               uint8 = 0x01
	StatusNameTaken        uint8 = 0x03
	StatusUnsupportedProto uint8 = 0x04

	// HeaderSize: Version(1) + Type(1) + Flags(1) + Length(8) + Reserved(1)
	HeaderSize = 12

	// RequestSize: Proto(1) + NameLength(4); the name bytes follow.
	RequestSize = 5

	// ResponseSize: Status(1) + TTLHours(8) + DomainLength(4); domain follows.
	ResponseSize = 13

	// MetricsSize: Ingress(8) + Egress(8) + Uptime(8) + ConnectionCount(8) + ActiveConnections(4)
	MetricsSize = 36

	MaxPayloadSize = 1 << 20
	MaxNameLen     = 4096
)

// IsValidType reports whether t is a defined message type.
func IsValidType(t uint8) bool {
	switch t {
	case TypeRequest, TypeResponse, TypeAccess, TypeAck, TypeMetrics, TypeEnd, TypeError:
		return true
	default:
		return false
	}
}
