package model

// Category is the reason a probe failed. Exactly one is attributed to each
// failed probe.
type Category int

const (
	CategoryOther Category = iota
	CategoryTimeout
	CategoryProtocolAlert
	CategoryInvalidInput
	CategoryConnectionRefused
	CategoryHostUnreachable
	CategoryConnectionReset
	CategoryDNSFailure
	CategorySocketError
)

// Categories lists every category in the order used by the rate log.
var Categories = []Category{
	CategoryTimeout,
	CategoryProtocolAlert,
	CategoryHostUnreachable,
	CategoryConnectionRefused,
	CategoryConnectionReset,
	CategoryDNSFailure,
	CategorySocketError,
	CategoryInvalidInput,
	CategoryOther,
}

func (c Category) String() string {
	switch c {
	case CategoryTimeout:
		return "timeout"
	case CategoryProtocolAlert:
		return "protocol-alert"
	case CategoryInvalidInput:
		return "invalid-input"
	case CategoryConnectionRefused:
		return "connection-refused"
	case CategoryHostUnreachable:
		return "host-unreachable"
	case CategoryConnectionReset:
		return "connection-reset"
	case CategoryDNSFailure:
		return "dns-failure"
	case CategorySocketError:
		return "socket-error"
	default:
		return "other"
	}
}
