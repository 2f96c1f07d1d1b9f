package errs

// ResultCode is the flat, ABI-stable code space returned across the library
// boundary. Categories are reserved ranges so a new code never collides
// across generic/service/configuration/network concerns.
type ResultCode int32

const Accepted ResultCode = 0

// Generic (1xx)
const (
	EUnspecified ResultCode = 100 + iota
	EInvalidArgument
	ENotFound
	ENotAvailable
	ENotSupported
	EOutOfMemory
	ECanceled
	ETimeout
	EInProgress
	EConflict
	EPayloadTooLarge
)

const (
	// Service (2xx)
	EAlreadyStarted ResultCode = 200 + iota
	ENotStarted
	EInitFailure
	EShutdownRequested
)

const (
	// Configuration (3xx)
	EFileNotFound ResultCode = 300 + iota
	EFileNotSupported
	EInvalidConfig
)

const (
	// Network (4xx)
	EBindingFailed ResultCode = 400 + iota
	EConnectionFailed
	EInvalidAddress
	EAddressInUse
	ENotConnected
	EAlreadyConnected
	EConnectionRefused
	ENetworkDown
	ENetworkUnreachable
	ENetworkReset
	ENetworkPermissions
	ESessionClosed
)

// EUnknown is returned for any result code the receiving side doesn't
// recognize -- e.g. a code produced by a newer library version. It is never
// itself put on the wire.
const EUnknown ResultCode = -1

var kindToCode = map[Kind]ResultCode{
	Unspecified:        EUnspecified,
	InvalidArgument:    EInvalidArgument,
	NotFound:           ENotFound,
	NotAvailable:       ENotAvailable,
	NotSupported:       ENotSupported,
	AlreadyStarted:     EAlreadyStarted,
	NotStarted:         ENotStarted,
	OutOfMemory:        EOutOfMemory,
	Canceled:           ECanceled,
	Timeout:            ETimeout,
	InProgress:         EInProgress,
	Conflict:           EConflict,
	PayloadTooLarge:    EPayloadTooLarge,
	BindingFailed:      EBindingFailed,
	ConnectionFailed:   EConnectionFailed,
	InvalidAddress:     EInvalidAddress,
	AddressInUse:       EAddressInUse,
	NotConnected:       ENotConnected,
	AlreadyConnected:   EAlreadyConnected,
	ConnectionRefused:  EConnectionRefused,
	NetworkDown:        ENetworkDown,
	NetworkUnreachable: ENetworkUnreachable,
	NetworkReset:       ENetworkReset,
	NetworkPermissions: ENetworkPermissions,
	SessionClosed:      ESessionClosed,
	ShutdownRequested:  EShutdownRequested,
	FileNotFound:       EFileNotFound,
	FileNotSupported:   EFileNotSupported,
	InvalidConfig:      EInvalidConfig,
}

// Translate maps an internal error to its public result code. The mapping is
// total: every Kind has a code, and a nil error maps to Accepted. Unmapped
// kinds (there are none today, but a future Kind added without updating
// kindToCode would otherwise panic on a map miss) fall back to EUnspecified
// rather than EUnknown -- EUnknown is reserved for codes arriving from the
// wire/ABI that this build doesn't recognize, not for outgoing translation
// gaps.
func Translate(err error) ResultCode {
	if err == nil {
		return Accepted
	}
	if code, ok := kindToCode[KindOf(err)]; ok {
		return code
	}
	return EUnspecified
}

// ParseResultCode validates a code read off the wire/ABI. Per the open
// question in the design notes, incoming codes outside the declared set are
// left as EUnknown rather than rejected outright -- behavior preserved from
// the source, flagged as worth revisiting.
func ParseResultCode(raw int32) ResultCode {
	code := ResultCode(raw)
	for _, known := range kindToCode {
		if known == code {
			return code
		}
	}
	if code == Accepted || code == EInitFailure {
		return code
	}
	return EUnknown
}
