// Package errs defines the core's error taxonomy and the result codes the
// façade translates them into at the library boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a core error independent of the component that raised it.
type Kind int

const (
	Unspecified Kind = iota
	InvalidArgument
	NotFound
	NotAvailable
	NotSupported
	AlreadyStarted
	NotStarted
	OutOfMemory
	Canceled
	Timeout
	InProgress
	Conflict
	PayloadTooLarge
	BindingFailed
	ConnectionFailed
	InvalidAddress
	AddressInUse
	NotConnected
	AlreadyConnected
	ConnectionRefused
	NetworkDown
	NetworkUnreachable
	NetworkReset
	NetworkPermissions
	SessionClosed
	ShutdownRequested
	FileNotFound
	FileNotSupported
	InvalidConfig
)

var kindNames = map[Kind]string{
	Unspecified:        "Unspecified",
	InvalidArgument:    "InvalidArgument",
	NotFound:           "NotFound",
	NotAvailable:       "NotAvailable",
	NotSupported:       "NotSupported",
	AlreadyStarted:     "AlreadyStarted",
	NotStarted:         "NotStarted",
	OutOfMemory:        "OutOfMemory",
	Canceled:           "Canceled",
	Timeout:            "Timeout",
	InProgress:         "InProgress",
	Conflict:           "Conflict",
	PayloadTooLarge:    "PayloadTooLarge",
	BindingFailed:      "BindingFailed",
	ConnectionFailed:   "ConnectionFailed",
	InvalidAddress:     "InvalidAddress",
	AddressInUse:       "AddressInUse",
	NotConnected:       "NotConnected",
	AlreadyConnected:   "AlreadyConnected",
	ConnectionRefused:  "ConnectionRefused",
	NetworkDown:        "NetworkDown",
	NetworkUnreachable: "NetworkUnreachable",
	NetworkReset:       "NetworkReset",
	NetworkPermissions: "NetworkPermissions",
	SessionClosed:      "SessionClosed",
	ShutdownRequested:  "ShutdownRequested",
	FileNotFound:       "FileNotFound",
	FileNotSupported:   "FileNotSupported",
	InvalidConfig:      "InvalidConfig",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unspecified"
}

// Error is the core's concrete error type: a Kind plus the component-level
// message that produced it. Components return *Error (or wrap one with
// fmt.Errorf("...: %w", err)) rather than bare sentinel values, so a caller
// further up the stack can recover the Kind with errors.As.
type Error struct {
	Kind    Kind
	Message string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf recovers the Kind carried by err, defaulting to Unspecified when err
// is nil, not a *Error, or doesn't wrap one.
func KindOf(err error) Kind {
	var e *Error
	if err == nil {
		return Unspecified
	}
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unspecified
}
