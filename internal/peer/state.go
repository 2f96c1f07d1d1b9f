package peer

import "github.com/multiformats/go-multiaddr"

// AuthorizationState tracks where a proxy sits in the handshake/trust
// lifecycle.
type AuthorizationState int

const (
	Unauthorized AuthorizationState = iota
	Authorized
	Flagged
)

func (s AuthorizationState) String() string {
	switch s {
	case Unauthorized:
		return "Unauthorized"
	case Authorized:
		return "Authorized"
	case Flagged:
		return "Flagged"
	default:
		return "Unauthorized"
	}
}

// Filter selects which proxies Store.ForEach visits.
type Filter int

const (
	None Filter = iota
	Active
	Inactive
)

// EndpointRegistration is what an endpoint hands the proxy when a
// transport link becomes usable.
type EndpointRegistration struct {
	EndpointID string
	Address    multiaddr.Multiaddr
	Send       func(payload []byte) error
	Close      func() error
}
