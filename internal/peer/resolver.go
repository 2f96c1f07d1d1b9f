package peer

import "github.com/brypt-io/brypt-core/internal/cipher"

// Resolver is the short-lived companion a proxy owns during key exchange.
// It wraps a single Synchronizer and is
// detached once the proxy that owns it reaches an Authorized state with at
// least one registered endpoint.
type Resolver struct {
	synchronizer *cipher.Synchronizer
	address      string // the pre-connect address this resolver was staged under, if any
}

// NewResolver wraps a fresh synchronizer in the given role.
func NewResolver(svc *cipher.Service, role cipher.Role) *Resolver {
	return &Resolver{synchronizer: svc.CreateSynchronizer(role)}
}

// Initialize starts the handshake (only meaningful for an Initiator-role
// resolver; an Acceptor-role resolver's Initialize emits nothing).
func (r *Resolver) Initialize() (cipher.Status, []byte, error) {
	return r.synchronizer.Initialize()
}

// Synchronize advances the handshake with bytes received from the peer.
func (r *Resolver) Synchronize(in []byte) (cipher.Status, []byte, error) {
	return r.synchronizer.Synchronize(in)
}

// Finalize yields the negotiated cipher package once Ready.
func (r *Resolver) Finalize() (*cipher.Package, bool) {
	return r.synchronizer.Finalize()
}
