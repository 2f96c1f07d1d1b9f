package peer

import (
	"sync"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/tracking"
	"github.com/multiformats/go-multiaddr"
)

// MessageBuilder produces the bytes to send once a peer's cipher package is
// available, signing and encrypting as the final step of ScheduleSend's
// "sign, encrypt, pack, then schedule" pipeline.
type MessageBuilder func(pkg *cipher.Package) ([]byte, error)

// Proxy is the per-peer session object. All
// exported methods are safe for concurrent use; callers serialize
// cipher-package mutation themselves by only ever calling ScheduleSend from
// one goroutine per proxy (the send scheduler), but the
// bookkeeping fields here (endpoints, auth state, counters) tolerate
// concurrent readers via mu.
type Proxy struct {
	mu sync.RWMutex

	id        Identifier
	auth      AuthorizationState
	endpoints map[string]EndpointRegistration
	resolver  *Resolver
	pkg       *cipher.Package

	sent     uint64
	received uint64

	store *Store
}

func newProxy(id Identifier, store *Store) *Proxy {
	return &Proxy{
		id:        id,
		endpoints: make(map[string]EndpointRegistration),
		store:     store,
	}
}

// Identifier returns the peer's node identifier.
func (p *Proxy) Identifier() Identifier {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

// Authorization returns the proxy's current authorization state.
func (p *Proxy) Authorization() AuthorizationState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.auth
}

func (p *Proxy) setAuthorization(state AuthorizationState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auth = state
}

// IsActive reports whether the proxy has at least one registered endpoint
// and is Authorized.
func (p *Proxy) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.auth == Authorized && len(p.endpoints) > 0
}

// EndpointCount reports how many endpoints are currently registered.
func (p *Proxy) EndpointCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// CipherPackage returns the proxy's negotiated cipher package, or nil if
// the handshake has not completed.
func (p *Proxy) CipherPackage() *cipher.Package {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pkg
}

// AttachResolver binds a resolver to this proxy during key exchange.
func (p *Proxy) AttachResolver(resolver *Resolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolver = resolver
}

// StartExchange builds and attaches a fresh resolver in the given role.
func (p *Proxy) StartExchange(role cipher.Role) (*Resolver, []byte, error) {
	resolver := NewResolver(p.store.cipherService, role)
	_, out, err := resolver.Initialize()
	if err != nil {
		return nil, nil, err
	}
	p.AttachResolver(resolver)
	return resolver, out, nil
}

// DetachResolver drops the proxy's resolver, freeing its handshake
// resources. Called from the store's scheduler tick, never inline from an
// endpoint callback.
func (p *Proxy) DetachResolver() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolver = nil
}

// Resolver returns the proxy's currently attached resolver, if any.
func (p *Proxy) Resolver() *Resolver {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolver
}

// RegisterEndpoint records a usable transport link. It returns whether this
// registration transitioned the proxy from inactive to active (0 -> 1
// endpoints while Authorized) -- the store uses this to decide whether to
// emit a PeerConnected event.
func (p *Proxy) RegisterEndpoint(reg EndpointRegistration) (becameActive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasActive := p.auth == Authorized && len(p.endpoints) > 0
	p.endpoints[reg.EndpointID] = reg
	nowActive := p.auth == Authorized && len(p.endpoints) > 0
	return !wasActive && nowActive
}

// WithdrawEndpoint removes a transport link, e.g. on disconnect. It returns
// whether this withdrawal transitioned the proxy from active to inactive.
func (p *Proxy) WithdrawEndpoint(endpointID string) (becameInactive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasActive := p.auth == Authorized && len(p.endpoints) > 0
	delete(p.endpoints, endpointID)
	nowActive := p.auth == Authorized && len(p.endpoints) > 0
	return wasActive && !nowActive
}

func (p *Proxy) anyEndpoint() (EndpointRegistration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, reg := range p.endpoints {
		return reg, true
	}
	return EndpointRegistration{}, false
}

// Addresses returns every registered endpoint's remote address, so a
// bootstrap cache can remember a peer's reachable address once it has
// connected.
func (p *Proxy) Addresses() []multiaddr.Multiaddr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]multiaddr.Multiaddr, 0, len(p.endpoints))
	for _, reg := range p.endpoints {
		if reg.Address != nil {
			out = append(out, reg.Address)
		}
	}
	return out
}

// Statistics returns the proxy's lifetime sent/received message counts.
func (p *Proxy) Statistics() (sent, received uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sent, p.received
}

// RecordReceived increments the proxy's received-message counter. Callers
// outside this package (runtime's parcel handler) call this once per
// successfully opened inbound parcel, mirroring ScheduleSend's own sent
// bookkeeping.
func (p *Proxy) RecordReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received++
}

// ScheduleSend enqueues raw bytes on the named endpoint's send closure.
func (p *Proxy) ScheduleSend(endpointID string, payload []byte) error {
	p.mu.RLock()
	reg, ok := p.endpoints[endpointID]
	p.mu.RUnlock()
	if !ok {
		return errs.Newf(errs.NotFound, "peer %s has no endpoint %q registered", p.id, endpointID)
	}
	if err := reg.Send(payload); err != nil {
		return err
	}
	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	return nil
}

// ScheduleSendAny picks any registered endpoint and sends on it -- used by
// callers that don't care which transport link carries a message, which is
// the common case with the one-endpoint-per-peer shape most deployments
// have.
func (p *Proxy) ScheduleSendAny(payload []byte) error {
	reg, ok := p.anyEndpoint()
	if !ok {
		return errs.Newf(errs.NotConnected, "peer %s has no registered endpoints", p.id)
	}
	return p.ScheduleSend(reg.EndpointID, payload)
}

// ScheduleSendMessage signs, encrypts, and packs a message via build, then
// schedules it on any registered endpoint.
func (p *Proxy) ScheduleSendMessage(build MessageBuilder) error {
	pkg := p.CipherPackage()
	if pkg == nil {
		return errs.New(errs.NotAvailable, "peer has no negotiated cipher package")
	}
	payload, err := build(pkg)
	if err != nil {
		return err
	}
	return p.ScheduleSendAny(payload)
}

// ScheduleDisconnect closes every registered endpoint. The resulting
// endpoint-withdrawn notifications (delivered by the endpoint calling back
// into the store's OnEndpointWithdrawn) drive the store's bookkeeping, not
// this call directly.
func (p *Proxy) ScheduleDisconnect() error {
	p.mu.RLock()
	regs := make([]EndpointRegistration, 0, len(p.endpoints))
	for _, reg := range p.endpoints {
		regs = append(regs, reg)
	}
	p.mu.RUnlock()

	var firstErr error
	for _, reg := range regs {
		if reg.Close == nil {
			continue
		}
		if err := reg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Request stages a single-expected-response tracker via the store's
// tracking service, sends the sealed request, and arranges for onResponse
// or onError to fire once the tracker resolves. The tracker
// key is derived from the request's plain pack bytes, the same bytes a
// responder re-derives its reply key from after verifying and decrypting
// -- the wire carries ciphertext, but the key both sides compute never
// does.
func (p *Proxy) Request(route string, payload []byte, onResponse func(pack []byte), onError func(error)) (tracking.Key, error) {
	return p.store.requestFromPeer(p, route, payload, onResponse, onError)
}

// finalizeExchange completes a Ready resolver into this proxy's cipher
// package. The resolver field stays set; the store's scheduler delegate
// detaches it on its next tick.
func (p *Proxy) finalizeExchange() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolver == nil {
		return false
	}
	pkg, ok := p.resolver.Finalize()
	if !ok {
		return false
	}
	p.pkg = pkg
	return true
}
