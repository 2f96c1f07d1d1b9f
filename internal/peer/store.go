package peer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/router"
	"github.com/brypt-io/brypt-core/internal/scheduler"
	"github.com/brypt-io/brypt-core/internal/tracking"
)

// aggregateEntry is one peer's contribution to a fulfilled cluster
// request's reply.
type aggregateEntry struct {
	Identifier string `json:"identifier"`
	Pack       []byte `json:"pack"`
}

func aggregatePayload(aggregates []tracking.Aggregate) ([]byte, error) {
	entries := make([]aggregateEntry, 0, len(aggregates))
	for _, a := range aggregates {
		entries = append(entries, aggregateEntry{Identifier: a.Identifier, Pack: a.Pack})
	}
	return json.Marshal(entries)
}

// DelegateID is the scheduler identity the proxy store registers under.
// Resolver lifetime cleanup and tracker fulfillment ordering both drive
// off this one delegate's tick.
const DelegateID scheduler.DelegateID = "peer-store"

// heartbeatMarker is the platform request the store hands back from
// DeclareResolvingPeer when the target peer is already tracked: the
// existing session re-keys through the normal exchange instead of a fresh
// one starting.
var heartbeatMarker = []byte("brypt.heartbeat")

type callbackPair struct {
	onResponse func(pack []byte)
	onError    func(error)
}

// Store is the process-wide peer registry. It owns the cipher service
// peers negotiate against, the tracking service
// their requests stage trackers on, and the event bus connect/disconnect
// transitions publish to.
type Store struct {
	peersMu sync.RWMutex
	peers   map[string]*Proxy // keyed by Identifier.String()

	resolvingMu sync.Mutex
	resolving   map[string]*Resolver // keyed by pre-connect address

	resolvedMu sync.Mutex
	resolved   []*Proxy // proxies awaiting DetachResolver on the next tick

	callbacksMu sync.Mutex
	callbacks   map[tracking.Key]callbackPair

	cipherService *cipher.Service
	tracker       *tracking.Service
	bus           *events.Bus
	delegate      *scheduler.Delegate

	shuttingDown atomic.Bool
}

// NewStore wires a proxy store against the scheduler, the cipher service
// peers negotiate suites through, and the event bus connect/disconnect
// transitions publish on.
func NewStore(sched *scheduler.Scheduler, cipherService *cipher.Service, bus *events.Bus) *Store {
	s := &Store{
		peers:     make(map[string]*Proxy),
		resolving: make(map[string]*Resolver),
		callbacks: make(map[tracking.Key]callbackPair),

		cipherService: cipherService,
		bus:           bus,
	}
	s.tracker = tracking.NewService(func() { s.delegate.OnTaskAvailable(1) })
	s.delegate = sched.Register(DelegateID, s.onExecute)
	return s
}

// Delegate exposes the registered scheduler delegate so the runtime can
// declare dependents on it.
func (s *Store) Delegate() *scheduler.Delegate { return s.delegate }

// SetShuttingDown toggles the suppression of disconnect events during a
// global shutdown drain.
func (s *Store) SetShuttingDown(v bool) { s.shuttingDown.Store(v) }

// DeclareResolvingPeer stages an initiator-role resolver for an outbound
// connect attempt about to be made to address, unless peerID is already
// tracked -- in which case it returns the heartbeat marker instead of
// starting a fresh exchange.
func (s *Store) DeclareResolvingPeer(address string, peerID *Identifier) (requestBytes []byte, isHeartbeat bool, err error) {
	if peerID != nil {
		if _, ok := s.Find(*peerID); ok {
			return heartbeatMarker, true, nil
		}
	}

	resolver := NewResolver(s.cipherService, cipher.Initiator)
	_, out, err := resolver.Initialize()
	if err != nil {
		return nil, false, err
	}

	s.resolvingMu.Lock()
	s.resolving[address] = resolver
	s.resolvingMu.Unlock()
	return out, false, nil
}

// RescindResolvingPeer drops a pre-staged resolver whose connect attempt
// failed before any bytes came back.
func (s *Store) RescindResolvingPeer(address string) {
	s.resolvingMu.Lock()
	defer s.resolvingMu.Unlock()
	delete(s.resolving, address)
}

func (s *Store) takeResolving(address string) (*Resolver, bool) {
	s.resolvingMu.Lock()
	defer s.resolvingMu.Unlock()
	r, ok := s.resolving[address]
	if ok {
		delete(s.resolving, address)
	}
	return r, ok
}

// LinkPeer is called when an endpoint learns the identifier behind
// address. It merges into an existing proxy if one is already
// registered for peerID, restarting an exchange if that proxy currently has
// no endpoints; otherwise it creates a fresh proxy and attaches whichever
// resolver was staged for address, or starts a fresh acceptor exchange if
// none was staged.
func (s *Store) LinkPeer(peerID Identifier, address string) (*Proxy, error) {
	key := peerID.String()

	s.peersMu.Lock()
	proxy, existed := s.peers[key]
	if !existed {
		proxy = newProxy(peerID, s)
		s.peers[key] = proxy
	}
	s.peersMu.Unlock()

	if existed && proxy.EndpointCount() > 0 {
		return proxy, nil
	}

	if resolver, ok := s.takeResolving(address); ok {
		proxy.AttachResolver(resolver)
		return proxy, nil
	}

	if _, _, err := proxy.StartExchange(cipher.Acceptor); err != nil {
		return nil, err
	}
	return proxy, nil
}

// AdvanceResolver feeds bytes received over address/peerID's connection
// into the proxy's attached resolver, returning the reply to send (if any)
// and finalizing the proxy's cipher package once the resolver reaches
// Ready.
func (s *Store) AdvanceResolver(proxy *Proxy, in []byte) (out []byte, status cipher.Status, err error) {
	resolver := proxy.Resolver()
	if resolver == nil {
		return nil, cipher.Error, errs.New(errs.Conflict, "peer has no attached resolver")
	}

	status, out, err = resolver.Synchronize(in)
	if err != nil {
		return nil, status, err
	}
	if status == cipher.Ready {
		proxy.finalizeExchange()
		proxy.setAuthorization(Authorized)
	}
	return out, status, nil
}

// OnEndpointRegistered records a usable transport link for peerID and
// publishes PeerConnected if this registration brought the proxy from
// inactive to active while Authorized.
func (s *Store) OnEndpointRegistered(peerID Identifier, reg EndpointRegistration) error {
	proxy, ok := s.Find(peerID)
	if !ok {
		return errs.Newf(errs.NotFound, "OnEndpointRegistered: unknown peer %s", peerID)
	}

	becameActive := proxy.RegisterEndpoint(reg)
	if becameActive {
		s.resolvedMu.Lock()
		s.resolved = append(s.resolved, proxy)
		s.resolvedMu.Unlock()
		s.delegate.OnTaskAvailable(1)

		if proxy.Authorization() == Authorized {
			s.bus.Publish(events.PeerConnected, events.PeerConnectedEvent{
				PeerID:     peerID.String(),
				EndpointID: reg.EndpointID,
			})
		}
	}
	return nil
}

// OnEndpointWithdrawn drops endpointID from peerID's proxy and publishes
// PeerDisconnected if it was the proxy's last active endpoint -- unless the
// store is draining a global shutdown, in which case the publish is
// suppressed here and handled once, centrally, by the runtime's drain path.
func (s *Store) OnEndpointWithdrawn(peerID Identifier, endpointID string, cause events.DisconnectCause) error {
	proxy, ok := s.Find(peerID)
	if !ok {
		return errs.Newf(errs.NotFound, "OnEndpointWithdrawn: unknown peer %s", peerID)
	}

	becameInactive := proxy.WithdrawEndpoint(endpointID)
	if s.shuttingDown.Load() {
		return nil
	}
	if becameInactive && proxy.Authorization() == Authorized {
		s.bus.Publish(events.PeerDisconnected, events.PeerDisconnectedEvent{
			PeerID:     peerID.String(),
			EndpointID: endpointID,
			Cause:      cause,
		})
	}
	return nil
}

// Find looks up a proxy by its node identifier.
func (s *Store) Find(id Identifier) (*Proxy, bool) {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	p, ok := s.peers[id.String()]
	return p, ok
}

// FindByString looks up a proxy by the external string form of its
// identifier -- the same lookup as Find, since Identifier's internal and
// external forms are two views of one value here.
func (s *Store) FindByString(id string) (*Proxy, bool) {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	p, ok := s.peers[id]
	return p, ok
}

// Contains reports whether id names a known proxy.
func (s *Store) Contains(id Identifier) bool {
	_, ok := s.Find(id)
	return ok
}

// IsActive reports whether id names a proxy that is currently active.
func (s *Store) IsActive(id Identifier) bool {
	p, ok := s.Find(id)
	return ok && p.IsActive()
}

// ForEach visits every proxy matching filter.
func (s *Store) ForEach(filter Filter, fn func(*Proxy) bool) {
	s.peersMu.RLock()
	proxies := make([]*Proxy, 0, len(s.peers))
	for _, p := range s.peers {
		proxies = append(proxies, p)
	}
	s.peersMu.RUnlock()

	for _, p := range proxies {
		switch filter {
		case Active:
			if !p.IsActive() {
				continue
			}
		case Inactive:
			if p.IsActive() {
				continue
			}
		}
		if !fn(p) {
			return
		}
	}
}

// ActiveCount returns how many proxies are currently active.
func (s *Store) ActiveCount() int {
	count := 0
	s.ForEach(Active, func(*Proxy) bool { count++; return true })
	return count
}

// InactiveCount returns how many known proxies are currently inactive
// (no registered endpoint, or not Authorized).
func (s *Store) InactiveCount() int {
	count := 0
	s.ForEach(Inactive, func(*Proxy) bool { count++; return true })
	return count
}

// ObservedCount returns the total number of proxies the store has ever
// created, active or not.
func (s *Store) ObservedCount() int {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	return len(s.peers)
}

// Dispatch is a one-to-one fire-and-forget send.
func (s *Store) Dispatch(id Identifier, route string, payload []byte) error {
	p, ok := s.Find(id)
	if !ok {
		return errs.Newf(errs.NotFound, "dispatch: unknown peer %s", id)
	}
	return p.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
		return router.Seal(pkg, router.Parcel{Source: id.String(), Destination: router.Direct, Route: route, Payload: payload})
	})
}

// Notify fans a parcel out to every active peer satisfying predicate (nil
// matches all), returning how many sends were actually scheduled.
func (s *Store) Notify(destination router.Destination, route string, payload []byte, predicate func(*Proxy) bool) int {
	dispatched := 0
	s.ForEach(Active, func(p *Proxy) bool {
		if predicate != nil && !predicate(p) {
			return true
		}
		err := p.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
			return router.Seal(pkg, router.Parcel{Source: p.Identifier().String(), Destination: destination, Route: route, Payload: payload})
		})
		if err == nil {
			dispatched++
		}
		return true
	})
	return dispatched
}

// RequestCluster stages one tracker for every active peer matching
// predicate and schedules a request parcel to each, cancelling the
// tracker if zero sends succeed.
func (s *Store) RequestCluster(route string, payload []byte, predicate func(*Proxy) bool) (tracking.Key, int) {
	var targets []*Proxy
	s.ForEach(Active, func(p *Proxy) bool {
		if predicate == nil || predicate(p) {
			targets = append(targets, p)
		}
		return true
	})
	if len(targets) == 0 {
		return tracking.Key{}, 0
	}

	pack, err := router.Pack(router.Parcel{Destination: router.Cluster, Route: route, Payload: payload})
	if err != nil {
		return tracking.Key{}, 0
	}

	peerIDs := make([]string, 0, len(targets))
	for _, p := range targets {
		peerIDs = append(peerIDs, p.Identifier().String())
	}
	key, err := s.tracker.Push("", pack, peerIDs)
	if err != nil {
		return tracking.Key{}, 0
	}

	scheduled := 0
	for _, p := range targets {
		err := p.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
			return router.Seal(pkg, router.Parcel{Destination: router.Cluster, Route: route, Payload: payload, TrackerKey: &key})
		})
		if err == nil {
			scheduled++
		}
	}
	if scheduled == 0 {
		s.tracker.Cancel(key)
		return tracking.Key{}, 0
	}
	return key, scheduled
}

// requestFromPeer backs Proxy.Request: a single-peer request with local
// completion callbacks rather than a relayed-aggregate destination. It
// follows RequestCluster's pattern of packing the plain parcel once,
// locally, to derive the tracker key, then sealing a fresh copy per send
// -- the key must match what the responder re-derives from the verified
// plaintext it receives, which the sealed ciphertext alone never would.
func (s *Store) requestFromPeer(p *Proxy, route string, payload []byte, onResponse func([]byte), onError func(error)) (tracking.Key, error) {
	if p.CipherPackage() == nil {
		return tracking.Key{}, errs.New(errs.NotAvailable, "peer has no negotiated cipher package")
	}

	pack, err := router.Pack(router.Parcel{Source: p.Identifier().String(), Destination: router.Direct, Route: route, Payload: payload})
	if err != nil {
		return tracking.Key{}, err
	}

	key, err := s.tracker.Push(p.Identifier().String(), pack, []string{p.Identifier().String()})
	if err != nil {
		return tracking.Key{}, err
	}

	s.callbacksMu.Lock()
	s.callbacks[key] = callbackPair{onResponse: onResponse, onError: onError}
	s.callbacksMu.Unlock()

	err = p.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
		return router.Seal(pkg, router.Parcel{Source: p.Identifier().String(), Destination: router.Direct, Route: route, Payload: payload})
	})
	if err != nil {
		s.tracker.Cancel(key)
		s.callbacksMu.Lock()
		delete(s.callbacks, key)
		s.callbacksMu.Unlock()
		return tracking.Key{}, err
	}
	return key, nil
}

// PushResponse feeds a response parcel's payload into the tracking service,
// keyed by the tracker key the parcel carried.
func (s *Store) PushResponse(key tracking.Key, peerID string, pack []byte) tracking.Status {
	return s.tracker.PushResponse(key, peerID, pack)
}

// Tracker exposes the underlying tracking service for components (e.g. the
// router's Defer surface) that need to stage trackers directly.
func (s *Store) Tracker() *tracking.Service { return s.tracker }

// onExecute is the peer-store delegate's scheduler callback: it detaches
// resolvers for proxies that finished their handshake, then processes
// fulfilled/expired trackers, relaying aggregates to their original
// requestor or firing a locally-registered callback.
func (s *Store) onExecute() int {
	completed := 0

	s.resolvedMu.Lock()
	pending := s.resolved
	s.resolved = nil
	s.resolvedMu.Unlock()
	for _, p := range pending {
		p.DetachResolver()
		completed++
	}

	for _, fulfilled := range s.tracker.ProcessFulfilledRequests() {
		completed++

		s.callbacksMu.Lock()
		cb, hasCallback := s.callbacks[fulfilled.Key]
		delete(s.callbacks, fulfilled.Key)
		s.callbacksMu.Unlock()

		if hasCallback {
			if len(fulfilled.Aggregates) == 0 {
				if cb.onError != nil {
					cb.onError(errs.New(errs.Timeout, "request expired with no response"))
				}
				continue
			}
			if cb.onResponse != nil {
				cb.onResponse(fulfilled.Aggregates[0].Pack)
			}
			continue
		}

		if fulfilled.Requestor == "" {
			continue
		}
		requestor, ok := s.FindByString(fulfilled.Requestor)
		if !ok {
			continue
		}
		payload, err := aggregatePayload(fulfilled.Aggregates)
		if err != nil {
			continue
		}
		trackerKey := fulfilled.Key
		_ = requestor.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
			return router.Seal(pkg, router.Parcel{Destination: router.Direct, Route: "", Payload: payload, TrackerKey: &trackerKey})
		})
	}

	return completed
}
