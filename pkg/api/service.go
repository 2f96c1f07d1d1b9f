// Package api is the Go-native facade over internal/runtime.Service: the
// same operation groups a C ABI binding would need (Lifecycle, Options,
// Runtime, Routing, Network operations, Handler-reply surface, Events,
// Logging), exposed as plain methods. A cgo //export shim would wrap this
// package one-for-one; none is built here, so the core is usable and
// testable without a cgo toolchain.
package api

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/peer"
	"github.com/brypt-io/brypt-core/internal/router"
	"github.com/brypt-io/brypt-core/internal/runtime"
	"github.com/brypt-io/brypt-core/internal/telemetry"
)

// Service is the host-process-facing handle a new node is built around. It
// owns the pre-start Options and the assembled runtime once started.
type Service struct {
	opts *config.Options
	rt   *runtime.Service

	routesMu      sync.RWMutex
	routeDescribe map[string]string
}

// NewService creates an unstarted service. logger may be nil, in which
// case diagnostics are discarded until RegisterLogger is called.
func NewService(logger telemetry.Logger) *Service {
	opts := config.NewOptions()
	return &Service{
		opts:          opts,
		rt:            runtime.New(opts, events.NewBus(), logger),
		routeDescribe: make(map[string]string),
	}
}

// Start assembles and runs the core.
func (s *Service) Start() errs.ResultCode {
	return errs.Translate(s.rt.Start())
}

// Stop gracefully drains the core.
func (s *Service) Stop() errs.ResultCode {
	return errs.Translate(s.rt.Stop())
}

// Restart stops and starts the core again.
func (s *Service) Restart() errs.ResultCode {
	return errs.Translate(s.rt.Restart())
}

// Destroy stops the core if running; otherwise a no-op.
func (s *Service) Destroy() errs.ResultCode {
	return errs.Translate(s.rt.Destroy())
}

// Options returns the pre-start configuration surface directly, for
// callers that want the full setter/getter surface rather than
// duplicating it here method-by-method.
func (s *Service) Options() *config.Options { return s.opts }

// RegisterLogger wires a host-supplied logger in place of the default.
// Only meaningful before Start.
func (s *Service) RegisterLogger(logger telemetry.Logger) {
	s.rt = runtime.New(s.opts, s.rt.Bus(), logger)
}

// IsActive reports whether the core is currently executing.
func (s *Service) IsActive() bool { return s.rt.IsActive() }

// GetIdentifier returns the node's own identifier in its external,
// printable form.
func (s *Service) GetIdentifier() (string, bool) {
	id, ok := s.rt.GetIdentifier()
	if !ok {
		return "", false
	}
	return id.String(), true
}

// IsPeerConnected reports whether id names a currently active peer.
func (s *Service) IsPeerConnected(id string) bool {
	parsed, err := peer.Parse(id)
	if err != nil {
		return false
	}
	return s.rt.IsPeerConnected(parsed)
}

// GetPeerStatistics returns a peer's lifetime sent/received counts.
func (s *Service) GetPeerStatistics(id string) (sent, received uint64, ok bool) {
	parsed, err := peer.Parse(id)
	if err != nil {
		return 0, 0, false
	}
	return s.rt.PeerStatistics(parsed)
}

// GetPeerDetails returns a full snapshot of a peer's session state.
func (s *Service) GetPeerDetails(id string) (runtime.PeerDetails, bool) {
	parsed, err := peer.Parse(id)
	if err != nil {
		return runtime.PeerDetails{}, false
	}
	return s.rt.PeerDetails(parsed)
}

// PeerCounts returns the active/inactive/observed peer counts.
func (s *Service) PeerCounts() (active, inactive, observed int) {
	return s.rt.PeerCounts()
}

// RegisterRoute binds a message handler to path. description is a
// free-text note surfaced by the `routes search` diagnostic; it has no
// effect on dispatch. The handler is always reported as having handled
// the parcel -- a host-process handler that wants the router's built-in
// "unhandled" signal back should register a narrower set of routes
// instead of relying on a false return here.
func (s *Service) RegisterRoute(path, description string, onMessage OnMessage) {
	s.rt.Router().Register(path, func(parcel router.Parcel, next router.Next) bool {
		onMessage(&Context{next: next, Source: parcel.Source, Route: parcel.Route, Payload: parcel.Payload, StatusCode: parcel.StatusCode})
		return true
	})
	s.routesMu.Lock()
	s.routeDescribe[path] = description
	s.routesMu.Unlock()
}

// UnregisterRoute drops a previously registered route.
func (s *Service) UnregisterRoute(path string) {
	s.rt.Router().Unregister(path)
	s.routesMu.Lock()
	delete(s.routeDescribe, path)
	s.routesMu.Unlock()
}

// RouteDescriptor is one registered route's introspection record.
type RouteDescriptor struct {
	Path        string
	Description string
}

// Routes lists every currently registered route.
func (s *Service) Routes() []RouteDescriptor {
	s.routesMu.RLock()
	defer s.routesMu.RUnlock()
	paths := s.rt.Router().Routes()
	out := make([]RouteDescriptor, 0, len(paths))
	for _, path := range paths {
		out = append(out, RouteDescriptor{Path: path, Description: s.routeDescribe[path]})
	}
	return out
}

// Connect dials address over the endpoint registered for protocol.
func (s *Service) Connect(protocol, address string) errs.ResultCode {
	return errs.Translate(s.rt.Connect(protocol, address))
}

// DisconnectByIdentifier closes every registered endpoint for a known
// peer.
func (s *Service) DisconnectByIdentifier(id string) errs.ResultCode {
	parsed, err := peer.Parse(id)
	if err != nil {
		return errs.Translate(err)
	}
	return errs.Translate(s.rt.DisconnectByIdentifier(parsed))
}

// DisconnectByAddress closes the connection to whichever known peer is
// reachable at address.
func (s *Service) DisconnectByAddress(protocol, address string) errs.ResultCode {
	return errs.Translate(s.rt.DisconnectByAddress(protocol, address))
}

// Dispatch sends a fire-and-forget one-to-one message.
func (s *Service) Dispatch(id, route string, payload []byte) errs.ResultCode {
	parsed, err := peer.Parse(id)
	if err != nil {
		return errs.Translate(err)
	}
	return errs.Translate(s.rt.Store().Dispatch(parsed, route, payload))
}

// DispatchCluster fans a message out to every active peer.
func (s *Service) DispatchCluster(route string, payload []byte) int {
	return s.rt.Store().Notify(router.Cluster, route, payload, nil)
}

// DispatchClusterSample fans a message out to a random sample ∈ [0,1] of
// active peers.
func (s *Service) DispatchClusterSample(route string, payload []byte, sample float64) int {
	return s.rt.Store().Notify(router.Cluster, route, payload, samplePredicate(sample))
}

// Request sends a one-to-one message and awaits a single response,
// delivered to onResponse (or onError on expiry/failure) once the
// tracker resolves.
func (s *Service) Request(id, route string, payload []byte, onResponse func([]byte), onError func(error)) (uuid.UUID, errs.ResultCode) {
	parsed, err := peer.Parse(id)
	if err != nil {
		return uuid.UUID{}, errs.Translate(err)
	}
	proxy, ok := s.rt.Store().Find(parsed)
	if !ok {
		return uuid.UUID{}, errs.ENotFound
	}
	key, err := proxy.Request(route, payload, onResponse, onError)
	return key, errs.Translate(err)
}

// RequestCluster sends a request to every active peer and awaits all of
// their responses, aggregated into one fulfillment.
func (s *Service) RequestCluster(route string, payload []byte) (uuid.UUID, int) {
	return s.rt.Store().RequestCluster(route, payload, nil)
}

// RequestClusterSample is RequestCluster restricted to a random sample
// ∈ [0,1] of active peers.
func (s *Service) RequestClusterSample(route string, payload []byte, sample float64) (uuid.UUID, int) {
	return s.rt.Store().RequestCluster(route, payload, samplePredicate(sample))
}

func samplePredicate(sample float64) func(*peer.Proxy) bool {
	if sample >= 1 {
		return nil
	}
	if sample <= 0 {
		return func(*peer.Proxy) bool { return false }
	}
	return func(*peer.Proxy) bool { return rand.Float64() < sample }
}

// Subscribe registers cb to run whenever t is published -- one Subscribe
// per event type, rather than a near-identical method for each of the
// eight event names, since events.Type already enumerates exactly those
// names.
func (s *Service) Subscribe(t events.Type, cb func(payload any)) {
	s.rt.Bus().On(t, cb)
}
