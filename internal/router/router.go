// Package router implements the message contract the core dispatches
// application traffic through: parcels, route registration, and the
// handler-reply surface a handler uses to respond, dispatch further, or
// defer to the tracking service.
package router

import (
	"fmt"
	"sync"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/tracking"
)

// Destination classifies where a parcel is headed or came from.
type Destination int

const (
	Direct Destination = iota
	Cluster
	Network
)

func (d Destination) String() string {
	switch d {
	case Direct:
		return "Direct"
	case Cluster:
		return "Cluster"
	case Network:
		return "Network"
	default:
		return "Unknown"
	}
}

// Parcel is the unit the router dispatches to handlers: a
// source identifier, a destination class, a route path, a payload, a
// status code, and an optional awaitable tracker key bound by the
// tracking service.
type Parcel struct {
	Source      string
	Destination Destination
	Route       string
	Payload     []byte
	StatusCode  int
	TrackerKey  *tracking.Key
}

// DeferNotice is the out-of-band message Next.Defer sends immediately,
// ahead of the eventual aggregated response.
type DeferNotice struct {
	Type    string
	Route   string
	Payload []byte
}

// DeferResponse describes the payload a deferred handler will eventually
// produce once the tracker it registers is fulfilled.
type DeferResponse struct {
	Payload []byte
}

// Next is the handler-reply surface a registered Handler is given alongside
// its Parcel. Exactly one of Respond/Dispatch/Defer should be
// called per invocation; the router does not enforce that itself.
type Next interface {
	Respond(payload []byte, statusCode int) error
	Dispatch(route string, payload []byte) error
	Defer(notice DeferNotice, response DeferResponse) (tracking.Key, error)
}

// Handler processes one parcel and reports whether it considers the parcel
// handled (a router can fall through to a default handler on false).
type Handler func(parcel Parcel, next Next) bool

// Router holds the path -> handler registry. Registration
// happens before the runtime starts dispatching; lookups happen on every
// inbound parcel, so reads use a shared lock.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New builds an empty router.
func New() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds a handler to a route path. Registering the same path
// twice replaces the previous handler -- the core does not treat this as
// an error, following the common idiom of last-registration-wins for
// webhook/route tables.
func (r *Router) Register(route string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = handler
}

// Dispatch looks up parcel.Route and invokes its handler. It returns an
// error only when no handler is registered for the route; the handler's
// own bool return is passed through unchanged.
func (r *Router) Dispatch(parcel Parcel, next Next) (bool, error) {
	r.mu.RLock()
	handler, ok := r.handlers[parcel.Route]
	r.mu.RUnlock()

	if !ok {
		return false, errs.Newf(errs.NotFound, "no handler registered for route %q", parcel.Route)
	}
	return handler(parcel, next), nil
}

// Routes returns every registered path, for introspection (the route
// search index is built from this).
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for route := range r.handlers {
		out = append(out, route)
	}
	return out
}

// Unregister drops a previously registered route.
func (r *Router) Unregister(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, route)
}

func (p Parcel) String() string {
	return fmt.Sprintf("Parcel{source=%s dest=%s route=%s status=%d bytes=%d}", p.Source, p.Destination, p.Route, p.StatusCode, len(p.Payload))
}
