package runtime

import (
	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/peer"
	"github.com/brypt-io/brypt-core/internal/router"
	"github.com/brypt-io/brypt-core/internal/tracking"
)

// coreNext is the router.Next a dispatched parcel is handed. It closes over
// the peer that sent the parcel so Respond/Dispatch
// can seal a reply with that peer's own negotiated cipher package, and over
// the proxy store so Defer can stage a tracker the usual fulfillment path
// (peer.Store.onExecute) already knows how to relay.
type coreNext struct {
	parcel  router.Parcel
	rawPack []byte // verified plaintext of the inbound parcel
	proxy   *peer.Proxy
	store   *peer.Store
	localID peer.Identifier
}

// replyKey is the tracker key a reply should carry. A cluster request
// already has one attached on the wire (peer.Store.RequestCluster tags
// it); a single-peer request does not (peer.Store.requestFromPeer derives
// its key locally from the request's own pack bytes), so the responder
// re-derives the identical key from the verified plaintext it received.
func (n *coreNext) replyKey() *tracking.Key {
	if n.parcel.TrackerKey != nil {
		return n.parcel.TrackerKey
	}
	key := tracking.NewKey(n.rawPack)
	return &key
}

// Respond closes out the request with a reply addressed back to the
// originating peer. Route is left empty on replies, matching the
// convention peer.Store.onExecute already uses for the tracker-fulfillment
// relay it builds -- an empty route plus a tracker key means "this is a
// response, not a fresh routed request."
func (n *coreNext) Respond(payload []byte, statusCode int) error {
	key := n.replyKey()
	return n.proxy.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
		return router.Seal(pkg, router.Parcel{
			Source:      n.localID.String(),
			Destination: router.Direct,
			Route:       "",
			Payload:     payload,
			StatusCode:  statusCode,
			TrackerKey:  key,
		})
	})
}

// Dispatch sends a fresh, untracked one-way message back to the same peer
// on a different route -- the handler is done with this parcel but has
// something else to tell its sender, not a reply to correlate.
func (n *coreNext) Dispatch(route string, payload []byte) error {
	return n.proxy.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
		return router.Seal(pkg, router.Parcel{
			Source:      n.localID.String(),
			Destination: router.Direct,
			Route:       route,
			Payload:     payload,
		})
	})
}

// Defer sends notice immediately (an out-of-band acknowledgment so the
// requesting peer doesn't hit its own tracker deadline while the handler's
// real work is still in flight) and stages a one-slot tracker against this
// node's own identifier for response. Since response is already known at
// call time, the slot is filled right away -- the fulfillment still lands
// on the next scheduler tick via the ordinary tracker path, never inline on
// this call, which is what lets a handler fan out and aggregate without
// blocking its endpoint thread.
func (n *coreNext) Defer(notice router.DeferNotice, response router.DeferResponse) (tracking.Key, error) {
	err := n.proxy.ScheduleSendMessage(func(pkg *cipher.Package) ([]byte, error) {
		return router.Seal(pkg, router.Parcel{
			Source:      n.localID.String(),
			Destination: router.Direct,
			Route:       notice.Route,
			Payload:     notice.Payload,
			StatusCode:  202,
		})
	})
	if err != nil {
		return tracking.Key{}, err
	}

	requestor := n.parcel.Source
	key, err := n.store.Tracker().Push(requestor, response.Payload, []string{n.localID.String()})
	if err != nil {
		return tracking.Key{}, err
	}
	n.store.PushResponse(key, n.localID.String(), response.Payload)
	return key, nil
}
