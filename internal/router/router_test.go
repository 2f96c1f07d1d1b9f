package router

import (
	"testing"

	"github.com/brypt-io/brypt-core/internal/tracking"
	"github.com/google/uuid"
)

type recordingNext struct {
	responded bool
	payload   []byte
	status    int
}

func (n *recordingNext) Respond(payload []byte, statusCode int) error {
	n.responded = true
	n.payload = payload
	n.status = statusCode
	return nil
}

func (n *recordingNext) Dispatch(route string, payload []byte) error { return nil }

func (n *recordingNext) Defer(notice DeferNotice, response DeferResponse) (tracking.Key, error) {
	return tracking.Key{}, nil
}

func TestRouterDispatchUnknownRoute(t *testing.T) {
	r := New()
	_, err := r.Dispatch(Parcel{Route: "/missing"}, &recordingNext{})
	if err == nil {
		t.Fatalf("expected an error dispatching an unregistered route")
	}
}

func TestRouterDispatchInvokesHandler(t *testing.T) {
	r := New()
	r.Register("/echo", func(p Parcel, next Next) bool {
		next.Respond(p.Payload, 200)
		return true
	})

	next := &recordingNext{}
	handled, err := r.Dispatch(Parcel{Route: "/echo", Payload: []byte("ping")}, next)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !handled {
		t.Fatalf("expected handler to report handled=true")
	}
	if !next.responded || string(next.payload) != "ping" || next.status != 200 {
		t.Fatalf("unexpected response: %+v", next)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	key := uuid.New()
	p := Parcel{Source: "peer-1", Destination: Cluster, Route: "/notify", Payload: []byte("hi"), StatusCode: 202, TrackerKey: &key}

	data, err := Pack(p)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := Unpack(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got.Source != p.Source || got.Route != p.Route || got.Destination != p.Destination || got.StatusCode != p.StatusCode {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
	if got.TrackerKey == nil || *got.TrackerKey != *p.TrackerKey {
		t.Fatalf("tracker key did not round trip")
	}
}
