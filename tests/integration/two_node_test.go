// Package integration exercises brypt-core as two real processes would
// use it: two Service instances over real loopback TCP sockets, running
// the full handshake, message dispatch, and request/response flow that
// the unit suites only ever simulate one layer at a time.
package integration

import (
	"testing"
	"time"

	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/telemetry"
	"github.com/brypt-io/brypt-core/pkg/api"
)

// newNode builds and starts a Service bound to an ephemeral loopback TCP
// port, returning it alongside the address its endpoint actually bound to
// (captured off the EndpointStarted event, since the staged binding asks
// for port 0).
func newNode(t *testing.T) (svc *api.Service, listenAddr string) {
	t.Helper()
	svc = api.NewService(telemetry.Noop())
	svc.Options().SetBaseFilepath(t.TempDir())
	svc.Options().AttachEndpoint(config.AttachedEndpoint{Protocol: "tcp", Binding: "/ip4/127.0.0.1/tcp/0"})

	started := make(chan string, 1)
	svc.Subscribe(events.EndpointStarted, func(payload any) {
		if ev, ok := payload.(events.EndpointEvent); ok {
			started <- ev.Address
		}
	})

	if code := svc.Start(); code != 0 {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	t.Cleanup(func() { svc.Destroy() })

	select {
	case listenAddr = <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("endpoint never published EndpointStarted")
	}
	return svc, listenAddr
}

func awaitCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestTwoNodesHandshakeAndExchangePingPong drives two real nodes through a
// full cipher handshake over loopback TCP, then a one-to-one request that
// must round-trip through the responder's router.
func TestTwoNodesHandshakeAndExchangePingPong(t *testing.T) {
	nodeA, _ := newNode(t)
	nodeB, addrB := newNode(t)

	received := make(chan string, 1)
	nodeB.RegisterRoute("/ping", "replies pong to a liveness probe", func(ctx *api.Context) {
		received <- string(ctx.Payload)
		ctx.Respond([]byte("pong"), 200)
	})

	idA, ok := nodeA.GetIdentifier()
	if !ok {
		t.Fatalf("expected node A to have an identifier")
	}
	idB, ok := nodeB.GetIdentifier()
	if !ok {
		t.Fatalf("expected node B to have an identifier")
	}

	if code := nodeA.Connect("tcp", addrB+"/p2p/"+idB); code != 0 {
		t.Fatalf("Connect: expected Accepted, got %v", code)
	}

	awaitCondition(t, 5*time.Second, func() bool {
		return nodeA.IsPeerConnected(idB) && nodeB.IsPeerConnected(idA)
	})

	activeA, _, _ := nodeA.PeerCounts()
	if activeA != 1 {
		t.Fatalf("expected node A to count 1 active peer, got %d", activeA)
	}

	responses := make(chan []byte, 1)
	_, code := nodeA.Request(idB, "/ping", []byte("hello"), func(pack []byte) {
		responses <- pack
	}, func(err error) {
		t.Errorf("request failed: %v", err)
	})
	if code != 0 {
		t.Fatalf("Request: expected Accepted, got %v", code)
	}

	select {
	case payload := <-received:
		if payload != "hello" {
			t.Fatalf("expected node B to receive %q, got %q", "hello", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("node B never received the ping")
	}

	select {
	case payload := <-responses:
		if string(payload) != "pong" {
			t.Fatalf("expected node A to receive %q, got %q", "pong", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("node A never received the pong response")
	}
}

// TestTwoNodesDisconnectMarksPeerInactive verifies that tearing down one
// side of an established connection surfaces as an inactive peer on the
// other: active transitions to inactive on withdrawal, never silently
// vanishing from the store.
func TestTwoNodesDisconnectMarksPeerInactive(t *testing.T) {
	nodeA, _ := newNode(t)
	nodeB, addrB := newNode(t)

	idA, _ := nodeA.GetIdentifier()
	idB, _ := nodeB.GetIdentifier()

	if code := nodeA.Connect("tcp", addrB+"/p2p/"+idB); code != 0 {
		t.Fatalf("Connect: expected Accepted, got %v", code)
	}
	awaitCondition(t, 5*time.Second, func() bool {
		return nodeA.IsPeerConnected(idB) && nodeB.IsPeerConnected(idA)
	})

	if code := nodeA.DisconnectByIdentifier(idB); code != 0 {
		t.Fatalf("DisconnectByIdentifier: expected Accepted, got %v", code)
	}

	awaitCondition(t, 5*time.Second, func() bool {
		_, inactive, _ := nodeA.PeerCounts()
		return inactive == 1
	})
	if nodeA.IsPeerConnected(idB) {
		t.Fatalf("expected node A to no longer consider node B connected")
	}
}
