package api

import (
	"testing"
	"time"

	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/peer"
	"github.com/brypt-io/brypt-core/internal/telemetry"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(telemetry.Noop())
	svc.Options().SetBaseFilepath(t.TempDir())
	svc.Options().AttachEndpoint(config.AttachedEndpoint{Protocol: "tcp", Binding: "/ip4/127.0.0.1/tcp/0"})
	return svc
}

func TestServiceLifecycleStartStop(t *testing.T) {
	svc := newTestService(t)

	if svc.IsActive() {
		t.Fatalf("expected service to be inactive before Start")
	}
	if code := svc.Start(); code != errs.Accepted {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	if !svc.IsActive() {
		t.Fatalf("expected service to be active after Start")
	}
	if _, ok := svc.GetIdentifier(); !ok {
		t.Fatalf("expected an identifier to be assigned after Start")
	}
	if code := svc.Start(); code == errs.Accepted {
		t.Fatalf("expected a second Start to be rejected")
	}
	if code := svc.Stop(); code != errs.Accepted {
		t.Fatalf("Stop: expected Accepted, got %v", code)
	}
	if svc.IsActive() {
		t.Fatalf("expected service to be inactive after Stop")
	}
}

func TestServiceRestart(t *testing.T) {
	svc := newTestService(t)
	if code := svc.Start(); code != errs.Accepted {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	defer svc.Destroy()

	if code := svc.Restart(); code != errs.Accepted {
		t.Fatalf("Restart: expected Accepted, got %v", code)
	}
	if !svc.IsActive() {
		t.Fatalf("expected service to be active after Restart")
	}
}

func TestServicePeerCountsStartEmpty(t *testing.T) {
	svc := newTestService(t)
	if code := svc.Start(); code != errs.Accepted {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	defer svc.Destroy()

	active, inactive, observed := svc.PeerCounts()
	if active != 0 || inactive != 0 || observed != 0 {
		t.Fatalf("expected all-zero peer counts on a fresh service, got %d/%d/%d", active, inactive, observed)
	}
}

func TestServiceDisconnectByIdentifierUnknownPeer(t *testing.T) {
	svc := newTestService(t)
	if code := svc.Start(); code != errs.Accepted {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	defer svc.Destroy()

	unknown, err := peer.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	code := svc.DisconnectByIdentifier(unknown.String())
	if code != errs.ENotFound {
		t.Fatalf("expected disconnecting an unknown identifier to report ENotFound, got %v", code)
	}
}

func TestServiceRegisteredRouteReceivesNothingWithoutPeers(t *testing.T) {
	svc := newTestService(t)

	received := make(chan *Context, 1)
	svc.RegisterRoute("/ping", "replies pong to a liveness probe", func(ctx *Context) {
		received <- ctx
	})

	if code := svc.Start(); code != errs.Accepted {
		t.Fatalf("Start: expected Accepted, got %v", code)
	}
	defer svc.Destroy()

	select {
	case <-received:
		t.Fatalf("did not expect any parcel without a connected peer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSamplePredicateBounds(t *testing.T) {
	if pred := samplePredicate(1); pred != nil {
		t.Fatalf("expected sample=1 to mean 'everyone', i.e. nil predicate")
	}
	pred := samplePredicate(0)
	if pred == nil {
		t.Fatalf("expected sample=0 to produce a predicate")
	}
	if pred(nil) {
		t.Fatalf("expected sample=0 to always reject")
	}
}
