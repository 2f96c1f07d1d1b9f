package peer

import (
	"testing"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/scheduler"
	"github.com/brypt-io/brypt-core/internal/tracking"
)

func testAlgorithms() cipher.SupportedAlgorithms {
	return cipher.SupportedAlgorithms{
		cipher.High: cipher.Algorithms{
			Name:          "high",
			KeyAgreements: []string{"x25519"},
			Ciphers:       []string{"aes-256-gcm"},
			HashFunctions: []string{"sha384"},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	svc, err := cipher.NewService(testAlgorithms())
	if err != nil {
		t.Fatalf("cipher service: %v", err)
	}
	sched := scheduler.New()
	store := NewStore(sched, svc, events.NewBus())
	if !sched.Initialize() {
		t.Fatalf("scheduler initialize failed")
	}
	return store
}

// handshakeOverStore drives a full initiator/acceptor exchange the way an
// endpoint relaying bytes between two connections would, registering an
// endpoint on the acceptor-side proxy once Ready.
func handshakeOverStore(t *testing.T, store *Store) (*Proxy, *Proxy) {
	t.Helper()

	remoteID, err := Generate()
	if err != nil {
		t.Fatalf("generate remote id: %v", err)
	}
	localID, err := Generate()
	if err != nil {
		t.Fatalf("generate local id: %v", err)
	}

	stage0, isHeartbeat, err := store.DeclareResolvingPeer("addr-1", nil)
	if err != nil || isHeartbeat {
		t.Fatalf("declare resolving peer: heartbeat=%v err=%v", isHeartbeat, err)
	}

	// The remote side is modeled with a second, independent store acting
	// purely as an acceptor-role synchronizer driver.
	remoteSvc, _ := cipher.NewService(testAlgorithms())
	remoteResolver := NewResolver(remoteSvc, cipher.Acceptor)
	remoteResolver.Initialize()
	_, stage1, err := remoteResolver.Synchronize(stage0)
	if err != nil {
		t.Fatalf("remote stage0: %v", err)
	}

	localProxy, err := store.LinkPeer(remoteID, "addr-1")
	if err != nil {
		t.Fatalf("link peer: %v", err)
	}
	stage2, _, err := store.AdvanceResolver(localProxy, stage1)
	if err != nil {
		t.Fatalf("advance resolver stage1: %v", err)
	}

	acceptStatus, _, err := remoteResolver.Synchronize(stage2)
	if err != nil || acceptStatus != cipher.Ready {
		t.Fatalf("remote stage2: status=%v err=%v", acceptStatus, err)
	}

	sent := false
	err = store.OnEndpointRegistered(remoteID, EndpointRegistration{
		EndpointID: "ep-1",
		Send:       func(payload []byte) error { sent = true; return nil },
	})
	if err != nil {
		t.Fatalf("register endpoint: %v", err)
	}
	_ = sent
	_ = localID
	return localProxy, nil
}

func TestLinkPeerAndAdvanceResolverReachesAuthorized(t *testing.T) {
	store := newTestStore(t)
	proxy, _ := handshakeOverStore(t, store)

	if proxy.Authorization() != Authorized {
		t.Fatalf("expected proxy to be Authorized, got %v", proxy.Authorization())
	}
	if !proxy.IsActive() {
		t.Fatalf("expected proxy to be active after endpoint registration")
	}
	if proxy.CipherPackage() == nil {
		t.Fatalf("expected a negotiated cipher package")
	}
}

func TestResolverDetachedOnNextTick(t *testing.T) {
	store := newTestStore(t)
	proxy, _ := handshakeOverStore(t, store)

	if proxy.Resolver() == nil {
		t.Fatalf("expected resolver still attached before the tick runs")
	}
	completed := store.onExecute()
	if completed == 0 {
		t.Fatalf("expected the tick to process at least the resolver detach")
	}
	if proxy.Resolver() != nil {
		t.Fatalf("expected resolver to be detached after the tick")
	}
}

func TestDeclareResolvingPeerReturnsHeartbeatForKnownPeer(t *testing.T) {
	store := newTestStore(t)
	proxy, _ := handshakeOverStore(t, store)
	id := proxy.Identifier()

	out, isHeartbeat, err := store.DeclareResolvingPeer("addr-2", &id)
	if err != nil {
		t.Fatalf("declare resolving peer: %v", err)
	}
	if !isHeartbeat {
		t.Fatalf("expected a heartbeat marker for an already-tracked peer")
	}
	if string(out) != string(heartbeatMarker) {
		t.Fatalf("unexpected heartbeat payload: %q", out)
	}
}

func TestClusterRequestCancelsTrackerWhenNothingScheduled(t *testing.T) {
	store := newTestStore(t)
	key, scheduled := store.RequestCluster("/ping", []byte("hi"), nil)
	if scheduled != 0 {
		t.Fatalf("expected 0 scheduled sends with no active peers, got %d", scheduled)
	}
	if key != (tracking.Key{}) {
		t.Fatalf("expected a zero tracker key when nothing was scheduled")
	}
	if store.tracker.Outstanding() != 0 {
		t.Fatalf("expected no outstanding trackers, got %d", store.tracker.Outstanding())
	}
}
