package identitystore

import (
	"testing"
	"time"

	"github.com/brypt-io/brypt-core/internal/peer"
)

func TestOpenInMemory(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
}

func TestLoadIdentifierAbsentByDefault(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()

	_, found, err := store.LoadIdentifier()
	if err != nil {
		t.Fatalf("load identifier: %v", err)
	}
	if found {
		t.Fatalf("expected no persisted identifier on a fresh store")
	}
}

func TestSaveAndLoadIdentifierRoundTrip(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()

	id, err := peer.Generate()
	if err != nil {
		t.Fatalf("generate identifier: %v", err)
	}
	if err := store.SaveIdentifier(id); err != nil {
		t.Fatalf("save identifier: %v", err)
	}

	loaded, found, err := store.LoadIdentifier()
	if err != nil {
		t.Fatalf("load identifier: %v", err)
	}
	if !found {
		t.Fatalf("expected the saved identifier to be found")
	}
	if loaded.String() != id.String() {
		t.Fatalf("expected loaded identifier to match saved one")
	}
}

func TestSaveIdentifierOverwritesPrevious(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()

	first, _ := peer.Generate()
	second, _ := peer.Generate()

	if err := store.SaveIdentifier(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveIdentifier(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, _, err := store.LoadIdentifier()
	if err != nil {
		t.Fatalf("load identifier: %v", err)
	}
	if loaded.String() != second.String() {
		t.Fatalf("expected the most recently saved identifier to win")
	}
}

func TestConnectionHistoryRoundTrip(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()

	peerID, _ := peer.Generate()
	connectedAt := time.Now()

	rowID, err := store.RecordConnected(peerID, "/ip4/127.0.0.1/tcp/9000", connectedAt)
	if err != nil {
		t.Fatalf("record connected: %v", err)
	}

	disconnectedAt := connectedAt.Add(time.Minute)
	if err := store.RecordDisconnected(rowID, "endpoint-withdrawn", disconnectedAt); err != nil {
		t.Fatalf("record disconnected: %v", err)
	}

	history, err := store.History(peerID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	if history[0].DisconnectedAt == nil {
		t.Fatalf("expected disconnect to be recorded")
	}
	if history[0].DisconnectCause != "endpoint-withdrawn" {
		t.Fatalf("unexpected disconnect cause: %q", history[0].DisconnectCause)
	}
}

func TestHistoryEmptyForUnknownPeer(t *testing.T) {
	store, _ := Open(":memory:")
	defer store.Close()

	unknown, _ := peer.Generate()
	history, err := store.History(unknown)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no history for a peer with no recorded connections")
	}
}
