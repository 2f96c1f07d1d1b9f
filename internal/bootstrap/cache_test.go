package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/multiformats/go-multiaddr"
)

func mustAddr(t *testing.T, s string) multiaddr.Multiaddr {
	t.Helper()
	addr, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		t.Fatalf("parse multiaddr %q: %v", s, err)
	}
	return addr
}

func TestInsertBootstrapStagesUntilUpdateCache(t *testing.T) {
	c := New()
	addr := mustAddr(t, "/ip4/127.0.0.1/tcp/9000")

	c.InsertBootstrap(Record{Protocol: "tcp", RemoteAddress: addr, Origin: User})
	if c.Contains("tcp", addr) {
		t.Fatalf("expected staged insert to be invisible before UpdateCache")
	}

	applied, diff := c.UpdateCache()
	if applied != 1 || diff != 1 {
		t.Fatalf("expected applied=1 diff=1, got applied=%d diff=%d", applied, diff)
	}
	if !c.Contains("tcp", addr) {
		t.Fatalf("expected record committed after UpdateCache")
	}
}

func TestAddressNormalizationDedupesPeerIDSuffix(t *testing.T) {
	c := New()
	bare := mustAddr(t, "/ip4/10.0.0.5/tcp/9000")
	withPeerID := mustAddr(t, "/ip4/10.0.0.5/tcp/9000/p2p/QmNnooDu7bfjPFoTZYxMNLWUQJyrVwtbZg5gBMjTezGAJN")

	c.InsertBootstrap(Record{Protocol: "tcp", RemoteAddress: bare, Origin: User})
	c.InsertBootstrap(Record{Protocol: "tcp", RemoteAddress: withPeerID, Origin: Network})
	applied, diff := c.UpdateCache()

	if applied != 1 || diff != 1 {
		t.Fatalf("expected the second insert to be deduped against the first, got applied=%d diff=%d", applied, diff)
	}
	if c.BootstrapCount("tcp") != 1 {
		t.Fatalf("expected exactly one committed record, got %d", c.BootstrapCount("tcp"))
	}
	if !c.Contains("tcp", withPeerID) {
		t.Fatalf("expected the /p2p/-suffixed address to resolve to the same record")
	}
}

func TestRemoveBootstrapStagesRemoval(t *testing.T) {
	c := New()
	addr := mustAddr(t, "/ip4/127.0.0.1/tcp/9000")
	c.SetDefaults([]Record{{Protocol: "tcp", RemoteAddress: addr, Origin: User}})

	c.RemoveBootstrap("tcp", addr)
	if !c.Contains("tcp", addr) {
		t.Fatalf("expected removal to stay staged before UpdateCache")
	}

	applied, diff := c.UpdateCache()
	if applied != 1 || diff != -1 {
		t.Fatalf("expected applied=1 diff=-1, got applied=%d diff=%d", applied, diff)
	}
	if c.Contains("tcp", addr) {
		t.Fatalf("expected record gone after UpdateCache")
	}
}

func TestUpdateCacheSkipsDuplicateAndMissingOps(t *testing.T) {
	c := New()
	addr := mustAddr(t, "/ip4/127.0.0.1/tcp/9000")
	other := mustAddr(t, "/ip4/127.0.0.1/tcp/9001")

	c.InsertBootstrap(Record{Protocol: "tcp", RemoteAddress: addr, Origin: User})
	c.InsertBootstrap(Record{Protocol: "tcp", RemoteAddress: addr, Origin: User})
	c.RemoveBootstrap("tcp", other)

	applied, diff := c.UpdateCache()
	if applied != 1 || diff != 1 {
		t.Fatalf("expected only the first insert to apply, got applied=%d diff=%d", applied, diff)
	}
}

func TestForEachBootstrapRestrictsByProtocol(t *testing.T) {
	c := New()
	c.SetDefaults([]Record{
		{Protocol: "tcp", RemoteAddress: mustAddr(t, "/ip4/127.0.0.1/tcp/9000"), Origin: User},
		{Protocol: "quic", RemoteAddress: mustAddr(t, "/ip4/127.0.0.1/udp/9001/quic"), Origin: User},
	})

	seen := 0
	c.ForEachBootstrap("tcp", func(Record) bool { seen++; return true })
	if seen != 1 {
		t.Fatalf("expected exactly 1 tcp record visited, got %d", seen)
	}

	all := 0
	c.ForEachBootstrap("", func(Record) bool { all++; return true })
	if all != 2 {
		t.Fatalf("expected 2 total records visited, got %d", all)
	}
}

func TestSerializeAndLoadFromFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")

	c := New()
	c.BindPath(path)
	c.SetDefaults([]Record{
		{Protocol: "tcp", RemoteAddress: mustAddr(t, "/ip4/127.0.0.1/tcp/9000"), Origin: User},
	})
	if err := c.Serialize(); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	restored := New()
	if err := restored.LoadFromFile(path); err != nil {
		t.Fatalf("load from file: %v", err)
	}
	if !restored.Contains("tcp", mustAddr(t, "/ip4/127.0.0.1/tcp/9000")) {
		t.Fatalf("expected restored cache to contain the persisted record")
	}
}

func TestSerializeIsNoOpWithoutBoundPath(t *testing.T) {
	c := New()
	c.SetDefaults([]Record{{Protocol: "tcp", RemoteAddress: mustAddr(t, "/ip4/127.0.0.1/tcp/9000"), Origin: User}})
	if err := c.Serialize(); err != nil {
		t.Fatalf("expected no-op serialize to succeed, got %v", err)
	}
}

func TestLoadFromFileMissingFileIsNoOp(t *testing.T) {
	c := New()
	if err := c.LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("expected missing file to be a no-op, got %v", err)
	}
	if c.BootstrapCount("") != 0 {
		t.Fatalf("expected empty cache after loading a missing file")
	}
}

func TestLoadFromFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write garbage file: %v", err)
	}

	c := New()
	if err := c.LoadFromFile(path); err == nil {
		t.Fatalf("expected an error loading malformed bootstrap file")
	}
}
