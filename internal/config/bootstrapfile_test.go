package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brypt-io/brypt-core/internal/bootstrap"
)

func TestLoadBootstrapFileParsesGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	content := `[
		{"protocol": "tcp", "bootstraps": ["/ip4/198.51.100.1/tcp/9000", "/ip4/198.51.100.2/tcp/9000"]},
		{"protocol": "quic", "bootstraps": ["/ip4/198.51.100.3/udp/9001/quic"]}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	records, err := LoadBootstrapFile(path)
	if err != nil {
		t.Fatalf("load bootstrap file: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Origin != bootstrap.User {
			t.Fatalf("expected Origin=User for file-sourced records, got %v", r.Origin)
		}
	}
}

func TestLoadBootstrapFileMissingIsNoOp(t *testing.T) {
	records, err := LoadBootstrapFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected missing bootstrap file to be a no-op, got %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records from a missing file, got %v", records)
	}
}

func TestLoadBootstrapFileRejectsBadAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bootstrap.json")
	content := `[{"protocol": "tcp", "bootstraps": ["not-a-multiaddr"]}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadBootstrapFile(path); err == nil {
		t.Fatalf("expected an error for a malformed bootstrap address")
	}
}
