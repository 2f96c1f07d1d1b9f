package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
)

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Details.Name = "node-a"
	cfg.Network.Endpoints = []Endpoint{{Protocol: "tcp", Binding: "0.0.0.0:9000"}}

	if err := Write(path, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Details.Name != "node-a" {
		t.Fatalf("expected Details.Name to round trip, got %q", loaded.Details.Name)
	}
	if len(loaded.Network.Endpoints) != 1 || loaded.Network.Endpoints[0].Binding != "0.0.0.0:9000" {
		t.Fatalf("expected endpoint to round trip, got %+v", loaded.Network.Endpoints)
	}
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
	if errs.KindOf(err) != errs.FileNotFound {
		t.Fatalf("expected a FileNotFound error, got %v", err)
	}
}

func TestParseRejectsOversizedFile(t *testing.T) {
	huge := make([]byte, MaxFileSize+1)
	for i := range huge {
		huge[i] = ' '
	}
	_, err := Parse(huge)
	if err == nil {
		t.Fatalf("expected an error for a config file over the size limit")
	}
}

func TestParseRejectsMissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte(`{"version": "1.0"}`))
	if err == nil {
		t.Fatalf("expected schema validation to reject a config missing network/security/identifier")
	}
}

func TestParseRejectsInvalidIdentifierPersistence(t *testing.T) {
	bad := `{
		"version": "1.0",
		"identifier": {"persistence": "forever"},
		"network": {"endpoints": []},
		"security": {"algorithms": {}}
	}`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatalf("expected schema validation to reject an unrecognized persistence value")
	}
}

func TestSupportedAlgorithmsConvertsLevelNames(t *testing.T) {
	cfg := Default()
	algos, err := cfg.SupportedAlgorithms()
	if err != nil {
		t.Fatalf("supported algorithms: %v", err)
	}
	high, ok := algos[cipher.High]
	if !ok {
		t.Fatalf("expected a High level entry")
	}
	if len(high.KeyAgreements) == 0 {
		t.Fatalf("expected key agreements to carry over")
	}
}

func TestSupportedAlgorithmsRejectsUnknownLevel(t *testing.T) {
	cfg := Default()
	cfg.Security.Algorithms["extreme"] = LevelAlgorithms{
		KeyAgreements: []string{"x25519"}, Ciphers: []string{"aes-256-gcm"}, HashFunctions: []string{"sha256"},
	}
	if _, err := cfg.SupportedAlgorithms(); err == nil {
		t.Fatalf("expected an error for an unrecognized confidentiality level name")
	}
}

func TestMarshalIsStableAcrossCalls(t *testing.T) {
	cfg := Default()
	first, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected stable key order across repeated marshals")
	}
	if !strings.HasPrefix(string(first), "{\n") {
		t.Fatalf("expected pretty-printed JSON, got %q", first)
	}
}
