// Package config loads and writes the node's configuration file, the
// persistent counterpart to the Options a host process sets before
// starting the core.
package config

import (
	"encoding/json"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
)

// MaxFileSize is the hard cap placed on a configuration file.
const MaxFileSize = 12 * 1024

// Version is the configuration schema version this package reads and
// writes.
const Version = "1.0"

// IdentifierPersistence selects whether the node's identifier survives a
// restart.
type IdentifierPersistence string

const (
	Ephemeral  IdentifierPersistence = "ephemeral"
	Persistent IdentifierPersistence = "persistent"
)

// Identifier is the config file's identifier block.
type Identifier struct {
	Persistence IdentifierPersistence `json:"persistence"`
	Value       string                `json:"value,omitempty"`
}

// Details is the config file's optional human-facing node metadata.
type Details struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Connection is the optional per-endpoint or network-wide timing policy.
type Connection struct {
	TimeoutMs       int32 `json:"timeout_ms,omitempty"`
	RetryLimit      int32 `json:"retry_limit,omitempty"`
	RetryIntervalMs int32 `json:"retry_interval_ms,omitempty"`
}

// Endpoint is one entry in network.endpoints.
type Endpoint struct {
	Protocol   string      `json:"protocol"`
	Interface  string      `json:"interface,omitempty"`
	Binding    string      `json:"binding"`
	Bootstrap  string      `json:"bootstrap,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

// Network is the config file's network block.
type Network struct {
	Endpoints  []Endpoint  `json:"endpoints"`
	Connection *Connection `json:"connection,omitempty"`
	Token      string      `json:"token,omitempty"`
}

// Security is the config file's supported-algorithms table, keyed by
// confidentiality level name.
type Security struct {
	Algorithms map[string]LevelAlgorithms `json:"algorithms"`
}

// LevelAlgorithms mirrors cipher.Algorithms in the config file's wire shape.
type LevelAlgorithms struct {
	KeyAgreements []string `json:"key_agreements"`
	Ciphers       []string `json:"ciphers"`
	HashFunctions []string `json:"hash_functions"`
}

// Config is the full configuration file.
type Config struct {
	Version    string     `json:"version"`
	Identifier Identifier `json:"identifier"`
	Details    Details    `json:"details,omitempty"`
	Network    Network    `json:"network"`
	Security   Security   `json:"security"`
}

// Default returns a minimal, schema-valid config: an ephemeral identifier,
// no endpoints, and the High-level algorithm set cipher.NewService would
// otherwise require callers to supply by hand.
func Default() Config {
	return Config{
		Version:    Version,
		Identifier: Identifier{Persistence: Ephemeral},
		Network:    Network{Endpoints: []Endpoint{}},
		Security: Security{Algorithms: map[string]LevelAlgorithms{
			"high": {
				KeyAgreements: []string{"x25519"},
				Ciphers:       []string{"chacha20poly1305"},
				HashFunctions: []string{"sha256"},
			},
		}},
	}
}

// SupportedAlgorithms converts the config file's security block into the
// cipher.SupportedAlgorithms shape NewService expects.
func (c Config) SupportedAlgorithms() (cipher.SupportedAlgorithms, error) {
	out := make(cipher.SupportedAlgorithms, len(c.Security.Algorithms))
	for name, algos := range c.Security.Algorithms {
		level, err := parseLevel(name)
		if err != nil {
			return nil, err
		}
		out[level] = cipher.Algorithms{
			Name:          name,
			KeyAgreements: algos.KeyAgreements,
			Ciphers:       algos.Ciphers,
			HashFunctions: algos.HashFunctions,
		}
	}
	return out, nil
}

// LevelName renders a cipher.Level as the lowercase name the configuration
// file's security.algorithms table keys on, the inverse of parseLevel.
func LevelName(level cipher.Level) string {
	switch level {
	case cipher.Low:
		return "low"
	case cipher.Medium:
		return "medium"
	case cipher.High:
		return "high"
	default:
		return "unknown"
	}
}

func parseLevel(name string) (cipher.Level, error) {
	switch name {
	case "low":
		return cipher.Low, nil
	case "medium":
		return cipher.Medium, nil
	case "high":
		return cipher.High, nil
	default:
		return cipher.Unknown, errs.Newf(errs.InvalidConfig, "unknown confidentiality level %q", name)
	}
}

// Marshal renders the config as pretty-printed JSON with Go's struct-order
// key ordering, which must stay stable across writes --
// encoding/json always walks struct fields in declaration order, so two
// writes of an unchanged Config byte-compare equal.
func (c Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errs.Newf(errs.Unspecified, "marshal config: %v", err)
	}
	return data, nil
}
