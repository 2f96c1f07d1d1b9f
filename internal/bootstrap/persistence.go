package bootstrap

import (
	"encoding/json"
	"os"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/multiformats/go-multiaddr"
)

type wireRecord struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
	Origin   string `json:"origin"`
}

func originName(o Origin) string {
	switch o {
	case User:
		return "user"
	case Network:
		return "network"
	default:
		return "cache"
	}
}

func parseOrigin(s string) Origin {
	switch s {
	case "user":
		return User
	case "network":
		return Network
	default:
		return Cache
	}
}

// Serialize writes the committed record set to the bound path, if any.
// With no path bound this is a no-op; failure to write never mutates the
// in-memory set.
func (c *Cache) Serialize() error {
	c.mu.RLock()
	path := c.path
	records := make([]wireRecord, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, wireRecord{Protocol: r.Protocol, Address: r.RemoteAddress.String(), Origin: originName(r.Origin)})
	}
	c.mu.RUnlock()

	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errs.Newf(errs.Unspecified, "marshal bootstrap cache: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Newf(errs.FileNotSupported, "write bootstrap cache %s: %v", path, err)
	}
	return nil
}

// LoadFromFile reads a previously serialized record set from path and
// seeds the cache directly (bypassing staging), the same way SetDefaults
// does for configured endpoints. Records persist with Origin=Cache
// regardless of what they were serialized with, since anything read back
// off disk is, by definition, from the cache.
func (c *Cache) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Newf(errs.FileNotFound, "read bootstrap cache %s: %v", path, err)
	}

	var records []wireRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return errs.Newf(errs.InvalidConfig, "parse bootstrap cache %s: %v", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, wr := range records {
		addr, err := multiaddr.NewMultiaddr(wr.Address)
		if err != nil {
			continue
		}
		c.insertLocked(Record{Protocol: wr.Protocol, RemoteAddress: addr, Origin: Cache})
		_ = parseOrigin(wr.Origin)
	}
	return nil
}
