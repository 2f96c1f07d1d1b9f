package config

import (
	"encoding/json"
	"os"

	"github.com/brypt-io/brypt-core/internal/bootstrap"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/multiformats/go-multiaddr"
)

// bootstrapGroup is one entry of the bootstrap file: every address a node
// should seed for one protocol.
type bootstrapGroup struct {
	Protocol   string   `json:"protocol"`
	Bootstraps []string `json:"bootstraps"`
}

// LoadBootstrapFile reads the Options "bootstrap filename" file and returns
// the seed records it names, each with Origin=User since they came from a
// config the operator wrote. A missing file is treated as "no seeds", the
// same no-op-if-absent behavior bootstrap.Cache.LoadFromFile uses for its
// own persistence path.
func LoadBootstrapFile(path string) ([]bootstrap.Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Newf(errs.FileNotSupported, "read bootstrap file %s: %v", path, err)
	}

	var groups []bootstrapGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, errs.Newf(errs.InvalidConfig, "parse bootstrap file %s: %v", path, err)
	}

	var records []bootstrap.Record
	for _, group := range groups {
		for _, raw := range group.Bootstraps {
			addr, err := multiaddr.NewMultiaddr(raw)
			if err != nil {
				return nil, errs.Newf(errs.InvalidAddress, "bootstrap file %s: address %q: %v", path, raw, err)
			}
			records = append(records, bootstrap.Record{
				Protocol:      group.Protocol,
				RemoteAddress: addr,
				Origin:        bootstrap.User,
			})
		}
	}
	return records, nil
}
