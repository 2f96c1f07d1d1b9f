// Package bootstrap implements the bootstrap cache: a staged, uniqued set
// of peer bootstrap records that feeds discovery.
package bootstrap

import (
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// Origin explains how a bootstrap record entered the cache.
type Origin int

const (
	User Origin = iota
	Cache
	Network
)

func (o Origin) String() string {
	switch o {
	case User:
		return "User"
	case Cache:
		return "Cache"
	case Network:
		return "Network"
	default:
		return "Unknown"
	}
}

// Record is one bootstrap entry. The set is
// uniqued by (Protocol, normalized address) -- not by Origin, so the same
// address learned from two different origins dedups to whichever origin
// won the staged commit.
type Record struct {
	Protocol      string
	RemoteAddress multiaddr.Multiaddr
	Origin        Origin
}

// normalize produces the dedup key for a record: the protocol plus the
// address's transport prefix, with any trailing /p2p/<id> component
// stripped -- two differently-formatted but equivalent multiaddresses, e.g.
// with and without the peer-id suffix, must dedup to one record.
func normalize(protocol string, addr multiaddr.Multiaddr) string {
	s := addr.String()
	if idx := strings.Index(s, "/p2p/"); idx >= 0 {
		s = s[:idx]
	}
	return protocol + "|" + s
}
