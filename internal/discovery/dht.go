// Package discovery provides optional Kademlia-DHT-based peer discovery: a
// node that wants peers beyond its configured bootstrap set can advertise
// itself under a rendezvous namespace and learn of others doing the same,
// surfacing what it learns as Network-origin bootstrap records.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"

	"github.com/brypt-io/brypt-core/internal/telemetry"
)

// RendezvousNamespace is the namespace brypt nodes advertise themselves
// and search for peers under.
const RendezvousNamespace = "/brypt/1.0.0"

const bootstrapWaitInterval = time.Second
const bootstrapTimeout = 15 * time.Second
const discoveryInterval = 10 * time.Second
const findPeersTimeout = 10 * time.Second

// PeerFound is called once per discovered peer, with every multiaddr the
// DHT returned for it already carrying a trailing /p2p/<id> component
// suitable for Endpoint.Connect.
type PeerFound func(addrs []string)

// DHT runs an auto-server-mode Kademlia node (server when publicly
// reachable, client otherwise) alongside an endpoint's libp2p
// host, bootstraps against a fixed peer set, and periodically searches
// RendezvousNamespace for other brypt nodes.
type DHT struct {
	host      host.Host
	kad       *dht.IpfsDHT
	discovery *drouting.RoutingDiscovery
	logger    telemetry.Logger
	onPeer    PeerFound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wraps h in an auto-server-mode DHT that bootstraps against
// bootstrapPeers.
func New(h host.Host, bootstrapPeers []libp2ppeer.AddrInfo, logger telemetry.Logger) (*DHT, error) {
	if logger == nil {
		logger = telemetry.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeAutoServer), dht.BootstrapPeers(bootstrapPeers...))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create dht: %w", err)
	}

	return &DHT{host: h, kad: kad, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Start bootstraps the DHT and begins advertising/discovering in the
// background. onPeer fires once per discovery round for each peer found
// that isn't this node itself.
func (d *DHT) Start(onPeer PeerFound) error {
	d.onPeer = onPeer

	d.logger.Infof("discovery: bootstrapping DHT")
	if err := d.kad.Bootstrap(d.ctx); err != nil {
		return fmt.Errorf("bootstrap dht: %w", err)
	}

	d.wg.Add(1)
	go d.waitForBootstrap()
	return nil
}

func (d *DHT) waitForBootstrap() {
	defer d.wg.Done()

	ticker := time.NewTicker(bootstrapWaitInterval)
	defer ticker.Stop()
	timeout := time.After(bootstrapTimeout)

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-timeout:
			d.logger.Infof("discovery: bootstrap timed out with no peers; continuing anyway")
			d.beginDiscovery()
			return
		case <-ticker.C:
			if len(d.host.Network().Peers()) > 0 {
				d.logger.Infof("discovery: connected to %d peers", len(d.host.Network().Peers()))
				d.beginDiscovery()
				return
			}
		}
	}
}

func (d *DHT) beginDiscovery() {
	d.discovery = drouting.NewRoutingDiscovery(d.kad)
	dutil.Advertise(d.ctx, d.discovery, RendezvousNamespace)

	d.wg.Add(1)
	go d.discoverLoop()
}

func (d *DHT) discoverLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.findPeers()
		}
	}
}

func (d *DHT) findPeers() {
	if d.discovery == nil {
		return
	}
	ctx, cancel := context.WithTimeout(d.ctx, findPeersTimeout)
	defer cancel()

	peerCh, err := d.discovery.FindPeers(ctx, RendezvousNamespace)
	if err != nil {
		return
	}
	for pi := range peerCh {
		if pi.ID == d.host.ID() || len(pi.Addrs) == 0 {
			continue
		}
		addrs := make([]string, 0, len(pi.Addrs))
		for _, a := range pi.Addrs {
			addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a.String(), pi.ID.String()))
		}
		if d.onPeer != nil {
			d.onPeer(addrs)
		}
	}
}

// Stop tears down the background goroutines and closes the DHT.
func (d *DHT) Stop() error {
	d.cancel()
	d.wg.Wait()
	return d.kad.Close()
}
