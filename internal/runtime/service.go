// Package runtime wires the scheduler, cipher service, peer store, router,
// bootstrap cache, and endpoints into a single cooperative core thread,
// and owns its start/stop/restart lifecycle. It is the layer pkg/api sits
// on top of.
package runtime

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/brypt-io/brypt-core/internal/bootstrap"
	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/config"
	"github.com/brypt-io/brypt-core/internal/discovery"
	"github.com/brypt-io/brypt-core/internal/endpoint"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/events"
	"github.com/brypt-io/brypt-core/internal/identitystore"
	"github.com/brypt-io/brypt-core/internal/peer"
	"github.com/brypt-io/brypt-core/internal/router"
	"github.com/brypt-io/brypt-core/internal/scheduler"
	"github.com/brypt-io/brypt-core/internal/telemetry"
)

// coreTickInterval bounds how long the core thread's AwaitTask call blocks
// with no signaled work -- a periodic wake is needed because a tracker's
// deadline elapsing never itself signals the scheduler; expired trackers
// are only ever checked lazily, on a tick.
const coreTickInterval = 250 * time.Millisecond

const bootstrapCacheFilename = "bootstrap_cache.json"
const identityStoreFilename = "identity.db"

// Service is the assembled core. Everything under mu is only ever touched
// from Start/Stop/Restart and the accessors below; the subsystems it
// wires together manage their own concurrency internally.
type Service struct {
	bus    *events.Bus
	logger telemetry.Logger
	opts   *config.Options
	token  ExecutionToken

	mu         sync.Mutex
	cfg        config.Config
	identifier peer.Identifier
	identity   *identitystore.Store

	sched          *scheduler.Scheduler
	cipherSvc      *cipher.Service
	store          *peer.Store
	router         *router.Router
	bootstrapCache *bootstrap.Cache
	endpoints      map[string]*endpoint.Endpoint
	dht            *discovery.DHT

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New builds an unstarted Service against opts. bus and logger may be nil;
// a nil bus gets a fresh events.Bus, a nil logger gets telemetry.Noop().
func New(opts *config.Options, bus *events.Bus, logger telemetry.Logger) *Service {
	if bus == nil {
		bus = events.NewBus()
	}
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Service{
		opts:   opts,
		bus:    bus,
		logger: logger,
	}
}

// Bus returns the event bus every subsystem publishes to and pkg/api's
// subscribe_* calls register against.
func (s *Service) Bus() *events.Bus { return s.bus }

// IsActive reports whether the core thread is currently executing.
func (s *Service) IsActive() bool { return s.token.Status() == Executing }

// GetIdentifier returns the node's own identifier, valid only once Start
// has assembled it.
func (s *Service) GetIdentifier() (peer.Identifier, bool) {
	if !s.IsActive() {
		return peer.Identifier{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identifier, true
}

// Router exposes the route registry for route registration.
func (s *Service) Router() *router.Router {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router
}

// Store exposes the proxy store for pkg/api's peer/network operations.
func (s *Service) Store() *peer.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// BootstrapCache exposes the bootstrap cache for pkg/api and cmd/brypt
// introspection (e.g. listing known bootstraps, generating invites).
func (s *Service) BootstrapCache() *bootstrap.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootstrapCache
}

// Start assembles every subsystem from the staged Options (and, if present,
// a configuration/bootstrap file) and begins the core loop.
func (s *Service) Start() error {
	if !s.token.start() {
		return errs.New(errs.AlreadyStarted, "runtime is already executing")
	}

	if err := s.assemble(); err != nil {
		s.token.markStopped()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.loopCancel = cancel
	s.loopDone = make(chan struct{})

	s.mu.Lock()
	endpoints := s.endpoints
	bootstrapCache := s.bootstrapCache
	s.mu.Unlock()
	for _, ep := range endpoints {
		ep.Start(ctx)
	}

	if s.opts.DiscoveryEnabled() {
		if err := s.startDiscovery(endpoints, bootstrapCache); err != nil {
			s.logger.Warnf("runtime: start discovery: %v", err)
		}
	}

	go s.runCoreLoop(ctx)

	s.bus.Publish(events.RuntimeStarted, events.RuntimeEvent{})
	return nil
}

// assemble builds every subsystem from scratch. It is only ever called
// from Start, itself only reachable once start() has exclusively claimed
// the Executing state, so no external synchronization is needed here.
func (s *Service) assemble() error {
	base, cfgFilename, bootFilename, _ := s.opts.Snapshot()

	cfg, err := s.loadOrBuildConfig(base, cfgFilename)
	if err != nil {
		return err
	}

	algorithms, err := cfg.SupportedAlgorithms()
	if err != nil {
		return err
	}
	cipherSvc, err := cipher.NewService(algorithms)
	if err != nil {
		return err
	}

	identifier, identityStore, err := s.resolveIdentifier(base, cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New()
	store := peer.NewStore(sched, cipherSvc, s.bus)
	rtr := router.New()
	bootstrapCache := bootstrap.New()

	if bootFilename != "" {
		records, err := config.LoadBootstrapFile(filepath.Join(base, bootFilename))
		if err != nil {
			return err
		}
		bootstrapCache.SetDefaults(records)
	}
	cachePath := filepath.Join(base, bootstrapCacheFilename)
	bootstrapCache.BindPath(cachePath)
	if err := bootstrapCache.LoadFromFile(cachePath); err != nil {
		s.logger.Warnf("runtime: load bootstrap cache: %v", err)
	}

	endpoints := make(map[string]*endpoint.Endpoint, len(cfg.Network.Endpoints))
	for _, epCfg := range cfg.Network.Endpoints {
		ep, err := endpoint.New(epCfg.Binding, epCfg.Binding, store, s.bus, s.logger, func(peerID peer.Identifier, payload []byte) {
			s.onParcel(store, rtr, identifier, peerID, payload)
		})
		if err != nil {
			return err
		}
		ep.SetLocalIdentifier(identifier)
		endpoints[epCfg.Binding] = ep

		if epCfg.Bootstrap != "" {
			if addr, err := multiaddr.NewMultiaddr(epCfg.Bootstrap); err == nil {
				bootstrapCache.InsertBootstrap(bootstrap.Record{Protocol: epCfg.Protocol, RemoteAddress: addr, Origin: bootstrap.User})
			}
		}
	}

	if !sched.Initialize() {
		return errs.New(errs.Unspecified, "scheduler dependency graph contains a cycle")
	}

	s.mu.Lock()
	s.cfg = cfg
	s.identifier = identifier
	s.identity = identityStore
	s.sched = sched
	s.cipherSvc = cipherSvc
	s.store = store
	s.router = rtr
	s.bootstrapCache = bootstrapCache
	s.endpoints = endpoints
	s.dht = nil
	s.mu.Unlock()

	s.wireBootstrapObserver(store, bootstrapCache)
	return nil
}

// wireBootstrapObserver remembers a peer's reachable address once it
// becomes active, so a later restart's bootstrap defaults include peers
// this session discovered rather than only the ones configured up front.
func (s *Service) wireBootstrapObserver(store *peer.Store, cache *bootstrap.Cache) {
	s.bus.On(events.PeerConnected, func(payload any) {
		evt, ok := payload.(events.PeerConnectedEvent)
		if !ok {
			return
		}
		id, err := peer.Parse(evt.PeerID)
		if err != nil {
			return
		}
		proxy, ok := store.Find(id)
		if !ok {
			return
		}
		for _, addr := range proxy.Addresses() {
			cache.InsertBootstrap(bootstrap.Record{Protocol: endpoint.ProtocolID, RemoteAddress: addr, Origin: bootstrap.Network})
		}
		cache.UpdateCache()
	})
}

// startDiscovery layers a Kademlia DHT over the first attached endpoint's
// libp2p host, bootstrapping against every address the bootstrap cache
// already knows and dialing whatever peers it subsequently finds. Only
// one endpoint's host carries the DHT, matching the single-transport
// reality internal/runtime/network.go's findEndpoint already assumes.
func (s *Service) startDiscovery(endpoints map[string]*endpoint.Endpoint, cache *bootstrap.Cache) error {
	var ep *endpoint.Endpoint
	for _, e := range endpoints {
		ep = e
		break
	}
	if ep == nil {
		return errs.New(errs.NotAvailable, "discovery requires at least one endpoint")
	}

	var bootstrapPeers []libp2ppeer.AddrInfo
	cache.ForEachBootstrap(endpoint.ProtocolID, func(r bootstrap.Record) bool {
		if info, err := libp2ppeer.AddrInfoFromP2pAddr(r.RemoteAddress); err == nil {
			bootstrapPeers = append(bootstrapPeers, *info)
		}
		return true
	})

	dht, err := discovery.New(ep.Host(), bootstrapPeers, s.logger)
	if err != nil {
		return err
	}
	if err := dht.Start(func(addrs []string) {
		for _, addr := range addrs {
			if err := ep.Connect(addr); err != nil {
				s.logger.Debugf("runtime: discovery dial %s: %v", addr, err)
			}
		}
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.dht = dht
	s.mu.Unlock()
	return nil
}

// loadOrBuildConfig prefers a configuration file on disk; absent one, it
// assembles an equivalent Config from the staged Options.
func (s *Service) loadOrBuildConfig(base, cfgFilename string) (config.Config, error) {
	if cfgFilename != "" {
		path := filepath.Join(base, cfgFilename)
		cfg, err := config.Load(path)
		if err == nil {
			return cfg, nil
		}
		if errs.KindOf(err) != errs.FileNotFound {
			return config.Config{}, err
		}
	}
	return s.buildConfigFromOptions(), nil
}

func (s *Service) buildConfigFromOptions() config.Config {
	cfg := config.Default()
	cfg.Identifier.Persistence = s.opts.IdentifierPersistence()

	name, description := s.opts.Details()
	cfg.Details = config.Details{Name: name, Description: description}

	if conn := s.opts.ConnectionPolicy(); conn != (config.Connection{}) {
		cfg.Network.Connection = &conn
	}

	for _, ep := range s.opts.Endpoints() {
		cfg.Network.Endpoints = append(cfg.Network.Endpoints, config.Endpoint{
			Protocol:  ep.Protocol,
			Interface: ep.Interface,
			Binding:   ep.Binding,
			Bootstrap: ep.Bootstrap,
		})
	}

	if algos := s.opts.Algorithms(); len(algos) > 0 {
		cfg.Security.Algorithms = make(map[string]config.LevelAlgorithms, len(algos))
		for level, a := range algos {
			cfg.Security.Algorithms[config.LevelName(level)] = config.LevelAlgorithms{
				KeyAgreements: a.KeyAgreements,
				Ciphers:       a.Ciphers,
				HashFunctions: a.HashFunctions,
			}
		}
	}
	return cfg
}

// resolveIdentifier returns the node's identifier and, for a Persistent
// node, the identity store it was loaded from (or freshly written to).
func (s *Service) resolveIdentifier(base string, cfg config.Config) (peer.Identifier, *identitystore.Store, error) {
	if cfg.Identifier.Persistence != config.Persistent {
		if cfg.Identifier.Value != "" {
			if id, err := peer.Parse(cfg.Identifier.Value); err == nil {
				return id, nil, nil
			}
		}
		id, err := peer.Generate()
		return id, nil, err
	}

	store, err := identitystore.Open(filepath.Join(base, identityStoreFilename))
	if err != nil {
		return peer.Identifier{}, nil, err
	}

	if id, found, err := store.LoadIdentifier(); err != nil {
		store.Close()
		return peer.Identifier{}, nil, err
	} else if found {
		return id, store, nil
	}

	id, err := peer.Generate()
	if err != nil {
		store.Close()
		return peer.Identifier{}, nil, err
	}
	if err := store.SaveIdentifier(id); err != nil {
		store.Close()
		return peer.Identifier{}, nil, err
	}
	return id, store, nil
}

// onParcel is every endpoint's ParcelHandler: open the cipher envelope,
// and either feed a tracker fulfillment or dispatch a routed request.
func (s *Service) onParcel(store *peer.Store, rtr *router.Router, localID peer.Identifier, peerID peer.Identifier, ciphertext []byte) {
	proxy, ok := store.Find(peerID)
	if !ok {
		return
	}
	pkg := proxy.CipherPackage()
	if pkg == nil {
		return
	}

	parcel, rawPack, err := router.Open(pkg, ciphertext)
	if err != nil {
		s.logger.Warnf("runtime: dropping unreadable parcel from %s: %v", peerID, err)
		return
	}
	proxy.RecordReceived()

	// An empty route with a tracker key is the convention peer.Store's own
	// fulfillment relay and coreNext.Respond both use for "this is a
	// response, not a fresh routed request."
	if parcel.Route == "" && parcel.TrackerKey != nil {
		store.PushResponse(*parcel.TrackerKey, peerID.String(), parcel.Payload)
		return
	}

	next := &coreNext{parcel: parcel, rawPack: rawPack, proxy: proxy, store: store, localID: localID}
	handled, err := rtr.Dispatch(parcel, next)
	if err != nil {
		s.logger.Warnf("runtime: %v", err)
		return
	}
	if !handled {
		s.logger.Debugf("runtime: route %q declined a parcel from %s", parcel.Route, peerID)
	}
}

// runCoreLoop is the single cooperative thread: it suspends in AwaitTask
// until either a delegate signals work or the tick interval elapses, then
// runs one Execute, repeating until the token leaves Executing.
func (s *Service) runCoreLoop(ctx context.Context) {
	defer close(s.loopDone)

	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()

	for s.token.Status() == Executing {
		sched.AwaitTask(coreTickInterval)
		if s.token.Status() != Executing {
			break
		}
		sched.Execute()
	}
	s.drain(ctx)
}

// drain tears down every endpoint, gives the scheduler one last tick to
// flush the peer store's resolver/tracker cleanup queued by that teardown
// (the resolved-peer queue must drain before the cipher service goes out
// of scope), persists the bootstrap cache, and finally publishes
// RuntimeStopped -- the one event a shutdown surfaces to observers;
// per-peer withdrawals during the drain are suppressed by the store's own
// shuttingDown rule, not re-published here.
func (s *Service) drain(ctx context.Context) {
	s.mu.Lock()
	store := s.store
	sched := s.sched
	endpoints := s.endpoints
	identity := s.identity
	cache := s.bootstrapCache
	dht := s.dht
	s.mu.Unlock()

	store.SetShuttingDown(true)

	if dht != nil {
		if err := dht.Stop(); err != nil {
			s.logger.Warnf("runtime: stop discovery: %v", err)
		}
	}

	for _, ep := range endpoints {
		if err := ep.Stop(); err != nil {
			s.logger.Warnf("runtime: stop endpoint: %v", err)
		}
	}
	sched.Execute()

	if identity != nil {
		if err := identity.Close(); err != nil {
			s.logger.Warnf("runtime: close identity store: %v", err)
		}
	}
	if err := cache.Serialize(); err != nil {
		s.logger.Warnf("runtime: persist bootstrap cache: %v", err)
	}

	s.token.markStopped()
	s.bus.Publish(events.RuntimeStopped, events.RuntimeEvent{})
}

// Stop requests a graceful shutdown and blocks until the core loop has
// fully drained.
func (s *Service) Stop() error {
	if !s.token.requestShutdown() {
		return errs.New(errs.NotStarted, "runtime is not currently executing")
	}
	if s.loopCancel != nil {
		s.loopCancel()
	}
	<-s.loopDone
	return nil
}

// Restart stops and starts the service again, re-running the scheduler's
// Initialize over the same delegate identities.
func (s *Service) Restart() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start()
}

// Destroy stops the service if it is running, then releases nothing
// further -- Go's garbage collector reclaims everything else.
func (s *Service) Destroy() error {
	if s.token.Status() == Executing {
		return s.Stop()
	}
	return nil
}

// ForgetBootstrap removes a remembered bootstrap address, e.g. when a host
// process disconnects a peer by address and does not want it reattempted
// at the next start.
func (s *Service) ForgetBootstrap(protocol string, addr multiaddr.Multiaddr) {
	s.mu.Lock()
	cache := s.bootstrapCache
	s.mu.Unlock()
	if cache == nil {
		return
	}
	cache.RemoveBootstrap(protocol, addr)
	cache.UpdateCache()
}
