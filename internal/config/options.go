package config

import (
	"sync"

	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
)

// ThreadPolicy selects how many core threads a runtime.Service drives its
// scheduler with. Only Foreground and
// Background are implemented; anything >1 is reserved by the contract.
type ThreadPolicy int32

const (
	Foreground ThreadPolicy = 0
	Background ThreadPolicy = 1
)

// AttachedEndpoint is one endpoint an operator has asked the runtime to
// bring up, mirroring Network.Endpoints but addressable before a Config has
// been fully assembled.
type AttachedEndpoint struct {
	Protocol  string
	Interface string
	Binding   string
	Bootstrap string
}

// Options is the pre-start mutable configuration surface exposed
// through the library ABI. Every setter here is only valid before
// runtime.Service.Start: once the scheduler and endpoints are up, these
// values are frozen for the life of the session.
type Options struct {
	mu sync.Mutex

	baseFilepath   string
	configFilename string
	bootstrapFile  string

	threads ThreadPolicy

	identifierPersistence IdentifierPersistence
	verbosity             string

	connection Connection

	name        string
	description string

	algorithms cipher.SupportedAlgorithms
	endpoints  []AttachedEndpoint

	discoveryEnabled bool
}

// NewOptions returns Options seeded with the package defaults: foreground
// threading, an ephemeral identifier, and no endpoints attached.
func NewOptions() *Options {
	return &Options{
		threads:               Foreground,
		identifierPersistence: Ephemeral,
	}
}

// SetBaseFilepath sets the directory every relative filename (config,
// bootstrap, identity store) resolves against.
func (o *Options) SetBaseFilepath(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.baseFilepath = path
}

// SetConfigFilename sets the configuration file's name, relative to the
// base filepath.
func (o *Options) SetConfigFilename(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.configFilename = name
}

// SetBootstrapFilename sets the bootstrap file's name, relative to the base
// filepath.
func (o *Options) SetBootstrapFilename(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bootstrapFile = name
}

// SetThreadPolicy sets the core-thread count. Anything beyond Background is
// rejected: >1 is reserved for a not-yet-implemented mode.
func (o *Options) SetThreadPolicy(policy ThreadPolicy) error {
	if policy != Foreground && policy != Background {
		return errs.Newf(errs.InvalidArgument, "thread policy %d is reserved", policy)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.threads = policy
	return nil
}

// SetIdentifierPersistence selects whether the node identifier survives a
// restart.
func (o *Options) SetIdentifierPersistence(p IdentifierPersistence) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.identifierPersistence = p
}

// SetVerbosity stores the logging verbosity level name, returned by
// Verbosity. runtime.Service does not read it: the Logger handed to
// runtime.New keeps the level it was built with.
func (o *Options) SetVerbosity(level string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verbosity = level
}

// SetConnectionPolicy sets the default connection timeout/retry policy.
// runtime.Service copies a non-zero policy into the assembled config's
// network-wide connection block; the TCP endpoint does not read it and
// dials with its own fixed timeout.
func (o *Options) SetConnectionPolicy(c Connection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connection = c
}

// SetDetails sets the node's human-facing name and description.
func (o *Options) SetDetails(name, description string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.name = name
	o.description = description
}

// ClearAlgorithms resets the supported-algorithms table to empty.
func (o *Options) ClearAlgorithms() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.algorithms = nil
}

// SetAlgorithms replaces the entire supported-algorithms table.
func (o *Options) SetAlgorithms(algorithms cipher.SupportedAlgorithms) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.algorithms = algorithms
}

// SetAlgorithmsForLevel sets (or replaces) one confidentiality level's
// algorithm set without disturbing the others.
func (o *Options) SetAlgorithmsForLevel(level cipher.Level, algos cipher.Algorithms) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.algorithms == nil {
		o.algorithms = make(cipher.SupportedAlgorithms)
	}
	o.algorithms[level] = algos
}

// Algorithms returns a copy of the supported-algorithms table as currently
// staged.
func (o *Options) Algorithms() cipher.SupportedAlgorithms {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(cipher.SupportedAlgorithms, len(o.algorithms))
	for level, algos := range o.algorithms {
		out[level] = algos
	}
	return out
}

// AttachEndpoint stages an endpoint to bring up at Start.
func (o *Options) AttachEndpoint(ep AttachedEndpoint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endpoints = append(o.endpoints, ep)
}

// DetachEndpoint removes a staged endpoint by binding address, reporting
// whether one was found.
func (o *Options) DetachEndpoint(binding string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, ep := range o.endpoints {
		if ep.Binding == binding {
			o.endpoints = append(o.endpoints[:i], o.endpoints[i+1:]...)
			return true
		}
	}
	return false
}

// Endpoints returns a copy of the currently staged endpoint list.
func (o *Options) Endpoints() []AttachedEndpoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]AttachedEndpoint(nil), o.endpoints...)
}

// IdentifierPersistence returns the currently staged persistence mode.
func (o *Options) IdentifierPersistence() IdentifierPersistence {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.identifierPersistence
}

// Verbosity returns the currently staged logging verbosity level name.
func (o *Options) Verbosity() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.verbosity
}

// Details returns the currently staged node name and description.
func (o *Options) Details() (name, description string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.name, o.description
}

// ConnectionPolicy returns the currently staged default connection policy.
func (o *Options) ConnectionPolicy() Connection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connection
}

// SetDiscoveryEnabled toggles DHT-based peer discovery (producing
// Network-origin bootstrap records) alongside whatever bootstrap set is
// configured directly.
func (o *Options) SetDiscoveryEnabled(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discoveryEnabled = enabled
}

// DiscoveryEnabled returns the currently staged DHT discovery toggle.
func (o *Options) DiscoveryEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.discoveryEnabled
}

// Snapshot captures the current option values needed to assemble a Config,
// e.g. for writing the configuration file back out after a programmatic
// change.
func (o *Options) Snapshot() (base, configFile, bootstrapFile string, threads ThreadPolicy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.baseFilepath, o.configFilename, o.bootstrapFile, o.threads
}
