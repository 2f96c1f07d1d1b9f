package runtime

import (
	"github.com/multiformats/go-multiaddr"

	"github.com/brypt-io/brypt-core/internal/endpoint"
	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/brypt-io/brypt-core/internal/peer"
)

// PeerDetails is a snapshot of one known peer's session state.
type PeerDetails struct {
	Identifier    string
	Authorization peer.AuthorizationState
	Active        bool
	EndpointCount int
	Sent          uint64
	Received      uint64
	Addresses     []string
}

// Connect dials address over the endpoint registered for protocol.
func (s *Service) Connect(protocol, address string) error {
	ep, ok := s.findEndpoint(protocol)
	if !ok {
		return errs.Newf(errs.NotAvailable, "no endpoint attached for protocol %q", protocol)
	}
	return ep.Connect(address)
}

func (s *Service) findEndpoint(protocol string) (*endpoint.Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A single TCP endpoint per binding is the only transport implemented;
	// protocol selection is a no-op lookup until a second transport exists,
	// so any attached endpoint satisfies a "tcp" request.
	for _, ep := range s.endpoints {
		if protocol == "" || protocol == endpoint.ProtocolID {
			return ep, true
		}
	}
	return nil, false
}

// DisconnectByIdentifier closes every registered endpoint for a known peer.
func (s *Service) DisconnectByIdentifier(id peer.Identifier) error {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	proxy, ok := store.Find(id)
	if !ok {
		return errs.Newf(errs.NotFound, "disconnect: unknown peer %s", id)
	}
	return proxy.ScheduleDisconnect()
}

// DisconnectByAddress closes the connection to whichever known peer is
// reachable at address, and forgets that address from the bootstrap cache
// so a later start does not reattempt it.
func (s *Service) DisconnectByAddress(protocol, address string) error {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	var target *peer.Proxy
	store.ForEach(peer.None, func(p *peer.Proxy) bool {
		for _, addr := range p.Addresses() {
			if addr.String() == address {
				target = p
				return false
			}
		}
		return true
	})
	if target == nil {
		return errs.Newf(errs.NotFound, "disconnect: no known peer at address %q", address)
	}
	if err := target.ScheduleDisconnect(); err != nil {
		return err
	}
	if addr, err := multiaddr.NewMultiaddr(address); err == nil {
		s.ForgetBootstrap(protocol, addr)
	}
	return nil
}

// IsPeerConnected reports whether id names a currently active peer.
func (s *Service) IsPeerConnected(id peer.Identifier) bool {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	return store.IsActive(id)
}

// PeerStatistics returns id's lifetime sent/received counters.
func (s *Service) PeerStatistics(id peer.Identifier) (sent, received uint64, ok bool) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	proxy, found := store.Find(id)
	if !found {
		return 0, 0, false
	}
	sent, received = proxy.Statistics()
	return sent, received, true
}

// PeerDetails returns a full snapshot of id's session state.
func (s *Service) PeerDetails(id peer.Identifier) (PeerDetails, bool) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	proxy, found := store.Find(id)
	if !found {
		return PeerDetails{}, false
	}
	sent, received := proxy.Statistics()
	addrs := proxy.Addresses()
	addresses := make([]string, 0, len(addrs))
	for _, a := range addrs {
		addresses = append(addresses, a.String())
	}
	return PeerDetails{
		Identifier:    proxy.Identifier().String(),
		Authorization: proxy.Authorization(),
		Active:        proxy.IsActive(),
		EndpointCount: proxy.EndpointCount(),
		Sent:          sent,
		Received:      received,
		Addresses:     addresses,
	}, true
}

// PeerCounts returns the active/inactive/observed peer counts.
func (s *Service) PeerCounts() (active, inactive, observed int) {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	return store.ActiveCount(), store.InactiveCount(), store.ObservedCount()
}
