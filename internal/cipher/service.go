package cipher

import "github.com/brypt-io/brypt-core/internal/errs"

// Role distinguishes the two sides of a synchronization. The initiator
// speaks first (stage 0) and confirms last (stage 2); the acceptor replies
// once (stage 1) and verifies last.
type Role int

const (
	Initiator Role = iota
	Acceptor
)

// Service is the factory peers hold for the algorithms they are willing to
// negotiate. It is immutable once constructed: every
// Synchronizer it creates sees the same SupportedAlgorithms table.
type Service struct {
	algorithms SupportedAlgorithms
}

// NewService validates algorithms (at least one level, every
// group non-empty, names within the size bounds) and clones it so
// later caller-side mutation of the map can't reach into the service.
func NewService(algorithms SupportedAlgorithms) (*Service, error) {
	if err := algorithms.validate(); err != nil {
		return nil, err
	}
	return &Service{algorithms: algorithms.clone()}, nil
}

// SupportedAlgorithms returns a defensive copy of the service's negotiable
// algorithm table.
func (s *Service) SupportedAlgorithms() SupportedAlgorithms {
	return s.algorithms.clone()
}

// CreateSynchronizer builds a fresh per-connection Synchronizer in the given
// role. Every peer proxy constructs exactly one of these per
// handshake attempt.
func (s *Service) CreateSynchronizer(role Role) *Synchronizer {
	return &Synchronizer{
		service: s,
		role:    role,
		status:  Processing,
	}
}

// Status is the Synchronizer's lifecycle state.
type Status int

const (
	Processing Status = iota
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Processing:
		return "Processing"
	case Ready:
		return "Ready"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

var errSynchronizerFailed = errs.New(errs.Conflict, "synchronizer is in the Error state")
