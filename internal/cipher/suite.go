// Package cipher implements the core's key-exchange negotiator
// (PackageSynchronizer) and the authenticated-encryption session handle
// (Package) it produces.
package cipher

import "github.com/brypt-io/brypt-core/internal/errs"

// Level is the ordered confidentiality level the synchronizer negotiates
// over. Higher values are more confidential; Unknown is the sentinel for
// "no suite chosen yet".
type Level int

const (
	Unknown Level = iota
	Low
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

// descendingLevels lists every real level from most to least confidential --
// the order the synchronizer always searches in when picking the highest
// mutually-supported level.
var descendingLevels = []Level{High, Medium, Low}

const (
	maxAlgorithmNameBytes = 128
	maxAlgorithmsPerGroup = 16
)

// Algorithms is the ordered set of candidate algorithm names a node offers
// at one confidentiality level. Order matters: it is the initiator's
// preference order for tie-breaking.
type Algorithms struct {
	Name          string
	KeyAgreements []string
	Ciphers       []string
	HashFunctions []string
}

func (a Algorithms) validate() error {
	groups := [][]string{a.KeyAgreements, a.Ciphers, a.HashFunctions}
	for _, group := range groups {
		if len(group) == 0 || len(group) > maxAlgorithmsPerGroup {
			return errs.Newf(errs.InvalidArgument, "algorithm group size %d out of [1,%d]", len(group), maxAlgorithmsPerGroup)
		}
		for _, name := range group {
			if len(name) == 0 || len(name) > maxAlgorithmNameBytes {
				return errs.Newf(errs.InvalidArgument, "algorithm name %q exceeds %d bytes", name, maxAlgorithmNameBytes)
			}
		}
	}
	return nil
}

func (a Algorithms) clone() Algorithms {
	return Algorithms{
		Name:          a.Name,
		KeyAgreements: append([]string(nil), a.KeyAgreements...),
		Ciphers:       append([]string(nil), a.Ciphers...),
		HashFunctions: append([]string(nil), a.HashFunctions...),
	}
}

// SupportedAlgorithms maps each confidentiality level a node offers to its
// candidate algorithm names. It is immutable once handed to NewService.
type SupportedAlgorithms map[Level]Algorithms

func (s SupportedAlgorithms) clone() SupportedAlgorithms {
	out := make(SupportedAlgorithms, len(s))
	for level, algos := range s {
		out[level] = algos.clone()
	}
	return out
}

func (s SupportedAlgorithms) validate() error {
	if len(s) == 0 {
		return errs.New(errs.InvalidArgument, "supported algorithms must declare at least one level")
	}
	for level, algos := range s {
		if level == Unknown {
			return errs.New(errs.InvalidArgument, "Unknown is not a declarable confidentiality level")
		}
		if err := algos.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Suite is the tuple a successful synchronization settles on. SignatureSize
// is a pure function of the chosen suite: it never varies
// between two packages produced by the same synchronization.
type Suite struct {
	Level         Level
	KeyAgreement  string
	Cipher        string
	HashFunction  string
	SignatureSize int
}

func contains(group []string, name string) bool {
	for _, v := range group {
		if v == name {
			return true
		}
	}
	return false
}

// selectSuite picks the highest level at which initiator and acceptor share
// at least one algorithm in every component, and within that level the
// lexicographically (by the initiator's declared order) first triple the
// acceptor also offers.
func selectSuite(initiator, acceptor SupportedAlgorithms) (Suite, bool) {
	for _, level := range descendingLevels {
		iAlgos, ok := initiator[level]
		if !ok {
			continue
		}
		aAlgos, ok := acceptor[level]
		if !ok {
			continue
		}

		kex, ok := firstShared(iAlgos.KeyAgreements, aAlgos.KeyAgreements)
		if !ok {
			continue
		}
		ciph, ok := firstShared(iAlgos.Ciphers, aAlgos.Ciphers)
		if !ok {
			continue
		}
		hash, ok := firstShared(iAlgos.HashFunctions, aAlgos.HashFunctions)
		if !ok {
			continue
		}

		return Suite{
			Level:         level,
			KeyAgreement:  kex,
			Cipher:        ciph,
			HashFunction:  hash,
			SignatureSize: hashOutputSize(hash),
		}, true
	}
	return Suite{}, false
}

// firstShared returns the first entry of initiatorOrder that also appears in
// acceptorOffered -- the initiator's preference order wins every tie.
func firstShared(initiatorOrder, acceptorOffered []string) (string, bool) {
	for _, name := range initiatorOrder {
		if contains(acceptorOffered, name) {
			return name, true
		}
	}
	return "", false
}
