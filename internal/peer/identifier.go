// Package peer implements the peer proxy and proxy store: per-peer session
// state, the process-wide peer registry, and the connection-resolution
// flow that ties an endpoint's bytes to a cipher synchronizer.
package peer

import (
	"crypto/rand"

	"github.com/brypt-io/brypt-core/internal/errs"
	"github.com/mr-tron/base58"
)

const identifierSize = 32

// Identifier is the node identifier: an opaque, printable
// value with an internal numeric form (a fixed-size byte array) and an
// external string form. The external form is base58, the same alphabet
// libp2p encodes its own peer IDs with -- a 32-byte value base58-encodes to
// at most 44 printable characters (43 or 44 for almost every random value),
// so the external form is not limited to 31-33 characters.
type Identifier struct {
	bytes [identifierSize]byte
}

// Generate produces a fresh random identifier for an Ephemeral-mode node.
func Generate() (Identifier, error) {
	var id Identifier
	if _, err := rand.Read(id.bytes[:]); err != nil {
		return Identifier{}, errs.Newf(errs.Unspecified, "generate node identifier: %v", err)
	}
	return id, nil
}

// FromBytes wraps an existing 32-byte value, e.g. one read back from
// internal/identitystore for a Persistent-mode node.
func FromBytes(raw []byte) (Identifier, error) {
	if len(raw) != identifierSize {
		return Identifier{}, errs.Newf(errs.InvalidArgument, "node identifier must be %d bytes, got %d", identifierSize, len(raw))
	}
	var id Identifier
	copy(id.bytes[:], raw)
	return id, nil
}

// Parse decodes the base58 external form back into an Identifier.
func Parse(s string) (Identifier, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return Identifier{}, errs.Newf(errs.InvalidArgument, "parse node identifier %q: %v", s, err)
	}
	return FromBytes(decoded)
}

// Bytes returns the identifier's internal numeric form.
func (id Identifier) Bytes() []byte {
	out := make([]byte, identifierSize)
	copy(out, id.bytes[:])
	return out
}

// String returns the identifier's external, printable form.
func (id Identifier) String() string {
	return base58.Encode(id.bytes[:])
}

// IsZero reports whether id is the zero-value identifier -- never a valid
// generated or parsed value, so it doubles as an "absent" sentinel.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}
