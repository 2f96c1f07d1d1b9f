package router

import (
	"github.com/brypt-io/brypt-core/internal/cipher"
	"github.com/brypt-io/brypt-core/internal/errs"
)

// Seal packs p and signs+encrypts the result with pkg, producing the exact
// bytes an endpoint writes to the wire: Sign first, since Verify on the
// receiving side needs the signature over the still-plain pack bytes.
func Seal(pkg *cipher.Package, p Parcel) ([]byte, error) {
	plain, err := Pack(p)
	if err != nil {
		return nil, err
	}
	signed := pkg.Sign(plain)
	return pkg.Encrypt(signed)
}

// Open reverses Seal. It returns both the decoded Parcel and the verified
// plaintext pack bytes -- callers deriving a tracking.Key from the exact
// bytes of the request that created a tracker need the latter, since a
// single-peer request's tracker key is never carried on the wire as a
// field.
func Open(pkg *cipher.Package, ciphertext []byte) (Parcel, []byte, error) {
	signed, err := pkg.Decrypt(ciphertext)
	if err != nil {
		return Parcel{}, nil, err
	}
	plain, ok := pkg.Verify(signed)
	if !ok {
		return Parcel{}, nil, errs.New(errs.Conflict, "parcel failed signature verification")
	}
	p, err := Unpack(plain)
	if err != nil {
		return Parcel{}, nil, err
	}
	return p, plain, nil
}
