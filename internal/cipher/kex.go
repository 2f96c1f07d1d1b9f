package cipher

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"golang.org/x/crypto/curve25519"
)

// keyAgreement unifies classic Diffie-Hellman and KEM-style exchanges
// behind one three-step shape, generalized so a
// post-quantum KEM (kyber) fits the same generate/respond/complete calls the
// synchronizer drives:
//
//   initiator: generate()            -> pub, secret   (sent in stage 0)
//   acceptor:  respond(pub)          -> resp, shared   (resp sent in stage 1)
//   initiator: complete(secret,resp) -> shared
//
// For a DH scheme, resp is the acceptor's own ephemeral public key and
// shared is computed by both sides running the same DH function. For a KEM,
// resp is the encapsulated ciphertext and shared is produced directly by
// Encapsulate/Decapsulate.
type keyAgreement interface {
	name() string
	generate() (pub []byte, secret any, err error)
	respond(peerPub []byte) (resp []byte, shared []byte, err error)
	complete(secret any, resp []byte) (shared []byte, err error)
}

var keyAgreements = map[string]keyAgreement{
	"x25519":    x25519KeyAgreement{},
	"kyber512":  kemKeyAgreement{name_: "kyber512", scheme: kyber512.Scheme()},
	"kyber768":  kemKeyAgreement{name_: "kyber768", scheme: kyber768.Scheme()},
}

func lookupKeyAgreement(name string) (keyAgreement, error) {
	ka, ok := keyAgreements[name]
	if !ok {
		return nil, fmt.Errorf("unknown key-agreement algorithm %q", name)
	}
	return ka, nil
}

// x25519KeyAgreement is classic Diffie-Hellman over Curve25519.
type x25519KeyAgreement struct{}

func (x25519KeyAgreement) name() string { return "x25519" }

func (x25519KeyAgreement) generate() (pub []byte, secret any, err error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, nil, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	var pubArr [32]byte
	curve25519.ScalarBaseMult(&pubArr, &priv)
	return pubArr[:], priv, nil
}

func (a x25519KeyAgreement) respond(peerPub []byte) (resp []byte, shared []byte, err error) {
	pub, secret, err := a.generate()
	if err != nil {
		return nil, nil, err
	}
	shared, err = a.complete(secret, peerPub)
	if err != nil {
		return nil, nil, err
	}
	return pub, shared, nil
}

func (x25519KeyAgreement) complete(secret any, resp []byte) (shared []byte, err error) {
	priv, ok := secret.([32]byte)
	if !ok {
		return nil, fmt.Errorf("x25519: malformed secret")
	}
	if len(resp) != 32 {
		return nil, fmt.Errorf("x25519: peer public key must be 32 bytes")
	}
	out, err := curve25519.X25519(priv[:], resp)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// kemKeyAgreement wraps a circl kem.Scheme (kyber512/kyber768): the
// initiator generates a KEM keypair and sends the public key; the acceptor
// encapsulates against it and sends back the ciphertext; the initiator
// decapsulates to recover the same shared secret.
type kemKeyAgreement struct {
	name_  string
	scheme kem.Scheme
}

func (k kemKeyAgreement) name() string { return k.name_ }

func (k kemKeyAgreement) generate() (pub []byte, secret any, err error) {
	pk, sk, err := k.scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	pubBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pubBytes, sk, nil
}

func (k kemKeyAgreement) respond(peerPub []byte) (resp []byte, shared []byte, err error) {
	pk, err := k.scheme.UnmarshalBinaryPublicKey(peerPub)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: invalid public key: %w", k.name_, err)
	}
	ct, ss, err := k.scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, err
	}
	return ct, ss, nil
}

func (k kemKeyAgreement) complete(secret any, resp []byte) (shared []byte, err error) {
	sk, ok := secret.(kem.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: malformed secret", k.name_)
	}
	return k.scheme.Decapsulate(sk, resp)
}
