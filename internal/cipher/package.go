package cipher

import (
	gocipher "crypto/cipher"
	"fmt"
	"hash"
	"sync"
)

// keyStore is the symmetric material a completed synchronization derives:
// one key for the negotiated AEAD cipher, one for the HMAC-based
// sign/verify surface.
type keyStore struct {
	encKey []byte
	macKey []byte
}

// Package is the authenticated-encryption session handle a synchronizer
// yields once Ready. Every method takes the package's own mutex, so
// concurrent calls do not corrupt its state; callers (the peer proxy's send
// scheduler) additionally serialize sends per peer.
type Package struct {
	mu      sync.Mutex
	suite   Suite
	aead    gocipher.AEAD
	hashNew func() hash.Hash
	keys    keyStore

	sent     uint64
	received uint64
}

func newPackage(suite Suite, keys keyStore) (*Package, error) {
	aeadImpl, err := lookupAEAD(suite.Cipher)
	if err != nil {
		return nil, err
	}
	aead, err := aeadImpl.newAEAD(keys.encKey)
	if err != nil {
		return nil, fmt.Errorf("construct AEAD for %s: %w", suite.Cipher, err)
	}
	hashNew, err := lookupHash(suite.HashFunction)
	if err != nil {
		return nil, err
	}
	return &Package{suite: suite, aead: aead, hashNew: hashNew, keys: keys}, nil
}

// Suite returns the negotiated cipher suite this package was built from.
func (p *Package) Suite() Suite {
	return p.suite
}

// Encrypt seals plain with a fresh random nonce: encrypting the
// same plaintext twice must never produce the same ciphertext.
func (p *Package) Encrypt(plain []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := seal(p.aead, plain, nil)
	if err != nil {
		return nil, err
	}
	p.sent++
	return out, nil
}

// Decrypt opens ciphertext produced by the peer's Encrypt.
func (p *Package) Decrypt(ciphertext []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := open(p.aead, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	p.received++
	return out, nil
}

// Sign appends an HMAC tag over buf to buf and returns the extended slice.
// Go slices can't grow a caller's backing array out from under them, so the
// grown slice is the return value rather than a true in-place mutation.
func (p *Package) Sign(buf []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	tag := signWith(p.hashNew, p.keys.macKey, buf)
	return append(buf, tag...)
}

// Verify checks the signature suffix Sign appended and returns the
// unsigned prefix plus whether it verified. A message not signed by the
// paired package (or tampered with) fails.
func (p *Package) Verify(buf []byte) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.suite.SignatureSize
	if len(buf) < size {
		return nil, false
	}
	msg, tag := buf[:len(buf)-size], buf[len(buf)-size:]
	if !verifyWith(p.hashNew, p.keys.macKey, msg, tag) {
		return nil, false
	}
	return msg, true
}
