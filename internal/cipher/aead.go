package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadCipher builds the authenticated-encryption primitive for one cipher
// suite entry: XChaCha20-Poly1305 with a random nonce prefixed to the
// ciphertext, plus a second concrete implementation (AES-256-GCM) for the
// suites that name it.
type aeadCipher interface {
	name() string
	newAEAD(key []byte) (gocipher.AEAD, error)
	keySize() int
}

var aeadCiphers = map[string]aeadCipher{
	"chacha20poly1305": xchachaCipher{},
	"aes-256-gcm":      aesGCMCipher{},
}

func lookupAEAD(name string) (aeadCipher, error) {
	c, ok := aeadCiphers[name]
	if !ok {
		return nil, fmt.Errorf("unknown cipher algorithm %q", name)
	}
	return c, nil
}

type xchachaCipher struct{}

func (xchachaCipher) name() string { return "chacha20poly1305" }
func (xchachaCipher) keySize() int { return chacha20poly1305.KeySize }
func (xchachaCipher) newAEAD(key []byte) (gocipher.AEAD, error) {
	return chacha20poly1305.NewX(key)
}

type aesGCMCipher struct{}

func (aesGCMCipher) name() string { return "aes-256-gcm" }
func (aesGCMCipher) keySize() int { return 32 }
func (aesGCMCipher) newAEAD(key []byte) (gocipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return gocipher.NewGCM(block)
}

// seal encrypts plaintext, prefixing the random per-operation nonce to the
// returned ciphertext, so encrypting the same plaintext twice never
// produces the same ciphertext.
func seal(aead gocipher.AEAD, plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// open splits the nonce prefix back off and verifies+decrypts the rest.
func open(aead gocipher.AEAD, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce := ciphertext[:aead.NonceSize()]
	body := ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, body, aad)
}
