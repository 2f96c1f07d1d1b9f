package cipher

import (
	"crypto/hmac"
	"crypto/sha512"
	"hash"

	sha256simd "github.com/minio/sha256-simd"
)

// hashSizes gives the fixed output size of each declarable hash-function
// name -- used both to size HMAC-based signatures (a Suite's SignatureSize
// is a pure function of its chosen hash function) and by
// the synchronizer's transcript confirmation tag in stage 2.
var hashSizes = map[string]int{
	"sha256": sha256simd.Size,
	"sha384": sha512.Size384,
	"sha512": sha512.Size,
}

func hashOutputSize(name string) int {
	if size, ok := hashSizes[name]; ok {
		return size
	}
	return sha256simd.Size
}

// signWith/verifyWith implement Package.Sign/Verify and the
// synchronizer's stage-2 transcript confirmation as one
// primitive: an HMAC keyed by the session's derived signing key, over the
// hash function negotiated into the suite. The derived signing keys are
// therefore symmetric MAC keys, not an asymmetric scheme --
// both peers derive the same key from the shared secret, so only a peer
// that completed the same key agreement can produce or check a valid tag.
func signWith(newHash func() hash.Hash, key, msg []byte) []byte {
	mac := hmac.New(newHash, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func verifyWith(newHash func() hash.Hash, key, msg, tag []byte) bool {
	expected := signWith(newHash, key, msg)
	return hmac.Equal(expected, tag)
}
