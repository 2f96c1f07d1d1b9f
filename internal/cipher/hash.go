package cipher

import (
	"crypto/sha512"
	"fmt"
	"hash"

	sha256simd "github.com/minio/sha256-simd"
)

// hashFunctions maps an advertised hash-function name to a constructor. The
// "sha256" entry uses github.com/minio/sha256-simd instead
// of crypto/sha256, since it implements the same hash.Hash contract with
// hardware-accelerated backends where available.
var hashFunctions = map[string]func() hash.Hash{
	"sha256": sha256simd.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

func lookupHash(name string) (func() hash.Hash, error) {
	h, ok := hashFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash-function algorithm %q", name)
	}
	return h, nil
}
