package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func highAlgorithms(kex string) SupportedAlgorithms {
	return SupportedAlgorithms{
		High: Algorithms{
			Name:          "high",
			KeyAgreements: []string{kex},
			Ciphers:       []string{"aes-256-gcm"},
			HashFunctions: []string{"sha384"},
		},
	}
}

// runHandshake drives initiator and acceptor synchronizers to completion by
// hand, the way a peer proxy relays bytes between two connections.
func runHandshake(t *testing.T, initiatorAlgos, acceptorAlgos SupportedAlgorithms) (*Package, *Package, error) {
	t.Helper()

	initSvc, err := NewService(initiatorAlgos)
	require.NoError(t, err, "initiator service")
	acceptSvc, err := NewService(acceptorAlgos)
	require.NoError(t, err, "acceptor service")

	initiator := initSvc.CreateSynchronizer(Initiator)
	acceptor := acceptSvc.CreateSynchronizer(Acceptor)

	_, _, err = acceptor.Initialize()
	if err != nil {
		return nil, nil, err
	}
	_, stage0, err := initiator.Initialize()
	if err != nil {
		return nil, nil, err
	}

	acceptStatus, stage1, err := acceptor.Synchronize(stage0)
	if err != nil {
		return nil, nil, err
	}
	if acceptStatus == Error {
		return nil, nil, err
	}

	initStatus, stage2, err := initiator.Synchronize(stage1)
	if err != nil {
		return nil, nil, err
	}
	require.Equal(t, Ready, initStatus, "initiator status")

	acceptStatus, _, err = acceptor.Synchronize(stage2)
	if err != nil {
		return nil, nil, err
	}
	require.Equal(t, Ready, acceptStatus, "acceptor status")

	initiatorPkg, ok := initiator.Finalize()
	require.True(t, ok, "initiator Finalize returned !ok after Ready")
	acceptorPkg, ok := acceptor.Finalize()
	require.True(t, ok, "acceptor Finalize returned !ok after Ready")
	return initiatorPkg, acceptorPkg, nil
}

func TestSynchronizerHandshakeMatchingAlgorithms(t *testing.T) {
	algos := highAlgorithms("x25519")
	initiatorPkg, acceptorPkg, err := runHandshake(t, algos, algos)
	require.NoError(t, err)

	assert.Equal(t, initiatorPkg.Suite(), acceptorPkg.Suite(), "suites should agree")

	plain := []byte("hello across the mesh")
	ciphertext, err := initiatorPkg.Encrypt(plain)
	require.NoError(t, err)
	got, err := acceptorPkg.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSynchronizerHandshakeKEM(t *testing.T) {
	algos := highAlgorithms("kyber768")
	initiatorPkg, acceptorPkg, err := runHandshake(t, algos, algos)
	require.NoError(t, err)
	assert.Equal(t, "kyber768", initiatorPkg.Suite().KeyAgreement)

	plain := []byte("post-quantum round trip")
	ciphertext, err := acceptorPkg.Encrypt(plain)
	require.NoError(t, err)
	got, err := initiatorPkg.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestSynchronizerDisjointLevelsErrors(t *testing.T) {
	initiatorAlgos := SupportedAlgorithms{
		Low: Algorithms{
			Name:          "low",
			KeyAgreements: []string{"x25519"},
			Ciphers:       []string{"chacha20poly1305"},
			HashFunctions: []string{"sha256"},
		},
	}
	acceptorAlgos := highAlgorithms("x25519")

	_, _, err := runHandshake(t, initiatorAlgos, acceptorAlgos)
	assert.Error(t, err, "expected error on disjoint confidentiality levels")
}

func TestSynchronizerInitiatorPreferenceTieBreak(t *testing.T) {
	initiatorAlgos := SupportedAlgorithms{
		High: Algorithms{
			Name:          "high",
			KeyAgreements: []string{"kyber768", "x25519"},
			Ciphers:       []string{"aes-256-gcm"},
			HashFunctions: []string{"sha384"},
		},
	}
	acceptorAlgos := SupportedAlgorithms{
		High: Algorithms{
			Name:          "high",
			KeyAgreements: []string{"x25519", "kyber768"},
			Ciphers:       []string{"aes-256-gcm"},
			HashFunctions: []string{"sha384"},
		},
	}

	initiatorPkg, acceptorPkg, err := runHandshake(t, initiatorAlgos, acceptorAlgos)
	require.NoError(t, err)
	assert.Equal(t, "kyber768", initiatorPkg.Suite().KeyAgreement, "initiator's preference should win the tie")
	assert.Equal(t, "kyber768", acceptorPkg.Suite().KeyAgreement, "acceptor should settle on the same suite as the initiator")
}

func TestPackageVerifyRejectsTamperedMessage(t *testing.T) {
	algos := highAlgorithms("x25519")
	initiatorPkg, acceptorPkg, err := runHandshake(t, algos, algos)
	require.NoError(t, err)

	msg := []byte("route-record-payload")
	signed := initiatorPkg.Sign(append([]byte(nil), msg...))

	_, ok := acceptorPkg.Verify(signed)
	assert.True(t, ok, "signature should verify across paired packages")

	tampered := append([]byte(nil), signed...)
	tampered[0] ^= 0xFF
	_, ok = acceptorPkg.Verify(tampered)
	assert.False(t, ok, "tampered message should fail verification")
}

func TestFinalizeIsSingleUse(t *testing.T) {
	algos := highAlgorithms("x25519")
	initSvc, _ := NewService(algos)
	acceptSvc, _ := NewService(algos)

	initiator := initSvc.CreateSynchronizer(Initiator)
	acceptor := acceptSvc.CreateSynchronizer(Acceptor)

	acceptor.Initialize()
	_, stage0, _ := initiator.Initialize()
	_, stage1, _ := acceptor.Synchronize(stage0)
	_, stage2, _ := initiator.Synchronize(stage1)
	acceptor.Synchronize(stage2)

	_, ok := initiator.Finalize()
	require.True(t, ok, "first Finalize should succeed")
	_, ok = initiator.Finalize()
	assert.False(t, ok, "second Finalize should fail")
}
