package cipher

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const saltSize = 32

// Synchronizer drives one side of the three-stage handshake:
//
//	stage 0 (initiator -> acceptor): offered algorithm table + ephemeral
//	  key-agreement materials, one per distinct key-agreement name offered.
//	stage 1 (acceptor -> initiator): the negotiated Suite, the acceptor's
//	  key-agreement response, and an HKDF salt.
//	stage 2 (initiator -> acceptor): a confirmation tag over the transcript,
//	  keyed by the derived signing key.
//
// A Synchronizer is single-use and not safe for concurrent calls: the peer
// proxy that owns a connection attempt drives it from one goroutine.
type Synchronizer struct {
	service *Service
	role    Role
	status  Status
	stage   int

	// initiator-only: the secret half of every key agreement it offered,
	// keyed by name, so it can complete() once the acceptor names its pick.
	secrets map[string]any

	transcript []byte // raw bytes exchanged so far, hashed into the KDF info
	suite      Suite
	salt       []byte
	keys       keyStore
}

// Initialize begins the handshake. Only the initiator emits anything here;
// the acceptor waits for stage 0 to arrive via Synchronize.
func (s *Synchronizer) Initialize() (Status, []byte, error) {
	if s.role != Initiator {
		return s.status, nil, nil
	}

	algorithms := s.service.SupportedAlgorithms()
	secrets := make(map[string]any)
	materials := make(map[string][]byte)

	seen := make(map[string]bool)
	for _, algos := range algorithms {
		for _, name := range algos.KeyAgreements {
			if seen[name] {
				continue
			}
			seen[name] = true

			ka, err := lookupKeyAgreement(name)
			if err != nil {
				s.status = Error
				return Error, nil, err
			}
			pub, secret, err := ka.generate()
			if err != nil {
				s.status = Error
				return Error, nil, fmt.Errorf("generate %s keypair: %w", name, err)
			}
			secrets[name] = secret
			materials[name] = pub
		}
	}

	out, err := encodeStage0(stage0Message{algorithms: algorithms, materials: materials})
	if err != nil {
		s.status = Error
		return Error, nil, err
	}

	s.secrets = secrets
	s.transcript = append([]byte(nil), out...)
	s.stage = 1
	return s.status, out, nil
}

// Synchronize feeds the peer's latest message in and returns this side's
// reply (nil once nothing further needs sending).
func (s *Synchronizer) Synchronize(in []byte) (Status, []byte, error) {
	if s.status == Error {
		return Error, nil, errSynchronizerFailed
	}

	switch {
	case s.role == Acceptor && s.stage == 0:
		return s.acceptStage0(in)
	case s.role == Initiator && s.stage == 1:
		return s.completeStage1(in)
	case s.role == Acceptor && s.stage == 1:
		return s.verifyStage2(in)
	default:
		s.status = Error
		return Error, nil, fmt.Errorf("synchronizer: unexpected message for role=%v stage=%d", s.role, s.stage)
	}
}

func (s *Synchronizer) acceptStage0(in []byte) (Status, []byte, error) {
	offer, err := decodeStage0(in)
	if err != nil {
		s.status = Error
		return Error, nil, fmt.Errorf("decode stage-0: %w", err)
	}

	suite, ok := selectSuite(offer.algorithms, s.service.SupportedAlgorithms())
	if !ok {
		s.status = Error
		return Error, nil, fmt.Errorf("no shared cipher suite at any confidentiality level")
	}

	peerPub, ok := offer.materials[suite.KeyAgreement]
	if !ok {
		s.status = Error
		return Error, nil, fmt.Errorf("initiator did not offer material for chosen key agreement %q", suite.KeyAgreement)
	}
	ka, err := lookupKeyAgreement(suite.KeyAgreement)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	resp, shared, err := ka.respond(peerPub)
	if err != nil {
		s.status = Error
		return Error, nil, fmt.Errorf("key agreement %q: %w", suite.KeyAgreement, err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		s.status = Error
		return Error, nil, fmt.Errorf("generate salt: %w", err)
	}

	out := encodeStage1(stage1Message{suite: suite, resp: resp, salt: salt})

	s.suite = suite
	s.salt = salt
	s.transcript = append(append([]byte(nil), in...), out...)

	keys, err := deriveKeys(suite, shared, salt, s.transcript)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	s.keys = keys

	s.stage = 1
	return s.status, out, nil
}

func (s *Synchronizer) completeStage1(in []byte) (Status, []byte, error) {
	msg, err := decodeStage1(in)
	if err != nil {
		s.status = Error
		return Error, nil, fmt.Errorf("decode stage-1: %w", err)
	}

	if !s.supports(msg.suite) {
		s.status = Error
		return Error, nil, fmt.Errorf("acceptor chose suite %+v we did not offer", msg.suite)
	}

	secret, ok := s.secrets[msg.suite.KeyAgreement]
	if !ok {
		s.status = Error
		return Error, nil, fmt.Errorf("no secret held for key agreement %q", msg.suite.KeyAgreement)
	}
	ka, err := lookupKeyAgreement(msg.suite.KeyAgreement)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	shared, err := ka.complete(secret, msg.resp)
	if err != nil {
		s.status = Error
		return Error, nil, fmt.Errorf("complete key agreement %q: %w", msg.suite.KeyAgreement, err)
	}

	s.suite = msg.suite
	s.salt = msg.salt
	s.transcript = append(s.transcript, in...)

	keys, err := deriveKeys(msg.suite, shared, msg.salt, s.transcript)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	s.keys = keys

	hashNew, err := lookupHash(msg.suite.HashFunction)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	tag := signWith(hashNew, keys.macKey, s.transcript)

	s.status = Ready
	s.stage = 2
	return Ready, tag, nil
}

func (s *Synchronizer) verifyStage2(in []byte) (Status, []byte, error) {
	hashNew, err := lookupHash(s.suite.HashFunction)
	if err != nil {
		s.status = Error
		return Error, nil, err
	}
	if !verifyWith(hashNew, s.keys.macKey, s.transcript, in) {
		s.status = Error
		return Error, nil, fmt.Errorf("stage-2 confirmation tag did not verify")
	}

	s.status = Ready
	s.stage = 2
	return Ready, nil, nil
}

// supports reports whether suite is one we could have offered: every
// component name appears among our own declared algorithms at that level.
func (s *Synchronizer) supports(suite Suite) bool {
	algos, ok := s.service.algorithms[suite.Level]
	if !ok {
		return false
	}
	return contains(algos.KeyAgreements, suite.KeyAgreement) &&
		contains(algos.Ciphers, suite.Cipher) &&
		contains(algos.HashFunctions, suite.HashFunction)
}

// Finalize yields the negotiated Package exactly once, only once Ready.
// Calling it again, or before Ready, returns (nil, false).
func (s *Synchronizer) Finalize() (*Package, bool) {
	if s.status != Ready || s.keys.encKey == nil {
		return nil, false
	}
	pkg, err := newPackage(s.suite, s.keys)
	if err != nil {
		s.status = Error
		return nil, false
	}
	s.keys = keyStore{} // Finalize is single-use; scrub so a second call fails cleanly.
	return pkg, true
}

// deriveKeys expands the shared secret into an AEAD key and a signing key
// with HKDF, keyed by the handshake's salt and bound to the exact transcript
// bytes exchanged.
func deriveKeys(suite Suite, shared, salt, transcript []byte) (keyStore, error) {
	hashNew, err := lookupHash(suite.HashFunction)
	if err != nil {
		return keyStore{}, err
	}
	aeadImpl, err := lookupAEAD(suite.Cipher)
	if err != nil {
		return keyStore{}, err
	}

	reader := hkdf.New(hashNew, shared, salt, transcript)

	encKey := make([]byte, aeadImpl.keySize())
	if _, err := io.ReadFull(reader, encKey); err != nil {
		return keyStore{}, fmt.Errorf("derive encryption key: %w", err)
	}
	macKey := make([]byte, hashOutputSize(suite.HashFunction))
	if _, err := io.ReadFull(reader, macKey); err != nil {
		return keyStore{}, fmt.Errorf("derive signing key: %w", err)
	}

	return keyStore{encKey: encKey, macKey: macKey}, nil
}
