package cipher

import (
	"encoding/binary"
	"fmt"
)

// Wire layout:
//
// Stage 0 (initiator -> acceptor):
//   u8  level_count
//   for each level present, descending:
//     u8  level
//     for each of {key_agreements, ciphers, hash_functions}:
//       u16 group_count
//       u16 total_bytes
//       group_count * (u16 name_len, name_bytes)   -- sum(name_len) == total_bytes
//   u16 material_count
//   material_count * (u16 name_len, name, u16 pub_len, pub)
//
// Stage 1 (acceptor -> initiator):
//   u8  level
//   (u16 name_len, name) x3  -- key_agreement, cipher, hash_function
//   u16 resp_len, resp        -- KEM ciphertext or DH ephemeral public key
//   u16 salt_len, salt        -- HKDF salt
//
// Stage 2 (initiator -> acceptor): the raw confirmation tag, exactly
// Suite.SignatureSize bytes.

func putBytes16(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
	return append(buf, data...)
}

func takeBytes16(data []byte) (val, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return nil, nil, fmt.Errorf("declared length %d exceeds remaining %d bytes", n, len(data))
	}
	return data[:n], data[n:], nil
}

func packGroup(names []string) ([]byte, error) {
	if len(names) == 0 || len(names) > maxAlgorithmsPerGroup {
		return nil, fmt.Errorf("group size %d out of [1,%d]", len(names), maxAlgorithmsPerGroup)
	}
	var entries []byte
	total := 0
	for _, name := range names {
		if len(name) == 0 || len(name) > maxAlgorithmNameBytes {
			return nil, fmt.Errorf("algorithm name %q exceeds %d bytes", name, maxAlgorithmNameBytes)
		}
		entries = putBytes16(entries, []byte(name))
		total += len(name)
	}
	out := binary.BigEndian.AppendUint16(nil, uint16(len(names)))
	out = binary.BigEndian.AppendUint16(out, uint16(total))
	out = append(out, entries...)
	return out, nil
}

func parseGroup(data []byte) (names []string, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated group header")
	}
	count := int(binary.BigEndian.Uint16(data))
	totalBytes := int(binary.BigEndian.Uint16(data[2:]))
	data = data[4:]

	if count < 1 || count > maxAlgorithmsPerGroup {
		return nil, nil, fmt.Errorf("group count %d out of [1,%d]", count, maxAlgorithmsPerGroup)
	}

	sum := 0
	names = make([]string, 0, count)
	for i := 0; i < count; i++ {
		var nameBytes []byte
		nameBytes, data, err = takeBytes16(data)
		if err != nil {
			return nil, nil, err
		}
		if len(nameBytes) == 0 || len(nameBytes) > maxAlgorithmNameBytes {
			return nil, nil, fmt.Errorf("algorithm name length %d out of [1,%d]", len(nameBytes), maxAlgorithmNameBytes)
		}
		names = append(names, string(nameBytes))
		sum += len(nameBytes)
	}
	if sum != totalBytes {
		return nil, nil, fmt.Errorf("declared total_bytes %d disagrees with sum of name sizes %d", totalBytes, sum)
	}
	return names, data, nil
}

func packAlgorithms(sa SupportedAlgorithms) ([]byte, error) {
	var out []byte
	for _, level := range descendingLevels {
		algos, ok := sa[level]
		if !ok {
			continue
		}
		out = append(out, byte(level))
		for _, group := range [][]string{algos.KeyAgreements, algos.Ciphers, algos.HashFunctions} {
			packed, err := packGroup(group)
			if err != nil {
				return nil, err
			}
			out = append(out, packed...)
		}
	}
	return out, nil
}

func parseAlgorithms(data []byte, levelCount int) (SupportedAlgorithms, []byte, error) {
	sa := make(SupportedAlgorithms, levelCount)
	for i := 0; i < levelCount; i++ {
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("truncated level byte")
		}
		level := Level(data[0])
		data = data[1:]

		var algos Algorithms
		var err error
		algos.KeyAgreements, data, err = parseGroup(data)
		if err != nil {
			return nil, nil, err
		}
		algos.Ciphers, data, err = parseGroup(data)
		if err != nil {
			return nil, nil, err
		}
		algos.HashFunctions, data, err = parseGroup(data)
		if err != nil {
			return nil, nil, err
		}
		sa[level] = algos
	}
	return sa, data, nil
}

// stage0Message is what Initiator.Initialize emits: the packed supported
// algorithm table plus one ephemeral key-agreement public value per
// distinct key-agreement name the initiator offers (the acceptor won't
// know which one will be chosen until it replies in stage 1).
type stage0Message struct {
	algorithms SupportedAlgorithms
	materials  map[string][]byte // kex name -> initiator's ephemeral public material
}

func encodeStage0(msg stage0Message) ([]byte, error) {
	algoBytes, err := packAlgorithms(msg.algorithms)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(algoBytes)+64)
	out = append(out, byte(len(msg.algorithms)))
	out = append(out, algoBytes...)

	out = binary.BigEndian.AppendUint16(out, uint16(len(msg.materials)))
	for name, pub := range msg.materials {
		out = putBytes16(out, []byte(name))
		out = putBytes16(out, pub)
	}
	return out, nil
}

func decodeStage0(data []byte) (stage0Message, error) {
	if len(data) < 1 {
		return stage0Message{}, fmt.Errorf("empty stage-0 message")
	}
	levelCount := int(data[0])
	data = data[1:]
	if levelCount < 1 {
		return stage0Message{}, fmt.Errorf("stage-0 declares zero levels")
	}

	algorithms, rest, err := parseAlgorithms(data, levelCount)
	if err != nil {
		return stage0Message{}, err
	}
	data = rest

	if len(data) < 2 {
		return stage0Message{}, fmt.Errorf("truncated material count")
	}
	count := int(binary.BigEndian.Uint16(data))
	data = data[2:]

	materials := make(map[string][]byte, count)
	for i := 0; i < count; i++ {
		var nameBytes, pub []byte
		nameBytes, data, err = takeBytes16(data)
		if err != nil {
			return stage0Message{}, err
		}
		pub, data, err = takeBytes16(data)
		if err != nil {
			return stage0Message{}, err
		}
		materials[string(nameBytes)] = pub
	}

	return stage0Message{algorithms: algorithms, materials: materials}, nil
}

type stage1Message struct {
	suite Suite
	resp  []byte
	salt  []byte
}

func encodeStage1(msg stage1Message) []byte {
	out := []byte{byte(msg.suite.Level)}
	out = putBytes16(out, []byte(msg.suite.KeyAgreement))
	out = putBytes16(out, []byte(msg.suite.Cipher))
	out = putBytes16(out, []byte(msg.suite.HashFunction))
	out = putBytes16(out, msg.resp)
	out = putBytes16(out, msg.salt)
	return out
}

func decodeStage1(data []byte) (stage1Message, error) {
	if len(data) < 1 {
		return stage1Message{}, fmt.Errorf("empty stage-1 message")
	}
	level := Level(data[0])
	data = data[1:]

	var kexName, cipherName, hashName, resp, salt []byte
	var err error
	kexName, data, err = takeBytes16(data)
	if err != nil {
		return stage1Message{}, err
	}
	cipherName, data, err = takeBytes16(data)
	if err != nil {
		return stage1Message{}, err
	}
	hashName, data, err = takeBytes16(data)
	if err != nil {
		return stage1Message{}, err
	}
	resp, data, err = takeBytes16(data)
	if err != nil {
		return stage1Message{}, err
	}
	salt, _, err = takeBytes16(data)
	if err != nil {
		return stage1Message{}, err
	}

	suite := Suite{
		Level:        level,
		KeyAgreement: string(kexName),
		Cipher:       string(cipherName),
		HashFunction: string(hashName),
	}
	suite.SignatureSize = hashOutputSize(suite.HashFunction)

	return stage1Message{suite: suite, resp: resp, salt: salt}, nil
}
