// Package generator produces deterministic pseudo-random bit sequences
// for exercising the statistical test battery. The construction follows
// the SHA-1 based generator from the NIST STS reference data: each round
// hashes the current 20-byte key padded to a 64-byte block, emits the
// digest as output, and advances the key to the digest plus one.
package generator

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"entropy-ca-analyzer/internal/bitseq"
)

// DefaultSeed is the key the generator starts from unless reseeded.
const DefaultSeed = "ec822a619d6ed5d9492218a7a4c5b15d57c61601"

const keyBytes = 20

// SHA1Generator is a deterministic bit sequence generator. It is not
// safe for concurrent use; the key advances with every Generate call.
type SHA1Generator struct {
	key [keyBytes]byte
}

// New creates a generator seeded with DefaultSeed.
func New() *SHA1Generator {
	g := &SHA1Generator{}
	// DefaultSeed is a valid constant, so this cannot fail.
	_ = g.SetSeed(DefaultSeed)
	return g
}

// SetSeed replaces the generator key. The seed must be a hex string
// decoding to exactly 20 bytes.
func (g *SHA1Generator) SetSeed(seed string) error {
	decoded, err := hex.DecodeString(seed)
	if err != nil {
		return fmt.Errorf("generator: invalid seed: %w", err)
	}
	if len(decoded) != keyBytes {
		return fmt.Errorf("generator: seed must be %d bytes, got %d", keyBytes, len(decoded))
	}
	copy(g.key[:], decoded)
	return nil
}

// Generate produces the next bitLength bits of the stream.
func (g *SHA1Generator) Generate(bitLength int) (*bitseq.BitSequence, error) {
	if bitLength <= 0 {
		return nil, fmt.Errorf("generator: bit length must be positive, got %d", bitLength)
	}

	numBytes := (bitLength + 7) / 8
	numOps := (numBytes + keyBytes - 1) / keyBytes

	buffer := make([]byte, 0, numOps*keyBytes)
	for i := 0; i < numOps; i++ {
		// Key zero-padded to one hash block.
		var message [64]byte
		copy(message[:], g.key[:])

		digest := sha1.Sum(message[:])
		buffer = append(buffer, digest[:]...)

		// Next key is the digest incremented by one.
		g.key = digest
		for j := keyBytes - 1; j >= 0; j-- {
			g.key[j]++
			if g.key[j] != 0 {
				break
			}
		}
	}

	seq := bitseq.FromBytes(buffer[:numBytes])
	seq.Resize(bitLength)
	return seq, nil
}

// GenerateBytes produces the next byteLength bytes of the stream.
func (g *SHA1Generator) GenerateBytes(byteLength int) ([]byte, error) {
	seq, err := g.Generate(byteLength * 8)
	if err != nil {
		return nil, err
	}
	return seq.Bytes(), nil
}
