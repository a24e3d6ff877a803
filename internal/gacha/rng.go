package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Entropy is the injected source of randomness. Uint64N must return a value uniformly
// distributed over [0, n) for n > 0. The engine never generates randomness itself.
type Entropy interface {
	Uint64N(n uint64) uint64
}

// crypto random: default provider
type cryptoEntropy struct{}

func (cryptoEntropy) Uint64N(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	// 2^64 mod n; reads below it are rejected so every residue is equally likely
	thresh := -n % n
	var buf [8]byte
	for {
		if _, err := cryptoRand.Read(buf[:]); err != nil {
			// back to math/rand/v2
			return rand.Uint64N(n)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v >= thresh {
			return v % n
		}
	}
}

// NewCryptoEntropy returns the default unpredictable provider backed by crypto/rand.
func NewCryptoEntropy() Entropy { return cryptoEntropy{} }

// Replicable entropy (e.g. Monte Carlo, audits)
type seededEntropy struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededEntropy returns a reproducible PCG-backed provider.
func NewSeededEntropy(seed uint64) Entropy {
	return &seededEntropy{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededEntropy) Uint64N(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Uint64N(n)
}

// SequenceEntropy replays a fixed list of values, cycling when exhausted.
// Each value is reduced modulo n. Used to replay recorded rolls.
type SequenceEntropy struct {
	mu     sync.Mutex
	values []uint64
	next   int
}

// NewSequenceEntropy creates a provider that returns values in order.
func NewSequenceEntropy(values ...uint64) *SequenceEntropy {
	if len(values) == 0 {
		values = []uint64{0}
	}
	return &SequenceEntropy{values: values}
}

func (s *SequenceEntropy) Uint64N(n uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	if n <= 1 {
		return 0
	}
	return v % n
}

// Calls reports how many values have been consumed.
func (s *SequenceEntropy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
