// Package stub is the deterministic fallback response engine: greeting
// handling, canned troubleshooting playbooks, and a generic fallback. It
// produces varied, policy-compliant replies without any model call, with
// all variation driven by a reproducible seed.
package stub

import (
	"fmt"
	"math/rand"
)

// Seed identifies one response's variation inputs. Production varies the
// time bucket; tests pin it. Two Route calls with an identical Seed
// produce byte-identical output.
type Seed struct {
	TimeBucket     int64
	UserID         string
	ConversationID string
	RawText        string
}

// Fold collapses the seed inputs into a 31-bit integer via a polynomial
// hash over the joined key string.
func (s Seed) Fold() int64 {
	base := fmt.Sprintf("%d:%s:%s:%d", s.TimeBucket, s.UserID, s.ConversationID, byteSum(s.RawText))

	var acc int64
	for i := 0; i < len(base); i++ {
		acc = (acc*131 + int64(base[i])) & 0x7fffffff
	}
	return acc
}

func byteSum(s string) int64 {
	var sum int64
	for i := 0; i < len(s); i++ {
		sum += int64(s[i])
	}
	return sum
}

// rng returns the PRNG that drives every pool pick and shuffle for the
// response derived from this seed.
func (s Seed) rng() *rand.Rand {
	return rand.New(rand.NewSource(s.Fold()))
}

// pick selects one element from a pool.
func pick(r *rand.Rand, pool []string) string {
	return pool[r.Intn(len(pool))]
}

// shuffleTake returns between min and max elements of the pool in shuffled
// order, without mutating the pool.
func shuffleTake(r *rand.Rand, pool []string, min, max int) []string {
	n := min + r.Intn(max-min+1)
	if n > len(pool) {
		n = len(pool)
	}

	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
