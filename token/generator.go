package token

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Generator produces candidate tokens. Generators make no uniqueness promise;
// the registry rejects and re-rolls candidates that are already in use.
type Generator interface {
	// Next returns the next candidate token.
	Next() Token
}

// randomGenerator draws tokens uniformly at random. It is safe for concurrent
// use.
type randomGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomGenerator creates a Generator that draws uniformly distributed
// tokens from a ChaCha8 stream seeded from crypto/rand.
//
// Returns:
//   - A Generator safe for concurrent use
func NewRandomGenerator() Generator {
	var seed [32]byte
	_, _ = crand.Read(seed[:])

	return &randomGenerator{rng: rand.New(rand.NewChaCha8(seed))}
}

// Next implements Generator.
func (g *randomGenerator) Next() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Token(g.rng.Uint32())
}

// sequenceGenerator replays a fixed list of tokens, cycling when exhausted.
type sequenceGenerator struct {
	mu   sync.Mutex
	seq  []Token
	next int
}

// NewSequenceGenerator creates a Generator that returns the given tokens in
// order, starting over after the last one. It is meant for tests that need
// to force collisions. Panics if no tokens are given.
//
// Parameters:
//   - tokens: The tokens to replay
//
// Returns:
//   - A Generator safe for concurrent use
func NewSequenceGenerator(tokens ...Token) Generator {
	if len(tokens) == 0 {
		panic("token: NewSequenceGenerator requires at least one token")
	}

	return &sequenceGenerator{seq: append([]Token(nil), tokens...)}
}

// Next implements Generator.
func (g *sequenceGenerator) Next() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := g.seq[g.next]
	g.next = (g.next + 1) % len(g.seq)
	return t
}
