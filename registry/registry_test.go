package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-sqlio/token"
)

func TestNew(t *testing.T) {
	r := New[string](token.NewRandomGenerator())
	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Tokens())
}

func TestRegistry_Allocate(t *testing.T) {
	t.Run("re-rolls tokens that are already taken", func(t *testing.T) {
		r := New[string](token.NewSequenceGenerator(7, 7, 7, 9))

		first := r.Allocate("a")
		second := r.Allocate("b")

		assert.Equal(t, token.Token(7), first)
		assert.Equal(t, token.Token(9), second)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("never returns a token held by an open entry", func(t *testing.T) {
		r := New[int](token.NewSequenceGenerator(1, 2, 3, 1, 2, 3, 4))
		open := make(map[token.Token]bool)
		for i := 0; i < 4; i++ {
			tok := r.Allocate(i)
			assert.False(t, open[tok], "token %s handed out twice", tok)
			open[tok] = true
		}
		assert.Len(t, open, 4)
	})

	t.Run("concurrent allocations are unique", func(t *testing.T) {
		// A tiny token space forces frequent collisions between allocators.
		seq := make([]token.Token, 0, 64)
		for i := 0; i < 64; i++ {
			seq = append(seq, token.Token(i%8))
		}
		r := New[int](token.NewSequenceGenerator(seq...))

		const n = 8
		tokens := make([]token.Token, n)
		var g errgroup.Group
		for i := 0; i < n; i++ {
			g.Go(func() error {
				tokens[i] = r.Allocate(i)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		seen := make(map[token.Token]bool)
		for _, tok := range tokens {
			assert.False(t, seen[tok], "duplicate token %s", tok)
			seen[tok] = true
		}
		assert.Equal(t, n, r.Len())
	})

	t.Run("reuses a token only after removal", func(t *testing.T) {
		r := New[string](token.NewSequenceGenerator(5))
		tok := r.Allocate("a")
		_, ok := r.Remove(tok)
		require.True(t, ok)

		again := r.Allocate("b")
		assert.Equal(t, tok, again)
		v, err := r.Get(again)
		require.NoError(t, err)
		assert.Equal(t, "b", v)
	})
}

func TestRegistry_Get(t *testing.T) {
	r := New[string](token.NewRandomGenerator())

	t.Run("returns the stored value", func(t *testing.T) {
		r.Insert(42, "x")
		v, err := r.Get(42)
		require.NoError(t, err)
		assert.Equal(t, "x", v)
	})

	t.Run("missing token is a lookup error", func(t *testing.T) {
		v, err := r.Get(43)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "0000002b")
		assert.Empty(t, v)
	})
}

func TestRegistry_With(t *testing.T) {
	t.Run("missing token does not call fn", func(t *testing.T) {
		r := New[string](token.NewRandomGenerator())
		called := false
		err := r.With(1, func(string) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, called)
	})

	t.Run("blocks writers while fn runs", func(t *testing.T) {
		r := New[string](token.NewSequenceGenerator(1, 2))
		tok := r.Allocate("a")

		entered := make(chan struct{})
		release := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With(tok, func(string) error {
				close(entered)
				<-release
				return nil
			})
		}()
		<-entered

		allocated := make(chan token.Token, 1)
		go func() { allocated <- r.Allocate("b") }()

		select {
		case <-allocated:
			t.Fatal("Allocate completed while With held the lock")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		wg.Wait()
		assert.Equal(t, token.Token(2), <-allocated)
	})
}

func TestRegistry_Remove(t *testing.T) {
	r := New[string](token.NewRandomGenerator())
	r.Insert(1, "a")

	v, ok := r.Remove(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.False(t, r.Has(1))

	_, ok = r.Remove(1)
	assert.False(t, ok, "second remove is a no-op")
}

func TestRegistry_Range_Tokens(t *testing.T) {
	r := New[string](token.NewRandomGenerator())
	r.Insert(3, "c")
	r.Insert(1, "a")
	r.Insert(2, "b")

	assert.Equal(t, []token.Token{1, 2, 3}, r.Tokens())

	count := 0
	r.Range(func(token.Token, string) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count, "Range stops when f returns false")
}
