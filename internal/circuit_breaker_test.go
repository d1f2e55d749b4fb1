package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lychee-technology/openvocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	cb := NewCircuitBreaker(openvocab.BreakerConfig{Threshold: 2, Window: time.Minute, OpenDuration: 10 * time.Second})
	cb.now = clock.now
	return cb
}

func TestCircuitBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)

	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	clock.advance(2 * time.Minute)
	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "failures outside the window do not count")

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	clock.advance(11 * time.Second)
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen(), "success resets the history")
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker(openvocab.BreakerConfig{})
	assert.Nil(t, cb)
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
}

// flakyStore fails vocabulary listings with a store error while down is set.
type flakyStore struct {
	*MemoryConfigStore
	down  bool
	calls int
}

func (s *flakyStore) ListVocabularies(ctx context.Context) ([]*openvocab.Vocabulary, error) {
	s.calls++
	if s.down {
		return nil, openvocab.NewStoreError("failed to query vocabularies", errors.New("connection refused"))
	}
	return s.MemoryConfigStore.ListVocabularies(ctx)
}

func TestGuardedConfigStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	inner := &flakyStore{MemoryConfigStore: NewMemoryConfigStore(), down: true}
	store := NewGuardedConfigStore(inner, newTestBreaker(clock))

	for i := 0; i < 2; i++ {
		_, err := store.ListVocabularies(ctx)
		require.Error(t, err)
	}
	_, err := store.ListVocabularies(ctx)
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeStoreFailed))
	assert.Equal(t, 2, inner.calls, "open breaker does not reach the store")

	// While open, every operation fails fast.
	_, err = store.LoadAssociation(ctx, "missing")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeStoreFailed))

	clock.advance(time.Minute)
	inner.down = false
	_, err = store.ListVocabularies(ctx)
	require.NoError(t, err)
	_, err = store.LoadAssociation(ctx, "missing")
	assert.True(t, openvocab.IsCode(err, openvocab.ErrCodeAssociationNotFound))
	assert.Same(t, openvocab.ConfigStore(inner), store.Unwrap())
}
