package internal

import (
	"context"
	"sync"
	"time"

	"github.com/lychee-technology/openvocab"
	"go.uber.org/zap"
)

// CircuitBreaker counts failures in a sliding window and opens once the
// threshold is reached. A nil breaker is always closed.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

// NewCircuitBreaker creates a breaker from cfg, or nil when cfg.Threshold is zero.
func NewCircuitBreaker(cfg openvocab.BreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		return nil
	}
	return &CircuitBreaker{
		threshold:    cfg.Threshold,
		window:       cfg.Window,
		openDuration: cfg.OpenDuration,
		failures:     make([]time.Time, 0, cfg.Threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failure and opens the breaker when the threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	cb.failures = append(cb.failures[:0], cb.failures[i:]...)
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
		cb.failures = cb.failures[:0]
	}
}

// RecordSuccess clears the failure history.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// IsOpen reports whether calls should fail fast.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.openUntil)
}

// GuardedConfigStore fails fast while its breaker is open. Only store
// failures count; not-found and validation errors are answers, not outages.
type GuardedConfigStore struct {
	store   openvocab.ConfigStore
	breaker *CircuitBreaker
}

var _ openvocab.ConfigStore = (*GuardedConfigStore)(nil)

// NewGuardedConfigStore wraps store. A nil breaker passes every call through.
func NewGuardedConfigStore(store openvocab.ConfigStore, breaker *CircuitBreaker) *GuardedConfigStore {
	return &GuardedConfigStore{store: store, breaker: breaker}
}

// Unwrap returns the guarded store.
func (g *GuardedConfigStore) Unwrap() openvocab.ConfigStore {
	return g.store
}

func (g *GuardedConfigStore) call(op string, fn func() error) error {
	if g.breaker.IsOpen() {
		return openvocab.NewStoreError("configuration store unavailable", nil).WithDetail("operation", op)
	}
	err := fn()
	if openvocab.IsCode(err, openvocab.ErrCodeStoreFailed) {
		g.breaker.RecordFailure()
		if g.breaker.IsOpen() {
			zap.S().Warnw("configuration store breaker opened", "operation", op, "error", err)
		}
		return err
	}
	g.breaker.RecordSuccess()
	return err
}

func (g *GuardedConfigStore) LoadVocabulary(ctx context.Context, id string) (v *openvocab.Vocabulary, err error) {
	err = g.call("load_vocabulary", func() error {
		v, err = g.store.LoadVocabulary(ctx, id)
		return err
	})
	return v, err
}

func (g *GuardedConfigStore) ListVocabularies(ctx context.Context) (list []*openvocab.Vocabulary, err error) {
	err = g.call("list_vocabularies", func() error {
		list, err = g.store.ListVocabularies(ctx)
		return err
	})
	return list, err
}

func (g *GuardedConfigStore) SaveVocabulary(ctx context.Context, v *openvocab.Vocabulary) error {
	return g.call("save_vocabulary", func() error { return g.store.SaveVocabulary(ctx, v) })
}

func (g *GuardedConfigStore) DeleteVocabulary(ctx context.Context, id string) error {
	return g.call("delete_vocabulary", func() error { return g.store.DeleteVocabulary(ctx, id) })
}

func (g *GuardedConfigStore) LoadAssociation(ctx context.Context, id string) (a *openvocab.Association, err error) {
	err = g.call("load_association", func() error {
		a, err = g.store.LoadAssociation(ctx, id)
		return err
	})
	return a, err
}

func (g *GuardedConfigStore) ListAssociations(ctx context.Context) (list []*openvocab.Association, err error) {
	err = g.call("list_associations", func() error {
		list, err = g.store.ListAssociations(ctx)
		return err
	})
	return list, err
}

func (g *GuardedConfigStore) SaveAssociation(ctx context.Context, a *openvocab.Association) error {
	return g.call("save_association", func() error { return g.store.SaveAssociation(ctx, a) })
}

func (g *GuardedConfigStore) DeleteAssociation(ctx context.Context, id string) error {
	return g.call("delete_association", func() error { return g.store.DeleteAssociation(ctx, id) })
}
