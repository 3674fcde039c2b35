// Package publisher implements change-driven external synchronization.
// Derived views (leaderboard, shop catalog) are fingerprinted with a stable
// content hash; a sync request is emitted only when the externally visible
// projection actually differs from what was last published. Announcements
// are rate-limited upstream, so firing on every internal mutation is not an
// option.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// View is a derived projection that can be fingerprinted and published.
// Implementations must marshal deterministically: fixed field order, no
// embedded timestamps.
type View interface {
	Name() string
}

// Sink delivers a rendered view to the external announcement channel. The
// idempotency key is the view's fingerprint; sinks may use it to replace
// rather than duplicate content.
type Sink interface {
	Publish(ctx context.Context, view View, idempotencyKey string) error
}

// Publisher tracks the last published fingerprint per view name.
type Publisher struct {
	sink Sink

	mu        sync.Mutex
	baselines map[string]string
}

// New creates a Publisher writing to sink.
func New(sink Sink) *Publisher {
	return &Publisher{
		sink:      sink,
		baselines: make(map[string]string),
	}
}

// Fingerprint returns the hex digest of the view's canonical serialization.
// It is a pure function of the view content: identical views hash the same
// across process restarts.
func Fingerprint(view View) (string, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("failed to serialize view %s: %w", view.Name(), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HasChanged reports whether the view differs from its last recorded
// fingerprint. The first observation of a view establishes the baseline and
// reports false, so process start does not trigger a notification storm.
// When a change is detected the stored fingerprint is advanced, so an
// unchanged view reports false on the next call.
func (p *Publisher) HasChanged(view View) (bool, error) {
	current, err := Fingerprint(view)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	previous, ok := p.baselines[view.Name()]
	if !ok {
		p.baselines[view.Name()] = current
		return false, nil
	}
	if previous == current {
		return false, nil
	}
	p.baselines[view.Name()] = current
	return true, nil
}

// MarkSynced records the view's current fingerprint as published, without
// emitting anything. Used after an external sync completes asynchronously
// and at startup to establish baselines silently.
func (p *Publisher) MarkSynced(view View) error {
	current, err := Fingerprint(view)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.baselines[view.Name()] = current
	p.mu.Unlock()
	return nil
}

// SyncIfChanged publishes the view when its content differs from the last
// successful publication. The fingerprint is advanced only after the sink
// accepts the payload, so a failed publication is retried on the next tick.
// Returns whether a publication was attempted.
func (p *Publisher) SyncIfChanged(ctx context.Context, view View) (bool, error) {
	current, err := Fingerprint(view)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	previous, seen := p.baselines[view.Name()]
	if !seen {
		p.baselines[view.Name()] = current
		p.mu.Unlock()
		return false, nil
	}
	p.mu.Unlock()

	if previous == current {
		return false, nil
	}
	if err := p.sink.Publish(ctx, view, current); err != nil {
		return true, err
	}
	p.mu.Lock()
	p.baselines[view.Name()] = current
	p.mu.Unlock()
	log.Info().Str("view", view.Name()).Str("fingerprint", current[:12]).Msg("View published")
	return true, nil
}

// Force publishes the view regardless of change state. With updateFingerprint
// the stored baseline advances to the published content; without it the
// baseline is deliberately left alone so automatic detection still fires for
// the change the forced sync preempted.
func (p *Publisher) Force(ctx context.Context, view View, updateFingerprint bool) error {
	current, err := Fingerprint(view)
	if err != nil {
		return err
	}
	if err := p.sink.Publish(ctx, view, current); err != nil {
		return err
	}
	if updateFingerprint {
		p.mu.Lock()
		p.baselines[view.Name()] = current
		p.mu.Unlock()
	}
	return nil
}
