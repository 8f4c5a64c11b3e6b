package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
)

// ErrStale is returned by Run once resubscription attempts are exhausted.
var ErrStale = errors.New("live sources feed gave up reconnecting")

type State string

const (
	StateConnecting   State = "connecting"
	StateLive         State = "live"
	StateReconnecting State = "reconnecting"
	StateStale        State = "stale"
)

// Fetcher loads the full, ordered list of a user's sources.
type Fetcher func(ctx context.Context) ([]models.Source, error)

// Snapshot is what a list view renders.
type Snapshot struct {
	Sources   []models.Source `json:"sources"`
	State     State           `json:"state"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Watcher keeps one user's source list current. Every change notification
// triggers a full re-fetch; a dropped subscription is retried with backoff
// until the attempt budget runs out.
type Watcher struct {
	userID  string
	feed    Feed
	fetch   Fetcher
	backoff Backoff
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	sources   []models.Source
	state     State
	lastErr   error
	updatedAt time.Time
	onUpdate  func(Snapshot)
}

func NewWatcher(userID string, feed Feed, fetch Fetcher, backoff Backoff, logger *logger.Logger, m *metrics.Metrics) *Watcher {
	return &Watcher{
		userID:  userID,
		feed:    feed,
		fetch:   fetch,
		backoff: backoff,
		logger:  logger,
		metrics: m,
		state:   StateConnecting,
	}
}

// OnUpdate registers fn to receive every new snapshot. Call before Run.
func (w *Watcher) OnUpdate(fn func(Snapshot)) {
	w.mu.Lock()
	w.onUpdate = fn
	w.mu.Unlock()
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *Watcher) snapshotLocked() Snapshot {
	snap := Snapshot{
		Sources:   append([]models.Source(nil), w.sources...),
		State:     w.state,
		UpdatedAt: w.updatedAt,
	}
	if w.lastErr != nil {
		snap.Error = w.lastErr.Error()
	}
	return snap
}

// Run blocks until ctx is done or the feed goes stale. The list is loaded
// before the first subscription, so a feed that never connects still leaves
// the stored rows in the snapshot.
func (w *Watcher) Run(ctx context.Context) error {
	w.Refresh(ctx)

	failures := 0
	for {
		changes, err := w.feed.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("Failed to subscribe to source changes for user %s: %v", w.userID, err)
		} else {
			// Changes made while unsubscribed are picked up by this fetch.
			w.refresh(ctx, StateLive)
			if w.consume(ctx, changes) {
				failures = 0
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = errors.New("subscription closed")
		}

		failures++
		if w.backoff.Exhausted(failures) {
			w.setState(StateStale, ErrStale)
			if w.metrics != nil {
				w.metrics.RealtimeStale.Inc()
			}
			w.logger.Error("Live sources feed for user %s is stale after %d attempts", w.userID, failures)
			return ErrStale
		}

		w.setState(StateReconnecting, err)
		if w.metrics != nil {
			w.metrics.RealtimeResubs.Inc()
		}
		if err := sleep(ctx, w.backoff.Delay(failures)); err != nil {
			return err
		}
	}
}

// consume re-fetches on every change for this user. It reports whether any
// notification arrived before the channel closed.
func (w *Watcher) consume(ctx context.Context, changes <-chan Change) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case change, ok := <-changes:
			if !ok {
				return received
			}
			received = true
			if change.UserID != "" && change.UserID != w.userID {
				continue
			}
			w.Refresh(ctx)
		}
	}
}

// Refresh re-fetches the list. On failure the previous list is kept and the
// error is reported in the snapshot.
func (w *Watcher) Refresh(ctx context.Context) error {
	return w.refresh(ctx, "")
}

// refresh fetches and, when state is set, moves to it in the same snapshot.
func (w *Watcher) refresh(ctx context.Context, state State) error {
	sources, err := w.fetch(ctx)

	w.mu.Lock()
	if state != "" {
		w.state = state
	}
	if err != nil {
		w.lastErr = err
	} else {
		w.sources = sources
		w.lastErr = nil
		w.updatedAt = time.Now()
	}
	snap, fn := w.snapshotLocked(), w.onUpdate
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("Failed to fetch sources for user %s: %v", w.userID, err)
	}
	if fn != nil {
		fn(snap)
	}
	return err
}

// Remove drops a source from the local list ahead of the change notification.
func (w *Watcher) Remove(id string) {
	w.mu.Lock()
	kept := w.sources[:0:0]
	for _, s := range w.sources {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	w.sources = kept
	snap, fn := w.snapshotLocked(), w.onUpdate
	w.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (w *Watcher) setState(state State, err error) {
	w.mu.Lock()
	w.state = state
	if err != nil {
		w.lastErr = err
	} else if state == StateLive {
		w.lastErr = nil
	}
	snap, fn := w.snapshotLocked(), w.onUpdate
	w.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
