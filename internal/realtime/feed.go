package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"flowtechs/internal/database"
	"flowtechs/internal/logger"

	"github.com/lib/pq"
)

// Change is one row-level change on the sources table.
type Change struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpPoll   = "POLL"
)

// Feed delivers change notifications. The returned channel is closed when the
// subscription drops or ctx is cancelled.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}

func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("failed to parse change notification: %w", err)
	}
	if c.Op == "" {
		return Change{}, fmt.Errorf("failed to parse change notification: missing op")
	}
	return c, nil
}

// PostgresFeed listens on the sources_changes channel populated by the
// notify_sources_changes trigger.
type PostgresFeed struct {
	dsn    string
	logger *logger.Logger

	minReconnect time.Duration
	maxReconnect time.Duration
}

func NewPostgresFeed(dsn string, logger *logger.Logger) *PostgresFeed {
	return &PostgresFeed{
		dsn:          dsn,
		logger:       logger,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
	}
}

// Subscribe opens a dedicated listener connection. pq's own reconnect loop is
// cut short: the first disconnect closes the channel and the caller decides
// when to try again.
func (f *PostgresFeed) Subscribe(ctx context.Context) (<-chan Change, error) {
	dropped := make(chan struct{})
	var once sync.Once

	listener := pq.NewListener(f.dsn, f.minReconnect, f.maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
			if err != nil {
				f.logger.Warn("Sources listener dropped: %v", err)
			}
			once.Do(func() { close(dropped) })
		}
	})

	if err := listener.Listen(database.SourcesChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", database.SourcesChannel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-dropped:
				return
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				change, err := ParseChange(n.Extra)
				if err != nil {
					f.logger.Warn("Ignoring notification on %s: %v", n.Channel, err)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// PollFeed emits a synthetic change on a fixed interval. It stands in for
// LISTEN/NOTIFY on databases without it (SQLite in development).
type PollFeed struct {
	Interval time.Duration
}

func (f PollFeed) Subscribe(ctx context.Context) (<-chan Change, error) {
	interval := f.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- Change{Op: OpPoll}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// NewFeed picks the feed matching the database driver.
func NewFeed(databaseURL string, logger *logger.Logger) Feed {
	if database.IsSQLite(databaseURL) {
		return PollFeed{}
	}
	return NewPostgresFeed(databaseURL, logger)
}
