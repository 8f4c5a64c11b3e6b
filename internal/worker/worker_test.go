package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flowtechs/internal/events"
	"flowtechs/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type recordingProcessor struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingProcessor) Process(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingProcessor) seen() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func TestWorker_ProcessesDecodableMessages(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{
			{Value: []byte(`{"type":"source.connected","source_id":"s1","user_id":"u1"}`)},
			{Value: []byte(`not json`)},
			{Value: []byte(`{"type":"source.deleted"}`)},
			{Value: []byte(`{"type":"source.deleted","source_id":"s2"}`)},
		},
	}
	processor := &recordingProcessor{err: errors.New("ignored")}
	w := NewWithReader(reader, logger.NewNop(), processor)
	w.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return len(processor.seen()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	seen := processor.seen()
	assert.Equal(t, events.SourceConnected, seen[0].Type)
	assert.Equal(t, "s1", seen[0].SourceID)
	assert.Equal(t, events.SourceDeleted, seen[1].Type)
	assert.Equal(t, "s2", seen[1].SourceID)

	require.NoError(t, w.Stop())
	assert.True(t, reader.closed)
}
