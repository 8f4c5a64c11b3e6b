package worker

import (
	"context"
	"errors"
	"time"

	"flowtechs/internal/config"
	"flowtechs/internal/events"
	"flowtechs/internal/logger"

	"github.com/segmentio/kafka-go"
)

const groupID = "flowtechs-worker"

// Processor handles one decoded event.
type Processor interface {
	Process(ctx context.Context, event events.Event) error
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Worker struct {
	logger     *logger.Logger
	reader     MessageReader
	processor  Processor
	retryDelay time.Duration
}

func New(cfg *config.Config, logger *logger.Logger, processor Processor) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        events.SplitBrokers(cfg.KafkaBrokers),
		GroupID:        groupID,
		Topic:          cfg.SourceEventsTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return NewWithReader(reader, logger, processor)
}

func NewWithReader(reader MessageReader, logger *logger.Logger, processor Processor) *Worker {
	return &Worker{
		logger:     logger,
		reader:     reader,
		processor:  processor,
		retryDelay: time.Second,
	}
}

// Start consumes until ctx is cancelled. Bad messages are logged and skipped.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for source events...")

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryDelay):
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		event, err := events.Decode(message.Value)
		if err != nil {
			w.logger.Error("Failed to decode event at offset %d: %v", message.Offset, err)
			continue
		}

		if err := w.processor.Process(ctx, event); err != nil {
			w.logger.Error("Failed to process %s for source %s: %v", event.Type, event.SourceID, err)
			continue
		}

		w.logger.Debug("Event %s for source %s processed", event.Type, event.SourceID)
	}
}

func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	return w.reader.Close()
}
