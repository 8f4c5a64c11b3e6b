package processors

import (
	"context"
	"errors"
	"fmt"

	"flowtechs/internal/events"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/models"
	"flowtechs/internal/repository"
	"flowtechs/internal/worker/processors/validation"
)

// SourceStore is the part of the source service the processor needs.
type SourceStore interface {
	SourceForEvent(ctx context.Context, id string) (*models.Source, error)
	MarkStatus(ctx context.Context, id string, status models.ConnectionStatus) error
}

type EventProcessor struct {
	sources   SourceStore
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewEventProcessor(sources SourceStore, validator *validation.Validator, m *metrics.Metrics, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		sources:   sources,
		validator: validator,
		metrics:   m,
		logger:    logger,
	}
}

// Process handles one source lifecycle event:
//   - source.connected, source.credentials_updated: re-check the Shopify token
//   - source.deleted, source.renamed: logged only
func (ep *EventProcessor) Process(ctx context.Context, event events.Event) error {
	outcome, err := ep.process(ctx, event)
	ep.metrics.WorkerEvents.WithLabelValues(string(event.Type), outcome).Inc()
	return err
}

func (ep *EventProcessor) process(ctx context.Context, event events.Event) (string, error) {
	switch event.Type {
	case events.SourceConnected, events.SourceCredentialsUpdated:
		return ep.verify(ctx, event)
	case events.SourceDeleted:
		ep.logger.Info("Source %s (%s) deleted by user %s", event.SourceID, event.Shop, event.UserID)
		return "logged", nil
	case events.SourceRenamed:
		ep.logger.Debug("Source %s renamed", event.SourceID)
		return "logged", nil
	default:
		ep.logger.Warn("Ignoring event of unknown type %q", event.Type)
		return "ignored", nil
	}
}

func (ep *EventProcessor) verify(ctx context.Context, event events.Event) (string, error) {
	source, err := ep.sources.SourceForEvent(ctx, event.SourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ep.logger.Debug("Source %s no longer exists", event.SourceID)
			return "skipped", nil
		}
		return "error", fmt.Errorf("failed to load source %s: %w", event.SourceID, err)
	}
	if source.SourceType != models.SourceTypeShopify {
		return "skipped", nil
	}

	shop, err := ep.validator.ValidateSource(ctx, source)
	switch {
	case err == nil:
		ep.logger.Info("Verified credentials of source %s for %s", source.ID, shop.Name)
		return "verified", nil
	case errors.Is(err, validation.ErrRejected), errors.Is(err, validation.ErrUnreadableCredentials):
		ep.metrics.CredentialFailures.Inc()
		ep.logger.Warn("Deactivating source %s: %v", source.ID, err)
		if err := ep.sources.MarkStatus(ctx, source.ID, models.ConnectionStatusInactive); err != nil {
			return "error", fmt.Errorf("failed to deactivate source %s: %w", source.ID, err)
		}
		return "deactivated", nil
	default:
		return "error", fmt.Errorf("failed to verify source %s: %w", source.ID, err)
	}
}
