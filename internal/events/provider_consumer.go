package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sweepstar/service-booking/internal/application"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
	"github.com/sweepstar/service-booking/internal/pkg/kafka"
)

// BookingClaimer claims a pending booking for a provider.
type BookingClaimer interface {
	AcceptBooking(ctx context.Context, bookingID, providerID uuid.UUID, expectedVersion int64) (*application.BookingDTO, error)
}

// ProviderEventConsumer listens to provider events and turns accept requests
// into claims.
type ProviderEventConsumer struct {
	consumer *kafka.Consumer
	claims   BookingClaimer
	logger   *zap.Logger
}

// NewProviderEventConsumer creates a new ProviderEventConsumer.
func NewProviderEventConsumer(
	brokers []string,
	groupID string,
	claims BookingClaimer,
	logger *zap.Logger,
) *ProviderEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, contracts.TopicProviderEvents, logger)
	return &ProviderEventConsumer{
		consumer: consumer,
		claims:   claims,
		logger:   logger,
	}
}

// Start begins consuming provider events. This blocks until the context is cancelled.
func (c *ProviderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ProviderEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ProviderEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from provider topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case contracts.ProviderBookingAcceptRequested:
		return c.handleAcceptRequested(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled provider event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *ProviderEventConsumer) handleAcceptRequested(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt contracts.BookingAcceptRequestedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse BookingAcceptRequestedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing booking accept request",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("provider_id", evt.ProviderID.String()),
		zap.Int64("expected_version", evt.ExpectedVersion),
	)

	_, err := c.claims.AcceptBooking(ctx, evt.BookingID, evt.ProviderID, evt.ExpectedVersion)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperror.ErrUnavailable):
		// Transient; let the consumer retry.
		return err
	default:
		// Lost races and invalid requests are final answers.
		c.logger.Info("booking accept request rejected",
			zap.String("booking_id", evt.BookingID.String()),
			zap.String("provider_id", evt.ProviderID.String()),
			zap.Error(err),
		)
		return nil
	}
}
