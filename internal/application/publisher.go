package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/kafka"
)

const publishTimeout = 5 * time.Second

// EventPublisher sends CloudEvents to a topic. *kafka.Producer and
// *kafka.NopProducer satisfy it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// bookingEmitter publishes booking.* events after the change is committed.
// Failures are logged and never undo the committed change.
type bookingEmitter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func newBookingEmitter(publisher EventPublisher, logger *zap.Logger) *bookingEmitter {
	return &bookingEmitter{publisher: publisher, logger: logger}
}

func (e *bookingEmitter) emit(ctx context.Context, eventType string, bk *bookingDomain.Booking, by bookingDomain.Role) {
	evt := contracts.BookingEvent{
		BookingID:          bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		ClientID:           bk.ClientID(),
		ServiceID:          bk.ServiceID(),
		ProviderID:         bk.ProviderID(),
		Status:             bk.Status().String(),
		Version:            bk.Version(),
		TotalPrice:         formatMoney(bk.TotalPrice()),
		TotalDuration:      bk.TotalDuration(),
		ScheduledAt:        bk.ScheduledAt(),
		CancellationReason: bk.CancellationReason(),
		ActorRole:          string(by),
		OccurredAt:         time.Now().UTC(),
	}

	cloudEvent, err := kafka.NewCloudEvent(contracts.Source, eventType, evt)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = bk.ID().String()

	// The change is already committed, so a cancelled request must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.PublishEvent(pubCtx, contracts.TopicBookingEvents, cloudEvent); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", contracts.TopicBookingEvents),
			zap.String("event_type", eventType),
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

// eventTypeFor maps a committed target status to its event type.
func eventTypeFor(status bookingDomain.BookingStatus) string {
	switch status {
	case bookingDomain.StatusConfirmed:
		return contracts.BookingConfirmed
	case bookingDomain.StatusInProgress:
		return contracts.BookingStarted
	case bookingDomain.StatusCompleted:
		return contracts.BookingCompleted
	case bookingDomain.StatusCancelled:
		return contracts.BookingCancelled
	default:
		return contracts.BookingUpdated
	}
}
