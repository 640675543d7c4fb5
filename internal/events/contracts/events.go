// Package contracts defines the topics, event types and payloads exchanged
// with other services over Kafka.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

const Source = "service-booking"

// Topics.
const (
	TopicBookingEvents  = "booking.events"
	TopicProviderEvents = "provider.events"
)

// Booking event types published on TopicBookingEvents.
const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingClaimed   = "booking.claimed"
	BookingConfirmed = "booking.confirmed"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingCancelled = "booking.cancelled"
)

// Provider event types consumed from TopicProviderEvents.
const (
	ProviderBookingAcceptRequested = "provider.booking_accept_requested"
)

// BookingEvent is the payload of every booking.* event. It is a snapshot of
// the booking right after the committed change.
type BookingEvent struct {
	BookingID          uuid.UUID  `json:"booking_id"`
	BookingNumber      string     `json:"booking_number"`
	ClientID           uuid.UUID  `json:"client_id"`
	ServiceID          uuid.UUID  `json:"service_id"`
	ProviderID         *uuid.UUID `json:"provider_id,omitempty"`
	Status             string     `json:"status"`
	Version            int64      `json:"version"`
	TotalPrice         string     `json:"total_price"`
	TotalDuration      int        `json:"total_duration_min"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ActorRole          string     `json:"actor_role"`
	OccurredAt         time.Time  `json:"occurred_at"`
}

// BookingAcceptRequestedEvent asks the booking service to claim a booking
// on behalf of a provider.
type BookingAcceptRequestedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	ExpectedVersion int64     `json:"expected_version"`
	RequestedAt     time.Time `json:"requested_at"`
}
