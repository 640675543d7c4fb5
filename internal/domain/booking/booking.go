package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

const (
	bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxNotesLength     = 1000
)

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	clientID      uuid.UUID
	serviceID     uuid.UUID
	providerID    *uuid.UUID
	status        BookingStatus
	selection     Selection

	scheduledAt time.Time
	addressID   uuid.UUID
	notes       string

	priceMultiplier decimal.Decimal
	totalPrice      decimal.Decimal
	totalDuration   int

	cancellationReason string
	cancelledBy        Role

	confirmedAt *time.Time
	startedAt   *time.Time
	completedAt *time.Time
	cancelledAt *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "SW-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "SW-" + string(result), nil
}

// NewBooking creates a pending Booking priced by quote.
func NewBooking(
	clientID uuid.UUID,
	serviceID uuid.UUID,
	selection Selection,
	scheduledAt time.Time,
	addressID uuid.UUID,
	notes string,
	quote Quote,
	now time.Time,
) (*Booking, error) {
	if clientID == uuid.Nil {
		return nil, apperror.NewValidationError("client ID is required")
	}
	if serviceID == uuid.Nil {
		return nil, apperror.NewValidationError("service ID is required")
	}
	if err := validateDetails(scheduledAt, addressID, notes, now); err != nil {
		return nil, err
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Booking{
		id:              uuid.New(),
		bookingNumber:   bookingNumber,
		clientID:        clientID,
		serviceID:       serviceID,
		status:          StatusPending,
		selection:       selection.Normalized(),
		scheduledAt:     scheduledAt.UTC(),
		addressID:       addressID,
		notes:           notes,
		priceMultiplier: quote.Multiplier,
		totalPrice:      quote.TotalPrice,
		totalDuration:   quote.TotalDuration,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

func validateDetails(scheduledAt time.Time, addressID uuid.UUID, notes string, now time.Time) error {
	if scheduledAt.IsZero() {
		return apperror.NewValidationError("scheduled time is required")
	}
	if !scheduledAt.After(now) {
		return apperror.NewValidationError("scheduled time must be in the future")
	}
	if addressID == uuid.Nil {
		return apperror.NewValidationError("address ID is required")
	}
	if len(notes) > maxNotesLength {
		return apperror.NewValidationError(fmt.Sprintf("notes exceed %d characters", maxNotesLength))
	}
	return nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	clientID uuid.UUID,
	serviceID uuid.UUID,
	providerID *uuid.UUID,
	status BookingStatus,
	selection Selection,
	scheduledAt time.Time,
	addressID uuid.UUID,
	notes string,
	priceMultiplier decimal.Decimal,
	totalPrice decimal.Decimal,
	totalDuration int,
	cancellationReason string,
	cancelledBy Role,
	confirmedAt *time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                 id,
		bookingNumber:      bookingNumber,
		clientID:           clientID,
		serviceID:          serviceID,
		providerID:         providerID,
		status:             status,
		selection:          selection,
		scheduledAt:        scheduledAt,
		addressID:          addressID,
		notes:              notes,
		priceMultiplier:    priceMultiplier,
		totalPrice:         totalPrice,
		totalDuration:      totalDuration,
		cancellationReason: cancellationReason,
		cancelledBy:        cancelledBy,
		confirmedAt:        confirmedAt,
		startedAt:          startedAt,
		completedAt:        completedAt,
		cancelledAt:        cancelledAt,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                    { return b.id }
func (b *Booking) BookingNumber() string            { return b.bookingNumber }
func (b *Booking) ClientID() uuid.UUID              { return b.clientID }
func (b *Booking) ServiceID() uuid.UUID             { return b.serviceID }
func (b *Booking) ProviderID() *uuid.UUID           { return b.providerID }
func (b *Booking) Status() BookingStatus            { return b.status }
func (b *Booking) Selection() Selection             { return b.selection }
func (b *Booking) ScheduledAt() time.Time           { return b.scheduledAt }
func (b *Booking) AddressID() uuid.UUID             { return b.addressID }
func (b *Booking) Notes() string                    { return b.notes }
func (b *Booking) PriceMultiplier() decimal.Decimal { return b.priceMultiplier }
func (b *Booking) TotalPrice() decimal.Decimal      { return b.totalPrice }
func (b *Booking) TotalDuration() int               { return b.totalDuration }
func (b *Booking) CancellationReason() string       { return b.cancellationReason }
func (b *Booking) CancelledBy() Role                { return b.cancelledBy }
func (b *Booking) ConfirmedAt() *time.Time          { return b.confirmedAt }
func (b *Booking) StartedAt() *time.Time            { return b.startedAt }
func (b *Booking) CompletedAt() *time.Time          { return b.completedAt }
func (b *Booking) CancelledAt() *time.Time          { return b.cancelledAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64       { return b.version }
func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// IsAssignedTo reports whether providerID is the booking's provider.
func (b *Booking) IsAssignedTo(providerID uuid.UUID) bool {
	return b.providerID != nil && *b.providerID == providerID
}

// IsAvailable reports whether the booking can still be claimed.
func (b *Booking) IsAvailable() bool {
	return b.status == StatusPending && b.providerID == nil
}

// --- Behavior ---

// Edit replaces the selection and details of a pending booking and applies
// the freshly computed quote.
func (b *Booking) Edit(selection Selection, scheduledAt time.Time, addressID uuid.UUID, notes string, quote Quote, now time.Time) error {
	if b.status != StatusPending {
		return apperror.NewIllegalTransitionError(string(b.status), string(b.status), "only pending bookings can be edited")
	}
	if err := validateDetails(scheduledAt, addressID, notes, now); err != nil {
		return err
	}
	b.selection = selection.Normalized()
	b.scheduledAt = scheduledAt.UTC()
	b.addressID = addressID
	b.notes = notes
	b.priceMultiplier = quote.Multiplier
	b.totalPrice = quote.TotalPrice
	b.totalDuration = quote.TotalDuration
	b.updatedAt = now.UTC()
	return nil
}

// Start transitions the booking from confirmed to in_progress.
func (b *Booking) Start(now time.Time) error {
	if !b.status.CanTransitionTo(StatusInProgress) {
		return apperror.NewIllegalTransitionError(string(b.status), string(StatusInProgress), "")
	}
	now = now.UTC()
	b.status = StatusInProgress
	b.startedAt = &now
	b.updatedAt = now
	return nil
}

// Complete transitions a confirmed or in_progress booking to completed.
func (b *Booking) Complete(now time.Time) error {
	if !b.status.CanTransitionTo(StatusCompleted) {
		return apperror.NewIllegalTransitionError(string(b.status), string(StatusCompleted), "")
	}
	if b.providerID == nil {
		return apperror.NewIllegalTransitionError(string(b.status), string(StatusCompleted), "no provider assigned")
	}
	now = now.UTC()
	b.status = StatusCompleted
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel transitions the booking to cancelled and releases the provider.
func (b *Booking) Cancel(reason string, by Role, now time.Time) error {
	if !b.status.CanTransitionTo(StatusCancelled) {
		return apperror.NewIllegalTransitionError(string(b.status), string(StatusCancelled), "")
	}
	now = now.UTC()
	b.status = StatusCancelled
	b.providerID = nil
	b.cancellationReason = reason
	b.cancelledBy = by
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion(now time.Time) {
	b.version++
	b.updatedAt = now.UTC()
}
