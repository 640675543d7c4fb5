package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows booking listings. Zero values are ignored.
type Filter struct {
	Status        *BookingStatus
	ClientID      *uuid.UUID
	ProviderID    *uuid.UUID
	ServiceID     *uuid.UUID
	Unassigned    bool
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
}

// AvailableFilter returns the filter for the claimable pool.
func AvailableFilter() Filter {
	status := StatusPending
	return Filter{Status: &status, Unassigned: true}
}

// ClaimParams describes one atomic claim attempt.
type ClaimParams struct {
	BookingID       uuid.UUID
	ProviderID      uuid.UUID
	ExpectedVersion int64
	At              time.Time
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// List retrieves bookings matching filter with pagination, ordered by
	// scheduled time.
	List(ctx context.Context, filter Filter, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// ExistsByServiceID reports whether any booking references the service.
	ExistsByServiceID(ctx context.Context, serviceID uuid.UUID) (bool, error)

	// FindExpiredPending returns pending bookings scheduled before now.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists an already-mutated booking. The write only succeeds if
	// the stored row is still at booking.Version()-1 and in status from;
	// otherwise it returns a StaleWrite error and changes nothing.
	Update(ctx context.Context, booking *Booking, from BookingStatus) error

	// Claim assigns the provider and confirms the booking in one conditional
	// write. It returns the claimed booking, or nil with no error when the
	// precondition (pending, unassigned, expected version) did not hold.
	Claim(ctx context.Context, params ClaimParams) (*Booking, error)
}
