package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// ClaimCoordinator resolves concurrent attempts to take the same pending
// booking. Exactly one attempt per booking version wins; every other one gets
// a definitive AlreadyClaimed or StaleWrite answer.
type ClaimCoordinator struct {
	repo   bookingDomain.BookingRepository
	events *bookingEmitter
	logger *zap.Logger
}

// NewClaimCoordinator creates a new ClaimCoordinator.
func NewClaimCoordinator(repo bookingDomain.BookingRepository, publisher EventPublisher, logger *zap.Logger) *ClaimCoordinator {
	return &ClaimCoordinator{
		repo:   repo,
		events: newBookingEmitter(publisher, logger),
		logger: logger,
	}
}

// AcceptBooking claims a pending booking for a provider, provided the booking
// is still at expectedVersion and unassigned.
func (c *ClaimCoordinator) AcceptBooking(ctx context.Context, bookingID, providerID uuid.UUID, expectedVersion int64) (*BookingDTO, error) {
	return c.claim(ctx, bookingID, providerID, expectedVersion, bookingDomain.RoleProvider)
}

// AssignProvider confirms a pending booking on behalf of an admin. It goes
// through the same atomic claim as AcceptBooking.
func (c *ClaimCoordinator) AssignProvider(ctx context.Context, bookingID, providerID uuid.UUID, expectedVersion int64) (*BookingDTO, error) {
	return c.claim(ctx, bookingID, providerID, expectedVersion, bookingDomain.RoleAdmin)
}

func (c *ClaimCoordinator) claim(ctx context.Context, bookingID, providerID uuid.UUID, expectedVersion int64, by bookingDomain.Role) (*BookingDTO, error) {
	if providerID == uuid.Nil {
		return nil, apperror.NewValidationError("provider_id is required")
	}
	if expectedVersion < 1 {
		return nil, apperror.NewValidationError("expected_version must be at least 1")
	}

	claimed, err := c.repo.Claim(ctx, bookingDomain.ClaimParams{
		BookingID:       bookingID,
		ProviderID:      providerID,
		ExpectedVersion: expectedVersion,
		At:              time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, c.classifyLoss(ctx, bookingID, expectedVersion)
	}

	eventType := contracts.BookingClaimed
	if by == bookingDomain.RoleAdmin {
		eventType = contracts.BookingConfirmed
	}
	c.events.emit(ctx, eventType, claimed, by)

	c.logger.Info("booking claimed",
		zap.String("booking_id", bookingID.String()),
		zap.String("provider_id", providerID.String()),
		zap.String("by", string(by)),
		zap.Int64("version", claimed.Version()),
	)

	result := toBookingDTO(claimed)
	return &result, nil
}

// classifyLoss explains why a claim's precondition did not hold by looking
// at the booking as it is now.
func (c *ClaimCoordinator) classifyLoss(ctx context.Context, bookingID uuid.UUID, expectedVersion int64) error {
	current, err := c.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	switch {
	case current.Status() == bookingDomain.StatusCancelled:
		return apperror.NewIllegalTransitionError(string(current.Status()), string(bookingDomain.StatusConfirmed),
			"booking was cancelled")
	case !current.IsAvailable():
		return apperror.NewAlreadyClaimedError(bookingID)
	default:
		return apperror.NewStaleWriteError("booking", bookingID, expectedVersion)
	}
}
