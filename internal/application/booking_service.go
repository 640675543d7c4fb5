package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
	"github.com/sweepstar/service-booking/internal/pkg/pagination"
)

// ExpiryReason is recorded on bookings cancelled by the expiry sweep.
const ExpiryReason = "expired"

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	catalog   catalogDomain.ServiceRepository
	pricing   bookingDomain.PricingStrategy
	lifecycle *bookingDomain.LifecycleEngine
	claims    *ClaimCoordinator
	events    *bookingEmitter
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	catalog catalogDomain.ServiceRepository,
	pricing bookingDomain.PricingStrategy,
	lifecycle *bookingDomain.LifecycleEngine,
	claims *ClaimCoordinator,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		catalog:   catalog,
		pricing:   pricing,
		lifecycle: lifecycle,
		claims:    claims,
		events:    newBookingEmitter(publisher, logger),
		logger:    logger,
	}
}

// PreviewPrice computes a quote for a selection without persisting anything.
func (s *BookingService) PreviewPrice(ctx context.Context, req PreviewPriceRequest) (*QuoteDTO, error) {
	svc, err := s.usableService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	sel, err := req.Selection.toSelection()
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Compute(svc, sel, multiplierOrDefault(req.Multiplier, decimal.NewFromInt(1)))
	if err != nil {
		return nil, err
	}
	result := toQuoteDTO(svc.ID, quote)
	return &result, nil
}

// CreateBooking prices the selection and creates a pending booking for the client.
func (s *BookingService) CreateBooking(ctx context.Context, clientID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	svc, err := s.usableService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	sel, err := req.Selection.toSelection()
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Compute(svc, sel, multiplierOrDefault(req.Multiplier, decimal.NewFromInt(1)))
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(
		clientID,
		svc.ID,
		sel,
		req.ScheduledAt,
		req.AddressID,
		req.Notes,
		quote,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, err
	}

	s.events.emit(ctx, contracts.BookingCreated, bk, bookingDomain.RoleClient)

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("total_price", formatMoney(bk.TotalPrice())),
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// EditBooking replaces the selection of a pending booking and re-prices it.
// Only the owning client or an admin may edit.
func (s *BookingService) EditBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req EditBookingRequest) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case bookingDomain.RoleAdmin:
	case bookingDomain.RoleClient:
		if bk.ClientID() != actor.ID {
			return nil, apperror.NewForbiddenError("booking does not belong to this user")
		}
	default:
		return nil, apperror.NewForbiddenError("only the client or an admin can edit a booking")
	}

	if bk.Status() != bookingDomain.StatusPending {
		return nil, apperror.NewIllegalTransitionError(string(bk.Status()), string(bk.Status()),
			"only pending bookings can be edited")
	}
	if bk.Version() != req.ExpectedVersion {
		return nil, apperror.NewStaleWriteError("booking", bk.ID(), req.ExpectedVersion)
	}

	svc, err := s.usableService(ctx, bk.ServiceID())
	if err != nil {
		return nil, err
	}
	sel := bk.Selection()
	if req.Selection != nil {
		if sel, err = req.Selection.toSelection(); err != nil {
			return nil, err
		}
	}
	quote, err := s.pricing.Compute(svc, sel, multiplierOrDefault(req.Multiplier, bk.PriceMultiplier()))
	if err != nil {
		return nil, err
	}

	scheduledAt := bk.ScheduledAt()
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}
	addressID := bk.AddressID()
	if req.AddressID != nil {
		addressID = *req.AddressID
	}
	notes := bk.Notes()
	if req.Notes != nil {
		notes = *req.Notes
	}

	now := time.Now().UTC()
	if err := bk.Edit(sel, scheduledAt, addressID, notes, quote, now); err != nil {
		return nil, err
	}
	bk.IncrementVersion(now)
	if err := s.repo.Update(ctx, bk, bookingDomain.StatusPending); err != nil {
		return nil, err
	}

	s.events.emit(ctx, contracts.BookingUpdated, bk, actor.Role)

	result := toBookingDTO(bk)
	return &result, nil
}

// ListAvailable returns pending, unassigned bookings ordered by scheduled time.
func (s *BookingService) ListAvailable(ctx context.Context, q AvailableQuery, page, limit int) (*pagination.Result[BookingDTO], error) {
	filter := bookingDomain.AvailableFilter()
	filter.ServiceID = q.ServiceID
	filter.ScheduledFrom = q.From
	filter.ScheduledTo = q.To
	return s.list(ctx, filter, page, limit)
}

// TransitionStatus moves a booking to another status on behalf of actor. A
// confirmation of a pending booking is resolved by the claim coordinator.
func (s *BookingService) TransitionStatus(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req TransitionStatusRequest) (*BookingDTO, error) {
	target, err := bookingDomain.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, apperror.NewValidationError(err.Error())
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	treq := bookingDomain.TransitionRequest{
		Target:     target,
		Actor:      actor,
		Reason:     req.Reason,
		ProviderID: req.ProviderID,
	}
	now := time.Now().UTC()
	if err := s.lifecycle.Authorize(bk, treq, now); err != nil {
		return nil, err
	}
	if bk.Version() != req.ExpectedVersion {
		return nil, apperror.NewStaleWriteError("booking", bk.ID(), req.ExpectedVersion)
	}

	if bookingDomain.RequiresClaim(bk, treq) {
		if actor.Role == bookingDomain.RoleAdmin {
			return s.claims.AssignProvider(ctx, bk.ID(), *req.ProviderID, req.ExpectedVersion)
		}
		return s.claims.AcceptBooking(ctx, bk.ID(), actor.ID, req.ExpectedVersion)
	}

	from := bk.Status()
	if err := s.lifecycle.Apply(bk, treq, now); err != nil {
		return nil, err
	}
	bk.IncrementVersion(now)
	if err := s.repo.Update(ctx, bk, from); err != nil {
		return nil, err
	}

	s.events.emit(ctx, eventTypeFor(bk.Status()), bk, actor.Role)

	s.logger.Info("booking transitioned",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(bk.Status())),
		zap.String("actor_role", string(actor.Role)),
	)

	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a single booking visible to actor.
func (s *BookingService) GetBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	return s.visible(actor, bk, err)
}

// GetBookingByNumber looks a booking up by its booking number, e.g. "SW-7KQ2MX".
func (s *BookingService) GetBookingByNumber(ctx context.Context, actor bookingDomain.Actor, number string) (*BookingDTO, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, apperror.NewValidationError("booking number is required")
	}
	bk, err := s.repo.FindByNumber(ctx, number)
	return s.visible(actor, bk, err)
}

func (s *BookingService) visible(actor bookingDomain.Actor, bk *bookingDomain.Booking, err error) (*BookingDTO, error) {
	if err != nil {
		return nil, err
	}
	if !actor.CanView(bk) {
		return nil, apperror.NewForbiddenError("booking is not visible to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings returns the actor's own bookings: a client sees bookings they
// made, a provider sees bookings assigned to them, an admin sees all.
func (s *BookingService) ListBookings(ctx context.Context, actor bookingDomain.Actor, status *bookingDomain.BookingStatus, page, limit int) (*pagination.Result[BookingDTO], error) {
	filter := bookingDomain.Filter{Status: status}
	switch actor.Role {
	case bookingDomain.RoleClient:
		filter.ClientID = &actor.ID
	case bookingDomain.RoleProvider:
		filter.ProviderID = &actor.ID
	case bookingDomain.RoleAdmin:
	default:
		return nil, apperror.NewForbiddenError("role cannot list bookings")
	}
	return s.list(ctx, filter, page, limit)
}

// RebookBooking creates a new booking from a previous one at a new time,
// re-priced against the current catalog.
func (s *BookingService) RebookBooking(ctx context.Context, clientID, originalBookingID uuid.UUID, req RebookRequest) (*BookingDTO, error) {
	original, err := s.repo.FindByID(ctx, originalBookingID)
	if err != nil {
		return nil, err
	}

	// Only the original client can rebook
	if original.ClientID() != clientID {
		return nil, apperror.NewForbiddenError("booking does not belong to this user")
	}

	sel := original.Selection()
	extras := make([]ExtraSelection, 0, len(sel.Extras))
	for _, id := range sel.ExtraIDs() {
		extras = append(extras, ExtraSelection{ExtraID: id, Quantity: sel.Extras[id]})
	}
	multiplier := original.PriceMultiplier()

	return s.CreateBooking(ctx, clientID, CreateBookingRequest{
		ServiceID: original.ServiceID(),
		Selection: SelectionRequest{
			OptionIDs: sel.OptionIDs,
			Extras:    extras,
		},
		ScheduledAt: req.ScheduledAt,
		AddressID:   original.AddressID(),
		Notes:       original.Notes(),
		Multiplier:  &multiplier,
	})
}

// ExpireStale cancels up to batchSize pending bookings whose scheduled time
// has passed. Bookings changed concurrently are skipped until the next run.
func (s *BookingService) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	now := time.Now().UTC()
	stale, err := s.repo.FindExpiredPending(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, bk := range stale {
		req := bookingDomain.TransitionRequest{
			Target: bookingDomain.StatusCancelled,
			Actor:  bookingDomain.SystemActor,
			Reason: ExpiryReason,
		}
		if err := s.lifecycle.Apply(bk, req, now); err != nil {
			s.logger.Warn("skipping booking on expiry",
				zap.String("booking_id", bk.ID().String()),
				zap.Error(err),
			)
			continue
		}
		bk.IncrementVersion(now)
		if err := s.repo.Update(ctx, bk, bookingDomain.StatusPending); err != nil {
			if errors.Is(err, apperror.ErrStaleWrite) {
				continue
			}
			return expired, err
		}
		expired++
		s.events.emit(ctx, contracts.BookingCancelled, bk, bookingDomain.RoleSystem)
	}

	if expired > 0 {
		s.logger.Info("expired stale bookings", zap.Int("count", expired))
	}
	return expired, nil
}

// --- Admin methods ---

// ListAllBookings returns a filtered, paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, filter bookingDomain.Filter, page, limit int) (*pagination.Result[BookingDTO], error) {
	return s.list(ctx, filter, page, limit)
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[string]int64, len(counts))
	for _, status := range bookingDomain.AllStatuses() {
		byStatus[status.String()] = 0
	}
	var total int64
	for status, c := range counts {
		byStatus[status] = c
		total += c
	}

	return &BookingStatsDTO{
		Total:    total,
		ByStatus: byStatus,
	}, nil
}

// --- Helpers ---

func (s *BookingService) list(ctx context.Context, filter bookingDomain.Filter, page, limit int) (*pagination.Result[BookingDTO], error) {
	page, limit = pagination.Normalize(page, limit)
	bookings, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}
	return &pagination.Result[BookingDTO]{
		Items: toBookingDTOs(bookings),
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// usableService loads a service that can still be booked.
func (s *BookingService) usableService(ctx context.Context, serviceID uuid.UUID) (*catalogDomain.Service, error) {
	svc, err := s.catalog.FindByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, apperror.NewInvalidSelectionError("service %s is no longer offered", serviceID)
	}
	return svc, nil
}

func multiplierOrDefault(m *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if m == nil {
		return fallback
	}
	return *m
}
