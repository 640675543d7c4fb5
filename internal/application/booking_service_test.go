package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepstar/service-booking/internal/application"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

func TestBookingService_PreviewPrice(t *testing.T) {
	f := newFixture(t)
	m := decimal.RequireFromString("1.1")

	quote, err := f.booking.PreviewPrice(context.Background(), application.PreviewPriceRequest{
		ServiceID:  f.svc.ID,
		Selection:  f.workedSelection(),
		Multiplier: &m,
	})
	require.NoError(t, err)
	assert.Equal(t, "77.00", quote.TotalPrice)
	assert.Equal(t, "70.00", quote.Subtotal)
	assert.Equal(t, 95, quote.TotalDuration)
	assert.Len(t, quote.Lines, 3)
	assert.Empty(t, f.publisher.types())

	t.Run("defaults multiplier to one", func(t *testing.T) {
		quote, err := f.booking.PreviewPrice(context.Background(), application.PreviewPriceRequest{
			ServiceID: f.svc.ID,
			Selection: application.SelectionRequest{OptionIDs: []uuid.UUID{f.small}},
		})
		require.NoError(t, err)
		assert.Equal(t, "50.00", quote.TotalPrice)
		assert.Equal(t, "1", quote.Multiplier)
	})

	t.Run("duplicate extra", func(t *testing.T) {
		_, err := f.booking.PreviewPrice(context.Background(), application.PreviewPriceRequest{
			ServiceID: f.svc.ID,
			Selection: application.SelectionRequest{
				OptionIDs: []uuid.UUID{f.small},
				Extras: []application.ExtraSelection{
					{ExtraID: f.windows, Quantity: 1},
					{ExtraID: f.windows, Quantity: 1},
				},
			},
		})
		assert.True(t, errors.Is(err, apperror.ErrInvalidSelection), "got %v", err)
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := f.booking.PreviewPrice(context.Background(), application.PreviewPriceRequest{ServiceID: uuid.New()})
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})
}

func TestBookingService_CreateBooking(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.New()

	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
	assert.Equal(t, string(bookingDomain.StatusPending), bk.Status)
	assert.Equal(t, int64(1), bk.Version)
	assert.Equal(t, "77.00", bk.TotalPrice)
	assert.Equal(t, 95, bk.TotalDuration)
	assert.Equal(t, "1.1", bk.PriceMultiplier)
	assert.Nil(t, bk.ProviderID)
	assert.Regexp(t, `^SW-[A-Z0-9]{6}$`, bk.BookingNumber)
	assert.Equal(t, []string{contracts.BookingCreated}, f.publisher.types())

	t.Run("multiplier out of bounds persists nothing", func(t *testing.T) {
		m := decimal.NewFromInt(2)
		_, err := f.booking.CreateBooking(context.Background(), clientID, application.CreateBookingRequest{
			ServiceID:   f.svc.ID,
			Selection:   f.workedSelection(),
			ScheduledAt: time.Now().Add(48 * time.Hour),
			AddressID:   uuid.New(),
			Multiplier:  &m,
		})
		assert.True(t, errors.Is(err, apperror.ErrInvalidMultiplier), "got %v", err)

		page, err := f.booking.ListBookings(context.Background(), client(clientID), nil, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("scheduled in the past", func(t *testing.T) {
		_, err := f.booking.CreateBooking(context.Background(), clientID, application.CreateBookingRequest{
			ServiceID:   f.svc.ID,
			Selection:   f.workedSelection(),
			ScheduledAt: time.Now().Add(-time.Hour),
			AddressID:   uuid.New(),
		})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	})

	t.Run("inactive service", func(t *testing.T) {
		_, err := f.catalog.DeactivateService(context.Background(), f.svc.ID)
		require.NoError(t, err)

		_, err = f.booking.CreateBooking(context.Background(), clientID, application.CreateBookingRequest{
			ServiceID:   f.svc.ID,
			Selection:   f.workedSelection(),
			ScheduledAt: time.Now().Add(48 * time.Hour),
			AddressID:   uuid.New(),
		})
		assert.True(t, errors.Is(err, apperror.ErrInvalidSelection), "got %v", err)
	})
}

func TestBookingService_EditBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
	f.publisher.reset()

	notes := "gate code 4411"
	edited, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
		ExpectedVersion: 1,
		Selection:       &application.SelectionRequest{OptionIDs: []uuid.UUID{f.small}},
		Notes:           &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), edited.Version)
	assert.Equal(t, "55.00", edited.TotalPrice)
	assert.Equal(t, 60, edited.TotalDuration)
	assert.Equal(t, notes, edited.Notes)
	assert.Equal(t, bk.AddressID, edited.AddressID)
	assert.Equal(t, []string{contracts.BookingUpdated}, f.publisher.types())

	t.Run("stale version", func(t *testing.T) {
		_, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
			ExpectedVersion: 1,
			Selection:       ref(f.workedSelection()),
		})
		assert.True(t, errors.Is(err, apperror.ErrStaleWrite), "got %v", err)
	})

	t.Run("other client", func(t *testing.T) {
		_, err := f.booking.EditBooking(ctx, client(uuid.New()), bk.ID, application.EditBookingRequest{
			ExpectedVersion: 2,
			Selection:       ref(f.workedSelection()),
		})
		assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
	})

	t.Run("invalid selection leaves booking untouched", func(t *testing.T) {
		_, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
			ExpectedVersion: 2,
			Selection:       &application.SelectionRequest{},
		})
		assert.True(t, errors.Is(err, apperror.ErrInvalidSelection), "got %v", err)

		stored, err := f.booking.GetBooking(ctx, client(clientID), bk.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)
		assert.Equal(t, "55.00", stored.TotalPrice)
	})

	t.Run("not pending", func(t *testing.T) {
		_, err := f.claims.AcceptBooking(ctx, bk.ID, uuid.New(), 2)
		require.NoError(t, err)

		_, err = f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
			ExpectedVersion: 3,
			Selection:       ref(f.workedSelection()),
		})
		assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
	})
}

func TestBookingService_EditBookingKeepsSelectionWhenOmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))

	notes := "back door"
	edited, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
		ExpectedVersion: 1,
		Notes:           &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, notes, edited.Notes)
	assert.Equal(t, "77.00", edited.TotalPrice)
	assert.Equal(t, 95, edited.TotalDuration)
	assert.Equal(t, bk.Selection, edited.Selection)

	flat := decimal.NewFromInt(1)
	repriced, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
		ExpectedVersion: 2,
		Multiplier:      &flat,
	})
	require.NoError(t, err)
	assert.Equal(t, "70.00", repriced.TotalPrice)
	assert.Equal(t, []application.ExtraSelection{{ExtraID: f.windows, Quantity: 2}}, repriced.Selection.Extras)
}

func TestBookingService_ProviderFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID, providerID := uuid.New(), uuid.New()
	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
	f.publisher.reset()

	got, err := f.booking.TransitionStatus(ctx, provider(providerID), bk.ID, application.TransitionStatusRequest{
		ExpectedVersion: 1,
		Status:          "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	t.Run("other provider cannot start", func(t *testing.T) {
		_, err := f.booking.TransitionStatus(ctx, provider(uuid.New()), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 2,
			Status:          "in_progress",
		})
		assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
	})

	got, err = f.booking.TransitionStatus(ctx, provider(providerID), bk.ID, application.TransitionStatusRequest{
		ExpectedVersion: 2,
		Status:          "in_progress",
	})
	require.NoError(t, err)
	assert.NotNil(t, got.StartedAt)

	t.Run("stale version", func(t *testing.T) {
		_, err := f.booking.TransitionStatus(ctx, provider(providerID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 2,
			Status:          "completed",
		})
		assert.True(t, errors.Is(err, apperror.ErrStaleWrite), "got %v", err)
	})

	got, err = f.booking.TransitionStatus(ctx, provider(providerID), bk.ID, application.TransitionStatusRequest{
		ExpectedVersion: 3,
		Status:          "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusCompleted), got.Status)
	assert.Equal(t, int64(4), got.Version)
	assert.NotNil(t, got.CompletedAt)

	assert.Equal(t, []string{
		contracts.BookingClaimed,
		contracts.BookingStarted,
		contracts.BookingCompleted,
	}, f.publisher.types())

	t.Run("terminal", func(t *testing.T) {
		_, err := f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 4,
			Status:          "cancelled",
		})
		assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
	})
}

func TestBookingService_Cancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	t.Run("client cancels pending", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		got, err := f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 1,
			Status:          "cancelled",
			Reason:          "plans changed",
		})
		require.NoError(t, err)
		assert.Equal(t, string(bookingDomain.StatusCancelled), got.Status)
		assert.Equal(t, string(bookingDomain.RoleClient), got.CancelledBy)
		assert.Equal(t, "plans changed", got.CancellationReason)
	})

	t.Run("other client", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.booking.TransitionStatus(ctx, client(uuid.New()), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 1,
			Status:          "cancelled",
		})
		assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
	})

	t.Run("confirmed inside cutoff", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(time.Hour))
		_, err := f.claims.AcceptBooking(ctx, bk.ID, uuid.New(), 1)
		require.NoError(t, err)

		_, err = f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 2,
			Status:          "cancelled",
		})
		assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
	})

	t.Run("confirmed before cutoff clears provider", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.claims.AcceptBooking(ctx, bk.ID, uuid.New(), 1)
		require.NoError(t, err)

		got, err := f.booking.TransitionStatus(ctx, admin(), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 2,
			Status:          "cancelled",
			Reason:          "provider unavailable",
		})
		require.NoError(t, err)
		assert.Nil(t, got.ProviderID)
		assert.Equal(t, string(bookingDomain.RoleAdmin), got.CancelledBy)
	})

	t.Run("client cannot complete", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 1,
			Status:          "completed",
		})
		assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
	})

	t.Run("unknown status", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 1,
			Status:          "archived",
		})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	})
}

func TestBookingService_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID, providerID := uuid.New(), uuid.New()

	open := f.createBooking(t, clientID, time.Now().Add(24*time.Hour))
	taken := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
	_, err := f.claims.AcceptBooking(ctx, taken.ID, providerID, 1)
	require.NoError(t, err)
	f.createBooking(t, uuid.New(), time.Now().Add(72*time.Hour))

	available, err := f.booking.ListAvailable(ctx, application.AvailableQuery{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), available.Total)
	assert.Equal(t, open.ID, available.Items[0].ID)

	mine, err := f.booking.ListBookings(ctx, client(clientID), nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	assigned, err := f.booking.ListBookings(ctx, provider(providerID), nil, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), assigned.Total)
	assert.Equal(t, taken.ID, assigned.Items[0].ID)

	all, err := f.booking.ListBookings(ctx, admin(), nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	_, err = f.booking.GetBooking(ctx, client(uuid.New()), open.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)

	_, err = f.booking.GetBooking(ctx, provider(uuid.New()), taken.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)

	got, err := f.booking.GetBooking(ctx, provider(uuid.New()), open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)

	stats, err := f.booking.GetBookingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["confirmed"])
}

func TestBookingService_RebookBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	original := f.createBooking(t, clientID, time.Now().Add(24*time.Hour))

	rebooked, err := f.booking.RebookBooking(ctx, clientID, original.ID, application.RebookRequest{
		ScheduledAt: time.Now().Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, rebooked.ID)
	assert.NotEqual(t, original.BookingNumber, rebooked.BookingNumber)
	assert.Equal(t, original.TotalPrice, rebooked.TotalPrice)
	assert.Equal(t, original.Selection, rebooked.Selection)
	assert.Equal(t, int64(1), rebooked.Version)

	_, err = f.booking.RebookBooking(ctx, uuid.New(), original.ID, application.RebookRequest{
		ScheduledAt: time.Now().Add(7 * 24 * time.Hour),
	})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
}

func TestBookingService_ExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-2 * time.Hour)
	stale, err := bookingDomain.NewBooking(uuid.New(), f.svc.ID,
		bookingDomain.Selection{OptionIDs: []uuid.UUID{f.small}},
		time.Now().UTC().Add(-30*time.Minute), uuid.New(), "",
		bookingDomain.Quote{
			Multiplier:    decimal.NewFromInt(1),
			TotalPrice:    decimal.NewFromInt(50),
			TotalDuration: 60,
		},
		past,
	)
	require.NoError(t, err)
	require.NoError(t, f.bookings.Save(ctx, stale))
	upcoming := f.createBooking(t, uuid.New(), time.Now().Add(24*time.Hour))
	f.publisher.reset()

	n, err := f.booking.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.bookings.FindByID(ctx, stale.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusCancelled, got.Status())
	assert.Equal(t, bookingDomain.RoleSystem, got.CancelledBy())
	assert.Equal(t, application.ExpiryReason, got.CancellationReason())
	assert.Equal(t, int64(2), got.Version())

	untouched, err := f.bookings.FindByID(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, untouched.Status())

	assert.Equal(t, []string{contracts.BookingCancelled}, f.publisher.types())

	n, err = f.booking.ExpireStale(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookingService_PublishFailureKeepsChange(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	bk := f.createBooking(t, uuid.New(), time.Now().Add(48*time.Hour))

	stored, err := f.bookings.FindByID(context.Background(), bk.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())
}
