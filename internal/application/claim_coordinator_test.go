package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepstar/service-booking/internal/application"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/events/contracts"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

func TestClaimCoordinator_ConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bk := f.createBooking(t, uuid.New(), time.Now().Add(48*time.Hour))
	f.publisher.reset()

	const contenders = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uuid.UUID
		losses  []error
	)
	for i := 0; i < contenders; i++ {
		providerID := uuid.New()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.claims.AcceptBooking(ctx, bk.ID, providerID, bk.Version)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, providerID)
				return
			}
			losses = append(losses, err)
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, losses, contenders-1)
	for _, err := range losses {
		assert.True(t, errors.Is(err, apperror.ErrAlreadyClaimed), "unexpected loss: %v", err)
	}

	stored, err := f.bookings.FindByID(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	require.NotNil(t, stored.ProviderID())
	assert.Equal(t, winners[0], *stored.ProviderID())
	assert.Equal(t, bk.Version+1, stored.Version())

	assert.Equal(t, []string{contracts.BookingClaimed}, f.publisher.types())
}

func TestClaimCoordinator_SecondClaimOnSameVersionLoses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))

	// Two edits bring the booking to version 3.
	for v := int64(1); v <= 2; v++ {
		_, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
			ExpectedVersion: v,
			Selection:       ref(f.workedSelection()),
		})
		require.NoError(t, err)
	}

	p1, p2 := uuid.New(), uuid.New()
	won, err := f.claims.AcceptBooking(ctx, bk.ID, p1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), won.Version)
	assert.Equal(t, string(bookingDomain.StatusConfirmed), won.Status)
	require.NotNil(t, won.ProviderID)
	assert.Equal(t, p1, *won.ProviderID)

	_, err = f.claims.AcceptBooking(ctx, bk.ID, p2, 3)
	assert.True(t, errors.Is(err, apperror.ErrAlreadyClaimed), "got %v", err)

	stored, err := f.bookings.FindByID(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, p1, *stored.ProviderID())
	assert.Equal(t, int64(4), stored.Version())
}

func TestClaimCoordinator_StaleVersionAfterEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))

	_, err := f.booking.EditBooking(ctx, client(clientID), bk.ID, application.EditBookingRequest{
		ExpectedVersion: 1,
		Selection:       &application.SelectionRequest{OptionIDs: []uuid.UUID{f.small}},
	})
	require.NoError(t, err)
	f.publisher.reset()

	_, err = f.claims.AcceptBooking(ctx, bk.ID, uuid.New(), 1)
	assert.True(t, errors.Is(err, apperror.ErrStaleWrite), "got %v", err)

	stored, err := f.bookings.FindByID(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())
	assert.Nil(t, stored.ProviderID())
	assert.Equal(t, int64(2), stored.Version())
	assert.Empty(t, f.publisher.types())
}

func TestClaimCoordinator_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := uuid.New()

	t.Run("not found", func(t *testing.T) {
		_, err := f.claims.AcceptBooking(ctx, uuid.New(), uuid.New(), 1)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("cancelled booking", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.booking.TransitionStatus(ctx, client(clientID), bk.ID, application.TransitionStatusRequest{
			ExpectedVersion: 1,
			Status:          "cancelled",
		})
		require.NoError(t, err)

		_, err = f.claims.AcceptBooking(ctx, bk.ID, uuid.New(), 2)
		assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
	})

	t.Run("missing provider", func(t *testing.T) {
		bk := f.createBooking(t, clientID, time.Now().Add(48*time.Hour))
		_, err := f.claims.AcceptBooking(ctx, bk.ID, uuid.Nil, 1)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	})
}

func TestClaimCoordinator_AdminAssignPublishesConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bk := f.createBooking(t, uuid.New(), time.Now().Add(48*time.Hour))
	f.publisher.reset()

	providerID := uuid.New()
	got, err := f.booking.TransitionStatus(ctx, admin(), bk.ID, application.TransitionStatusRequest{
		ExpectedVersion: 1,
		Status:          "confirmed",
		ProviderID:      &providerID,
	})
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusConfirmed), got.Status)
	assert.Equal(t, providerID, *got.ProviderID)
	assert.Equal(t, []string{contracts.BookingConfirmed}, f.publisher.types())

	_, err = f.booking.TransitionStatus(ctx, admin(), bk.ID, application.TransitionStatusRequest{
		ExpectedVersion: 2,
		Status:          "confirmed",
		ProviderID:      &providerID,
	})
	assert.True(t, errors.Is(err, apperror.ErrIllegalTransition), "got %v", err)
}
