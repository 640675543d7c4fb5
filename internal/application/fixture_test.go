package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweepstar/service-booking/internal/application"
	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/pkg/kafka"
	"github.com/sweepstar/service-booking/internal/repository"
	"github.com/sweepstar/service-booking/internal/repository/repotest"
)

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	bookings  *repository.GormBookingRepository
	services  *repository.GormServiceRepository
	publisher *recordingPublisher
	claims    *application.ClaimCoordinator
	booking   *application.BookingService
	catalog   *application.CatalogService

	svc     *catalogDomain.Service
	large   uuid.UUID
	small   uuid.UUID
	windows uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewDB(t)
	log := zap.NewNop()

	f := &fixture{
		bookings:  repository.NewGormBookingRepository(db),
		services:  repository.NewGormServiceRepository(db),
		publisher: &recordingPublisher{},
	}
	f.claims = application.NewClaimCoordinator(f.bookings, f.publisher, log)
	f.booking = application.NewBookingService(
		f.bookings,
		f.services,
		bookingDomain.NewStandardPricingStrategy(bookingDomain.DefaultMultiplierBounds()),
		bookingDomain.NewLifecycleEngine(bookingDomain.LifecyclePolicy{CancellationCutoff: 2 * time.Hour}),
		f.claims,
		f.publisher,
		log,
	)
	f.catalog = application.NewCatalogService(f.services, f.bookings, log)

	svc, err := catalogDomain.NewService("Deep clean", "whole flat", decimal.NewFromInt(50), 60,
		[]catalogDomain.OptionGroup{
			{Name: "Size", Required: true, Options: []catalogDomain.Option{
				{Name: "Small"},
				{Name: "Large", PriceDelta: decimal.NewFromInt(10), DurationDelta: 25},
			}},
		},
		[]catalogDomain.Extra{
			{Name: "Windows", PriceDelta: decimal.NewFromInt(5), DurationDelta: 5, MaxQuantity: 3},
		},
	)
	require.NoError(t, err)
	require.NoError(t, f.services.Save(context.Background(), svc))

	f.svc = svc
	f.small = svc.OptionGroups[0].Options[0].ID
	f.large = svc.OptionGroups[0].Options[1].ID
	f.windows = svc.Extras[0].ID
	return f
}

// workedSelection is Large plus two Windows: 77.00 and 95 minutes at 1.1.
func (f *fixture) workedSelection() application.SelectionRequest {
	return application.SelectionRequest{
		OptionIDs: []uuid.UUID{f.large},
		Extras:    []application.ExtraSelection{{ExtraID: f.windows, Quantity: 2}},
	}
}

func (f *fixture) createBooking(t *testing.T, clientID uuid.UUID, scheduledAt time.Time) *application.BookingDTO {
	t.Helper()
	m := decimal.RequireFromString("1.1")
	dto, err := f.booking.CreateBooking(context.Background(), clientID, application.CreateBookingRequest{
		ServiceID:   f.svc.ID,
		Selection:   f.workedSelection(),
		ScheduledAt: scheduledAt,
		AddressID:   uuid.New(),
		Notes:       "ring twice",
		Multiplier:  &m,
	})
	require.NoError(t, err)
	return dto
}

func ref[T any](v T) *T { return &v }

func client(id uuid.UUID) bookingDomain.Actor {
	return bookingDomain.Actor{ID: id, Role: bookingDomain.RoleClient}
}

func provider(id uuid.UUID) bookingDomain.Actor {
	return bookingDomain.Actor{ID: id, Role: bookingDomain.RoleProvider}
}

func admin() bookingDomain.Actor {
	return bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleAdmin}
}
