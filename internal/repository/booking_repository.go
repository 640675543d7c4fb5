package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
	"github.com/sweepstar/service-booking/internal/pkg/pagination"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber      string          `gorm:"uniqueIndex;not null;size:20"`
	ClientID           uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServiceID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProviderID         *uuid.UUID      `gorm:"type:uuid;index;index:idx_bookings_status_provider,priority:2"`
	Status             string          `gorm:"not null;size:30;index:idx_bookings_status_provider,priority:1"`
	Selection          datatypes.JSON  `gorm:"not null"`
	ScheduledAt        time.Time       `gorm:"not null;index"`
	AddressID          uuid.UUID       `gorm:"type:uuid;not null"`
	Notes              string          `gorm:"size:1000;not null"`
	PriceMultiplier    decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	TotalPrice         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalDurationMin   int             `gorm:"not null"`
	CancellationReason *string         `gorm:"size:500"`
	CancelledBy        *string         `gorm:"size:20"`
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	Version            int64     `gorm:"not null;default:1"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// storeError marks a driver failure as Unavailable.
func storeError(op string, err error) error {
	return apperror.NewUnavailableError("booking store", fmt.Errorf("failed to %s: %w", op, err))
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", id)
		}
		return nil, storeError("find booking by ID", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", number)
		}
		return nil, storeError("find booking by number", err)
	}
	return toDomainBooking(&model)
}

func applyFilter(q *gorm.DB, f bookingDomain.Filter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.ProviderID != nil {
		q = q.Where("provider_id = ?", *f.ProviderID)
	}
	if f.ServiceID != nil {
		q = q.Where("service_id = ?", *f.ServiceID)
	}
	if f.Unassigned {
		q = q.Where("provider_id IS NULL")
	}
	if f.ScheduledFrom != nil {
		q = q.Where("scheduled_at >= ?", f.ScheduledFrom.UTC())
	}
	if f.ScheduledTo != nil {
		q = q.Where("scheduled_at < ?", f.ScheduledTo.UTC())
	}
	return q
}

// List retrieves bookings matching filter, ordered by scheduled time.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.Filter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&BookingModel{}), filter).Count(&total).Error; err != nil {
		return nil, 0, storeError("count bookings", err)
	}

	var models []BookingModel
	if err := applyFilter(r.db.WithContext(ctx), filter).
		Order("scheduled_at ASC").
		Order("id ASC").
		Offset(pagination.Offset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, storeError("list bookings", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status.
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, storeError("count by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// ExistsByServiceID reports whether any booking references serviceID.
func (r *GormBookingRepository) ExistsByServiceID(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("service_id = ?", serviceID).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, storeError("check service references", err)
	}
	return count > 0, nil
}

// FindExpiredPending returns unclaimed pending bookings scheduled at or before now.
func (r *GormBookingRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND provider_id IS NULL AND scheduled_at <= ?", string(bookingDomain.StatusPending), now.UTC()).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, storeError("find expired bookings", err)
	}
	return toDomainBookings(models)
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return storeError("save booking", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
// The row must still be at the version the change was based on and in
// status from.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking, from bookingDomain.BookingStatus) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ? AND status = ?", model.ID, expectedVersion, string(from)).
		Updates(map[string]interface{}{
			"provider_id":         model.ProviderID,
			"status":              model.Status,
			"selection":           model.Selection,
			"scheduled_at":        model.ScheduledAt,
			"address_id":          model.AddressID,
			"notes":               model.Notes,
			"price_multiplier":    model.PriceMultiplier,
			"total_price":         model.TotalPrice,
			"total_duration_min":  model.TotalDurationMin,
			"cancellation_reason": model.CancellationReason,
			"cancelled_by":        model.CancelledBy,
			"confirmed_at":        model.ConfirmedAt,
			"started_at":          model.StartedAt,
			"completed_at":        model.CompletedAt,
			"cancelled_at":        model.CancelledAt,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return storeError("update booking", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewStaleWriteError("booking", bk.ID(), expectedVersion)
	}
	return nil
}

// Claim confirms a pending, unassigned booking for a provider in a single
// conditional UPDATE. Concurrent claims on one row serialize on the row lock
// and all but the first see zero affected rows.
func (r *GormBookingRepository) Claim(ctx context.Context, p bookingDomain.ClaimParams) (*bookingDomain.Booking, error) {
	at := p.At.UTC()
	var claimed *bookingDomain.Booking

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&BookingModel{}).
			Where("id = ? AND status = ? AND provider_id IS NULL AND version = ?",
				p.BookingID, string(bookingDomain.StatusPending), p.ExpectedVersion).
			Updates(map[string]interface{}{
				"provider_id":  p.ProviderID,
				"status":       string(bookingDomain.StatusConfirmed),
				"confirmed_at": at,
				"version":      gorm.Expr("version + 1"),
				"updated_at":   at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var model BookingModel
		if err := tx.Where("id = ?", p.BookingID).First(&model).Error; err != nil {
			return err
		}
		bk, err := toDomainBooking(&model)
		if err != nil {
			return err
		}
		claimed = bk
		return nil
	})
	if err != nil {
		return nil, storeError("claim booking", err)
	}
	return claimed, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	if bk.Status().RequiresProvider() != (bk.ProviderID() != nil) {
		return nil, fmt.Errorf("booking %s in status %s has inconsistent provider assignment", bk.ID(), bk.Status())
	}
	selectionJSON, err := json.Marshal(bk.Selection())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal selection: %w", err)
	}

	var reason, cancelledBy *string
	if bk.CancellationReason() != "" {
		s := bk.CancellationReason()
		reason = &s
	}
	if bk.CancelledBy() != "" {
		s := string(bk.CancelledBy())
		cancelledBy = &s
	}

	return &BookingModel{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		ClientID:           bk.ClientID(),
		ServiceID:          bk.ServiceID(),
		ProviderID:         bk.ProviderID(),
		Status:             string(bk.Status()),
		Selection:          datatypes.JSON(selectionJSON),
		ScheduledAt:        bk.ScheduledAt(),
		AddressID:          bk.AddressID(),
		Notes:              bk.Notes(),
		PriceMultiplier:    bk.PriceMultiplier(),
		TotalPrice:         bk.TotalPrice(),
		TotalDurationMin:   bk.TotalDuration(),
		CancellationReason: reason,
		CancelledBy:        cancelledBy,
		ConfirmedAt:        bk.ConfirmedAt(),
		StartedAt:          bk.StartedAt(),
		CompletedAt:        bk.CompletedAt(),
		CancelledAt:        bk.CancelledAt(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var selection bookingDomain.Selection
	if err := json.Unmarshal(m.Selection, &selection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection: %w", err)
	}
	if selection.Extras == nil {
		selection.Extras = map[uuid.UUID]int{}
	}

	var reason, cancelledBy string
	if m.CancellationReason != nil {
		reason = *m.CancellationReason
	}
	if m.CancelledBy != nil {
		cancelledBy = *m.CancelledBy
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.ClientID,
		m.ServiceID,
		m.ProviderID,
		bookingDomain.BookingStatus(m.Status),
		selection,
		m.ScheduledAt.UTC(),
		m.AddressID,
		m.Notes,
		m.PriceMultiplier,
		m.TotalPrice,
		m.TotalDurationMin,
		reason,
		bookingDomain.Role(cancelledBy),
		utcPtr(m.ConfirmedAt),
		utcPtr(m.StartedAt),
		utcPtr(m.CompletedAt),
		utcPtr(m.CancelledAt),
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
