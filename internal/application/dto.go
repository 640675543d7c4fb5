package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// --- Requests ---

// ExtraSelection is one selected extra with its quantity.
type ExtraSelection struct {
	ExtraID  uuid.UUID `json:"extra_id" binding:"required"`
	Quantity int       `json:"quantity"`
}

// SelectionRequest is the wire form of a booking selection.
type SelectionRequest struct {
	OptionIDs []uuid.UUID      `json:"option_ids"`
	Extras    []ExtraSelection `json:"extras"`
}

// toSelection converts the request, rejecting an extra listed twice.
func (r SelectionRequest) toSelection() (bookingDomain.Selection, error) {
	sel := bookingDomain.Selection{
		OptionIDs: append([]uuid.UUID(nil), r.OptionIDs...),
		Extras:    make(map[uuid.UUID]int, len(r.Extras)),
	}
	for _, e := range r.Extras {
		if _, dup := sel.Extras[e.ExtraID]; dup {
			return bookingDomain.Selection{}, apperror.NewInvalidSelectionError("extra %s listed more than once", e.ExtraID)
		}
		sel.Extras[e.ExtraID] = e.Quantity
	}
	return sel, nil
}

// PreviewPriceRequest asks for a quote without creating a booking.
type PreviewPriceRequest struct {
	ServiceID  uuid.UUID        `json:"service_id" binding:"required"`
	Selection  SelectionRequest `json:"selection"`
	Multiplier *decimal.Decimal `json:"multiplier"`
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ServiceID   uuid.UUID        `json:"service_id" binding:"required"`
	Selection   SelectionRequest `json:"selection"`
	ScheduledAt time.Time        `json:"scheduled_at" binding:"required"`
	AddressID   uuid.UUID        `json:"address_id" binding:"required"`
	Notes       string           `json:"notes" binding:"max=1000"`
	Multiplier  *decimal.Decimal `json:"multiplier"`
}

// EditBookingRequest changes a pending booking. Omitted fields keep their
// current value; a present selection replaces the stored one entirely.
type EditBookingRequest struct {
	ExpectedVersion int64             `json:"expected_version" binding:"required,min=1"`
	Selection       *SelectionRequest `json:"selection"`
	ScheduledAt     *time.Time        `json:"scheduled_at"`
	AddressID       *uuid.UUID        `json:"address_id"`
	Notes           *string           `json:"notes"`
	Multiplier      *decimal.Decimal  `json:"multiplier"`
}

// AcceptBookingRequest is a provider's claim on an available booking.
type AcceptBookingRequest struct {
	ExpectedVersion int64 `json:"expected_version" binding:"required,min=1"`
}

// TransitionStatusRequest asks for a lifecycle transition.
type TransitionStatusRequest struct {
	ExpectedVersion int64      `json:"expected_version" binding:"required,min=1"`
	Status          string     `json:"status" binding:"required"`
	Reason          string     `json:"reason" binding:"max=500"`
	ProviderID      *uuid.UUID `json:"provider_id"`
}

// RebookRequest clones a previous booking to a new time.
type RebookRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// AvailableQuery narrows the available pool.
type AvailableQuery struct {
	ServiceID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// --- Responses ---

// SelectionDTO is the response form of a selection, extras sorted by id.
type SelectionDTO struct {
	OptionIDs []uuid.UUID      `json:"option_ids"`
	Extras    []ExtraSelection `json:"extras"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID    `json:"id"`
	BookingNumber      string       `json:"booking_number"`
	ClientID           uuid.UUID    `json:"client_id"`
	ServiceID          uuid.UUID    `json:"service_id"`
	ProviderID         *uuid.UUID   `json:"provider_id,omitempty"`
	Status             string       `json:"status"`
	Selection          SelectionDTO `json:"selection"`
	ScheduledAt        time.Time    `json:"scheduled_at"`
	AddressID          uuid.UUID    `json:"address_id"`
	Notes              string       `json:"notes,omitempty"`
	PriceMultiplier    string       `json:"price_multiplier"`
	TotalPrice         string       `json:"total_price"`
	TotalDuration      int          `json:"total_duration_min"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	CancelledBy        string       `json:"cancelled_by,omitempty"`
	ConfirmedAt        *time.Time   `json:"confirmed_at,omitempty"`
	StartedAt          *time.Time   `json:"started_at,omitempty"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
	Version            int64        `json:"version"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

type QuoteLineDTO struct {
	Kind          string    `json:"kind"`
	ItemID        uuid.UUID `json:"item_id"`
	Name          string    `json:"name"`
	Quantity      int       `json:"quantity"`
	Price         string    `json:"price"`
	DurationDelta int       `json:"duration_min"`
}

// QuoteDTO is the response of a price preview.
type QuoteDTO struct {
	ServiceID     uuid.UUID      `json:"service_id"`
	Subtotal      string         `json:"subtotal"`
	Multiplier    string         `json:"multiplier"`
	TotalPrice    string         `json:"total_price"`
	TotalDuration int            `json:"total_duration_min"`
	Lines         []QuoteLineDTO `json:"lines"`
}

// BookingStatsDTO holds admin booking statistics.
type BookingStatsDTO struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// --- Converters ---

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	sel := bk.Selection()
	selDTO := SelectionDTO{
		OptionIDs: append([]uuid.UUID{}, sel.OptionIDs...),
		Extras:    make([]ExtraSelection, 0, len(sel.Extras)),
	}
	for _, id := range sel.ExtraIDs() {
		selDTO.Extras = append(selDTO.Extras, ExtraSelection{ExtraID: id, Quantity: sel.Extras[id]})
	}

	return BookingDTO{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		ClientID:           bk.ClientID(),
		ServiceID:          bk.ServiceID(),
		ProviderID:         bk.ProviderID(),
		Status:             bk.Status().String(),
		Selection:          selDTO,
		ScheduledAt:        bk.ScheduledAt(),
		AddressID:          bk.AddressID(),
		Notes:              bk.Notes(),
		PriceMultiplier:    bk.PriceMultiplier().String(),
		TotalPrice:         formatMoney(bk.TotalPrice()),
		TotalDuration:      bk.TotalDuration(),
		CancellationReason: bk.CancellationReason(),
		CancelledBy:        string(bk.CancelledBy()),
		ConfirmedAt:        bk.ConfirmedAt(),
		StartedAt:          bk.StartedAt(),
		CompletedAt:        bk.CompletedAt(),
		CancelledAt:        bk.CancelledAt(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toQuoteDTO(serviceID uuid.UUID, q bookingDomain.Quote) QuoteDTO {
	lines := make([]QuoteLineDTO, len(q.Lines))
	for i, l := range q.Lines {
		lines[i] = QuoteLineDTO{
			Kind:          string(l.Kind),
			ItemID:        l.ItemID,
			Name:          l.Name,
			Quantity:      l.Quantity,
			Price:         formatMoney(l.PriceDelta),
			DurationDelta: l.DurationDelta,
		}
	}
	return QuoteDTO{
		ServiceID:     serviceID,
		Subtotal:      formatMoney(q.Subtotal),
		Multiplier:    q.Multiplier.String(),
		TotalPrice:    formatMoney(q.TotalPrice),
		TotalDuration: q.TotalDuration,
		Lines:         lines,
	}
}

// --- Catalog ---

type OptionRequest struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name" binding:"required"`
	PriceDelta    decimal.Decimal `json:"price_delta"`
	DurationDelta int             `json:"duration_delta_min"`
}

type OptionGroupRequest struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name" binding:"required"`
	Required bool            `json:"required"`
	Options  []OptionRequest `json:"options" binding:"required,min=1,dive"`
}

type ExtraRequest struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name" binding:"required"`
	PriceDelta    decimal.Decimal `json:"price_delta"`
	DurationDelta int             `json:"duration_delta_min"`
	MaxQuantity   int             `json:"max_quantity" binding:"min=0"`
}

// ServiceRequest creates or redefines a catalog service.
type ServiceRequest struct {
	Name         string               `json:"name" binding:"required,max=200"`
	Description  string               `json:"description"`
	BasePrice    decimal.Decimal      `json:"base_price"`
	BaseDuration int                  `json:"base_duration_min" binding:"required,min=1"`
	OptionGroups []OptionGroupRequest `json:"option_groups" binding:"dive"`
	Extras       []ExtraRequest       `json:"extras" binding:"dive"`
}

func (r ServiceRequest) definition() ([]catalogDomain.OptionGroup, []catalogDomain.Extra) {
	groups := make([]catalogDomain.OptionGroup, len(r.OptionGroups))
	for gi, g := range r.OptionGroups {
		groups[gi] = catalogDomain.OptionGroup{ID: g.ID, Name: g.Name, Required: g.Required}
		for _, o := range g.Options {
			groups[gi].Options = append(groups[gi].Options, catalogDomain.Option{
				ID:            o.ID,
				Name:          o.Name,
				PriceDelta:    o.PriceDelta,
				DurationDelta: o.DurationDelta,
			})
		}
	}
	extras := make([]catalogDomain.Extra, len(r.Extras))
	for ei, e := range r.Extras {
		extras[ei] = catalogDomain.Extra{
			ID:            e.ID,
			Name:          e.Name,
			PriceDelta:    e.PriceDelta,
			DurationDelta: e.DurationDelta,
			MaxQuantity:   e.MaxQuantity,
		}
	}
	return groups, extras
}

type OptionDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	PriceDelta    string    `json:"price_delta"`
	DurationDelta int       `json:"duration_delta_min"`
}

type OptionGroupDTO struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Required bool        `json:"required"`
	Options  []OptionDTO `json:"options"`
}

type ExtraDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	PriceDelta    string    `json:"price_delta"`
	DurationDelta int       `json:"duration_delta_min"`
	MaxQuantity   int       `json:"max_quantity"`
}

// ServiceDTO is the response representation of a catalog service.
type ServiceDTO struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	BasePrice    string           `json:"base_price"`
	BaseDuration int              `json:"base_duration_min"`
	Active       bool             `json:"active"`
	OptionGroups []OptionGroupDTO `json:"option_groups"`
	Extras       []ExtraDTO       `json:"extras"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toServiceDTO(s *catalogDomain.Service) ServiceDTO {
	dto := ServiceDTO{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		BasePrice:    formatMoney(s.BasePrice),
		BaseDuration: s.BaseDuration,
		Active:       s.Active,
		OptionGroups: make([]OptionGroupDTO, 0, len(s.OptionGroups)),
		Extras:       make([]ExtraDTO, 0, len(s.Extras)),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	for _, g := range s.OptionGroups {
		gd := OptionGroupDTO{ID: g.ID, Name: g.Name, Required: g.Required, Options: make([]OptionDTO, 0, len(g.Options))}
		for _, o := range g.Options {
			gd.Options = append(gd.Options, OptionDTO{
				ID:            o.ID,
				Name:          o.Name,
				PriceDelta:    formatMoney(o.PriceDelta),
				DurationDelta: o.DurationDelta,
			})
		}
		dto.OptionGroups = append(dto.OptionGroups, gd)
	}
	for _, e := range s.Extras {
		dto.Extras = append(dto.Extras, ExtraDTO{
			ID:            e.ID,
			Name:          e.Name,
			PriceDelta:    formatMoney(e.PriceDelta),
			DurationDelta: e.DurationDelta,
			MaxQuantity:   e.MaxQuantity,
		})
	}
	return dto
}
