package booking

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// PricingStrategy computes the price and duration of a selection.
type PricingStrategy interface {
	// Compute prices sel against svc. It performs no I/O and is deterministic.
	Compute(svc *catalog.Service, sel Selection, multiplier decimal.Decimal) (Quote, error)
}

// LineKind labels a quote line.
type LineKind string

const (
	LineBase   LineKind = "base"
	LineOption LineKind = "option"
	LineExtra  LineKind = "extra"
)

// QuoteLine is one priced component of a Quote.
type QuoteLine struct {
	Kind          LineKind
	ItemID        uuid.UUID
	Name          string
	Quantity      int
	PriceDelta    decimal.Decimal
	DurationDelta int
}

// Quote is the result of pricing a selection.
type Quote struct {
	Subtotal      decimal.Decimal
	Multiplier    decimal.Decimal
	TotalPrice    decimal.Decimal
	TotalDuration int
	Lines         []QuoteLine
}

// MultiplierBounds is the inclusive range accepted for the price multiplier.
type MultiplierBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultMultiplierBounds returns [0.9, 1.5].
func DefaultMultiplierBounds() MultiplierBounds {
	return MultiplierBounds{
		Min: decimal.RequireFromString("0.9"),
		Max: decimal.RequireFromString("1.5"),
	}
}

func (b MultiplierBounds) Contains(m decimal.Decimal) bool {
	return m.GreaterThanOrEqual(b.Min) && m.LessThanOrEqual(b.Max)
}

var two = decimal.NewFromInt(2)

// MultiplierScale is the number of decimal places a stored multiplier keeps.
const MultiplierScale = 4

// RoundToHalf rounds d to the nearest multiple of 0.5, halves away from zero.
func RoundToHalf(d decimal.Decimal) decimal.Decimal {
	return d.Mul(two).Round(0).Div(two)
}

// StandardPricingStrategy prices a selection additively on top of the
// service base and scales the price by the multiplier.
type StandardPricingStrategy struct {
	bounds MultiplierBounds
}

// NewStandardPricingStrategy creates a StandardPricingStrategy with the given bounds.
func NewStandardPricingStrategy(bounds MultiplierBounds) *StandardPricingStrategy {
	return &StandardPricingStrategy{bounds: bounds}
}

// Bounds returns the accepted multiplier range.
func (s *StandardPricingStrategy) Bounds() MultiplierBounds { return s.bounds }

// Compute calculates the quote:
//
//	price    = (base + Σ option deltas + Σ extra delta × qty) × multiplier, rounded to 0.5
//	duration =  base + Σ option deltas + Σ extra delta × qty
//
// Lines are emitted in catalog group order, then extras by ascending id.
func (s *StandardPricingStrategy) Compute(svc *catalog.Service, sel Selection, multiplier decimal.Decimal) (Quote, error) {
	if svc == nil {
		return Quote{}, apperror.NewInvalidSelectionError("service is required")
	}
	if !s.bounds.Contains(multiplier) {
		return Quote{}, apperror.NewInvalidMultiplierError("multiplier %s outside [%s, %s]",
			multiplier.String(), s.bounds.Min.String(), s.bounds.Max.String())
	}
	if !multiplier.Equal(multiplier.Truncate(MultiplierScale)) {
		return Quote{}, apperror.NewInvalidMultiplierError("multiplier %s has more than %d decimal places",
			multiplier.String(), MultiplierScale)
	}

	chosen := make(map[uuid.UUID]catalog.Option, len(sel.OptionIDs))
	seen := make(map[uuid.UUID]struct{}, len(sel.OptionIDs))
	for _, id := range sel.OptionIDs {
		if _, dup := seen[id]; dup {
			return Quote{}, apperror.NewInvalidSelectionError("option %s selected more than once", id)
		}
		seen[id] = struct{}{}

		opt, group, ok := svc.FindOption(id)
		if !ok {
			return Quote{}, apperror.NewInvalidSelectionError("option %s is not offered by service %s", id, svc.ID)
		}
		if _, taken := chosen[group.ID]; taken {
			return Quote{}, apperror.NewInvalidSelectionError("more than one option selected for group %q", group.Name)
		}
		chosen[group.ID] = opt
	}

	price := svc.BasePrice
	duration := svc.BaseDuration
	lines := []QuoteLine{{
		Kind:          LineBase,
		ItemID:        svc.ID,
		Name:          svc.Name,
		Quantity:      1,
		PriceDelta:    svc.BasePrice,
		DurationDelta: svc.BaseDuration,
	}}

	for _, group := range svc.OptionGroups {
		opt, ok := chosen[group.ID]
		if !ok {
			if group.Required {
				return Quote{}, apperror.NewInvalidSelectionError("group %q requires a selection", group.Name)
			}
			continue
		}
		price = price.Add(opt.PriceDelta)
		duration += opt.DurationDelta
		lines = append(lines, QuoteLine{
			Kind:          LineOption,
			ItemID:        opt.ID,
			Name:          opt.Name,
			Quantity:      1,
			PriceDelta:    opt.PriceDelta,
			DurationDelta: opt.DurationDelta,
		})
	}

	for _, id := range sel.ExtraIDs() {
		qty := sel.Extras[id]
		extra, ok := svc.FindExtra(id)
		if !ok {
			return Quote{}, apperror.NewInvalidSelectionError("extra %s is not offered by service %s", id, svc.ID)
		}
		if !extra.AllowsQuantity(qty) {
			return Quote{}, apperror.NewInvalidSelectionError("quantity %d not allowed for extra %q", qty, extra.Name)
		}
		linePrice := extra.PriceDelta.Mul(decimal.NewFromInt(int64(qty)))
		price = price.Add(linePrice)
		duration += extra.DurationDelta * qty
		lines = append(lines, QuoteLine{
			Kind:          LineExtra,
			ItemID:        extra.ID,
			Name:          extra.Name,
			Quantity:      qty,
			PriceDelta:    linePrice,
			DurationDelta: extra.DurationDelta * qty,
		})
	}

	total := RoundToHalf(price.Mul(multiplier))
	if total.IsNegative() {
		return Quote{}, apperror.NewInvalidSelectionError("selection yields a negative price")
	}
	if duration <= 0 {
		return Quote{}, apperror.NewInvalidSelectionError("selection yields a non-positive duration")
	}

	return Quote{
		Subtotal:      price,
		Multiplier:    multiplier,
		TotalPrice:    total,
		TotalDuration: duration,
		Lines:         lines,
	}, nil
}
