package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// Service is a bookable offering with its option groups and extras.
type Service struct {
	ID           uuid.UUID
	Name         string
	Description  string
	BasePrice    decimal.Decimal
	BaseDuration int // minutes
	Active       bool
	OptionGroups []OptionGroup
	Extras       []Extra
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OptionGroup holds mutually exclusive options. At most one option of a group
// may be selected; a required group needs exactly one.
type OptionGroup struct {
	ID       uuid.UUID
	Name     string
	Required bool
	Options  []Option
}

type Option struct {
	ID            uuid.UUID
	GroupID       uuid.UUID
	Name          string
	PriceDelta    decimal.Decimal
	DurationDelta int
}

// Extra is a quantified add-on. MaxQuantity 0 means unbounded.
type Extra struct {
	ID            uuid.UUID
	Name          string
	PriceDelta    decimal.Decimal
	DurationDelta int
	MaxQuantity   int
}

// AllowsQuantity reports whether q is a legal quantity for this extra.
func (e Extra) AllowsQuantity(q int) bool {
	if q < 1 {
		return false
	}
	return e.MaxQuantity == 0 || q <= e.MaxQuantity
}

// NewService builds an active Service, assigning ids to any group, option or
// extra that does not have one yet.
func NewService(name, description string, basePrice decimal.Decimal, baseDuration int, groups []OptionGroup, extras []Extra) (*Service, error) {
	now := time.Now().UTC()
	s := &Service{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Description:  description,
		BasePrice:    basePrice,
		BaseDuration: baseDuration,
		Active:       true,
		OptionGroups: groups,
		Extras:       extras,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.assignIDs()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Redefine replaces the service definition in place, keeping id, active flag
// and creation time.
func (s *Service) Redefine(name, description string, basePrice decimal.Decimal, baseDuration int, groups []OptionGroup, extras []Extra) error {
	next := *s
	next.Name = strings.TrimSpace(name)
	next.Description = description
	next.BasePrice = basePrice
	next.BaseDuration = baseDuration
	next.OptionGroups = groups
	next.Extras = extras
	next.assignIDs()
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*s = next
	return nil
}

func (s *Service) assignIDs() {
	for gi := range s.OptionGroups {
		g := &s.OptionGroups[gi]
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		for oi := range g.Options {
			if g.Options[oi].ID == uuid.Nil {
				g.Options[oi].ID = uuid.New()
			}
			g.Options[oi].GroupID = g.ID
		}
	}
	for ei := range s.Extras {
		if s.Extras[ei].ID == uuid.Nil {
			s.Extras[ei].ID = uuid.New()
		}
	}
}

// Validate checks the structural integrity of the definition.
func (s *Service) Validate() error {
	if s.Name == "" {
		return apperror.NewValidationError("service name is required")
	}
	if s.BasePrice.IsNegative() {
		return apperror.NewValidationError("base price cannot be negative")
	}
	if s.BaseDuration <= 0 {
		return apperror.NewValidationError("base duration must be positive")
	}

	seen := make(map[uuid.UUID]struct{})
	unique := func(id uuid.UUID) bool {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
		return true
	}

	for _, g := range s.OptionGroups {
		if strings.TrimSpace(g.Name) == "" {
			return apperror.NewValidationError("option group name is required")
		}
		if !unique(g.ID) {
			return apperror.NewValidationError("duplicate id " + g.ID.String())
		}
		if len(g.Options) == 0 {
			return apperror.NewValidationError("option group " + g.Name + " has no options")
		}
		for _, o := range g.Options {
			if strings.TrimSpace(o.Name) == "" {
				return apperror.NewValidationError("option name is required")
			}
			if o.GroupID != g.ID {
				return apperror.NewValidationError("option " + o.Name + " belongs to another group")
			}
			if !unique(o.ID) {
				return apperror.NewValidationError("duplicate id " + o.ID.String())
			}
		}
	}
	for _, e := range s.Extras {
		if strings.TrimSpace(e.Name) == "" {
			return apperror.NewValidationError("extra name is required")
		}
		if e.MaxQuantity < 0 {
			return apperror.NewValidationError("extra max quantity cannot be negative")
		}
		if !unique(e.ID) {
			return apperror.NewValidationError("duplicate id " + e.ID.String())
		}
	}
	return nil
}

// FindOption looks up an option and the group it belongs to.
func (s *Service) FindOption(id uuid.UUID) (Option, *OptionGroup, bool) {
	for gi := range s.OptionGroups {
		g := &s.OptionGroups[gi]
		for _, o := range g.Options {
			if o.ID == id {
				return o, g, true
			}
		}
	}
	return Option{}, nil, false
}

func (s *Service) FindExtra(id uuid.UUID) (Extra, bool) {
	for _, e := range s.Extras {
		if e.ID == id {
			return e, true
		}
	}
	return Extra{}, false
}

// Deactivate hides the service from new bookings and previews.
func (s *Service) Deactivate() {
	s.Active = false
	s.UpdatedAt = time.Now().UTC()
}
