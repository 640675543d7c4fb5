package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// ServiceModel is the GORM model for the services table.
type ServiceModel struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Name            string             `gorm:"size:200;not null"`
	Description     string             `gorm:"type:text;not null"`
	BasePrice       decimal.Decimal    `gorm:"type:numeric(12,2);not null"`
	BaseDurationMin int                `gorm:"not null"`
	Active          bool               `gorm:"not null;index"`
	OptionGroups    []OptionGroupModel `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE"`
	Extras          []ExtraModel       `gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"not null"`
	UpdatedAt       time.Time          `gorm:"not null"`
}

func (ServiceModel) TableName() string { return "services" }

type OptionGroupModel struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID     `gorm:"type:uuid;index;not null"`
	Name      string        `gorm:"size:200;not null"`
	Required  bool          `gorm:"not null"`
	Position  int           `gorm:"not null"`
	Options   []OptionModel `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

func (OptionGroupModel) TableName() string { return "service_option_groups" }

type OptionModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	GroupID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	Name             string          `gorm:"size:200;not null"`
	PriceDelta       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DurationDeltaMin int             `gorm:"not null"`
	Position         int             `gorm:"not null"`
}

func (OptionModel) TableName() string { return "service_options" }

type ExtraModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ServiceID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	Name             string          `gorm:"size:200;not null"`
	PriceDelta       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DurationDeltaMin int             `gorm:"not null"`
	MaxQuantity      int             `gorm:"not null"`
	Position         int             `gorm:"not null"`
}

func (ExtraModel) TableName() string { return "service_extras" }

// Models lists every GORM model of this service, in dependency order, for
// AutoMigrate.
func Models() []any {
	return []any{&ServiceModel{}, &OptionGroupModel{}, &OptionModel{}, &ExtraModel{}, &BookingModel{}}
}

// GormServiceRepository is the GORM-based implementation of catalog.ServiceRepository.
type GormServiceRepository struct {
	db *gorm.DB
}

func NewGormServiceRepository(db *gorm.DB) *GormServiceRepository {
	return &GormServiceRepository{db: db}
}

var errServiceReferenced = errors.New("service is referenced by bookings")

func catalogError(op string, err error) error {
	return apperror.NewUnavailableError("catalog store", fmt.Errorf("failed to %s: %w", op, err))
}

func (r *GormServiceRepository) preloaded(ctx context.Context) *gorm.DB {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }
	return r.db.WithContext(ctx).
		Preload("OptionGroups", byPosition).
		Preload("OptionGroups.Options", byPosition).
		Preload("Extras", byPosition)
}

// FindByID retrieves a service with its option groups and extras.
func (r *GormServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogDomain.Service, error) {
	var model ServiceModel
	if err := r.preloaded(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Service", id)
		}
		return nil, catalogError("find service", err)
	}
	return toDomainService(&model), nil
}

// List returns services ordered by name.
func (r *GormServiceRepository) List(ctx context.Context, activeOnly bool) ([]*catalogDomain.Service, error) {
	q := r.preloaded(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var models []ServiceModel
	if err := q.Order("name ASC").Find(&models).Error; err != nil {
		return nil, catalogError("list services", err)
	}
	services := make([]*catalogDomain.Service, len(models))
	for i := range models {
		services[i] = toDomainService(&models[i])
	}
	return services, nil
}

// Save persists a new service with its nested definitions.
func (r *GormServiceRepository) Save(ctx context.Context, svc *catalogDomain.Service) error {
	if err := r.db.WithContext(ctx).Create(toServiceModel(svc)).Error; err != nil {
		return catalogError("save service", err)
	}
	return nil
}

// Update replaces the stored definition, re-creating groups, options and
// extras in one transaction. A service referenced by any booking is
// rejected with a conflict; the service row stays locked until commit so a
// booking insert cannot slip in between the check and the rewrite.
func (r *GormServiceRepository) Update(ctx context.Context, svc *catalogDomain.Service) error {
	model := toServiceModel(svc)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked ServiceModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", model.ID).
			Take(&locked).Error; err != nil {
			return err
		}

		var references int64
		if err := tx.Model(&BookingModel{}).Where("service_id = ?", model.ID).Count(&references).Error; err != nil {
			return err
		}
		if references > 0 {
			return errServiceReferenced
		}

		result := tx.Model(&ServiceModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"name":              model.Name,
				"description":       model.Description,
				"base_price":        model.BasePrice,
				"base_duration_min": model.BaseDurationMin,
				"active":            model.Active,
				"updated_at":        model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		groupIDs := tx.Model(&OptionGroupModel{}).Select("id").Where("service_id = ?", model.ID)
		if err := tx.Where("group_id IN (?)", groupIDs).Delete(&OptionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id = ?", model.ID).Delete(&OptionGroupModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id = ?", model.ID).Delete(&ExtraModel{}).Error; err != nil {
			return err
		}

		if len(model.OptionGroups) > 0 {
			if err := tx.Omit(clause.Associations).Create(&model.OptionGroups).Error; err != nil {
				return err
			}
			var options []OptionModel
			for _, g := range model.OptionGroups {
				options = append(options, g.Options...)
			}
			if len(options) > 0 {
				if err := tx.Create(&options).Error; err != nil {
					return err
				}
			}
		}
		if len(model.Extras) > 0 {
			if err := tx.Create(&model.Extras).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewNotFoundError("Service", svc.ID)
		}
		if errors.Is(err, errServiceReferenced) {
			return apperror.NewConflictError("service is referenced by bookings; deactivate it and create a new one")
		}
		return catalogError("update service", err)
	}
	return nil
}

// SetActive toggles the active flag.
func (r *GormServiceRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&ServiceModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return catalogError("set service active", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("Service", id)
	}
	return nil
}

// --- Conversion Helpers ---

func toServiceModel(s *catalogDomain.Service) *ServiceModel {
	m := &ServiceModel{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		BasePrice:       s.BasePrice,
		BaseDurationMin: s.BaseDuration,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	for gi, g := range s.OptionGroups {
		gm := OptionGroupModel{
			ID:        g.ID,
			ServiceID: s.ID,
			Name:      g.Name,
			Required:  g.Required,
			Position:  gi,
		}
		for oi, o := range g.Options {
			gm.Options = append(gm.Options, OptionModel{
				ID:               o.ID,
				GroupID:          g.ID,
				Name:             o.Name,
				PriceDelta:       o.PriceDelta,
				DurationDeltaMin: o.DurationDelta,
				Position:         oi,
			})
		}
		m.OptionGroups = append(m.OptionGroups, gm)
	}
	for ei, e := range s.Extras {
		m.Extras = append(m.Extras, ExtraModel{
			ID:               e.ID,
			ServiceID:        s.ID,
			Name:             e.Name,
			PriceDelta:       e.PriceDelta,
			DurationDeltaMin: e.DurationDelta,
			MaxQuantity:      e.MaxQuantity,
			Position:         ei,
		})
	}
	return m
}

func toDomainService(m *ServiceModel) *catalogDomain.Service {
	s := &catalogDomain.Service{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		BasePrice:    m.BasePrice,
		BaseDuration: m.BaseDurationMin,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	for _, gm := range m.OptionGroups {
		g := catalogDomain.OptionGroup{ID: gm.ID, Name: gm.Name, Required: gm.Required}
		for _, om := range gm.Options {
			g.Options = append(g.Options, catalogDomain.Option{
				ID:            om.ID,
				GroupID:       om.GroupID,
				Name:          om.Name,
				PriceDelta:    om.PriceDelta,
				DurationDelta: om.DurationDeltaMin,
			})
		}
		s.OptionGroups = append(s.OptionGroups, g)
	}
	for _, em := range m.Extras {
		s.Extras = append(s.Extras, catalogDomain.Extra{
			ID:            em.ID,
			Name:          em.Name,
			PriceDelta:    em.PriceDelta,
			DurationDelta: em.DurationDeltaMin,
			MaxQuantity:   em.MaxQuantity,
		})
	}
	return s
}
