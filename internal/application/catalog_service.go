package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/sweepstar/service-booking/internal/domain/booking"
	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

// CatalogService manages the services clients can book.
type CatalogService struct {
	repo     catalogDomain.ServiceRepository
	bookings bookingDomain.BookingRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo catalogDomain.ServiceRepository, bookings bookingDomain.BookingRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, bookings: bookings, logger: logger}
}

// CreateService adds a new active service to the catalog.
func (s *CatalogService) CreateService(ctx context.Context, req ServiceRequest) (*ServiceDTO, error) {
	groups, extras := req.definition()
	svc, err := catalogDomain.NewService(req.Name, req.Description, req.BasePrice, req.BaseDuration, groups, extras)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Info("service created",
		zap.String("service_id", svc.ID.String()),
		zap.String("name", svc.Name),
	)

	result := toServiceDTO(svc)
	return &result, nil
}

// GetService retrieves a service with its options and extras.
func (s *CatalogService) GetService(ctx context.Context, id uuid.UUID) (*ServiceDTO, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toServiceDTO(svc)
	return &result, nil
}

// ListServices lists the catalog. Inactive services are only included on request.
func (s *CatalogService) ListServices(ctx context.Context, includeInactive bool) ([]ServiceDTO, error) {
	services, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		return nil, err
	}
	dtos := make([]ServiceDTO, len(services))
	for i, svc := range services {
		dtos[i] = toServiceDTO(svc)
	}
	return dtos, nil
}

// UpdateService redefines a service. Services already referenced by a
// booking are frozen so stored selections keep resolving.
func (s *CatalogService) UpdateService(ctx context.Context, id uuid.UUID, req ServiceRequest) (*ServiceDTO, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	inUse, err := s.bookings.ExistsByServiceID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, apperror.NewConflictError("service is referenced by bookings; deactivate it and create a new one")
	}

	groups, extras := req.definition()
	if err := svc.Redefine(req.Name, req.Description, req.BasePrice, req.BaseDuration, groups, extras); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}

	result := toServiceDTO(svc)
	return &result, nil
}

// DeactivateService stops a service from being used for new bookings and
// previews. Existing bookings are unaffected.
func (s *CatalogService) DeactivateService(ctx context.Context, id uuid.UUID) (*ServiceDTO, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		result := toServiceDTO(svc)
		return &result, nil
	}

	svc.Deactivate()
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}

	s.logger.Info("service deactivated", zap.String("service_id", id.String()))

	result := toServiceDTO(svc)
	return &result, nil
}
