package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ServiceRepository defines the persistence contract for catalog services.
type ServiceRepository interface {
	// FindByID retrieves a service with its option groups and extras.
	FindByID(ctx context.Context, id uuid.UUID) (*Service, error)

	// List returns services ordered by name, optionally only active ones.
	List(ctx context.Context, activeOnly bool) ([]*Service, error)

	// Save persists a new service and its nested definitions.
	Save(ctx context.Context, service *Service) error

	// Update replaces the stored definition of an existing service.
	Update(ctx context.Context, service *Service) error

	// SetActive toggles whether the service can be used for new bookings.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
