package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	catalogDomain "github.com/sweepstar/service-booking/internal/domain/catalog"
)

const (
	catalogKeyPrefix = "booking:catalog:service:"
	catalogGenPrefix = "booking:catalog:gen:"
)

// CachedServiceRepository is a read-through Redis cache in front of a
// ServiceRepository. Cache failures are logged and fall back to the store.
//
// Every write bumps a per-service generation counter before dropping the
// entry. A reader only fills the cache if the generation it saw before
// loading is still current, so a load that raced a write is never cached.
type CachedServiceRepository struct {
	next   catalogDomain.ServiceRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedServiceRepository(next catalogDomain.ServiceRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedServiceRepository {
	return &CachedServiceRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func catalogKey(id uuid.UUID) string {
	return catalogKeyPrefix + id.String()
}

func catalogGenKey(id uuid.UUID) string {
	return catalogGenPrefix + id.String()
}

// FindByID serves the service from Redis when present, otherwise loads and
// caches it.
func (r *CachedServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogDomain.Service, error) {
	key := catalogKey(id)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var svc catalogDomain.Service
		if jsonErr := json.Unmarshal(raw, &svc); jsonErr == nil {
			return &svc, nil
		}
		r.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	gen, genErr := r.generation(ctx, r.client, id)

	svc, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		r.fill(ctx, id, gen, svc)
	}
	return svc, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *CachedServiceRepository) generation(ctx context.Context, c stringGetter, id uuid.UUID) (int64, error) {
	gen, err := c.Get(ctx, catalogGenKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches svc unless a write bumped the generation since gen was read.
func (r *CachedServiceRepository) fill(ctx context.Context, id uuid.UUID, gen int64, svc *catalogDomain.Service) {
	payload, err := json.Marshal(svc)
	if err != nil {
		return
	}
	key := catalogKey(id)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.generation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}, catalogGenKey(id))
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		r.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachedServiceRepository) List(ctx context.Context, activeOnly bool) ([]*catalogDomain.Service, error) {
	return r.next.List(ctx, activeOnly)
}

func (r *CachedServiceRepository) Save(ctx context.Context, svc *catalogDomain.Service) error {
	return r.next.Save(ctx, svc)
}

func (r *CachedServiceRepository) Update(ctx context.Context, svc *catalogDomain.Service) error {
	if err := r.next.Update(ctx, svc); err != nil {
		return err
	}
	r.invalidate(ctx, svc.ID)
	return nil
}

func (r *CachedServiceRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := r.next.SetActive(ctx, id, active); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedServiceRepository) invalidate(ctx context.Context, id uuid.UUID) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, catalogGenKey(id))
		pipe.Del(ctx, catalogKey(id))
		return nil
	})
	if err != nil {
		r.logger.Warn("catalog cache invalidation failed", zap.String("service_id", id.String()), zap.Error(err))
	}
}
