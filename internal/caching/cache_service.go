package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dinemart/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService memoizes derived billing data in Redis. Only closed-month
// aggregates are cached; callers decide eligibility.
type CacheService interface {
	GetPeriodAggregate(ctx context.Context, tenantID uuid.UUID, month string) (*models.PeriodAggregate, error)
	SetPeriodAggregate(ctx context.Context, tenantID uuid.UUID, month string, agg models.PeriodAggregate, ttl time.Duration) error

	// Generic JSON operations, used by the reporting view.
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port URLs as well as bare host:port.
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).WithField("addr", parsedAddr).Warn("redis ping failed on initialization")
	}

	return &redisCacheService{client: client}
}

// NewRedisCacheServiceFromClient wraps an existing client, letting callers
// share one connection pool with health checks.
func NewRedisCacheServiceFromClient(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func aggregateKey(tenantID uuid.UUID, month string) string {
	return fmt.Sprintf("billing:aggregate:%s:%s", tenantID, month)
}

func (s *redisCacheService) GetPeriodAggregate(ctx context.Context, tenantID uuid.UUID, month string) (*models.PeriodAggregate, error) {
	data, err := s.client.Get(ctx, aggregateKey(tenantID, month)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	agg := &models.PeriodAggregate{}
	if err := json.Unmarshal(data, agg); err != nil {
		return nil, fmt.Errorf("corrupt cached aggregate: %w", err)
	}
	return agg, nil
}

func (s *redisCacheService) SetPeriodAggregate(ctx context.Context, tenantID uuid.UUID, month string, agg models.PeriodAggregate, ttl time.Duration) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, aggregateKey(tenantID, month), data, ttl).Err()
}

func (s *redisCacheService) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("corrupt cached value at %s: %w", key, err)
	}
	return true, nil
}

func (s *redisCacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *redisCacheService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
