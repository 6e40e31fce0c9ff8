// Package redis persists risk limit and alert configuration as JSON values
// keyed per user and broker. A circuit breaker wraps writes so a Redis
// outage degrades the engine to in-memory-only configuration instead of
// failing requests.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"risk-systemv1/internal/model"
)

const (
	limitsKeyPrefix   = "risk:limits:"   // risk:limits:<user>:<broker>
	alertCfgKeyPrefix = "risk:alertcfg:" // risk:alertcfg:<user>
)

// Config configures the Redis store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is the Redis-backed configuration store.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// SetBreakerHook registers fn to receive the breaker state as an int
// (0=closed, 1=open, 2=half-open) on every transition. Set before first use.
func (s *Store) SetBreakerHook(fn func(state int)) {
	s.cb.OnStateChange = func(_, to breakerState) {
		fn(int(to))
	}
}

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{
		client: client,
		cb:     NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// SaveLimits upserts a user's risk limits.
func (s *Store) SaveLimits(ctx context.Context, limits model.RiskLimits) error {
	data, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("redis marshal limits: %w", err)
	}
	key := limitsKeyPrefix + limits.UserID + ":" + limits.BrokerID
	return s.cb.Execute(func() error {
		return s.client.Set(ctx, key, data, 0).Err()
	})
}

// LoadAllLimits returns every persisted limit configuration.
func (s *Store) LoadAllLimits(ctx context.Context) ([]model.RiskLimits, error) {
	var out []model.RiskLimits
	iter := s.client.Scan(ctx, 0, limitsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue
			}
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}
		var l model.RiskLimits
		if err := json.Unmarshal(data, &l); err != nil {
			log.Printf("[redis] corrupt limits at %s, skipping: %v", iter.Val(), err)
			continue
		}
		out = append(out, l)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

// SaveAlertConfig upserts a user's alert configuration.
func (s *Store) SaveAlertConfig(ctx context.Context, cfg model.AlertConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("redis marshal alert config: %w", err)
	}
	return s.cb.Execute(func() error {
		return s.client.Set(ctx, alertCfgKeyPrefix+cfg.UserID, data, 0).Err()
	})
}

// LoadAllAlertConfigs returns every persisted alert configuration.
func (s *Store) LoadAllAlertConfigs(ctx context.Context) ([]model.AlertConfig, error) {
	var out []model.AlertConfig
	iter := s.client.Scan(ctx, 0, alertCfgKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == goredis.Nil {
				continue
			}
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}
		var cfg model.AlertConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			log.Printf("[redis] corrupt alert config at %s, skipping: %v", iter.Val(), err)
			continue
		}
		out = append(out, cfg)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
