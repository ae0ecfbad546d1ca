package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"noshow-prediction-api/config"
	"noshow-prediction-api/metrics"
	"noshow-prediction-api/pipeline"
)

const breakerName = "redis"

// CacheService is the optional Redis layer. A zero CacheService (Redis
// disabled or unreachable) turns every call into a no-op, so callers never
// have to check Available first.
type CacheService struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
	ttl    time.Duration
}

// NewCacheService connects when cfg.Enabled is set. On failure it still
// returns a usable, disabled service alongside the error.
func NewCacheService(ctx context.Context, cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return &CacheService{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	const attempts = 5
	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return newCacheService(client, cfg.ResultTTL), nil
		}
		log.Warn().Err(lastErr).Int("attempt", i+1).Int("of", attempts).Msg("redis ping failed")

		select {
		case <-ctx.Done():
			_ = client.Close()
			return &CacheService{}, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	_ = client.Close()
	return &CacheService{}, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

func newCacheService(client *redis.Client, ttl time.Duration) *CacheService {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &CacheService{client: client, cb: cb, ttl: ttl}
}

func (s *CacheService) Available() bool {
	return s.client != nil
}

// Get decodes the value stored at key into dest. It reports false without an
// error on a miss or when Redis is disabled.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	val, err := s.cb.Execute(func() ([]byte, error) {
		return s.client.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. A zero ttl uses the configured result TTL.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	if ttl == 0 {
		ttl = s.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.cb.Execute(func() ([]byte, error) {
		return nil, s.client.Set(ctx, key, data, ttl).Err()
	})
	return err
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() ([]byte, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	return err
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	_, err = s.cb.Execute(func() ([]byte, error) {
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	return err
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if s.client == nil {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// CacheKey identifies a prediction response by the window, the clinic
// selection, the loaded dataset, the model and the encoder. Selector order
// does not change the result, so it does not change the key.
func CacheKey(w pipeline.Window, fingerprint, modelVersion, encoder string) string {
	clinics := append([]string(nil), w.Clinics...)
	sort.Strings(clinics)

	h := xxhash.New()
	for _, part := range []string{
		w.Start.Format(pipeline.TimestampLayout),
		w.End.Format(pipeline.TimestampLayout),
		strings.Join(clinics, "\x1f"),
		fingerprint,
		modelVersion,
		encoder,
	} {
		_, _ = h.WriteString(part)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("noshow:result:%016x", h.Sum64())
}
