package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"

	"github.com/spigell/interview-guard/internal/integrity"
)

// Common store errors.
var (
	ErrInvalidConfig = errors.New("invalid store configuration")
	ErrInvalidDriver = errors.New("invalid store driver")
	ErrNotEnrolled   = errors.New("candidate is not enrolled")
)

// ApplicationStore persists the monitoring record of a job application.
type ApplicationStore interface {
	// LoadMonitoringState returns the stored record, or nil when there is none.
	LoadMonitoringState(ctx context.Context, userID, jobID string) (*integrity.Record, error)

	// SaveMonitoringState replaces the stored record. Last write wins.
	SaveMonitoringState(ctx context.Context, userID, jobID string, rec integrity.Record) error

	// Close releases any resources.
	Close() error
}

// EnrollmentStore resolves the reference biometrics of a candidate.
type EnrollmentStore interface {
	// GetReferenceFace returns the enrolled image handle or ErrNotEnrolled.
	GetReferenceFace(ctx context.Context, userID string) (string, error)

	// GetReferenceVoice returns the enrolled audio handle, or "" when the
	// candidate enrolled no voice sample.
	GetReferenceVoice(ctx context.Context, userID string) (string, error)
}

// Driver selects a storage backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverSupabase Driver = "supabase"
	DriverStatic   Driver = "static"
)

// Option configures a store.
type Option func(*options)

type options struct {
	redisClient    *redis.Client
	redisTTL       time.Duration
	redisPrefix    string
	supabaseClient *supabase.Client
	enrollments    map[string]Enrollment
}

// WithRedisClient sets the Redis client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		o.redisClient = client
	}
}

// WithRedisTTL sets the TTL of monitoring records in Redis.
func WithRedisTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.redisTTL = ttl
	}
}

// WithRedisPrefix sets the key prefix of monitoring records in Redis.
func WithRedisPrefix(prefix string) Option {
	return func(o *options) {
		o.redisPrefix = prefix
	}
}

// WithSupabaseClient sets the Supabase client for the supabase drivers.
func WithSupabaseClient(client *supabase.Client) Option {
	return func(o *options) {
		o.supabaseClient = client
	}
}

// WithEnrollments sets the fixed enrollments for the static driver.
func WithEnrollments(enrollments map[string]Enrollment) Option {
	return func(o *options) {
		o.enrollments = enrollments
	}
}

// NewApplicationStore creates an ApplicationStore for the driver.
func NewApplicationStore(driver Driver, opts ...Option) (ApplicationStore, error) {
	cfg := apply(opts)

	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisPrefix, cfg.redisTTL), nil
	case DriverSupabase:
		if cfg.supabaseClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewSupabaseStore(cfg.supabaseClient), nil
	default:
		return nil, ErrInvalidDriver
	}
}

// NewEnrollmentStore creates an EnrollmentStore for the driver.
func NewEnrollmentStore(driver Driver, opts ...Option) (EnrollmentStore, error) {
	cfg := apply(opts)

	switch driver {
	case DriverStatic, "":
		return NewStaticEnrollments(cfg.enrollments), nil
	case DriverSupabase:
		if cfg.supabaseClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewSupabaseEnrollments(cfg.supabaseClient), nil
	default:
		return nil, ErrInvalidDriver
	}
}

func apply(opts []Option) *options {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
