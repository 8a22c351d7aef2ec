package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/ai/gemini"
	"github.com/spigell/interview-guard/internal/biometric"
	"github.com/spigell/interview-guard/internal/monitor"
	"github.com/spigell/interview-guard/internal/notify"
	"github.com/spigell/interview-guard/internal/secrets"
	"github.com/spigell/interview-guard/internal/store"
)

// closers collects resources to release on exit, in reverse order.
type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i].Close())
	}
	return errors.Join(errs...)
}

func newBiometric(cfg *BiometricConfig, logger *zap.Logger) (*biometric.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("biometric.url is required")
	}

	apiKey, err := secrets.Optional(secrets.Source{
		Name:  "biometric api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "BIOMETRIC_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	return biometric.New(logger.With(zap.String("component", "biometric")), biometric.Config{
		URL:          cfg.URL,
		APIKey:       apiKey,
		FaceTimeout:  cfg.FaceTimeout,
		VoiceTimeout: cfg.VoiceTimeout,
	}), nil
}

// newStores builds the application and enrollment stores. Backends that need
// a client share one.
func newStores(cfg *Config) (store.ApplicationStore, store.EnrollmentStore, error) {
	sc := cfg.Store
	if sc == nil {
		sc = &StoreConfig{}
	}

	appDriver := store.Driver(strings.ToLower(strings.TrimSpace(sc.Driver)))
	enrollDriver := store.Driver(strings.ToLower(strings.TrimSpace(sc.EnrollmentDriver)))

	opts := []store.Option{store.WithEnrollments(cfg.Enrollments)}

	if appDriver == store.DriverRedis {
		client, err := newRedisClient(sc.Redis)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, store.WithRedisClient(client), store.WithRedisTTL(sc.Redis.TTL), store.WithRedisPrefix(sc.Redis.Prefix))
	}

	if appDriver == store.DriverSupabase || enrollDriver == store.DriverSupabase {
		client, err := newSupabaseClient(sc.Supabase)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, store.WithSupabaseClient(client))
	}

	applications, err := store.NewApplicationStore(appDriver, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("application store: %w", err)
	}

	enrollments, err := store.NewEnrollmentStore(enrollDriver, opts...)
	if err != nil {
		applications.Close()
		return nil, nil, fmt.Errorf("enrollment store: %w", err)
	}

	return applications, enrollments, nil
}

func newRedisClient(cfg *RedisConfig) (*redis.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("%w: store.redis.addr is required", store.ErrInvalidConfig)
	}

	password, err := secrets.Optional(secrets.Source{
		Name:  "redis password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
		Env:   "REDIS_PASSWORD",
	})
	if err != nil {
		return nil, err
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: password,
		DB:       cfg.DB,
	}), nil
}

func newSupabaseClient(cfg *SupabaseConfig) (*supabase.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: store.supabase.url is required", store.ErrInvalidConfig)
	}

	key, err := secrets.Load(secrets.Source{
		Name: "supabase key",
		File: cfg.KeyFile,
		Env:  "SUPABASE_KEY",
	})
	if err != nil {
		return nil, err
	}

	client, err := supabase.NewClient(cfg.URL, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// newNotifier returns the configured sinks as one. The returned closers
// belong to sinks holding connections.
func newNotifier(cfg *NotifyConfig, logger *zap.Logger) (notify.Sink, closers, error) {
	var (
		sinks   notify.Fanout
		toClose closers
	)

	if cfg == nil || cfg.Log {
		sinks = append(sinks, notify.NewLogSink(logger.With(zap.String("component", "notify"))))
	}

	if cfg != nil && cfg.Kafka != nil {
		sink, err := notify.NewKafkaSink(*cfg.Kafka, logger.With(zap.String("component", "kafka")))
		if err != nil {
			return nil, nil, fmt.Errorf("kafka sink: %w", err)
		}
		sinks = append(sinks, sink)
		toClose = append(toClose, sink)
	}

	if len(sinks) == 0 {
		return nil, toClose, nil
	}
	return sinks, toClose, nil
}

func newReviewer(ctx context.Context, cfg *ReviewerConfig, logger *zap.Logger) (monitor.Reviewer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported reviewer provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("reviewer.gemini is required when the reviewer is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set reviewer.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, logger)
	if err != nil {
		return nil, err
	}

	return gemini.NewReviewer(generator, logger, cfg.Gemini.MaxLogLength), nil
}
