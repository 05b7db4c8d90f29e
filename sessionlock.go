package sessionlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sessionlock/internal/config"
	"github.com/aretw0/sessionlock/internal/logging"
	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/adapters/mongo"
	"github.com/aretw0/sessionlock/pkg/adapters/redis"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/observability"
	"github.com/aretw0/sessionlock/pkg/persistence/middleware"
	"github.com/aretw0/sessionlock/pkg/ports"
	"github.com/aretw0/sessionlock/pkg/session"
)

// Config is the runtime configuration accepted by Open.
type Config = config.Config

// DefaultConfig returns an in-memory configuration with default timeouts.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML config file (optional) and SESSIONLOCK_* overrides.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// connectTimeout bounds the initial connectivity check.
const connectTimeout = 10 * time.Second

// Service is a composed session store and the resources it owns.
type Service struct {
	Store      *session.Store
	Collection ports.Collection
	Config     Config

	logger *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     *observability.Metrics
	middlewares []middleware.Middleware
	collection  ports.Collection
	tracing     []observability.TraceOption
	traced      bool
}

// WithLogger sets the logger used by the store and the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics instruments the collection and records protocol outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMiddleware adds a collection middleware, applied inside encryption.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mw)
	}
}

// WithTracing wraps the collection in OpenTelemetry spans. Without options
// the global tracer provider is used.
func WithTracing(opts ...observability.TraceOption) Option {
	return func(o *options) {
		o.traced = true
		o.tracing = append(o.tracing, opts...)
	}
}

// WithCollection bypasses backend selection and uses coll directly.
func WithCollection(coll ports.Collection) Option {
	return func(o *options) {
		o.collection = coll
	}
}

// Open builds the backend named by cfg, verifies connectivity, applies the
// configured middlewares and returns a ready Store.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	coll := o.collection
	if coll == nil {
		var err error
		coll, err = openBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	mws := []middleware.Middleware{}
	if cfg.Encryption.Enabled() {
		active, fallback, err := cfg.Encryption.Keys()
		if err != nil {
			coll.Close()
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	mws = append(mws, o.middlewares...)
	coll = middleware.Chain(coll, mws...)
	coll = observability.InstrumentCollection(coll, o.metrics)
	if o.traced {
		coll = observability.TraceCollection(coll, o.tracing...)
	}

	store := session.NewStore(coll,
		session.WithLogger(o.logger),
		session.WithMetrics(o.metrics),
		session.WithDefaultTimeout(cfg.DefaultTimeoutMinutes),
	)

	o.logger.Info("Session store ready", "backend", cfg.Backend, "encrypted", cfg.Encryption.Enabled(), "traced", o.traced)

	return &Service{
		Store:      store,
		Collection: coll,
		Config:     cfg,
		logger:     o.logger,
	}, nil
}

func openBackend(ctx context.Context, cfg Config) (ports.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewCollection(), nil

	case config.BackendRedis:
		var rOpts []redis.Option
		if cfg.Redis.Prefix != "" {
			rOpts = append(rOpts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		coll := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, rOpts...)
		if err := coll.Ping(ctx); err != nil {
			coll.Close()
			return nil, domain.Unavailable("connect", fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err))
		}
		return coll, nil

	case config.BackendMongo:
		coll, err := mongo.Connect(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, domain.Unavailable("connect", err)
		}
		if err := coll.Ping(ctx); err != nil {
			coll.Close()
			return nil, domain.Unavailable("connect", fmt.Errorf("mongo: %w", err))
		}
		return coll, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewSweeper returns a sweeper over the service's store using the configured interval.
func (s *Service) NewSweeper() *session.Sweeper {
	return session.NewSweeper(s.Store, s.Config.SweepInterval, s.logger)
}

// Close releases the backend connection.
func (s *Service) Close() error {
	return s.Collection.Close()
}
