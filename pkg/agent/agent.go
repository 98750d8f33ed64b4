// Package agent is the entry point of the Forest Admin agent: it
// introspects the application's GORM models, publishes the apimap and
// mounts the chart routes on a Fiber application.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"gorm-forestadmin/internal/auth"
	"gorm-forestadmin/internal/config"
	"gorm-forestadmin/internal/engine"
	"gorm-forestadmin/internal/forestapi"
	"gorm-forestadmin/internal/instrument"
	"gorm-forestadmin/internal/introspect"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/permission"
	"gorm-forestadmin/internal/schema"
	"gorm-forestadmin/internal/store"
)

// Types a host application needs to configure and extend the agent.
type (
	Config           = config.ForestConfig
	DatabaseConfig   = config.DatabaseConfig
	Database         = store.Store
	User             = metadata.UserContext
	ChartRequest     = engine.ChartRequest
	Authorizer       = engine.Authorizer
	ApimapPoster     = schema.ApimapPoster
	Metrics          = instrument.Metrics
	SmartAction      = metadata.SmartAction
	SmartActionField = metadata.SmartActionField
	SmartSegment     = metadata.SmartSegment
)

// FromDB wraps a connection the host application already opened, such as
// the one returned by (*gorm.DB).DB(). driver is "postgres" or "sqlite".
func FromDB(db *sql.DB, driver string) *Database {
	return store.FromDB(db, driver)
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg DatabaseConfig) (*Database, error) {
	return store.New(ctx, cfg)
}

// NewMetrics returns collectors on a fresh Prometheus registry.
func NewMetrics() *Metrics {
	return instrument.NewMetrics()
}

var ErrUnknownCollection = errors.New("unknown collection")

// Agent serves one Forest Admin environment.
type Agent struct {
	cfg        config.ForestConfig
	logger     *zap.Logger
	store      *store.Store
	registry   *metadata.Registry
	generator  *schema.Generator
	schema     *schema.Introspection
	authorizer engine.Authorizer
	metrics    *instrument.Metrics
}

// Option customizes an Agent.
type Option func(*options)

type options struct {
	authorizer Authorizer
	poster     ApimapPoster
	metrics    *Metrics
}

// WithAuthorizer replaces the Forest permission service.
func WithAuthorizer(a Authorizer) Option {
	return func(o *options) { o.authorizer = a }
}

// WithApimapPoster replaces the Forest API client used to publish the apimap.
func WithApimapPoster(p ApimapPoster) Option {
	return func(o *options) { o.poster = p }
}

// WithMetrics records on m instead of a fresh registry.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New introspects models and writes the schema file. s is the database
// the models live in.
func New(cfg Config, logger *zap.Logger, s *Database, models []any, opts ...Option) (*Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(models) == 0 {
		return nil, errors.New("forest agent: no models to expose")
	}

	collections, err := introspect.New(cfg.TablePrefix, logger).Collections(models...)
	if err != nil {
		return nil, fmt.Errorf("forest agent: %w", err)
	}
	reg := metadata.NewRegistry()
	reg.Load(collections)

	client := forestapi.NewClient(cfg.ServerURL, cfg.EnvSecret, nil)
	o := options{poster: client}
	for _, opt := range opts {
		opt(&o)
	}
	if o.authorizer == nil {
		o.authorizer = permission.NewService(client, time.Duration(cfg.PermissionExpiration)*time.Second, logger)
	}
	if o.metrics == nil {
		o.metrics = instrument.NewMetrics()
	}

	gen := schema.NewGenerator(reg, s.Dialect.Name(), introspect.ORMVersion(), cfg.SchemaFile, o.poster, logger)
	apimap, err := gen.Generate()
	if err != nil {
		return nil, fmt.Errorf("forest agent: generate apimap: %w", err)
	}
	sch := schema.NewIntrospectionFrom(apimap)
	if cfg.SchemaFile != "" {
		sch = schema.NewIntrospection(cfg.SchemaFile)
	}

	logger.Info("forest agent ready",
		zap.Int("collections", len(collections)), zap.String("database", s.Dialect.Name()))
	return &Agent{
		cfg:        cfg,
		logger:     logger,
		store:      s,
		registry:   reg,
		generator:  gen,
		schema:     sch,
		authorizer: o.authorizer,
		metrics:    o.metrics,
	}, nil
}

// Mount registers the agent routes and GET /metrics on app. Request
// metrics cover every route registered after Mount.
func (a *Agent) Mount(app fiber.Router) {
	app.Use(a.metrics.Middleware())
	app.Get("/metrics", a.metrics.Handler())

	h := engine.NewHandler(a.store, a.registry, a.schema, a.authorizer, a.metrics, a.logger)
	engine.RegisterRoutes(app, h, auth.Middleware(a.cfg.AuthSecret, a.logger))
}

// SendApimap regenerates the schema file and publishes it to Forest Admin.
func (a *Agent) SendApimap(ctx context.Context) error {
	err := a.generator.SendApimap(ctx)
	if err != nil {
		a.metrics.ApimapSent(instrument.OutcomeError)
		return err
	}
	a.metrics.ApimapSent(instrument.OutcomeOK)
	if a.cfg.SchemaFile != "" {
		return a.schema.Reload()
	}
	return nil
}

// AddSmartAction declares an action on a collection. It is published with
// the next apimap.
func (a *Agent) AddSmartAction(collection string, action SmartAction) error {
	if action.Type == "" {
		action.Type = "bulk"
	}
	if action.HTTPMethod == "" {
		action.HTTPMethod = fiber.MethodPost
	}
	if action.Endpoint == "" {
		action.Endpoint = "/forest/actions/" + slug.Make(action.Name)
	}
	if !a.registry.AddAction(collection, action) {
		return fmt.Errorf("add smart action %q: %w %s", action.Name, ErrUnknownCollection, collection)
	}
	return nil
}

// AddSmartSegment declares a segment on a collection.
func (a *Agent) AddSmartSegment(collection string, segment SmartSegment) error {
	if !a.registry.AddSegment(collection, segment) {
		return fmt.Errorf("add smart segment %q: %w %s", segment.Name, ErrUnknownCollection, collection)
	}
	return nil
}

// Registry exposes the introspected collections.
func (a *Agent) Registry() *metadata.Registry {
	return a.registry
}

// Metrics returns the collectors the agent records on.
func (a *Agent) Metrics() *Metrics {
	return a.metrics
}
