// Package idm wires a MongoDB-backed identity store: it registers the entity
// models for a key kind, connects, ensures the schema indexes and builds the
// role and account stores.
//
// Basic usage:
//
//	ids, err := idm.Open(ctx, keys.ObjectID, idm.Config{
//	    Mongo: repository.Config{URI: "mongodb://localhost:27017/identity"},
//	})
//	if err != nil {
//	    log.Fatal(err) // index creation failures are fatal
//	}
//	defer ids.Close(context.Background())
//
//	a := domain.NewAccount(keys.ObjectID, "alice")
//	res, err := ids.Accounts.Create(ctx, a)
//
// Serving health and metrics:
//
//	http.ListenAndServe(":9090", ids.OpsRouter(prometheus.DefaultGatherer, 120))
package idm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	httpserver "github.com/tendant/simple-idm-mongo/internal/http"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/mongostore"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

// Config holds the configuration for the identity store.
type Config struct {
	// Mongo holds connection settings. Only Open uses it.
	Mongo repository.Config

	// Locale selects the case-insensitive collation (default: "en").
	Locale string

	// RequireUniqueEmail makes the email indexes unique.
	RequireUniqueEmail bool

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger

	// Observer receives one observation per store operation (optional).
	Observer store.Observer

	// Tracer traces store operations (default: the global tracer provider).
	Tracer trace.Tracer
}

// SchemaObserver is implemented by observers that also record schema
// initialization.
type SchemaObserver interface {
	SetSchemaIndexes(n int)
}

// IDM is an initialized identity store for key kind K.
type IDM[K comparable] struct {
	Roles    *mongostore.RoleStore[K]
	Accounts *mongostore.AccountStore[K]

	config Config
	db     repository.Database
	models *repository.Models
	client *repository.Client
}

// Open connects to MongoDB and initializes the store. Models are
// registered before connecting so the client encodes keys of kind K.
func Open[K comparable](ctx context.Context, kind keys.Kind[K], cfg Config) (*IDM[K], error) {
	if cfg.Mongo.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	applyDefaults(&cfg)

	models := repository.NewModels()
	repository.RegisterModels(models, kind)

	client, err := repository.Connect(ctx, cfg.Mongo, models)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("connected to mongodb", "database", client.Name())

	ids, err := New(ctx, client.Database(), models, kind, cfg)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, err
	}
	ids.client = client
	return ids, nil
}

// New initializes the store over an existing database handle. The kind
// is registered in models if it is not already. The schema initializer runs
// to completion before New returns. Its failure is fatal and returned.
func New[K comparable](ctx context.Context, db repository.Database, models *repository.Models, kind keys.Kind[K], cfg Config) (*IDM[K], error) {
	applyDefaults(&cfg)
	if !repository.IsRegistered(models, kind) {
		repository.RegisterModels(models, kind)
	}

	si, err := repository.NewSchemaInitializer(db, repository.SchemaOptions{
		Locale:             cfg.Locale,
		RequireUniqueEmail: cfg.RequireUniqueEmail,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := si.Run(ctx); err != nil {
		return nil, fmt.Errorf("schema initialization failed: %w", err)
	}
	if so, ok := cfg.Observer.(SchemaObserver); ok {
		so.SetSchemaIndexes(len(repository.IndexSpecs(cfg.RequireUniqueEmail)))
	}

	set, err := repository.NewSet(db, models, kind, cfg.Locale)
	if err != nil {
		return nil, err
	}

	opts := mongostore.Options{
		Logger:   cfg.Logger,
		Observer: cfg.Observer,
		Tracer:   cfg.Tracer,
	}
	roles := mongostore.NewRoleStore(set, opts)
	return &IDM[K]{
		Roles:    roles,
		Accounts: mongostore.NewAccountStore(set, roles, opts),
		config:   cfg,
		db:       db,
		models:   models,
	}, nil
}

// OpsRouter returns the health, metrics and schema router. A nil gatherer
// omits /metrics. rateLimit is requests per minute per client, 0 disables.
func (i *IDM[K]) OpsRouter(gatherer prometheus.Gatherer, rateLimit int) http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:    i.config.Logger,
		DB:        i.db,
		Gatherer:  gatherer,
		Models:    i.models,
		RateLimit: rateLimit,
	})
}

// Close disposes both stores and disconnects the client opened by Open.
func (i *IDM[K]) Close(ctx context.Context) error {
	_ = i.Roles.Close()
	_ = i.Accounts.Close()
	if i.client == nil {
		return nil
	}
	if err := i.client.Close(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Locale == "" {
		cfg.Locale = repository.DefaultLocale
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = store.NopObserver{}
	}
}
