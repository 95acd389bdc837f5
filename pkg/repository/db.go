package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DefaultDatabase is used when neither the configuration nor the URI names a database.
const DefaultDatabase = "identity"

// Collection is the subset of *mongo.Collection the repositories use.
type Collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// Database gives access to named collections and their indexes.
type Database interface {
	Collection(name string) Collection
	CreateIndex(ctx context.Context, collection string, model mongo.IndexModel) (string, error)
	Ping(ctx context.Context) error
}

// Config holds MongoDB connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// DatabaseName returns the configured database, falling back to the one in the URI.
func (c Config) DatabaseName() (string, error) {
	if c.Database != "" {
		return c.Database, nil
	}
	cs, err := connstring.ParseAndValidate(c.URI)
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	return DefaultDatabase, nil
}

// Client is a connected MongoDB client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongoDatabase
}

// Connect opens a client using the codec registry owned by models and pings the primary.
// Models for every key kind in use must be registered before Connect.
func Connect(ctx context.Context, cfg Config, models *Models) (*Client, error) {
	name, err := cfg.DatabaseName()
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetRegistry(models.Registry()).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Client{
		client: client,
		db:     &mongoDatabase{db: client.Database(name)},
	}, nil
}

// Database returns the bound database.
func (c *Client) Database() Database {
	return c.db
}

// Name returns the bound database name.
func (c *Client) Name() string {
	return c.db.db.Name()
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Collection(name string) Collection {
	return d.db.Collection(name)
}

func (d *mongoDatabase) CreateIndex(ctx context.Context, collection string, model mongo.IndexModel) (string, error) {
	return d.db.Collection(collection).Indexes().CreateOne(ctx, model)
}

func (d *mongoDatabase) Ping(ctx context.Context) error {
	return d.db.Client().Ping(ctx, readpref.Primary())
}

// IsDuplicate reports whether err is a unique index violation.
func IsDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// WriteResult summarizes a replace or delete.
type WriteResult struct {
	Acknowledged bool
	// Count is the number of documents modified or deleted.
	Count int64
}

func replaceResult(res *mongo.UpdateResult, err error) (WriteResult, error) {
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return WriteResult{}, nil
	}
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Acknowledged: true, Count: res.ModifiedCount}, nil
}

func deleteResult(res *mongo.DeleteResult, err error) (WriteResult, error) {
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return WriteResult{}, nil
	}
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Acknowledged: true, Count: res.DeletedCount}, nil
}
