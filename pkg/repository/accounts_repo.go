package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// AccountsRepository handles account persistence.
type AccountsRepository[K comparable] struct {
	coll      Collection
	collation *options.Collation
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository[K comparable](db Database, locale string) *AccountsRepository[K] {
	return &AccountsRepository[K]{
		coll:      db.Collection(AccountsCollection),
		collation: CaseInsensitiveCollation(locale),
	}
}

// Create inserts an account. Duplicate user names or emails fail on the unique indexes.
func (r *AccountsRepository[K]) Create(ctx context.Context, a *domain.Account[K]) error {
	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// ReplaceIfStamp replaces the account only if the stored concurrency stamp equals stamp.
func (r *AccountsRepository[K]) ReplaceIfStamp(ctx context.Context, a *domain.Account[K], stamp string) (WriteResult, error) {
	filter := bson.D{
		{Key: "_id", Value: a.ID},
		{Key: "ConcurrencyStamp", Value: stamp},
	}
	res, err := replaceResult(r.coll.ReplaceOne(ctx, filter, a))
	if err != nil {
		return res, fmt.Errorf("failed to replace account: %w", err)
	}
	return res, nil
}

// Delete removes the account document only.
func (r *AccountsRepository[K]) Delete(ctx context.Context, id K) (WriteResult, error) {
	res, err := deleteResult(r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		return res, fmt.Errorf("failed to delete account: %w", err)
	}
	return res, nil
}

// GetByID retrieves an account by ID.
func (r *AccountsRepository[K]) GetByID(ctx context.Context, id K) (*domain.Account[K], error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByNormalizedUserName retrieves an account by normalized user name, ignoring case.
func (r *AccountsRepository[K]) GetByNormalizedUserName(ctx context.Context, name string) (*domain.Account[K], error) {
	return r.findOne(ctx, bson.D{{Key: "NormalizedUserName", Value: name}}, options.FindOne().SetCollation(r.collation))
}

// GetByNormalizedEmail retrieves an account by normalized email, ignoring case.
func (r *AccountsRepository[K]) GetByNormalizedEmail(ctx context.Context, email string) (*domain.Account[K], error) {
	return r.findOne(ctx, bson.D{{Key: "NormalizedEmail", Value: email}}, options.FindOne().SetCollation(r.collation))
}

// ListByIDs retrieves the accounts with the given IDs. Missing IDs are skipped.
func (r *AccountsRepository[K]) ListByIDs(ctx context.Context, ids []K) ([]*domain.Account[K], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// List returns a page of accounts ordered by ID. A limit of 0 means no limit.
func (r *AccountsRepository[K]) List(ctx context.Context, skip, limit int64) ([]*domain.Account[K], error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	return r.find(ctx, bson.D{}, opts)
}

// Count returns the number of accounts.
func (r *AccountsRepository[K]) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func (r *AccountsRepository[K]) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (*domain.Account[K], error) {
	a := &domain.Account[K]{}
	err := r.coll.FindOne(ctx, filter, opts...).Decode(a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (r *AccountsRepository[K]) find(ctx context.Context, filter bson.D, opts ...*options.FindOptions) ([]*domain.Account[K], error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	var accounts []*domain.Account[K]
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}
