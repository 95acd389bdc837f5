package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// AccountTokensRepository handles named token persistence.
type AccountTokensRepository[K comparable] struct {
	coll Collection
}

// NewAccountTokensRepository creates a new account tokens repository.
func NewAccountTokensRepository[K comparable](db Database) *AccountTokensRepository[K] {
	return &AccountTokensRepository[K]{coll: db.Collection(AccountTokensCollection)}
}

func tokenFilter[K comparable](accountID K, provider, name string) bson.D {
	return bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "LoginProvider", Value: provider},
		{Key: "Name", Value: name},
	}
}

// Get retrieves the token of an account for provider and name.
func (r *AccountTokensRepository[K]) Get(ctx context.Context, accountID K, provider, name string) (*domain.AccountToken[K], error) {
	t := &domain.AccountToken[K]{}
	err := r.coll.FindOne(ctx, tokenFilter(accountID, provider, name)).Decode(t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account token: %w", err)
	}
	return t, nil
}

// Create inserts a token.
func (r *AccountTokensRepository[K]) Create(ctx context.Context, t *domain.AccountToken[K]) error {
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert account token: %w", err)
	}
	return nil
}

// Replace overwrites a token by its surrogate ID.
func (r *AccountTokensRepository[K]) Replace(ctx context.Context, t *domain.AccountToken[K]) (WriteResult, error) {
	res, err := replaceResult(r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, t))
	if err != nil {
		return res, fmt.Errorf("failed to replace account token: %w", err)
	}
	return res, nil
}

// Delete removes the token of an account for provider and name.
func (r *AccountTokensRepository[K]) Delete(ctx context.Context, accountID K, provider, name string) (WriteResult, error) {
	res, err := deleteResult(r.coll.DeleteOne(ctx, tokenFilter(accountID, provider, name)))
	if err != nil {
		return res, fmt.Errorf("failed to delete account token: %w", err)
	}
	return res, nil
}
