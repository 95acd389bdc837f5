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

// AccountLoginsRepository handles external login persistence.
type AccountLoginsRepository[K comparable] struct {
	coll Collection
}

// NewAccountLoginsRepository creates a new account logins repository.
func NewAccountLoginsRepository[K comparable](db Database) *AccountLoginsRepository[K] {
	return &AccountLoginsRepository[K]{coll: db.Collection(AccountLoginsCollection)}
}

// Create inserts a login. A provider key already linked to any account is rejected by the unique index.
func (r *AccountLoginsRepository[K]) Create(ctx context.Context, l *domain.AccountLogin[K]) error {
	if _, err := r.coll.InsertOne(ctx, l); err != nil {
		return fmt.Errorf("failed to insert account login: %w", err)
	}
	return nil
}

// ListByAccount returns the logins linked to an account.
func (r *AccountLoginsRepository[K]) ListByAccount(ctx context.Context, accountID K) ([]*domain.AccountLogin[K], error) {
	cur, err := r.coll.Find(ctx, bson.D{{Key: "AccountId", Value: accountID}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list account logins: %w", err)
	}
	var logins []*domain.AccountLogin[K]
	if err := cur.All(ctx, &logins); err != nil {
		return nil, fmt.Errorf("failed to decode account logins: %w", err)
	}
	return logins, nil
}

// GetByProviderKey retrieves a login by provider and key across all accounts.
func (r *AccountLoginsRepository[K]) GetByProviderKey(ctx context.Context, provider, key string) (*domain.AccountLogin[K], error) {
	filter := bson.D{
		{Key: "LoginProvider", Value: provider},
		{Key: "ProviderKey", Value: key},
	}
	l := &domain.AccountLogin[K]{}
	err := r.coll.FindOne(ctx, filter).Decode(l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrLoginNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account login: %w", err)
	}
	return l, nil
}

// Delete removes the login of an account for provider and key.
func (r *AccountLoginsRepository[K]) Delete(ctx context.Context, accountID K, provider, key string) (WriteResult, error) {
	filter := bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "LoginProvider", Value: provider},
		{Key: "ProviderKey", Value: key},
	}
	res, err := deleteResult(r.coll.DeleteOne(ctx, filter))
	if err != nil {
		return res, fmt.Errorf("failed to delete account login: %w", err)
	}
	return res, nil
}
