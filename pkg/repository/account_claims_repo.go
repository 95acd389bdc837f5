package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// AccountClaimsRepository handles account claim persistence.
type AccountClaimsRepository[K comparable] struct {
	coll Collection
}

// NewAccountClaimsRepository creates a new account claims repository.
func NewAccountClaimsRepository[K comparable](db Database) *AccountClaimsRepository[K] {
	return &AccountClaimsRepository[K]{coll: db.Collection(AccountClaimsCollection)}
}

// CreateMany inserts claims in one batch.
func (r *AccountClaimsRepository[K]) CreateMany(ctx context.Context, claims []*domain.AccountClaim[K]) error {
	if len(claims) == 0 {
		return nil
	}
	docs := make([]interface{}, len(claims))
	for i, c := range claims {
		docs[i] = c
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert account claims: %w", err)
	}
	return nil
}

// ListByAccount returns the claims owned by an account.
func (r *AccountClaimsRepository[K]) ListByAccount(ctx context.Context, accountID K) ([]*domain.AccountClaim[K], error) {
	return r.find(ctx, bson.D{{Key: "AccountId", Value: accountID}})
}

// ListByClaim returns the rows of an account matching the type and value.
func (r *AccountClaimsRepository[K]) ListByClaim(ctx context.Context, accountID K, c domain.Claim) ([]*domain.AccountClaim[K], error) {
	return r.find(ctx, bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "Type", Value: c.Type},
		{Key: "Value", Value: c.Value},
	})
}

// AccountIDsForClaim returns the owners of every row matching the type and value.
func (r *AccountClaimsRepository[K]) AccountIDsForClaim(ctx context.Context, c domain.Claim) ([]K, error) {
	rows, err := r.find(ctx, bson.D{
		{Key: "Type", Value: c.Type},
		{Key: "Value", Value: c.Value},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]K, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AccountID)
	}
	return ids, nil
}

// Replace overwrites a claim row by its surrogate ID.
func (r *AccountClaimsRepository[K]) Replace(ctx context.Context, c *domain.AccountClaim[K]) (WriteResult, error) {
	res, err := replaceResult(r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: c.ID}}, c))
	if err != nil {
		return res, fmt.Errorf("failed to replace account claim: %w", err)
	}
	return res, nil
}

// DeleteByClaim removes one row of an account matching the type and value.
func (r *AccountClaimsRepository[K]) DeleteByClaim(ctx context.Context, accountID K, c domain.Claim) (WriteResult, error) {
	filter := bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "Type", Value: c.Type},
		{Key: "Value", Value: c.Value},
	}
	res, err := deleteResult(r.coll.DeleteOne(ctx, filter))
	if err != nil {
		return res, fmt.Errorf("failed to delete account claim: %w", err)
	}
	return res, nil
}

func (r *AccountClaimsRepository[K]) find(ctx context.Context, filter bson.D) ([]*domain.AccountClaim[K], error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list account claims: %w", err)
	}
	var claims []*domain.AccountClaim[K]
	if err := cur.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode account claims: %w", err)
	}
	return claims, nil
}
