package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// AccountRolesRepository handles role membership persistence.
type AccountRolesRepository[K comparable] struct {
	coll Collection
}

// NewAccountRolesRepository creates a new account roles repository.
func NewAccountRolesRepository[K comparable](db Database) *AccountRolesRepository[K] {
	return &AccountRolesRepository[K]{coll: db.Collection(AccountRolesCollection)}
}

// Create inserts a membership. Adding the same pair twice fails on the unique index.
func (r *AccountRolesRepository[K]) Create(ctx context.Context, m *domain.AccountRole[K]) error {
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to insert account role: %w", err)
	}
	return nil
}

// Delete removes the membership of an account in a role.
func (r *AccountRolesRepository[K]) Delete(ctx context.Context, accountID, roleID K) (WriteResult, error) {
	filter := bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "RoleId", Value: roleID},
	}
	res, err := deleteResult(r.coll.DeleteOne(ctx, filter))
	if err != nil {
		return res, fmt.Errorf("failed to delete account role: %w", err)
	}
	return res, nil
}

// Exists reports whether the account is a member of the role.
func (r *AccountRolesRepository[K]) Exists(ctx context.Context, accountID, roleID K) (bool, error) {
	filter := bson.D{
		{Key: "AccountId", Value: accountID},
		{Key: "RoleId", Value: roleID},
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check account role: %w", err)
	}
	return n > 0, nil
}

// RoleIDsByAccount returns the roles an account belongs to.
func (r *AccountRolesRepository[K]) RoleIDsByAccount(ctx context.Context, accountID K) ([]K, error) {
	rows, err := r.find(ctx, bson.D{{Key: "AccountId", Value: accountID}})
	if err != nil {
		return nil, err
	}
	ids := make([]K, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.RoleID)
	}
	return ids, nil
}

// AccountIDsByRole returns the members of a role.
func (r *AccountRolesRepository[K]) AccountIDsByRole(ctx context.Context, roleID K) ([]K, error) {
	rows, err := r.find(ctx, bson.D{{Key: "RoleId", Value: roleID}})
	if err != nil {
		return nil, err
	}
	ids := make([]K, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AccountID)
	}
	return ids, nil
}

func (r *AccountRolesRepository[K]) find(ctx context.Context, filter bson.D) ([]*domain.AccountRole[K], error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list account roles: %w", err)
	}
	var rows []*domain.AccountRole[K]
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode account roles: %w", err)
	}
	return rows, nil
}
