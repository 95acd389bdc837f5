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

// RoleClaimsRepository handles role claim persistence.
type RoleClaimsRepository[K comparable] struct {
	coll Collection
}

// NewRoleClaimsRepository creates a new role claims repository.
func NewRoleClaimsRepository[K comparable](db Database) *RoleClaimsRepository[K] {
	return &RoleClaimsRepository[K]{coll: db.Collection(RoleClaimsCollection)}
}

// Create inserts a role claim.
func (r *RoleClaimsRepository[K]) Create(ctx context.Context, c *domain.RoleClaim[K]) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert role claim: %w", err)
	}
	return nil
}

// ListByRole returns the claims owned by a role.
func (r *RoleClaimsRepository[K]) ListByRole(ctx context.Context, roleID K) ([]*domain.RoleClaim[K], error) {
	cur, err := r.coll.Find(ctx, bson.D{{Key: "RoleId", Value: roleID}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list role claims: %w", err)
	}
	var claims []*domain.RoleClaim[K]
	if err := cur.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode role claims: %w", err)
	}
	return claims, nil
}

// GetByClaim retrieves the row of a role matching the type and value.
func (r *RoleClaimsRepository[K]) GetByClaim(ctx context.Context, roleID K, c domain.Claim) (*domain.RoleClaim[K], error) {
	filter := bson.D{
		{Key: "RoleId", Value: roleID},
		{Key: "Type", Value: c.Type},
		{Key: "Value", Value: c.Value},
	}
	rc := &domain.RoleClaim[K]{}
	err := r.coll.FindOne(ctx, filter).Decode(rc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role claim: %w", err)
	}
	return rc, nil
}

// DeleteByID removes a role claim by its surrogate ID.
func (r *RoleClaimsRepository[K]) DeleteByID(ctx context.Context, id K) (WriteResult, error) {
	res, err := deleteResult(r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		return res, fmt.Errorf("failed to delete role claim: %w", err)
	}
	return res, nil
}
