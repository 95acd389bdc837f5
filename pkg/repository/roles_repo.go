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

// RolesRepository handles role persistence.
type RolesRepository[K comparable] struct {
	coll      Collection
	collation *options.Collation
}

// NewRolesRepository creates a new roles repository.
func NewRolesRepository[K comparable](db Database, locale string) *RolesRepository[K] {
	return &RolesRepository[K]{
		coll:      db.Collection(RolesCollection),
		collation: CaseInsensitiveCollation(locale),
	}
}

// Create inserts a role.
func (r *RolesRepository[K]) Create(ctx context.Context, role *domain.Role[K]) error {
	if _, err := r.coll.InsertOne(ctx, role); err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// Replace overwrites the role with the same ID.
func (r *RolesRepository[K]) Replace(ctx context.Context, role *domain.Role[K]) (WriteResult, error) {
	res, err := replaceResult(r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: role.ID}}, role))
	if err != nil {
		return res, fmt.Errorf("failed to replace role: %w", err)
	}
	return res, nil
}

// Delete removes a role by ID.
func (r *RolesRepository[K]) Delete(ctx context.Context, id K) (WriteResult, error) {
	res, err := deleteResult(r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}))
	if err != nil {
		return res, fmt.Errorf("failed to delete role: %w", err)
	}
	return res, nil
}

// GetByID retrieves a role by ID.
func (r *RolesRepository[K]) GetByID(ctx context.Context, id K) (*domain.Role[K], error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// GetByNormalizedName retrieves a role by normalized name, ignoring case.
func (r *RolesRepository[K]) GetByNormalizedName(ctx context.Context, name string) (*domain.Role[K], error) {
	return r.findOne(ctx, bson.D{{Key: "NormalizedName", Value: name}}, options.FindOne().SetCollation(r.collation))
}

// ListByIDs retrieves the roles with the given IDs. Missing IDs are skipped.
func (r *RolesRepository[K]) ListByIDs(ctx context.Context, ids []K) ([]*domain.Role[K], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// List returns a page of roles ordered by ID. A limit of 0 means no limit.
func (r *RolesRepository[K]) List(ctx context.Context, skip, limit int64) ([]*domain.Role[K], error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	return r.find(ctx, bson.D{}, opts)
}

// Count returns the number of roles.
func (r *RolesRepository[K]) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return n, nil
}

func (r *RolesRepository[K]) findOne(ctx context.Context, filter bson.D, opts ...*options.FindOneOptions) (*domain.Role[K], error) {
	role := &domain.Role[K]{}
	err := r.coll.FindOne(ctx, filter, opts...).Decode(role)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *RolesRepository[K]) find(ctx context.Context, filter bson.D, opts ...*options.FindOptions) ([]*domain.Role[K], error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	var roles []*domain.Role[K]
	if err := cur.All(ctx, &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}
	return roles, nil
}
