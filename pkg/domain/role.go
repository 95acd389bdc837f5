package domain

import (
	"github.com/google/uuid"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

// Role is a named group accounts can be members of.
type Role[K comparable] struct {
	ID               K      `bson:"_id"`
	Name             string `bson:"Name"`
	NormalizedName   string `bson:"NormalizedName"`
	ConcurrencyStamp string `bson:"ConcurrencyStamp"`
}

// NewRole creates a role with a fresh identifier.
func NewRole[K comparable](kind keys.Kind[K], name string) *Role[K] {
	return &Role[K]{
		ID:               kind.New(),
		Name:             name,
		ConcurrencyStamp: uuid.NewString(),
	}
}

// RoleClaim is a claim owned by a role.
type RoleClaim[K comparable] struct {
	ID     K      `bson:"_id"`
	RoleID K      `bson:"RoleId"`
	Type   string `bson:"Type"`
	Value  string `bson:"Value"`
}

// Claim returns the type/value pair.
func (c *RoleClaim[K]) Claim() Claim {
	return Claim{Type: c.Type, Value: c.Value}
}

// NewRoleClaim creates a claim row for a role.
func NewRoleClaim[K comparable](kind keys.Kind[K], roleID K, c Claim) *RoleClaim[K] {
	return &RoleClaim[K]{ID: kind.New(), RoleID: roleID, Type: c.Type, Value: c.Value}
}
