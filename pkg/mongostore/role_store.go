package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

var (
	_ store.FullRoleStore[string] = (*RoleStore[string])(nil)
)

// RoleStore persists roles and their claims.
type RoleStore[K comparable] struct {
	store.Base
	kind   keys.Kind[K]
	roles  *repository.RolesRepository[K]
	claims *repository.RoleClaimsRepository[K]
	inst   instrumentation
}

// NewRoleStore creates a role store over the repositories in set.
func NewRoleStore[K comparable](set *repository.Set[K], opts Options) *RoleStore[K] {
	return &RoleStore[K]{
		kind:   set.Kind,
		roles:  set.Roles,
		claims: set.RoleClaims,
		inst:   newInstrumentation("roles", opts),
	}
}

// Create normalizes the role name and inserts the role. A duplicate name is
// rejected by the unique index and returned as an error.
func (s *RoleStore[K]) Create(ctx context.Context, r *domain.Role[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Create")
	defer func() { op.doneResult(res, err) }()

	r.NormalizedName = domain.Normalize(r.Name)
	if err := s.roles.Create(ctx, r); err != nil {
		return domain.Result{}, err
	}
	s.inst.logger.Debug("role created", "role_id", s.kind.Format(r.ID), "name", r.Name)
	return domain.Success(), nil
}

// Update replaces the role document by ID.
func (s *RoleStore[K]) Update(ctx context.Context, r *domain.Role[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Update")
	defer func() { op.doneResult(res, err) }()

	wr, err := s.roles.Replace(ctx, r)
	if err != nil {
		return domain.Result{}, err
	}
	if !wr.Acknowledged && wr.Count == 0 {
		return domain.ConcurrencyFailure(), nil
	}
	s.inst.logger.Debug("role updated", "role_id", s.kind.Format(r.ID))
	return domain.Success(), nil
}

// Delete removes the role document. Claims and memberships are left in place.
func (s *RoleStore[K]) Delete(ctx context.Context, r *domain.Role[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Delete")
	defer func() { op.doneResult(res, err) }()

	wr, err := s.roles.Delete(ctx, r.ID)
	if err != nil {
		return domain.Result{}, err
	}
	if !wr.Acknowledged && wr.Count == 0 {
		return domain.ConcurrencyFailure(), nil
	}
	s.inst.logger.Debug("role deleted", "role_id", s.kind.Format(r.ID))
	return domain.Success(), nil
}

// FindByID returns the role with the given ID, or nil if there is none.
func (s *RoleStore[K]) FindByID(ctx context.Context, id string) (r *domain.Role[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	key, err := s.kind.Parse(id)
	if err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByID")
	defer func() { op.done(err) }()

	return absentRole(s.roles.GetByID(ctx, key))
}

// FindByName returns the role with the given normalized name, compared
// without regard to case, or nil if there is none.
func (s *RoleStore[K]) FindByName(ctx context.Context, normalizedName string) (r *domain.Role[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByName")
	defer func() { op.done(err) }()

	return absentRole(s.roles.GetByNormalizedName(ctx, normalizedName))
}

func absentRole[K comparable](r *domain.Role[K], err error) (*domain.Role[K], error) {
	if errors.Is(err, domain.ErrRoleNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *RoleStore[K]) GetRoleID(ctx context.Context, r *domain.Role[K]) (string, error) {
	if err := s.Guard(ctx); err != nil {
		return "", err
	}
	return s.kind.Format(r.ID), nil
}

func (s *RoleStore[K]) GetRoleName(ctx context.Context, r *domain.Role[K]) (string, error) {
	if err := s.Guard(ctx); err != nil {
		return "", err
	}
	return r.Name, nil
}

// SetRoleName renames the role and saves it.
func (s *RoleStore[K]) SetRoleName(ctx context.Context, r *domain.Role[K], name string) error {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	r.Name = name
	return s.save(ctx, r)
}

func (s *RoleStore[K]) GetNormalizedRoleName(ctx context.Context, r *domain.Role[K]) (string, error) {
	if err := s.Guard(ctx); err != nil {
		return "", err
	}
	return r.NormalizedName, nil
}

// SetNormalizedRoleName sets the lookup name and saves the role.
func (s *RoleStore[K]) SetNormalizedRoleName(ctx context.Context, r *domain.Role[K], normalizedName string) error {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	r.NormalizedName = normalizedName
	return s.save(ctx, r)
}

func (s *RoleStore[K]) save(ctx context.Context, r *domain.Role[K]) error {
	res, err := s.Update(ctx, r)
	if err != nil {
		return err
	}
	return res.Err()
}

// GetClaims returns the claims held by the role.
func (s *RoleStore[K]) GetClaims(ctx context.Context, r *domain.Role[K]) (claims []domain.Claim, err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetClaims")
	defer func() { op.done(err) }()

	rows, err := s.claims.ListByRole(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	claims = make([]domain.Claim, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, row.Claim())
	}
	return claims, nil
}

// AddClaim adds a claim to the role.
func (s *RoleStore[K]) AddClaim(ctx context.Context, r *domain.Role[K], claim domain.Claim) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "AddClaim")
	defer func() { op.done(err) }()

	return s.claims.Create(ctx, domain.NewRoleClaim(s.kind, r.ID, claim))
}

// RemoveClaim removes a claim from the role. Removing a claim the role does
// not hold does nothing.
func (s *RoleStore[K]) RemoveClaim(ctx context.Context, r *domain.Role[K], claim domain.Claim) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "RemoveClaim")
	defer func() { op.done(err) }()

	row, err := s.claims.GetByClaim(ctx, r.ID, claim)
	if errors.Is(err, domain.ErrClaimNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.claims.DeleteByID(ctx, row.ID); err != nil {
		return fmt.Errorf("failed to remove role claim: %w", err)
	}
	return nil
}

// Roles returns a page of roles ordered by ID. A zero limit returns all.
func (s *RoleStore[K]) Roles(ctx context.Context, skip, limit int64) (roles []*domain.Role[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "Roles")
	defer func() { op.done(err) }()

	return s.roles.List(ctx, skip, limit)
}

// CountRoles returns the number of roles.
func (s *RoleStore[K]) CountRoles(ctx context.Context) (n int64, err error) {
	if err := s.Guard(ctx); err != nil {
		return 0, err
	}
	ctx, op := s.inst.begin(ctx, "CountRoles")
	defer func() { op.done(err) }()

	return s.roles.Count(ctx)
}
