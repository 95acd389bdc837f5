package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

var (
	_ store.FullAccountStore[string] = (*AccountStore[string])(nil)
	_ RoleFinder[string]             = (*RoleStore[string])(nil)
)

// RoleFinder resolves a role by its normalized name. It returns nil, nil
// when no role matches.
type RoleFinder[K comparable] interface {
	FindByName(ctx context.Context, normalizedName string) (*domain.Role[K], error)
}

// AccountStore persists accounts and everything they own: claims, external
// logins, tokens and role memberships.
type AccountStore[K comparable] struct {
	store.Base
	kind       keys.Kind[K]
	accounts   *repository.AccountsRepository[K]
	claims     *repository.AccountClaimsRepository[K]
	logins     *repository.AccountLoginsRepository[K]
	tokens     *repository.AccountTokensRepository[K]
	membership *repository.AccountRolesRepository[K]
	roleRows   *repository.RolesRepository[K]
	roles      RoleFinder[K]
	inst       instrumentation
}

// NewAccountStore creates an account store over the repositories in set.
// Role names are resolved through roles.
func NewAccountStore[K comparable](set *repository.Set[K], roles RoleFinder[K], opts Options) *AccountStore[K] {
	return &AccountStore[K]{
		kind:       set.Kind,
		accounts:   set.Accounts,
		claims:     set.AccountClaims,
		logins:     set.AccountLogins,
		tokens:     set.AccountTokens,
		membership: set.AccountRoles,
		roleRows:   set.Roles,
		roles:      roles,
		inst:       newInstrumentation("accounts", opts),
	}
}

// Create normalizes the email and user name and inserts the account. An
// empty user name defaults to the email. Duplicates are rejected by the
// unique indexes and returned as an error.
func (s *AccountStore[K]) Create(ctx context.Context, a *domain.Account[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Create")
	defer func() { op.doneResult(res, err) }()

	if a.Email != "" {
		a.NormalizedEmail = domain.Normalize(a.Email)
	}
	if a.UserName == "" {
		a.UserName = a.Email
	}
	a.NormalizedUserName = domain.Normalize(a.UserName)

	if err := s.accounts.Create(ctx, a); err != nil {
		return domain.Result{}, err
	}
	s.inst.logger.Debug("account created", "account_id", s.kind.Format(a.ID), "user_name", a.UserName)
	return domain.Success(), nil
}

// Update saves the account if its stored concurrency stamp still matches the
// one held in memory, and rotates the stamp. A stale stamp, a missing
// account or an unacknowledged write yields a ConcurrencyFailure result.
func (s *AccountStore[K]) Update(ctx context.Context, a *domain.Account[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Update")
	defer func() { op.doneResult(res, err) }()

	stamp := a.ConcurrencyStamp
	a.ConcurrencyStamp = uuid.NewString()

	wr, err := s.accounts.ReplaceIfStamp(ctx, a, stamp)
	if err != nil {
		a.ConcurrencyStamp = stamp
		return domain.Result{}, err
	}
	if !wr.Acknowledged || wr.Count == 0 {
		a.ConcurrencyStamp = stamp
		return domain.ConcurrencyFailure(), nil
	}
	s.inst.logger.Debug("account updated", "account_id", s.kind.Format(a.ID))
	return domain.Success(), nil
}

// Delete removes the account document. Claims, logins, tokens and role
// memberships are left in place.
func (s *AccountStore[K]) Delete(ctx context.Context, a *domain.Account[K]) (res domain.Result, err error) {
	if err := s.Guard(ctx); err != nil {
		return domain.Result{}, err
	}
	ctx, op := s.inst.begin(ctx, "Delete")
	defer func() { op.doneResult(res, err) }()

	wr, err := s.accounts.Delete(ctx, a.ID)
	if err != nil {
		return domain.Result{}, err
	}
	if !wr.Acknowledged && wr.Count == 0 {
		return domain.ConcurrencyFailure(), nil
	}
	s.inst.logger.Debug("account deleted", "account_id", s.kind.Format(a.ID))
	return domain.Success(), nil
}

// FindByID returns the account with the given ID, or nil if there is none.
func (s *AccountStore[K]) FindByID(ctx context.Context, id string) (a *domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	key, err := s.kind.Parse(id)
	if err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByID")
	defer func() { op.done(err) }()

	return absentAccount(s.accounts.GetByID(ctx, key))
}

// FindByName returns the account with the given normalized user name,
// compared without regard to case, or nil if there is none.
func (s *AccountStore[K]) FindByName(ctx context.Context, normalizedUserName string) (a *domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByName")
	defer func() { op.done(err) }()

	return absentAccount(s.accounts.GetByNormalizedUserName(ctx, normalizedUserName))
}

// FindByEmail returns the account with the given normalized email, or nil
// if there is none. Without the unique email policy the first match wins.
func (s *AccountStore[K]) FindByEmail(ctx context.Context, normalizedEmail string) (a *domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByEmail")
	defer func() { op.done(err) }()

	return absentAccount(s.accounts.GetByNormalizedEmail(ctx, normalizedEmail))
}

func absentAccount[K comparable](a *domain.Account[K], err error) (*domain.Account[K], error) {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	return a, err
}

// save persists an in-memory mutation through Update. A failed result is
// returned as an error.
func (s *AccountStore[K]) save(ctx context.Context, a *domain.Account[K]) error {
	res, err := s.Update(ctx, a)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("failed to save account %s: %w", s.kind.Format(a.ID), err)
	}
	return nil
}

// set applies mutate to a and saves it.
func (s *AccountStore[K]) set(ctx context.Context, a *domain.Account[K], mutate func(*domain.Account[K])) error {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	mutate(a)
	return s.save(ctx, a)
}

// get returns read(a) once the entry guard passes.
func get[K comparable, T any](ctx context.Context, s *AccountStore[K], a *domain.Account[K], read func(*domain.Account[K]) T) (T, error) {
	if err := s.Guard(ctx); err != nil {
		var zero T
		return zero, err
	}
	return read(a), nil
}

func (s *AccountStore[K]) GetUserID(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return s.kind.Format(a.ID) })
}

func (s *AccountStore[K]) GetUserName(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.UserName })
}

func (s *AccountStore[K]) SetUserName(ctx context.Context, a *domain.Account[K], userName string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.UserName = userName })
}

func (s *AccountStore[K]) GetNormalizedUserName(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.NormalizedUserName })
}

func (s *AccountStore[K]) SetNormalizedUserName(ctx context.Context, a *domain.Account[K], normalizedName string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.NormalizedUserName = normalizedName })
}

func (s *AccountStore[K]) SetPasswordHash(ctx context.Context, a *domain.Account[K], hash string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.PasswordHash = hash })
}

func (s *AccountStore[K]) GetPasswordHash(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.PasswordHash })
}

func (s *AccountStore[K]) HasPassword(ctx context.Context, a *domain.Account[K]) (bool, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) bool { return a.PasswordHash != "" })
}

func (s *AccountStore[K]) SetSecurityStamp(ctx context.Context, a *domain.Account[K], stamp string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.SecurityStamp = stamp })
}

func (s *AccountStore[K]) GetSecurityStamp(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.SecurityStamp })
}

func (s *AccountStore[K]) SetEmail(ctx context.Context, a *domain.Account[K], email string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.Email = email })
}

func (s *AccountStore[K]) GetEmail(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.Email })
}

func (s *AccountStore[K]) GetEmailConfirmed(ctx context.Context, a *domain.Account[K]) (bool, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) bool { return a.EmailConfirmed })
}

func (s *AccountStore[K]) SetEmailConfirmed(ctx context.Context, a *domain.Account[K], confirmed bool) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.EmailConfirmed = confirmed })
}

func (s *AccountStore[K]) GetNormalizedEmail(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.NormalizedEmail })
}

func (s *AccountStore[K]) SetNormalizedEmail(ctx context.Context, a *domain.Account[K], normalizedEmail string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.NormalizedEmail = normalizedEmail })
}

func (s *AccountStore[K]) SetPhoneNumber(ctx context.Context, a *domain.Account[K], phoneNumber string) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.PhoneNumber = phoneNumber })
}

func (s *AccountStore[K]) GetPhoneNumber(ctx context.Context, a *domain.Account[K]) (string, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) string { return a.PhoneNumber })
}

func (s *AccountStore[K]) GetPhoneNumberConfirmed(ctx context.Context, a *domain.Account[K]) (bool, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) bool { return a.PhoneNumberConfirmed })
}

func (s *AccountStore[K]) SetPhoneNumberConfirmed(ctx context.Context, a *domain.Account[K], confirmed bool) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.PhoneNumberConfirmed = confirmed })
}

func (s *AccountStore[K]) SetTwoFactorEnabled(ctx context.Context, a *domain.Account[K], enabled bool) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.TwoFactorEnabled = enabled })
}

func (s *AccountStore[K]) GetTwoFactorEnabled(ctx context.Context, a *domain.Account[K]) (bool, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) bool { return a.TwoFactorEnabled })
}

func (s *AccountStore[K]) GetLockoutEndDate(ctx context.Context, a *domain.Account[K]) (*time.Time, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) *time.Time { return a.LockoutEnd })
}

func (s *AccountStore[K]) SetLockoutEndDate(ctx context.Context, a *domain.Account[K], end *time.Time) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.LockoutEnd = end })
}

// IncrementAccessFailedCount adds one to the failed access count and saves
// the account. The read and the write are separate steps.
func (s *AccountStore[K]) IncrementAccessFailedCount(ctx context.Context, a *domain.Account[K]) (int, error) {
	if err := s.set(ctx, a, func(a *domain.Account[K]) { a.AccessFailedCount++ }); err != nil {
		return 0, err
	}
	return a.AccessFailedCount, nil
}

func (s *AccountStore[K]) ResetAccessFailedCount(ctx context.Context, a *domain.Account[K]) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.AccessFailedCount = 0 })
}

func (s *AccountStore[K]) GetAccessFailedCount(ctx context.Context, a *domain.Account[K]) (int, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) int { return a.AccessFailedCount })
}

func (s *AccountStore[K]) GetLockoutEnabled(ctx context.Context, a *domain.Account[K]) (bool, error) {
	return get(ctx, s, a, func(a *domain.Account[K]) bool { return a.LockoutEnabled })
}

func (s *AccountStore[K]) SetLockoutEnabled(ctx context.Context, a *domain.Account[K], enabled bool) error {
	return s.set(ctx, a, func(a *domain.Account[K]) { a.LockoutEnabled = enabled })
}

// Accounts returns a page of accounts ordered by ID. A zero limit returns all.
func (s *AccountStore[K]) Accounts(ctx context.Context, skip, limit int64) (accounts []*domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "Accounts")
	defer func() { op.done(err) }()

	return s.accounts.List(ctx, skip, limit)
}

// CountAccounts returns the number of accounts.
func (s *AccountStore[K]) CountAccounts(ctx context.Context) (n int64, err error) {
	if err := s.Guard(ctx); err != nil {
		return 0, err
	}
	ctx, op := s.inst.begin(ctx, "CountAccounts")
	defer func() { op.done(err) }()

	return s.accounts.Count(ctx)
}
