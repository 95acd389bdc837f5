package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

// GetClaims returns the claims held by the account.
func (s *AccountStore[K]) GetClaims(ctx context.Context, a *domain.Account[K]) (claims []domain.Claim, err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetClaims")
	defer func() { op.done(err) }()

	rows, err := s.claims.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	claims = make([]domain.Claim, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, row.Claim())
	}
	return claims, nil
}

// AddClaims inserts all claims in one batch.
func (s *AccountStore[K]) AddClaims(ctx context.Context, a *domain.Account[K], claims []domain.Claim) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "AddClaims")
	defer func() { op.done(err) }()

	rows := make([]*domain.AccountClaim[K], 0, len(claims))
	for _, c := range claims {
		rows = append(rows, domain.NewAccountClaim(s.kind, a.ID, c))
	}
	return s.claims.CreateMany(ctx, rows)
}

// ReplaceClaim rewrites every claim of the account matching claim's type
// and value to newClaim.
func (s *AccountStore[K]) ReplaceClaim(ctx context.Context, a *domain.Account[K], claim, newClaim domain.Claim) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "ReplaceClaim")
	defer func() { op.done(err) }()

	rows, err := s.claims.ListByClaim(ctx, a.ID, claim)
	if err != nil {
		return err
	}
	for _, row := range rows {
		row.Type = newClaim.Type
		row.Value = newClaim.Value
		if _, err := s.claims.Replace(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// RemoveClaims removes each claim from the account. Claims the account does
// not hold are skipped.
func (s *AccountStore[K]) RemoveClaims(ctx context.Context, a *domain.Account[K], claims []domain.Claim) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "RemoveClaims")
	defer func() { op.done(err) }()

	for _, c := range claims {
		if _, err := s.claims.DeleteByClaim(ctx, a.ID, c); err != nil {
			return err
		}
	}
	return nil
}

// GetAccountsForClaim returns the accounts holding a claim with the same
// type and value.
func (s *AccountStore[K]) GetAccountsForClaim(ctx context.Context, claim domain.Claim) (accounts []*domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetAccountsForClaim")
	defer func() { op.done(err) }()

	ids, err := s.claims.AccountIDsForClaim(ctx, claim)
	if err != nil {
		return nil, err
	}
	return s.accounts.ListByIDs(ctx, ids)
}

// AddLogin links an external login to the account. A login already linked
// to any account is rejected by the unique index.
func (s *AccountStore[K]) AddLogin(ctx context.Context, a *domain.Account[K], login domain.LoginInfo) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "AddLogin")
	defer func() { op.done(err) }()

	if err := s.logins.Create(ctx, domain.NewAccountLogin(s.kind, a.ID, login)); err != nil {
		return err
	}
	s.inst.logger.Debug("login added", "account_id", s.kind.Format(a.ID), "provider", login.LoginProvider)
	return nil
}

// RemoveLogin unlinks an external login from the account.
func (s *AccountStore[K]) RemoveLogin(ctx context.Context, a *domain.Account[K], loginProvider, providerKey string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "RemoveLogin")
	defer func() { op.done(err) }()

	_, err = s.logins.Delete(ctx, a.ID, loginProvider, providerKey)
	return err
}

// GetLogins returns the external logins linked to the account.
func (s *AccountStore[K]) GetLogins(ctx context.Context, a *domain.Account[K]) (logins []domain.LoginInfo, err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetLogins")
	defer func() { op.done(err) }()

	rows, err := s.logins.ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	logins = make([]domain.LoginInfo, 0, len(rows))
	for _, row := range rows {
		logins = append(logins, row.Info())
	}
	return logins, nil
}

// FindByLogin returns the account linked to the external login, or nil.
// The lookup is not scoped to any account.
func (s *AccountStore[K]) FindByLogin(ctx context.Context, loginProvider, providerKey string) (a *domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "FindByLogin")
	defer func() { op.done(err) }()

	login, err := s.logins.GetByProviderKey(ctx, loginProvider, providerKey)
	if errors.Is(err, domain.ErrLoginNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return absentAccount(s.accounts.GetByID(ctx, login.AccountID))
}

// AddToRole makes the account a member of the named role. It fails with
// domain.ErrRoleNotFound when no such role exists.
func (s *AccountStore[K]) AddToRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "AddToRole")
	defer func() { op.done(err) }()

	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: %s", domain.ErrRoleNotFound, normalizedRoleName)
	}
	if err := s.membership.Create(ctx, domain.NewAccountRole(s.kind, a.ID, role.ID)); err != nil {
		return err
	}
	s.inst.logger.Debug("account added to role", "account_id", s.kind.Format(a.ID), "role", role.Name)
	return nil
}

// RemoveFromRole ends the account's membership in the named role. Unknown
// roles and missing memberships are ignored.
func (s *AccountStore[K]) RemoveFromRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "RemoveFromRole")
	defer func() { op.done(err) }()

	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil || role == nil {
		return err
	}
	_, err = s.membership.Delete(ctx, a.ID, role.ID)
	return err
}

// GetRoles returns the names of the roles the account is a member of.
func (s *AccountStore[K]) GetRoles(ctx context.Context, a *domain.Account[K]) (names []string, err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetRoles")
	defer func() { op.done(err) }()

	ids, err := s.membership.RoleIDsByAccount(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roleRows.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names = make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// IsInRole reports whether the account is a member of the named role.
func (s *AccountStore[K]) IsInRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) (ok bool, err error) {
	if err := s.Guard(ctx); err != nil {
		return false, err
	}
	ctx, op := s.inst.begin(ctx, "IsInRole")
	defer func() { op.done(err) }()

	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil || role == nil {
		return false, err
	}
	return s.membership.Exists(ctx, a.ID, role.ID)
}

// GetAccountsInRole returns the members of the named role. An unknown role
// has no members.
func (s *AccountStore[K]) GetAccountsInRole(ctx context.Context, normalizedRoleName string) (accounts []*domain.Account[K], err error) {
	if err := s.Guard(ctx); err != nil {
		return nil, err
	}
	ctx, op := s.inst.begin(ctx, "GetAccountsInRole")
	defer func() { op.done(err) }()

	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil || role == nil {
		return nil, err
	}
	ids, err := s.membership.AccountIDsByRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return s.accounts.ListByIDs(ctx, ids)
}

// SetToken stores value under the provider and name, replacing any
// existing value.
func (s *AccountStore[K]) SetToken(ctx context.Context, a *domain.Account[K], loginProvider, name, value string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "SetToken")
	defer func() { op.done(err) }()

	return s.setToken(ctx, a, loginProvider, name, value)
}

// RemoveToken deletes the token stored under the provider and name.
func (s *AccountStore[K]) RemoveToken(ctx context.Context, a *domain.Account[K], loginProvider, name string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "RemoveToken")
	defer func() { op.done(err) }()

	_, err = s.tokens.Delete(ctx, a.ID, loginProvider, name)
	return err
}

// GetToken returns the token stored under the provider and name, or "".
func (s *AccountStore[K]) GetToken(ctx context.Context, a *domain.Account[K], loginProvider, name string) (value string, err error) {
	if err := s.Guard(ctx); err != nil {
		return "", err
	}
	ctx, op := s.inst.begin(ctx, "GetToken")
	defer func() { op.done(err) }()

	return s.getToken(ctx, a, loginProvider, name)
}

func (s *AccountStore[K]) setToken(ctx context.Context, a *domain.Account[K], provider, name, value string) error {
	tok, err := s.tokens.Get(ctx, a.ID, provider, name)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return s.tokens.Create(ctx, domain.NewAccountToken(s.kind, a.ID, provider, name, value))
	}
	if err != nil {
		return err
	}
	tok.Value = value
	_, err = s.tokens.Replace(ctx, tok)
	return err
}

func (s *AccountStore[K]) getToken(ctx context.Context, a *domain.Account[K], provider, name string) (string, error) {
	tok, err := s.tokens.Get(ctx, a.ID, provider, name)
	if errors.Is(err, domain.ErrTokenNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// SetAuthenticatorKey stores the authenticator app key.
func (s *AccountStore[K]) SetAuthenticatorKey(ctx context.Context, a *domain.Account[K], key string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "SetAuthenticatorKey")
	defer func() { op.done(err) }()

	return s.setToken(ctx, a, store.InternalLoginProvider, store.AuthenticatorKeyTokenName, key)
}

// GetAuthenticatorKey returns the authenticator app key, or "".
func (s *AccountStore[K]) GetAuthenticatorKey(ctx context.Context, a *domain.Account[K]) (key string, err error) {
	if err := s.Guard(ctx); err != nil {
		return "", err
	}
	ctx, op := s.inst.begin(ctx, "GetAuthenticatorKey")
	defer func() { op.done(err) }()

	return s.getToken(ctx, a, store.InternalLoginProvider, store.AuthenticatorKeyTokenName)
}

// ReplaceCodes overwrites the account's recovery codes.
func (s *AccountStore[K]) ReplaceCodes(ctx context.Context, a *domain.Account[K], codes []string) (err error) {
	if err := s.Guard(ctx); err != nil {
		return err
	}
	ctx, op := s.inst.begin(ctx, "ReplaceCodes")
	defer func() { op.done(err) }()

	return s.setToken(ctx, a, store.InternalLoginProvider, store.RecoveryCodeTokenName, store.JoinRecoveryCodes(codes))
}

// RedeemCode consumes a recovery code. It reports false when the code is
// not one of the remaining codes.
func (s *AccountStore[K]) RedeemCode(ctx context.Context, a *domain.Account[K], code string) (ok bool, err error) {
	if err := s.Guard(ctx); err != nil {
		return false, err
	}
	ctx, op := s.inst.begin(ctx, "RedeemCode")
	defer func() { op.done(err) }()

	blob, err := s.getToken(ctx, a, store.InternalLoginProvider, store.RecoveryCodeTokenName)
	if err != nil {
		return false, err
	}
	rest, ok := store.RedeemRecoveryCode(blob, code)
	if !ok {
		return false, nil
	}
	if err := s.setToken(ctx, a, store.InternalLoginProvider, store.RecoveryCodeTokenName, rest); err != nil {
		return false, err
	}
	s.inst.logger.Debug("recovery code redeemed", "account_id", s.kind.Format(a.ID))
	return true, nil
}

// CountCodes returns the number of unused recovery codes.
func (s *AccountStore[K]) CountCodes(ctx context.Context, a *domain.Account[K]) (n int, err error) {
	if err := s.Guard(ctx); err != nil {
		return 0, err
	}
	ctx, op := s.inst.begin(ctx, "CountCodes")
	defer func() { op.done(err) }()

	blob, err := s.getToken(ctx, a, store.InternalLoginProvider, store.RecoveryCodeTokenName)
	if err != nil {
		return 0, err
	}
	return len(store.SplitRecoveryCodes(blob)), nil
}
