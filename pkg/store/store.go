// Package store declares the capability contracts an identity store
// implements, and the behavior every implementation shares: entry guards
// for cancellation and disposal, and the recovery code blob format.
package store

import (
	"context"
	"time"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// AccountStore is the core account contract. Identifiers cross this
// boundary as strings and are parsed with the store's key kind.
type AccountStore[K comparable] interface {
	Create(ctx context.Context, a *domain.Account[K]) (domain.Result, error)
	Update(ctx context.Context, a *domain.Account[K]) (domain.Result, error)
	Delete(ctx context.Context, a *domain.Account[K]) (domain.Result, error)
	// FindByID and FindByName return nil, nil when nothing matches.
	FindByID(ctx context.Context, id string) (*domain.Account[K], error)
	FindByName(ctx context.Context, normalizedUserName string) (*domain.Account[K], error)
	GetUserID(ctx context.Context, a *domain.Account[K]) (string, error)
	GetUserName(ctx context.Context, a *domain.Account[K]) (string, error)
	SetUserName(ctx context.Context, a *domain.Account[K], userName string) error
	GetNormalizedUserName(ctx context.Context, a *domain.Account[K]) (string, error)
	SetNormalizedUserName(ctx context.Context, a *domain.Account[K], normalizedName string) error
	Close() error
}

// AccountClaimStore manages claims owned by accounts.
type AccountClaimStore[K comparable] interface {
	GetClaims(ctx context.Context, a *domain.Account[K]) ([]domain.Claim, error)
	AddClaims(ctx context.Context, a *domain.Account[K], claims []domain.Claim) error
	ReplaceClaim(ctx context.Context, a *domain.Account[K], claim, newClaim domain.Claim) error
	RemoveClaims(ctx context.Context, a *domain.Account[K], claims []domain.Claim) error
	GetAccountsForClaim(ctx context.Context, claim domain.Claim) ([]*domain.Account[K], error)
}

// AccountLoginStore links accounts to external login providers.
type AccountLoginStore[K comparable] interface {
	AddLogin(ctx context.Context, a *domain.Account[K], login domain.LoginInfo) error
	RemoveLogin(ctx context.Context, a *domain.Account[K], loginProvider, providerKey string) error
	GetLogins(ctx context.Context, a *domain.Account[K]) ([]domain.LoginInfo, error)
	FindByLogin(ctx context.Context, loginProvider, providerKey string) (*domain.Account[K], error)
}

// AccountRoleStore manages role membership by normalized role name.
type AccountRoleStore[K comparable] interface {
	AddToRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) error
	RemoveFromRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) error
	GetRoles(ctx context.Context, a *domain.Account[K]) ([]string, error)
	IsInRole(ctx context.Context, a *domain.Account[K], normalizedRoleName string) (bool, error)
	GetAccountsInRole(ctx context.Context, normalizedRoleName string) ([]*domain.Account[K], error)
}

// AccountPasswordStore stores password hashes produced elsewhere.
type AccountPasswordStore[K comparable] interface {
	SetPasswordHash(ctx context.Context, a *domain.Account[K], hash string) error
	GetPasswordHash(ctx context.Context, a *domain.Account[K]) (string, error)
	HasPassword(ctx context.Context, a *domain.Account[K]) (bool, error)
}

// AccountSecurityStampStore stores the security stamp.
type AccountSecurityStampStore[K comparable] interface {
	SetSecurityStamp(ctx context.Context, a *domain.Account[K], stamp string) error
	GetSecurityStamp(ctx context.Context, a *domain.Account[K]) (string, error)
}

// AccountEmailStore stores email addresses and their confirmation.
type AccountEmailStore[K comparable] interface {
	SetEmail(ctx context.Context, a *domain.Account[K], email string) error
	GetEmail(ctx context.Context, a *domain.Account[K]) (string, error)
	GetEmailConfirmed(ctx context.Context, a *domain.Account[K]) (bool, error)
	SetEmailConfirmed(ctx context.Context, a *domain.Account[K], confirmed bool) error
	// FindByEmail returns nil, nil when nothing matches.
	FindByEmail(ctx context.Context, normalizedEmail string) (*domain.Account[K], error)
	GetNormalizedEmail(ctx context.Context, a *domain.Account[K]) (string, error)
	SetNormalizedEmail(ctx context.Context, a *domain.Account[K], normalizedEmail string) error
}

// AccountPhoneNumberStore stores phone numbers and their confirmation.
type AccountPhoneNumberStore[K comparable] interface {
	SetPhoneNumber(ctx context.Context, a *domain.Account[K], phoneNumber string) error
	GetPhoneNumber(ctx context.Context, a *domain.Account[K]) (string, error)
	GetPhoneNumberConfirmed(ctx context.Context, a *domain.Account[K]) (bool, error)
	SetPhoneNumberConfirmed(ctx context.Context, a *domain.Account[K], confirmed bool) error
}

// AccountTwoFactorStore stores whether two-factor authentication is on.
type AccountTwoFactorStore[K comparable] interface {
	SetTwoFactorEnabled(ctx context.Context, a *domain.Account[K], enabled bool) error
	GetTwoFactorEnabled(ctx context.Context, a *domain.Account[K]) (bool, error)
}

// AccountLockoutStore stores lockout bookkeeping.
type AccountLockoutStore[K comparable] interface {
	GetLockoutEndDate(ctx context.Context, a *domain.Account[K]) (*time.Time, error)
	SetLockoutEndDate(ctx context.Context, a *domain.Account[K], end *time.Time) error
	// IncrementAccessFailedCount reads, increments and saves. Concurrent
	// callers can lose increments.
	IncrementAccessFailedCount(ctx context.Context, a *domain.Account[K]) (int, error)
	ResetAccessFailedCount(ctx context.Context, a *domain.Account[K]) error
	GetAccessFailedCount(ctx context.Context, a *domain.Account[K]) (int, error)
	GetLockoutEnabled(ctx context.Context, a *domain.Account[K]) (bool, error)
	SetLockoutEnabled(ctx context.Context, a *domain.Account[K], enabled bool) error
}

// AccountAuthenticationTokenStore stores named values per account and provider.
type AccountAuthenticationTokenStore[K comparable] interface {
	SetToken(ctx context.Context, a *domain.Account[K], loginProvider, name, value string) error
	RemoveToken(ctx context.Context, a *domain.Account[K], loginProvider, name string) error
	// GetToken returns "" when no token exists.
	GetToken(ctx context.Context, a *domain.Account[K], loginProvider, name string) (string, error)
}

// AccountAuthenticatorKeyStore stores the authenticator app key.
type AccountAuthenticatorKeyStore[K comparable] interface {
	SetAuthenticatorKey(ctx context.Context, a *domain.Account[K], key string) error
	GetAuthenticatorKey(ctx context.Context, a *domain.Account[K]) (string, error)
}

// AccountTwoFactorRecoveryCodeStore stores single-use recovery codes.
type AccountTwoFactorRecoveryCodeStore[K comparable] interface {
	ReplaceCodes(ctx context.Context, a *domain.Account[K], codes []string) error
	RedeemCode(ctx context.Context, a *domain.Account[K], code string) (bool, error)
	CountCodes(ctx context.Context, a *domain.Account[K]) (int, error)
}

// QueryableAccountStore enumerates accounts.
type QueryableAccountStore[K comparable] interface {
	Accounts(ctx context.Context, skip, limit int64) ([]*domain.Account[K], error)
	CountAccounts(ctx context.Context) (int64, error)
}

// FullAccountStore is every account capability together.
type FullAccountStore[K comparable] interface {
	AccountStore[K]
	AccountClaimStore[K]
	AccountLoginStore[K]
	AccountRoleStore[K]
	AccountPasswordStore[K]
	AccountSecurityStampStore[K]
	AccountEmailStore[K]
	AccountPhoneNumberStore[K]
	AccountTwoFactorStore[K]
	AccountLockoutStore[K]
	AccountAuthenticationTokenStore[K]
	AccountAuthenticatorKeyStore[K]
	AccountTwoFactorRecoveryCodeStore[K]
	QueryableAccountStore[K]
}

// RoleStore is the core role contract.
type RoleStore[K comparable] interface {
	Create(ctx context.Context, r *domain.Role[K]) (domain.Result, error)
	Update(ctx context.Context, r *domain.Role[K]) (domain.Result, error)
	Delete(ctx context.Context, r *domain.Role[K]) (domain.Result, error)
	// FindByID and FindByName return nil, nil when nothing matches.
	FindByID(ctx context.Context, id string) (*domain.Role[K], error)
	FindByName(ctx context.Context, normalizedName string) (*domain.Role[K], error)
	GetRoleID(ctx context.Context, r *domain.Role[K]) (string, error)
	GetRoleName(ctx context.Context, r *domain.Role[K]) (string, error)
	SetRoleName(ctx context.Context, r *domain.Role[K], name string) error
	GetNormalizedRoleName(ctx context.Context, r *domain.Role[K]) (string, error)
	SetNormalizedRoleName(ctx context.Context, r *domain.Role[K], normalizedName string) error
	Close() error
}

// RoleClaimStore manages claims owned by roles.
type RoleClaimStore[K comparable] interface {
	GetClaims(ctx context.Context, r *domain.Role[K]) ([]domain.Claim, error)
	AddClaim(ctx context.Context, r *domain.Role[K], claim domain.Claim) error
	RemoveClaim(ctx context.Context, r *domain.Role[K], claim domain.Claim) error
}

// QueryableRoleStore enumerates roles.
type QueryableRoleStore[K comparable] interface {
	Roles(ctx context.Context, skip, limit int64) ([]*domain.Role[K], error)
	CountRoles(ctx context.Context) (int64, error)
}

// FullRoleStore is every role capability together.
type FullRoleStore[K comparable] interface {
	RoleStore[K]
	RoleClaimStore[K]
	QueryableRoleStore[K]
}
