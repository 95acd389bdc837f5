package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

// Account is the root identity document.
type Account[K comparable] struct {
	ID                   K          `bson:"_id"`
	UserName             string     `bson:"UserName"`
	NormalizedUserName   string     `bson:"NormalizedUserName"`
	Email                string     `bson:"Email"`
	NormalizedEmail      string     `bson:"NormalizedEmail"`
	EmailConfirmed       bool       `bson:"EmailConfirmed"`
	PhoneNumber          string     `bson:"PhoneNumber"`
	PhoneNumberConfirmed bool       `bson:"PhoneNumberConfirmed"`
	PasswordHash         string     `bson:"PasswordHash"`
	SecurityStamp        string     `bson:"SecurityStamp"`
	ConcurrencyStamp     string     `bson:"ConcurrencyStamp"`
	TwoFactorEnabled     bool       `bson:"TwoFactorEnabled"`
	LockoutEnd           *time.Time `bson:"LockoutEnd"`
	LockoutEnabled       bool       `bson:"LockoutEnabled"`
	AccessFailedCount    int        `bson:"AccessFailedCount"`
}

// NewAccount creates an account with a fresh identifier and stamps.
func NewAccount[K comparable](kind keys.Kind[K], userName string) *Account[K] {
	return &Account[K]{
		ID:               kind.New(),
		UserName:         userName,
		SecurityStamp:    uuid.NewString(),
		ConcurrencyStamp: uuid.NewString(),
	}
}

// IsLockedOut returns true if lockout is enabled and the lockout end is after now.
func (a *Account[K]) IsLockedOut(now time.Time) bool {
	if !a.LockoutEnabled || a.LockoutEnd == nil {
		return false
	}
	return now.Before(*a.LockoutEnd)
}

// Normalize returns the lookup form of a user name, email or role name.
func Normalize(s string) string {
	return strings.ToUpper(s)
}

// AccountClaim is a claim owned by an account.
type AccountClaim[K comparable] struct {
	ID        K      `bson:"_id"`
	AccountID K      `bson:"AccountId"`
	Type      string `bson:"Type"`
	Value     string `bson:"Value"`
}

// Claim returns the type/value pair.
func (c *AccountClaim[K]) Claim() Claim {
	return Claim{Type: c.Type, Value: c.Value}
}

// NewAccountClaim creates a claim row for an account.
func NewAccountClaim[K comparable](kind keys.Kind[K], accountID K, c Claim) *AccountClaim[K] {
	return &AccountClaim[K]{ID: kind.New(), AccountID: accountID, Type: c.Type, Value: c.Value}
}

// AccountLogin links an account to an external login provider.
type AccountLogin[K comparable] struct {
	ID                  K      `bson:"_id"`
	AccountID           K      `bson:"AccountId"`
	LoginProvider       string `bson:"LoginProvider"`
	ProviderKey         string `bson:"ProviderKey"`
	ProviderDisplayName string `bson:"ProviderDisplayName"`
}

// Info returns the provider triple.
func (l *AccountLogin[K]) Info() LoginInfo {
	return LoginInfo{
		LoginProvider:       l.LoginProvider,
		ProviderKey:         l.ProviderKey,
		ProviderDisplayName: l.ProviderDisplayName,
	}
}

// NewAccountLogin creates a login row for an account.
func NewAccountLogin[K comparable](kind keys.Kind[K], accountID K, info LoginInfo) *AccountLogin[K] {
	return &AccountLogin[K]{
		ID:                  kind.New(),
		AccountID:           accountID,
		LoginProvider:       info.LoginProvider,
		ProviderKey:         info.ProviderKey,
		ProviderDisplayName: info.ProviderDisplayName,
	}
}

// AccountToken is a named value stored per account and provider.
type AccountToken[K comparable] struct {
	ID            K      `bson:"_id"`
	AccountID     K      `bson:"AccountId"`
	LoginProvider string `bson:"LoginProvider"`
	Name          string `bson:"Name"`
	Value         string `bson:"Value"`
}

// NewAccountToken creates a token row for an account.
func NewAccountToken[K comparable](kind keys.Kind[K], accountID K, provider, name, value string) *AccountToken[K] {
	return &AccountToken[K]{
		ID:            kind.New(),
		AccountID:     accountID,
		LoginProvider: provider,
		Name:          name,
		Value:         value,
	}
}

// AccountRole records membership of an account in a role.
type AccountRole[K comparable] struct {
	ID        K `bson:"_id"`
	AccountID K `bson:"AccountId"`
	RoleID    K `bson:"RoleId"`
}

// NewAccountRole creates a membership row.
func NewAccountRole[K comparable](kind keys.Kind[K], accountID, roleID K) *AccountRole[K] {
	return &AccountRole[K]{ID: kind.New(), AccountID: accountID, RoleID: roleID}
}

// Claim is a type/value pair.
type Claim struct {
	Type  string
	Value string
}

// LoginInfo identifies one external login.
type LoginInfo struct {
	LoginProvider       string
	ProviderKey         string
	ProviderDisplayName string
}
