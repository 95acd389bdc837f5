package repository

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

// ErrModelsNotRegistered is returned when repositories are requested for a
// key kind whose models were never registered.
var ErrModelsNotRegistered = errors.New("models not registered for key kind")

// Set groups the repositories of one key kind over one database.
type Set[K comparable] struct {
	Kind          keys.Kind[K]
	Accounts      *AccountsRepository[K]
	AccountClaims *AccountClaimsRepository[K]
	AccountLogins *AccountLoginsRepository[K]
	AccountTokens *AccountTokensRepository[K]
	AccountRoles  *AccountRolesRepository[K]
	Roles         *RolesRepository[K]
	RoleClaims    *RoleClaimsRepository[K]
}

// NewSet builds the repositories for kind. The models for kind must already
// be registered in models.
func NewSet[K comparable](db Database, models *Models, kind keys.Kind[K], locale string) (*Set[K], error) {
	if !IsRegistered(models, kind) {
		return nil, fmt.Errorf("%w: %s", ErrModelsNotRegistered, kind.Name())
	}
	if locale == "" {
		locale = DefaultLocale
	}
	if err := ValidateLocale(locale); err != nil {
		return nil, err
	}

	return &Set[K]{
		Kind:          kind,
		Accounts:      NewAccountsRepository[K](db, locale),
		AccountClaims: NewAccountClaimsRepository[K](db),
		AccountLogins: NewAccountLoginsRepository[K](db),
		AccountTokens: NewAccountTokensRepository[K](db),
		AccountRoles:  NewAccountRolesRepository[K](db),
		Roles:         NewRolesRepository[K](db, locale),
		RoleClaims:    NewRoleClaimsRepository[K](db),
	}, nil
}
