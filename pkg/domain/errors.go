package domain

import (
	"errors"

	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

// Store errors
var (
	ErrInvalidKey         = keys.ErrInvalidKey
	ErrConcurrencyFailure = errors.New("optimistic concurrency failure, object has been modified")
	ErrDisposed           = errors.New("store has been disposed")
	ErrCancelled          = errors.New("operation cancelled")
)

// Lookup errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrClaimNotFound      = errors.New("claim not found")
	ErrLoginNotFound      = errors.New("login not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrMembershipNotFound = errors.New("role membership not found")
)
