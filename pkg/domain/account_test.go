package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

func TestNewAccount_AssignsIdentity(t *testing.T) {
	a := NewAccount(keys.UUID, "alice")

	if a.ID == uuid.Nil {
		t.Error("ID should be generated at construction")
	}
	if a.UserName != "alice" {
		t.Errorf("UserName = %q, want %q", a.UserName, "alice")
	}
	if a.SecurityStamp == "" {
		t.Error("SecurityStamp should not be empty")
	}
	if a.ConcurrencyStamp == "" {
		t.Error("ConcurrencyStamp should not be empty")
	}
}

func TestNewRole_AssignsIdentity(t *testing.T) {
	r := NewRole(keys.ObjectID, "Admin")

	if keys.ObjectID.IsZero(r.ID) {
		t.Error("ID should be generated at construction")
	}
	if r.ConcurrencyStamp == "" {
		t.Error("ConcurrencyStamp should not be empty")
	}
	if r.NormalizedName != "" {
		t.Errorf("NormalizedName = %q, want empty before create", r.NormalizedName)
	}
}

func TestAccount_IsLockedOut(t *testing.T) {
	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	tests := []struct {
		name       string
		enabled    bool
		lockoutEnd *time.Time
		want       bool
	}{
		{
			name:       "not locked (nil)",
			enabled:    true,
			lockoutEnd: nil,
			want:       false,
		},
		{
			name:       "locked (future time)",
			enabled:    true,
			lockoutEnd: &future,
			want:       true,
		},
		{
			name:       "not locked (past time)",
			enabled:    true,
			lockoutEnd: &past,
			want:       false,
		},
		{
			name:       "lockout disabled",
			enabled:    false,
			lockoutEnd: &future,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccount(keys.String, "bob")
			a.LockoutEnabled = tt.enabled
			a.LockoutEnd = tt.lockoutEnd

			if got := a.IsLockedOut(now); got != tt.want {
				t.Errorf("IsLockedOut() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChildConstructors(t *testing.T) {
	accountID := keys.UUID.New()
	roleID := keys.UUID.New()

	claim := NewAccountClaim(keys.UUID, accountID, Claim{Type: "name", Value: "value"})
	if claim.AccountID != accountID || claim.Claim() != (Claim{Type: "name", Value: "value"}) {
		t.Errorf("NewAccountClaim = %+v", claim)
	}

	login := NewAccountLogin(keys.UUID, accountID, LoginInfo{LoginProvider: "google", ProviderKey: "123"})
	if login.Info().ProviderKey != "123" || login.AccountID != accountID {
		t.Errorf("NewAccountLogin = %+v", login)
	}

	membership := NewAccountRole(keys.UUID, accountID, roleID)
	if membership.RoleID != roleID || membership.ID == uuid.Nil {
		t.Errorf("NewAccountRole = %+v", membership)
	}

	rc := NewRoleClaim(keys.UUID, roleID, Claim{Type: "perm", Value: "read"})
	if rc.RoleID != roleID || rc.ID == uuid.Nil {
		t.Errorf("NewRoleClaim = %+v", rc)
	}
}

func TestResult_Err(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		wantNil bool
		wantIs  error
	}{
		{
			name:    "success",
			result:  Success(),
			wantNil: true,
		},
		{
			name:   "concurrency failure",
			result: ConcurrencyFailure(),
			wantIs: ErrConcurrencyFailure,
		},
		{
			name:   "other failure",
			result: Failed(ResultError{Code: "DuplicateRoleName", Description: "Role name is taken."}),
		},
		{
			name:   "failure without errors",
			result: Failed(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Err()
			if tt.wantNil {
				if err != nil {
					t.Errorf("Err() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Err() = nil, want error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Err() = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestResult_String(t *testing.T) {
	if got := Success().String(); got != "Succeeded" {
		t.Errorf("String() = %q, want %q", got, "Succeeded")
	}
	if got := ConcurrencyFailure().String(); got != "Failed : ConcurrencyFailure" {
		t.Errorf("String() = %q, want %q", got, "Failed : ConcurrencyFailure")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("Alice@Example.com"); got != "ALICE@EXAMPLE.COM" {
		t.Errorf("Normalize() = %q, want %q", got, "ALICE@EXAMPLE.COM")
	}
}
