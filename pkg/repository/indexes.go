package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/text/language"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
)

// DefaultLocale is the collation locale used when none is configured.
const DefaultLocale = "en"

// CaseInsensitiveCollation compares strings at primary strength, ignoring case and diacritics.
func CaseInsensitiveCollation(locale string) *options.Collation {
	return &options.Collation{Locale: locale, Strength: 1}
}

// ValidateLocale checks that locale is usable as a collation locale.
func ValidateLocale(locale string) error {
	if locale == "" {
		return errors.New("collation locale is required")
	}
	if locale == "simple" {
		return nil
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("invalid collation locale %q: %w", locale, err)
	}
	return nil
}

// IndexSpec describes one named index.
type IndexSpec struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
	Collated   bool
}

// IndexSpecs returns the index set the stores rely on.
func IndexSpecs(requireUniqueEmail bool) []IndexSpec {
	asc := func(fields ...string) bson.D {
		d := make(bson.D, 0, len(fields))
		for _, f := range fields {
			d = append(d, bson.E{Key: f, Value: 1})
		}
		return d
	}

	return []IndexSpec{
		{RolesCollection, "UX_Role_Name", asc("Name"), true, true},
		{RolesCollection, "UX_Role_NormalizedName", asc("NormalizedName"), true, true},

		{AccountsCollection, "UX_Account_UserName", asc("UserName"), true, true},
		{AccountsCollection, "UX_Account_NormalizedUserName", asc("NormalizedUserName"), true, true},
		{AccountsCollection, "IX_Account_Email", asc("Email"), requireUniqueEmail, true},
		{AccountsCollection, "IX_Account_NormalizedEmail", asc("NormalizedEmail"), requireUniqueEmail, true},

		{AccountRolesCollection, "UX_AccountRole_AccountIdRoleId", asc("AccountId", "RoleId"), true, false},
		{AccountRolesCollection, "IX_AccountRole_AccountId", asc("AccountId"), false, false},
		{AccountRolesCollection, "IX_AccountRole_RoleId", asc("RoleId"), false, false},

		{AccountTokensCollection, "UX_AccountToken_NameLoginProviderAccountId", asc("Name", "LoginProvider", "AccountId"), true, true},

		{AccountLoginsCollection, "IX_AccountLogin_AccountId", asc("AccountId"), false, false},
		{AccountLoginsCollection, "UX_AccountLogin_ProviderKeyLoginProviderAccountId", asc("ProviderKey", "LoginProvider", "AccountId"), true, true},
		{AccountLoginsCollection, "UX_AccountLogin_LoginProviderProviderKey", asc("LoginProvider", "ProviderKey"), true, true},

		{AccountClaimsCollection, "IX_AccountClaim_AccountId", asc("AccountId"), false, false},
		{AccountClaimsCollection, "UX_AccountClaim_AccountIdTypeValue", asc("AccountId", "Type", "Value"), true, true},

		{RoleClaimsCollection, "IX_RoleClaim_RoleId", asc("RoleId"), false, false},
		{RoleClaimsCollection, "UX_RoleClaim_RoleIdTypeValue", asc("RoleId", "Type", "Value"), true, true},
	}
}

// SchemaOptions configures the SchemaInitializer.
type SchemaOptions struct {
	Locale             string
	RequireUniqueEmail bool
	Logger             *slog.Logger
}

// SchemaInitializer creates the named indexes. Creating an index that already
// exists with the same definition is a no-op, so Run is safe to repeat.
type SchemaInitializer struct {
	db                 Database
	collation          *options.Collation
	requireUniqueEmail bool
	logger             *slog.Logger
}

// NewSchemaInitializer validates the locale and returns an initializer.
func NewSchemaInitializer(db Database, opts SchemaOptions) (*SchemaInitializer, error) {
	locale := opts.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	if err := ValidateLocale(locale); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaInitializer{
		db:                 db,
		collation:          CaseInsensitiveCollation(locale),
		requireUniqueEmail: opts.RequireUniqueEmail,
		logger:             logger,
	}, nil
}

// Run creates every index. The first failure aborts the run and is returned.
func (s *SchemaInitializer) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	specs := IndexSpecs(s.requireUniqueEmail)
	for _, spec := range specs {
		opts := options.Index().SetName(spec.Name).SetUnique(spec.Unique)
		if spec.Collated {
			opts.SetCollation(s.collation)
		}

		name, err := s.db.CreateIndex(ctx, spec.Collection, mongo.IndexModel{Keys: spec.Keys, Options: opts})
		if err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", spec.Name, spec.Collection, err)
		}
		s.logger.Debug("index ensured", "collection", spec.Collection, "index", name, "unique", spec.Unique)
	}

	s.logger.Info("schema initialized", "indexes", len(specs), "locale", s.collation.Locale)
	return nil
}
