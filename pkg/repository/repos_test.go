package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tendant/simple-idm-mongo/internal/mongotest"
	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
)

func setupSet[K comparable](t *testing.T, kind keys.Kind[K]) (*repository.Set[K], *mongotest.DB) {
	t.Helper()

	models := repository.NewModels()
	repository.RegisterModels(models, kind)
	db := mongotest.New(models.Registry())

	si, err := repository.NewSchemaInitializer(db, repository.SchemaOptions{RequireUniqueEmail: true})
	require.NoError(t, err)
	require.NoError(t, si.Run(context.Background()))

	set, err := repository.NewSet(db, models, kind, repository.DefaultLocale)
	require.NoError(t, err)
	return set, db
}

func newAccount[K comparable](kind keys.Kind[K], name string) *domain.Account[K] {
	a := domain.NewAccount(kind, name)
	a.NormalizedUserName = domain.Normalize(name)
	a.Email = name + "@example.com"
	a.NormalizedEmail = domain.Normalize(a.Email)
	return a
}

func TestNewSet_RequiresRegistration(t *testing.T) {
	models := repository.NewModels()
	repository.RegisterModels(models, keys.UUID)

	_, err := repository.NewSet(mongotest.New(models.Registry()), models, keys.ObjectID, "en")
	require.ErrorIs(t, err, repository.ErrModelsNotRegistered)
}

func TestAccountsRepository_CreateAndGet(t *testing.T) {
	set, _ := setupSet(t, keys.UUID)
	ctx := context.Background()

	a := newAccount(keys.UUID, "alice")
	require.NoError(t, set.Accounts.Create(ctx, a))

	got, err := set.Accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got, err = set.Accounts.GetByNormalizedUserName(ctx, "alice")
	require.NoError(t, err, "lookup should ignore case")
	assert.Equal(t, a.ID, got.ID)

	got, err = set.Accounts.GetByNormalizedEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = set.Accounts.GetByID(ctx, keys.UUID.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountsRepository_DuplicateUserName(t *testing.T) {
	set, _ := setupSet(t, keys.ObjectID)
	ctx := context.Background()

	require.NoError(t, set.Accounts.Create(ctx, newAccount(keys.ObjectID, "bob")))

	dup := newAccount(keys.ObjectID, "BOB")
	dup.Email = "other@example.com"
	dup.NormalizedEmail = domain.Normalize(dup.Email)

	err := set.Accounts.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, repository.IsDuplicate(err))
}

func TestAccountsRepository_ReplaceIfStamp(t *testing.T) {
	set, _ := setupSet(t, keys.String)
	ctx := context.Background()

	a := newAccount(keys.String, "carol")
	require.NoError(t, set.Accounts.Create(ctx, a))

	stamp := a.ConcurrencyStamp
	a.ConcurrencyStamp = "next"
	a.PhoneNumber = "555-0100"

	res, err := set.Accounts.ReplaceIfStamp(ctx, a, "stale")
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)
	assert.Equal(t, int64(0), res.Count)

	res, err = set.Accounts.ReplaceIfStamp(ctx, a, stamp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	got, err := set.Accounts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", got.PhoneNumber)
	assert.Equal(t, "next", got.ConcurrencyStamp)
}

func TestAccountsRepository_Unacknowledged(t *testing.T) {
	set, db := setupSet(t, keys.UUID)
	ctx := context.Background()

	a := newAccount(keys.UUID, "dave")
	require.NoError(t, set.Accounts.Create(ctx, a))

	db.FailOn("ReplaceOne", mongo.ErrUnacknowledgedWrite)
	res, err := set.Accounts.ReplaceIfStamp(ctx, a, a.ConcurrencyStamp)
	require.NoError(t, err)
	assert.False(t, res.Acknowledged)

	db.FailOn("DeleteOne", mongo.ErrUnacknowledgedWrite)
	res, err = set.Accounts.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, res.Acknowledged)
}

func TestAccountsRepository_ListAndCount(t *testing.T) {
	set, _ := setupSet(t, keys.ObjectID)
	ctx := context.Background()

	var ids []primitive.ObjectID
	for _, name := range []string{"a1", "a2", "a3"} {
		a := newAccount(keys.ObjectID, name)
		require.NoError(t, set.Accounts.Create(ctx, a))
		ids = append(ids, a.ID)
	}

	n, err := set.Accounts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	page, err := set.Accounts.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	all, err := set.Accounts.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := set.Accounts.ListByIDs(ctx, []primitive.ObjectID{ids[2], ids[0], keys.ObjectID.New()})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, ids[0], some[0].ID)

	none, err := set.Accounts.ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRolesRepository_CaseInsensitiveName(t *testing.T) {
	set, _ := setupSet(t, keys.UUID)
	ctx := context.Background()

	admin := domain.NewRole(keys.UUID, "Admin")
	admin.NormalizedName = domain.Normalize(admin.Name)
	require.NoError(t, set.Roles.Create(ctx, admin))

	got, err := set.Roles.GetByNormalizedName(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	dup := domain.NewRole(keys.UUID, "ADMIN")
	dup.NormalizedName = domain.Normalize(dup.Name)
	err = set.Roles.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, repository.IsDuplicate(err))

	_, err = set.Roles.GetByNormalizedName(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
}

func TestAccountLoginsRepository_GlobalUniqueness(t *testing.T) {
	set, _ := setupSet(t, keys.UUID)
	ctx := context.Background()

	info := domain.LoginInfo{LoginProvider: "google", ProviderKey: "sub-1", ProviderDisplayName: "Google"}
	first := domain.NewAccountLogin(keys.UUID, keys.UUID.New(), info)
	require.NoError(t, set.AccountLogins.Create(ctx, first))

	second := domain.NewAccountLogin(keys.UUID, keys.UUID.New(), info)
	err := set.AccountLogins.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, repository.IsDuplicate(err))

	got, err := set.AccountLogins.GetByProviderKey(ctx, "google", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, first.AccountID, got.AccountID)
}

func TestAccountTokensRepository_Lifecycle(t *testing.T) {
	set, _ := setupSet(t, keys.ObjectID)
	ctx := context.Background()
	owner := keys.ObjectID.New()

	_, err := set.AccountTokens.Get(ctx, owner, "p", "n")
	require.ErrorIs(t, err, domain.ErrTokenNotFound)

	tok := domain.NewAccountToken(keys.ObjectID, owner, "p", "n", "v1")
	require.NoError(t, set.AccountTokens.Create(ctx, tok))

	tok.Value = "v2"
	res, err := set.AccountTokens.Replace(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	got, err := set.AccountTokens.Get(ctx, owner, "p", "n")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	res, err = set.AccountTokens.Delete(ctx, owner, "p", "n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
}

func TestAccountClaimsRepository_BatchAndScope(t *testing.T) {
	set, _ := setupSet(t, keys.String)
	ctx := context.Background()
	alice, bob := keys.String.New(), keys.String.New()
	c := domain.Claim{Type: "department", Value: "sales"}

	require.NoError(t, set.AccountClaims.CreateMany(ctx, []*domain.AccountClaim[string]{
		domain.NewAccountClaim(keys.String, alice, c),
		domain.NewAccountClaim(keys.String, alice, domain.Claim{Type: "level", Value: "3"}),
		domain.NewAccountClaim(keys.String, bob, c),
	}))
	require.NoError(t, set.AccountClaims.CreateMany(ctx, nil))

	rows, err := set.AccountClaims.ListByAccount(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	owners, err := set.AccountClaims.AccountIDsForClaim(ctx, c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice, bob}, owners)

	scoped, err := set.AccountClaims.ListByClaim(ctx, bob, c)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, bob, scoped[0].AccountID)

	err = set.AccountClaims.CreateMany(ctx, []*domain.AccountClaim[string]{domain.NewAccountClaim(keys.String, bob, c)})
	assert.True(t, repository.IsDuplicate(err))
}

func TestAccountRolesRepository_Membership(t *testing.T) {
	set, _ := setupSet(t, keys.UUID)
	ctx := context.Background()
	account, role := keys.UUID.New(), keys.UUID.New()

	require.NoError(t, set.AccountRoles.Create(ctx, domain.NewAccountRole(keys.UUID, account, role)))
	err := set.AccountRoles.Create(ctx, domain.NewAccountRole(keys.UUID, account, role))
	assert.True(t, repository.IsDuplicate(err))

	ok, err := set.AccountRoles.Exists(ctx, account, role)
	require.NoError(t, err)
	assert.True(t, ok)

	roleIDs, err := set.AccountRoles.RoleIDsByAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{role}, roleIDs)

	res, err := set.AccountRoles.Delete(ctx, account, role)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	members, err := set.AccountRoles.AccountIDsByRole(ctx, role)
	require.NoError(t, err)
	assert.Empty(t, members)
}
