package mongostore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-idm-mongo/internal/mongotest"
	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/mongostore"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

type testStores[K comparable] struct {
	db       *mongotest.DB
	roles    *mongostore.RoleStore[K]
	accounts *mongostore.AccountStore[K]
	observer *recordingObserver
}

func setupStores[K comparable](t *testing.T, kind keys.Kind[K], opts ...func(*mongostore.Options)) *testStores[K] {
	t.Helper()

	models := repository.NewModels()
	repository.RegisterModels(models, kind)
	db := mongotest.New(models.Registry())

	si, err := repository.NewSchemaInitializer(db, repository.SchemaOptions{RequireUniqueEmail: true})
	require.NoError(t, err)
	require.NoError(t, si.Run(context.Background()))

	set, err := repository.NewSet(db, models, kind, repository.DefaultLocale)
	require.NoError(t, err)

	obs := &recordingObserver{}
	o := mongostore.Options{Observer: obs}
	for _, fn := range opts {
		fn(&o)
	}
	roles := mongostore.NewRoleStore(set, o)
	return &testStores[K]{
		db:       db,
		roles:    roles,
		accounts: mongostore.NewAccountStore(set, roles, o),
		observer: obs,
	}
}

func (ts *testStores[K]) createAccount(t *testing.T, kind keys.Kind[K], userName string) *domain.Account[K] {
	t.Helper()
	a := domain.NewAccount(kind, userName)
	a.Email = userName + "@example.com"
	res, err := ts.accounts.Create(context.Background(), a)
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	return a
}

func (ts *testStores[K]) createRole(t *testing.T, kind keys.Kind[K], name string) *domain.Role[K] {
	t.Helper()
	r := domain.NewRole(kind, name)
	res, err := ts.roles.Create(context.Background(), r)
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	return r
}

type observation struct {
	store   string
	op      string
	outcome store.Outcome
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveOperation(storeName, op string, outcome store.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{storeName, op, outcome})
}

func (r *recordingObserver) last() observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.obs) == 0 {
		return observation{}
	}
	return r.obs[len(r.obs)-1]
}
