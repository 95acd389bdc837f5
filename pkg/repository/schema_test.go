package repository_test

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
)

func TestRegisterModels_Idempotent(t *testing.T) {
	models := repository.NewModels()

	added := repository.RegisterModels(models, keys.UUID)
	assert.Equal(t, 7, added)

	added = repository.RegisterModels(models, keys.UUID)
	assert.Equal(t, 0, added, "re-registering the same kind should be a no-op")

	assert.Len(t, models.List(), 7)
	assert.True(t, repository.IsRegistered(models, keys.UUID))
	assert.False(t, repository.IsRegistered(models, keys.ObjectID))
}

func TestRegisterModels_PerKind(t *testing.T) {
	models := repository.NewModels()
	repository.RegisterModels(models, keys.UUID)
	repository.RegisterModels(models, keys.ObjectID)
	repository.RegisterModels(models, keys.String)

	list := models.List()
	require.Len(t, list, 21)

	var accountTypes []reflect.Type
	for _, m := range list {
		if m.Collection == repository.AccountRolesCollection {
			assert.Equal(t, []string{"_id", "AccountId", "RoleId"}, m.IdentifierFields)
		}
		if m.Collection == repository.AccountsCollection {
			accountTypes = append(accountTypes, m.Type)
		}
	}
	assert.Len(t, accountTypes, 3)
}

func TestTextualKey_StoredAsString(t *testing.T) {
	models := repository.NewModels()
	repository.RegisterModels(models, keys.UUID)

	row := domain.NewAccountRole(keys.UUID, keys.UUID.New(), keys.UUID.New())

	b, err := bson.MarshalWithRegistry(models.Registry(), row)
	require.NoError(t, err)
	raw := bson.Raw(b)

	for field, want := range map[string]string{
		"_id":       row.ID.String(),
		"AccountId": row.AccountID.String(),
		"RoleId":    row.RoleID.String(),
	} {
		v := raw.Lookup(field)
		assert.Equal(t, bsontype.String, v.Type, "field %s", field)
		assert.Equal(t, want, v.StringValue(), "field %s", field)
	}

	var back domain.AccountRole[uuid.UUID]
	require.NoError(t, bson.UnmarshalWithRegistry(models.Registry(), b, &back))
	assert.Equal(t, *row, back)
}

func TestObjectIDKey_StoredNatively(t *testing.T) {
	models := repository.NewModels()
	repository.RegisterModels(models, keys.ObjectID)

	role := domain.NewRole(keys.ObjectID, "Admin")

	b, err := bson.MarshalWithRegistry(models.Registry(), role)
	require.NoError(t, err)
	assert.Equal(t, bsontype.ObjectID, bson.Raw(b).Lookup("_id").Type)

	var back domain.Role[primitive.ObjectID]
	require.NoError(t, bson.UnmarshalWithRegistry(models.Registry(), b, &back))
	assert.Equal(t, *role, back)
}
