package repository

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/keys"
)

// Collection names
const (
	RolesCollection         = "Roles"
	RoleClaimsCollection    = "RoleClaims"
	AccountsCollection      = "Accounts"
	AccountClaimsCollection = "AccountClaims"
	AccountLoginsCollection = "AccountLogins"
	AccountTokensCollection = "AccountTokens"
	AccountRolesCollection  = "AccountRoles"
)

// Model describes how one entity type is persisted for one key kind.
type Model struct {
	Collection string
	Type       reflect.Type
	KeyKind    string
	// IdentifierFields hold values of the key kind.
	IdentifierFields []string
}

type modelKey struct {
	typ  reflect.Type
	kind string
}

// Models owns entity registration and the BSON codec registry handed to the
// MongoDB client. Create one per process and register every key kind in use
// before connecting.
type Models struct {
	mu       sync.Mutex
	registry *bsoncodec.Registry
	models   map[modelKey]Model
	codecs   map[reflect.Type]string
}

// NewModels creates an empty registration set.
func NewModels() *Models {
	return &Models{
		registry: bson.NewRegistry(),
		models:   make(map[modelKey]Model),
		codecs:   make(map[reflect.Type]string),
	}
}

// RegisterModels registers every entity type for kind. Registering a pair
// that is already present is a no-op. It returns the number of models added.
func RegisterModels[K comparable](m *Models, kind keys.Kind[K]) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind.Textual() {
		registerTextualKey(m, kind)
	}

	added := 0
	for _, model := range modelsFor(kind) {
		key := modelKey{typ: model.Type, kind: model.KeyKind}
		if _, ok := m.models[key]; ok {
			continue
		}
		m.models[key] = model
		added++
	}
	return added
}

// IsRegistered reports whether every entity type is registered for kind.
func IsRegistered[K comparable](m *Models, kind keys.Kind[K]) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, model := range modelsFor(kind) {
		if _, ok := m.models[modelKey{typ: model.Type, kind: model.KeyKind}]; !ok {
			return false
		}
	}
	return true
}

// Registry returns the codec registry to configure the client with.
func (m *Models) Registry() *bsoncodec.Registry {
	return m.registry
}

// List returns the registered models ordered by collection and key kind.
func (m *Models) List() []Model {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Model, 0, len(m.models))
	for _, model := range m.models {
		out = append(out, model)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Collection != out[j].Collection {
			return out[i].Collection < out[j].Collection
		}
		return out[i].KeyKind < out[j].KeyKind
	})
	return out
}

func modelsFor[K comparable](kind keys.Kind[K]) []Model {
	name := kind.Name()
	return []Model{
		{RolesCollection, reflect.TypeOf(domain.Role[K]{}), name, []string{"_id"}},
		{RoleClaimsCollection, reflect.TypeOf(domain.RoleClaim[K]{}), name, []string{"_id", "RoleId"}},
		{AccountsCollection, reflect.TypeOf(domain.Account[K]{}), name, []string{"_id"}},
		{AccountClaimsCollection, reflect.TypeOf(domain.AccountClaim[K]{}), name, []string{"_id", "AccountId"}},
		{AccountLoginsCollection, reflect.TypeOf(domain.AccountLogin[K]{}), name, []string{"_id", "AccountId"}},
		{AccountTokensCollection, reflect.TypeOf(domain.AccountToken[K]{}), name, []string{"_id", "AccountId"}},
		{AccountRolesCollection, reflect.TypeOf(domain.AccountRole[K]{}), name, []string{"_id", "AccountId", "RoleId"}},
	}
}

// registerTextualKey stores identifiers of kind as their canonical string.
// Caller holds m.mu.
func registerTextualKey[K comparable](m *Models, kind keys.Kind[K]) {
	t := reflect.TypeOf((*K)(nil)).Elem()
	if _, ok := m.codecs[t]; ok {
		return
	}

	m.registry.RegisterTypeEncoder(t, bsoncodec.ValueEncoderFunc(
		func(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
			id, ok := val.Interface().(K)
			if !ok {
				return bsoncodec.ValueEncoderError{Name: "TextualKeyEncodeValue", Types: []reflect.Type{t}, Received: val}
			}
			return vw.WriteString(kind.Format(id))
		}))

	m.registry.RegisterTypeDecoder(t, bsoncodec.ValueDecoderFunc(
		func(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
			if !val.CanSet() || val.Type() != t {
				return bsoncodec.ValueDecoderError{Name: "TextualKeyDecodeValue", Types: []reflect.Type{t}, Received: val}
			}
			switch vr.Type() {
			case bsontype.String:
				s, err := vr.ReadString()
				if err != nil {
					return err
				}
				id, err := kind.Parse(s)
				if err != nil {
					return err
				}
				val.Set(reflect.ValueOf(id))
				return nil
			case bsontype.Null:
				val.Set(reflect.Zero(t))
				return vr.ReadNull()
			default:
				return fmt.Errorf("cannot decode %v into %s key", vr.Type(), kind.Name())
			}
		}))

	m.codecs[t] = kind.Name()
}
