// Package keys defines the identifier kinds an identity store can be built over.
//
// A Kind bundles generation, parsing and formatting for one identifier type.
// Stores are written once over a type parameter K and receive the matching
// Kind at construction, so no code path inspects the key type at runtime.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidKey is returned when an external identifier cannot be parsed
// into the configured key kind.
var ErrInvalidKey = errors.New("invalid key")

// Kind describes one identifier representation.
type Kind[K comparable] struct {
	name    string
	textual bool
	newFn   func() K
	parseFn func(string) (K, error)
	fmtFn   func(K) string
}

// UUID stores random 128-bit identifiers as canonical text.
var UUID = Kind[uuid.UUID]{
	name:    "uuid",
	textual: true,
	newFn:   uuid.New,
	parseFn: uuid.Parse,
	fmtFn:   uuid.UUID.String,
}

// ObjectID uses MongoDB's native object id.
var ObjectID = Kind[primitive.ObjectID]{
	name:    "objectid",
	newFn:   primitive.NewObjectID,
	parseFn: primitive.ObjectIDFromHex,
	fmtFn:   primitive.ObjectID.Hex,
}

// String uses a random UUID rendered as text, typed as a plain string.
var String = Kind[string]{
	name:  "string",
	newFn: uuid.NewString,
	parseFn: func(s string) (string, error) {
		if strings.TrimSpace(s) == "" {
			return "", errors.New("empty identifier")
		}
		return s, nil
	},
	fmtFn: func(s string) string { return s },
}

// Name returns the configuration name of the kind.
func (k Kind[K]) Name() string {
	return k.name
}

// Textual reports whether identifiers of this kind are not native to MongoDB
// and must be persisted in their canonical textual form.
func (k Kind[K]) Textual() bool {
	return k.textual
}

// New generates a fresh identifier.
func (k Kind[K]) New() K {
	return k.newFn()
}

// Parse converts the external string form into an identifier.
func (k Kind[K]) Parse(s string) (K, error) {
	id, err := k.parseFn(s)
	if err != nil {
		var zero K
		return zero, fmt.Errorf("%w: %s %q: %v", ErrInvalidKey, k.name, s, err)
	}
	return id, nil
}

// Format converts an identifier into its external string form.
func (k Kind[K]) Format(id K) string {
	return k.fmtFn(id)
}

// IsZero reports whether id is the zero value of K.
func (k Kind[K]) IsZero(id K) bool {
	var zero K
	return id == zero
}

// Names lists the supported kind names.
func Names() []string {
	return []string{UUID.name, ObjectID.name, String.name}
}
