// Package mongotest provides an in-memory stand-in for a MongoDB database.
//
// Documents are stored as BSON encoded with the same codec registry the real
// client uses, and decoded through the driver's own cursor types, so codec
// behavior matches production. Equality filters, $in, collation, sort, skip,
// limit and named unique indexes are supported. Everything else is not.
package mongotest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tendant/simple-idm-mongo/pkg/repository"
)

// Server error codes
const (
	CodeDuplicateKey         = 11000
	CodeIndexOptionsConflict = 85
)

// DB is an in-memory database. All operations are serialized.
type DB struct {
	mu        sync.Mutex
	registry  *bsoncodec.Registry
	colls     map[string]*collection
	collators map[string]*collate.Collator
	failures  map[string]error
	ops       int
}

type collection struct {
	docs    []bson.Raw
	indexes []*index
}

type index struct {
	name      string
	keys      []string
	unique    bool
	collation *options.Collation
}

// New creates an empty database that encodes documents with registry.
func New(registry *bsoncodec.Registry) *DB {
	if registry == nil {
		registry = bson.NewRegistry()
	}
	return &DB{
		registry:  registry,
		colls:     make(map[string]*collection),
		collators: make(map[string]*collate.Collator),
		failures:  make(map[string]error),
	}
}

var _ repository.Database = (*DB)(nil)

// Collection returns a handle to the named collection.
func (d *DB) Collection(name string) repository.Collection {
	return &Collection{db: d, name: name}
}

// Ping returns the error injected for "Ping", if any.
func (d *DB) Ping(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begin(ctx, "Ping")
}

// FailOn makes every later call of op return err. A nil err clears it.
func (d *DB) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Ops returns the number of operations that reached the database.
func (d *DB) Ops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ops
}

// Len returns the number of documents in a collection.
func (d *DB) Len(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.coll(name).docs)
}

// IndexInfo describes an index for assertions.
type IndexInfo struct {
	Name      string
	Keys      []string
	Unique    bool
	Collation *options.Collation
}

// Indexes lists the indexes of a collection in creation order.
func (d *DB) Indexes(name string) []IndexInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []IndexInfo
	for _, ix := range d.coll(name).indexes {
		out = append(out, IndexInfo{Name: ix.name, Keys: ix.keys, Unique: ix.unique, Collation: ix.collation})
	}
	return out
}

// CreateIndex creates a named index. Re-creating an identical index is a no-op.
func (d *DB) CreateIndex(ctx context.Context, name string, model mongo.IndexModel) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "CreateIndex"); err != nil {
		return "", err
	}

	keyDoc, ok := model.Keys.(bson.D)
	if !ok {
		return "", fmt.Errorf("mongotest: index keys must be bson.D, got %T", model.Keys)
	}
	ix := &index{}
	parts := make([]string, 0, len(keyDoc))
	for _, e := range keyDoc {
		ix.keys = append(ix.keys, e.Key)
		parts = append(parts, fmt.Sprintf("%s_%v", e.Key, e.Value))
	}
	ix.name = strings.Join(parts, "_")
	if o := model.Options; o != nil {
		if o.Name != nil {
			ix.name = *o.Name
		}
		if o.Unique != nil {
			ix.unique = *o.Unique
		}
		ix.collation = o.Collation
	}

	c := d.coll(name)
	for _, existing := range c.indexes {
		sameKeys := equalStrings(existing.keys, ix.keys) && equalCollation(existing.collation, ix.collation)
		if existing.name == ix.name {
			if sameKeys && existing.unique == ix.unique {
				return ix.name, nil
			}
			return "", indexConflict(fmt.Sprintf("An existing index has the same name as the requested index: %s", ix.name))
		}
		if sameKeys {
			return "", indexConflict(fmt.Sprintf("Index already exists with a different name: %s", existing.name))
		}
	}

	if ix.unique {
		for i := range c.docs {
			for j := i + 1; j < len(c.docs); j++ {
				if d.sameIndexKey(ix, c.docs[i], c.docs[j]) {
					return "", mongo.CommandError{
						Code:    CodeDuplicateKey,
						Name:    "DuplicateKey",
						Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: %s", name, ix.name),
					}
				}
			}
		}
	}

	c.indexes = append(c.indexes, ix)
	return ix.name, nil
}

// Collection is a handle to one in-memory collection.
type Collection struct {
	db   *DB
	name string
}

var _ repository.Collection = (*Collection)(nil)

// InsertOne inserts a document.
func (c *Collection) InsertOne(ctx context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "InsertOne"); err != nil {
		return nil, err
	}
	raw, err := d.encode(document)
	if err != nil {
		return nil, err
	}
	if err := d.insert(c.name, raw); err != nil {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Index: 0, Code: CodeDuplicateKey, Message: err.Error()}}}
	}
	return &mongo.InsertOneResult{InsertedID: raw.Lookup("_id")}, nil
}

// InsertMany inserts documents in order, stopping at the first failure.
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "InsertMany"); err != nil {
		return nil, err
	}
	res := &mongo.InsertManyResult{}
	for i, doc := range documents {
		raw, err := d.encode(doc)
		if err != nil {
			return res, err
		}
		if err := d.insert(c.name, raw); err != nil {
			return res, mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{
				WriteError: mongo.WriteError{Index: i, Code: CodeDuplicateKey, Message: err.Error()},
			}}}
		}
		res.InsertedIDs = append(res.InsertedIDs, raw.Lookup("_id"))
	}
	return res, nil
}

// ReplaceOne replaces the first matching document.
func (c *Collection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "ReplaceOne"); err != nil {
		return nil, err
	}
	var collation *options.Collation
	for _, o := range opts {
		if o != nil && o.Collation != nil {
			collation = o.Collation
		}
	}
	matches, err := d.match(c.name, filter, collation)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &mongo.UpdateResult{}, nil
	}

	raw, err := d.encode(replacement)
	if err != nil {
		return nil, err
	}
	col := d.coll(c.name)
	pos := matches[0]
	current := col.docs[pos]
	if id, err := raw.LookupErr("_id"); err == nil && !id.Equal(current.Lookup("_id")) {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 66, Message: "Performing an update on the path '_id' would modify the immutable field '_id'"}}}
	}
	if err := d.checkUnique(col, raw, pos); err != nil {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: CodeDuplicateKey, Message: err.Error()}}}
	}

	res := &mongo.UpdateResult{MatchedCount: 1}
	if !bytes.Equal(current, raw) {
		col.docs[pos] = raw
		res.ModifiedCount = 1
	}
	return res, nil
}

// DeleteOne removes the first matching document.
func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "DeleteOne"); err != nil {
		return nil, err
	}
	var collation *options.Collation
	for _, o := range opts {
		if o != nil && o.Collation != nil {
			collation = o.Collation
		}
	}
	matches, err := d.match(c.name, filter, collation)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &mongo.DeleteResult{}, nil
	}
	col := d.coll(c.name)
	pos := matches[0]
	col.docs = append(col.docs[:pos], col.docs[pos+1:]...)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

// FindOne returns the first matching document.
func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "FindOne"); err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, d.registry)
	}
	var collation *options.Collation
	for _, o := range opts {
		if o != nil && o.Collation != nil {
			collation = o.Collation
		}
	}
	matches, err := d.match(c.name, filter, collation)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, d.registry)
	}
	if len(matches) == 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, d.registry)
	}
	return mongo.NewSingleResultFromDocument(d.coll(c.name).docs[matches[0]], nil, d.registry)
}

// Find returns the matching documents, honoring sort, skip and limit.
func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "Find"); err != nil {
		return nil, err
	}

	var (
		collation *options.Collation
		sortDoc   bson.D
		skip      int64
		limit     int64
	)
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Collation != nil {
			collation = o.Collation
		}
		if s, ok := o.Sort.(bson.D); ok {
			sortDoc = s
		}
		if o.Skip != nil {
			skip = *o.Skip
		}
		if o.Limit != nil {
			limit = *o.Limit
		}
	}

	matches, err := d.match(c.name, filter, collation)
	if err != nil {
		return nil, err
	}
	col := d.coll(c.name)
	docs := make([]bson.Raw, 0, len(matches))
	for _, pos := range matches {
		docs = append(docs, col.docs[pos])
	}
	if len(sortDoc) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, e := range sortDoc {
				cmp := compareValues(lookup(docs[i], e.Key), lookup(docs[j], e.Key))
				if cmp == 0 {
					continue
				}
				if dir, ok := e.Value.(int); ok && dir < 0 {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if skip > 0 {
		if skip >= int64(len(docs)) {
			docs = nil
		} else {
			docs = docs[skip:]
		}
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}

	out := make([]interface{}, len(docs))
	for i, doc := range docs {
		out[i] = doc
	}
	return mongo.NewCursorFromDocuments(out, nil, d.registry)
}

// CountDocuments counts matching documents.
func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	d := c.db
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.begin(ctx, "CountDocuments"); err != nil {
		return 0, err
	}
	var (
		collation *options.Collation
		limit     int64
	)
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Collation != nil {
			collation = o.Collation
		}
		if o.Limit != nil {
			limit = *o.Limit
		}
	}
	matches, err := d.match(c.name, filter, collation)
	if err != nil {
		return 0, err
	}
	n := int64(len(matches))
	if limit > 0 && n > limit {
		n = limit
	}
	return n, nil
}

// begin records an operation and returns any context or injected error.
// Caller holds d.mu.
func (d *DB) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.ops++
	return d.failures[op]
}

func (d *DB) coll(name string) *collection {
	c, ok := d.colls[name]
	if !ok {
		c = &collection{}
		d.colls[name] = c
	}
	return c
}

func (d *DB) encode(v interface{}) (bson.Raw, error) {
	b, err := bson.MarshalWithRegistry(d.registry, v)
	if err != nil {
		return nil, fmt.Errorf("mongotest: encode: %w", err)
	}
	return bson.Raw(b), nil
}

func (d *DB) insert(name string, raw bson.Raw) error {
	if _, err := raw.LookupErr("_id"); err != nil {
		return errors.New("mongotest: document has no _id")
	}
	col := d.coll(name)
	if err := d.checkUnique(col, raw, -1); err != nil {
		return err
	}
	col.docs = append(col.docs, raw)
	return nil
}

// checkUnique rejects raw if it collides with another document on _id or a
// unique index. skip is the position of the document being replaced, or -1.
func (d *DB) checkUnique(col *collection, raw bson.Raw, skip int) error {
	id := raw.Lookup("_id")
	for i, doc := range col.docs {
		if i == skip {
			continue
		}
		if doc.Lookup("_id").Equal(id) {
			return fmt.Errorf("E11000 duplicate key error index: _id_ dup key: %s", id)
		}
		for _, ix := range col.indexes {
			if ix.unique && d.sameIndexKey(ix, doc, raw) {
				return fmt.Errorf("E11000 duplicate key error index: %s", ix.name)
			}
		}
	}
	return nil
}

func (d *DB) sameIndexKey(ix *index, a, b bson.Raw) bool {
	coll := d.collator(ix.collation)
	for _, k := range ix.keys {
		if !valuesEqual(lookup(a, k), lookup(b, k), coll) {
			return false
		}
	}
	return true
}

// match returns the positions of documents matching filter in insertion order.
func (d *DB) match(name string, filter interface{}, collation *options.Collation) ([]int, error) {
	if filter == nil {
		filter = bson.D{}
	}
	f, err := d.encode(filter)
	if err != nil {
		return nil, err
	}
	elems, err := f.Elements()
	if err != nil {
		return nil, fmt.Errorf("mongotest: filter: %w", err)
	}
	coll := d.collator(collation)

	var out []int
	for pos, doc := range d.coll(name).docs {
		ok, err := matchDoc(doc, elems, coll)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

func matchDoc(doc bson.Raw, elems []bson.RawElement, coll *collate.Collator) (bool, error) {
	for _, e := range elems {
		got := lookup(doc, e.Key())
		want := e.Value()

		if want.Type == bsontype.EmbeddedDocument {
			op, err := want.Document().Elements()
			if err != nil {
				return false, err
			}
			if len(op) != 1 || op[0].Key() != "$in" {
				return false, fmt.Errorf("mongotest: unsupported filter operator on %s", e.Key())
			}
			values, err := op[0].Value().Array().Values()
			if err != nil {
				return false, err
			}
			found := false
			for _, v := range values {
				if valuesEqual(got, v, coll) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
			continue
		}

		if !valuesEqual(got, want, coll) {
			return false, nil
		}
	}
	return true, nil
}

// lookup returns the value of key, or null when absent.
func lookup(doc bson.Raw, key string) bson.RawValue {
	v, err := doc.LookupErr(key)
	if err != nil {
		return bson.RawValue{Type: bsontype.Null}
	}
	return v
}

func valuesEqual(a, b bson.RawValue, coll *collate.Collator) bool {
	if coll != nil {
		as, aok := a.StringValueOK()
		bs, bok := b.StringValueOK()
		if aok && bok {
			return coll.CompareString(as, bs) == 0
		}
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func compareValues(a, b bson.RawValue) int {
	if as, ok := a.StringValueOK(); ok {
		if bs, ok := b.StringValueOK(); ok {
			return strings.Compare(as, bs)
		}
	}
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	return bytes.Compare(a.Value, b.Value)
}

// collator returns a cached collator for collation, or nil for binary comparison.
// Caller holds d.mu.
func (d *DB) collator(c *options.Collation) *collate.Collator {
	if c == nil || c.Locale == "" || c.Locale == "simple" {
		return nil
	}
	var opts []collate.Option
	switch c.Strength {
	case 1:
		opts = append(opts, collate.Loose)
	case 2:
		opts = append(opts, collate.IgnoreCase)
	default:
		return nil
	}
	key := fmt.Sprintf("%s/%d", c.Locale, c.Strength)
	if coll, ok := d.collators[key]; ok {
		return coll
	}
	coll := collate.New(language.Make(c.Locale), opts...)
	d.collators[key] = coll
	return coll
}

func indexConflict(msg string) error {
	return mongo.CommandError{Code: CodeIndexOptionsConflict, Name: "IndexOptionsConflict", Message: msg}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalCollation(a, b *options.Collation) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Locale == b.Locale && a.Strength == b.Strength
}
