package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const defaultMongoDatabase = "tolet"

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MongoStore keeps each collection in a MongoDB collection of the same name.
// Ids are ObjectID hex strings.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and pings the primary. The database name is
// taken from the URI path.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	name := cs.Database
	if name == "" {
		name = defaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	slog.Info("connected to database", "driver", "mongodb", "database", name)
	return &MongoStore{client: client, db: client.Database(name)}, nil
}

// Insert stores doc and returns it with the generated ObjectID.
func (s *MongoStore) Insert(ctx context.Context, coll string, doc Document) (Document, error) {
	body := bson.M(doc.WithoutID())
	res, err := s.db.Collection(coll).InsertOne(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	body[IDKey] = res.InsertedID
	return fromBSON(body), nil
}

// FindByID fetches a document by ObjectID hex.
func (s *MongoStore) FindByID(ctx context.Context, coll, id string) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.decodeOne(s.db.Collection(coll).FindOne(ctx, bson.M{IDKey: oid}), "find "+coll)
}

// Find returns every document matching filter in natural order.
func (s *MongoStore) Find(ctx context.Context, coll string, filter Filter) ([]Document, error) {
	cur, err := s.db.Collection(coll).Find(ctx, filterBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// Replace runs a single pipeline update: the document becomes m.Set plus the
// original _id, with every Append key concatenated onto its stored array.
// Fields are written with $setField, so names containing "." or starting with
// "$" are stored as given. Requires MongoDB 5.0 or later.
func (s *MongoStore) Replace(ctx context.Context, coll, id string, m Mutation) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	pipeline := mongo.Pipeline{{{Key: "$replaceWith", Value: replacement(m)}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := s.db.Collection(coll).FindOneAndUpdate(ctx, bson.M{IDKey: oid}, pipeline, opts)
	return s.decodeOne(res, "replace "+coll)
}

// replacement builds the aggregation expression for the new document.
func replacement(m Mutation) any {
	var doc any = bson.M{IDKey: "$" + IDKey}

	set := m.Set.WithoutID(m.appendKeys()...)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// $literal keeps user values such as "$x" from being read as field paths.
		doc = setField(doc, k, bson.M{"$literal": set[k]})
	}

	for _, k := range m.appendKeys() {
		vals := bson.A{}
		for _, v := range m.Append[k] {
			vals = append(vals, v)
		}
		stored := bson.M{"$getField": bson.M{"field": bson.M{"$literal": k}, "input": "$$ROOT"}}
		doc = setField(doc, k, bson.M{"$concatArrays": bson.A{
			bson.M{"$ifNull": bson.A{stored, bson.A{}}},
			bson.M{"$literal": vals},
		}})
	}
	return doc
}

func setField(input any, field string, value any) bson.M {
	return bson.M{"$setField": bson.M{
		"field": bson.M{"$literal": field},
		"input": input,
		"value": value,
	}}
}

// DeleteByID removes one document and returns it.
func (s *MongoStore) DeleteByID(ctx context.Context, coll, id string) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.decodeOne(s.db.Collection(coll).FindOneAndDelete(ctx, bson.M{IDKey: oid}), "delete "+coll)
}

// DeleteMany removes the documents matching filter. Documents matched by the
// read but inserted concurrently with the delete may be returned without
// having been removed.
func (s *MongoStore) DeleteMany(ctx context.Context, coll string, filter Filter) ([]Document, error) {
	if len(filter) == 0 {
		return nil, errEmptyFilter
	}

	docs, err := s.Find(ctx, coll, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return docs, nil
	}

	ids := make(bson.A, 0, len(docs))
	for _, d := range docs {
		oid, err := primitive.ObjectIDFromHex(d.ID())
		if err != nil {
			continue
		}
		ids = append(ids, oid)
	}
	if _, err := s.db.Collection(coll).DeleteMany(ctx, bson.M{IDKey: bson.M{"$in": ids}}); err != nil {
		return nil, fmt.Errorf("delete many %s: %w", coll, err)
	}
	return docs, nil
}

// WithTx runs fn directly. Multi-document transactions need a replica set,
// which standalone deployments lack, so writes made before a failure stay.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, s)
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) decodeOne(res *mongo.SingleResult, op string) (Document, error) {
	var m bson.M
	err := res.Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fromBSON(m), nil
}

func filterBSON(filter Filter) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

// fromBSON converts decoded BSON into plain JSON-compatible values.
func fromBSON(m bson.M) Document {
	doc := make(Document, len(m))
	for k, v := range m {
		doc[k] = plainValue(v)
	}
	return doc
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case bson.M:
		return map[string]any(fromBSON(t))
	case map[string]any:
		return map[string]any(fromBSON(t))
	case bson.D:
		return map[string]any(fromBSON(t.Map()))
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}
