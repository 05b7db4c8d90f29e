package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection implements ports.Collection on a MongoDB collection.
// Conditional writes are filtered UpdateOne/DeleteOne calls, which MongoDB
// applies atomically to a single document.
type Collection struct {
	client     *driver.Client
	coll       *driver.Collection
	ownsClient bool
}

// Config names the database and collection holding the records.
type Config struct {
	URI        string
	Database   string
	Collection string
}

func (c Config) withDefaults() Config {
	if c.Database == "" {
		c.Database = "sessionlock"
	}
	if c.Collection == "" {
		c.Collection = "sessions"
	}
	return c
}

// Connect dials MongoDB and returns a collection that owns the client.
func Connect(ctx context.Context, cfg Config) (*Collection, error) {
	cfg = cfg.withDefaults()
	client, err := driver.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	coll := NewFromClient(client, cfg.Database, cfg.Collection)
	coll.ownsClient = true
	return coll, nil
}

// NewFromClient wraps an existing client. Close leaves a borrowed client connected.
func NewFromClient(client *driver.Client, database, collection string) *Collection {
	return &Collection{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

// InsertOne writes rec, replacing any document under the same key.
func (c *Collection) InsertOne(ctx context.Context, rec *domain.Record) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := c.coll.ReplaceOne(ctx, keyFilter(rec.Key()), toDocument(rec), opts); err != nil {
		return fmt.Errorf("failed to insert into mongo: %w", err)
	}
	return nil
}

// FindOne loads the document stored under key.
func (c *Collection) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	var doc document
	err := c.coll.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find in mongo: %w", err)
	}
	return doc.toRecord(), nil
}

// UpdateOne applies a $set to the document matching f.
func (c *Collection) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	res, err := c.coll.UpdateOne(ctx, buildFilter(f), buildUpdate(upd))
	if err != nil {
		return false, fmt.Errorf("failed to update in mongo: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// DeleteOne removes the document matching f.
func (c *Collection) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, buildFilter(f))
	if err != nil {
		return false, fmt.Errorf("failed to delete from mongo: %w", err)
	}
	return res.DeletedCount == 1, nil
}

// DeleteExpired removes every document with expires before the given instant.
func (c *Collection) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{{Key: domain.FieldExpires, Value: bson.D{{Key: "$lt", Value: before}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired records: %w", err)
	}
	return res.DeletedCount, nil
}

// List returns every document in the collection.
func (c *Collection) List(ctx context.Context) ([]*domain.Record, error) {
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]*domain.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toRecord())
	}
	return records, nil
}

// EnsureIndexes creates the unique (id, namespace) lookup index and an expires index for sweeps.
func (c *Collection) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateMany(ctx, []driver.IndexModel{
		{
			Keys:    bson.D{{Key: domain.FieldID, Value: 1}, {Key: domain.FieldNamespace, Value: 1}},
			Options: options.Index().SetName("id_namespace").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: domain.FieldExpires, Value: 1}},
			Options: options.Index().SetName("expires"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Ping checks the connection to the primary.
func (c *Collection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects the client when the collection created it.
func (c *Collection) Close() error {
	if !c.ownsClient {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
