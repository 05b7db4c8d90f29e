package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Collection implements ports.Collection using Redis.
// Each record is a hash; conditional writes run as Lua scripts so the guard
// and the write happen in one atomic step.
type Collection struct {
	client    *backend.Client
	prefix    string
	retention time.Duration
}

type Option func(*Collection)

// WithPrefix sets the key prefix for records and the expiry index.
func WithPrefix(prefix string) Option {
	return func(c *Collection) {
		c.prefix = prefix
	}
}

// WithRetention lets Redis drop a record's key this long after it expires.
// Zero (the default) keeps expired records until they are evicted or swept.
func WithRetention(d time.Duration) Option {
	return func(c *Collection) {
		c.retention = d
	}
}

// New creates a new Redis collection with options.
func New(address, password string, db int, opts ...Option) *Collection {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis collection from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Collection {
	coll := &Collection{
		client: client,
		prefix: "sessionlock:",
	}

	for _, opt := range opts {
		opt(coll)
	}

	return coll
}

func (c *Collection) key(k domain.Key) string {
	return c.prefix + "record:" + k.Namespace + ":" + k.ID
}

func (c *Collection) indexKey() string {
	return c.prefix + "index"
}

// InsertOne writes the record hash and indexes it by expiry in one transaction.
func (c *Collection) InsertOne(ctx context.Context, rec *domain.Record) error {
	key := c.key(rec.Key())
	pipe := c.client.TxPipeline()

	// 1. Replace the hash
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeRecord(rec)...)
	if c.retention > 0 {
		pipe.PExpireAt(ctx, key, rec.Expires.Add(c.retention))
	}

	// 2. Add to Index (ZSET), Score = expires in unix ms
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{
		Score:  float64(ms(rec.Expires)),
		Member: key,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert into redis: %w", err)
	}
	return nil
}

// FindOne loads the record hash stored under key.
func (c *Collection) FindOne(ctx context.Context, key domain.Key) (*domain.Record, error) {
	fields, err := c.client.HGetAll(ctx, c.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	rec, err := decodeRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, nil
}

// UpdateOne runs the guarded update script.
func (c *Collection) UpdateOne(ctx context.Context, f ports.Filter, upd ports.Update) (bool, error) {
	newExpires := ""
	if upd.Expires != nil {
		newExpires = strconv.FormatInt(ms(*upd.Expires), 10)
	}

	args := encodeFilter(f)
	args = append(args, newExpires, c.retention.Milliseconds())
	args = append(args, encodeUpdate(upd)...)

	n, err := updateScript.Run(ctx, c.client, []string{c.key(f.Key), c.indexKey()}, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to update in redis: %w", err)
	}
	return n == 1, nil
}

// DeleteOne runs the guarded delete script.
func (c *Collection) DeleteOne(ctx context.Context, f ports.Filter) (bool, error) {
	n, err := deleteScript.Run(ctx, c.client, []string{c.key(f.Key), c.indexKey()}, encodeFilter(f)...).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to delete from redis: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired sweeps the expiry index.
func (c *Collection) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := sweepScript.Run(ctx, c.client, []string{c.indexKey()}, ms(before)).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired records: %w", err)
	}
	return n, nil
}

// List returns every indexed record.
// Index entries whose hash has already gone (retention expiry) are pruned lazily.
func (c *Collection) List(ctx context.Context) ([]*domain.Record, error) {
	keys, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(keys) == 0 {
		return []*domain.Record{}, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*backend.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := make([]*domain.Record, 0, len(keys))
	var stale []any
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, keys[i])
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}

	if len(stale) > 0 {
		if err := c.client.ZRem(ctx, c.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune index: %w", err)
		}
	}
	return records, nil
}

// EnsureIndexes is a no-op: keys embed (namespace, id) and the expiry index is maintained on write.
func (c *Collection) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Ping checks the connection.
func (c *Collection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (c *Collection) Close() error {
	return c.client.Close()
}
