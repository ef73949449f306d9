package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keywordsKey = "entries:keywords"
	indexKey    = "entries:index"

	mgetBatch = 500
)

func entryKey(id uuid.UUID) string {
	return fmt.Sprintf("entry:%s", id)
}

// RedisStore keeps one JSON document per entry, a keyword -> id hash that
// enforces uniqueness, and a sorted set of ids by creation time.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		logger: logger,
		now:    time.Now,
	}
}

// Close is a no-op: the client is owned by whoever connected it.
func (s *RedisStore) Close() {}

// Insert claims the keyword first so concurrent inserts of the same keyword
// cannot both succeed.
func (s *RedisStore) Insert(ctx context.Context, entry *model.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := s.now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	claimed, err := s.rdb.HSetNX(ctx, keywordsKey, entry.Keyword, entry.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("claim keyword: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, entry.Keyword)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.rdb.HDel(ctx, keywordsKey, entry.Keyword)
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entryKey(entry.ID), data, 0)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMicro()), Member: entry.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		s.rdb.HDel(ctx, keywordsKey, entry.Keyword)
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*model.Entry, error) {
	val, err := s.rdb.Get(ctx, entryKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var entry model.Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &entry, nil
}

// Find loads every entry and filters in memory. The calendar holds at most a
// few thousand keywords, so there are no secondary indexes.
func (s *RedisStore) Find(ctx context.Context, q Query) ([]model.Entry, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	entries := make([]model.Entry, 0, len(ids))
	for start := 0; start < len(ids); start += mgetBatch {
		end := min(start+mgetBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, idStr := range ids[start:end] {
			keys = append(keys, "entry:"+idStr)
		}

		vals, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, 0, err
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			var e model.Entry
			if err := json.Unmarshal([]byte(str), &e); err != nil {
				s.logger.Error("Skipping undecodable entry",
					zap.String("key", keys[i]),
					zap.Error(err))
				continue
			}
			entries = append(entries, e)
		}
	}

	page, total := q.apply(entries)
	return page, total, nil
}

// ConditionalUpdate runs the status check and the write for every target
// inside one Lua script, so the whole batch is atomic and a concurrent writer
// can only make an entry miss, never fail the call.
func (s *RedisStore) ConditionalUpdate(ctx context.Context, ids []uuid.UUID, expected []model.Status, patch model.Patch) ([]model.Entry, error) {
	ids = dedupe(ids)
	if len(ids) == 0 || len(expected) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}

	set, clear := patchDocument(patch)
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		return nil, err
	}
	setJSON, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	clearJSON, err := json.Marshal(clear)
	if err != nil {
		return nil, err
	}
	// RFC3339Nano is what time.Time marshals to, so the document stays decodable.
	updatedAt := s.now().UTC().Format(time.RFC3339Nano)

	raw, err := conditionalUpdateScript.Run(ctx, s.rdb, keys,
		string(expectedJSON), string(setJSON), string(clearJSON), updatedAt,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("conditional update: %w", err)
	}

	updated := make([]model.Entry, 0, len(raw))
	for _, doc := range raw {
		var e model.Entry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		updated = append(updated, e)
	}
	return updated, nil
}

// Delete removes an entry and releases its keyword. Published entries are refused.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := deleteScript.Run(ctx, s.rdb,
		[]string{entryKey(id), keywordsKey, indexKey},
		id.String(), string(model.StatusPublished),
	).Int()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	switch res {
	case 0:
		return ErrNotFound
	case -1:
		return lifecycle.ErrImmutable
	default:
		return nil
	}
}
