// Package redisstore implements urlalias.Store on Redis.
//
// Records are JSON strings under "<prefix>alias:<id>". A sorted set scored by
// an insertion counter keeps Find ordered.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "urlalias:"

// Store implements urlalias.Store using Redis
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New creates a store on an existing client. An empty prefix uses DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Connect parses a redis:// URL, pings the server and returns a store.
func Connect(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &urlalias.StoreError{Backend: "redis", Op: "connect", Err: err}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, &urlalias.StoreError{Backend: "redis", Op: "connect", Err: err}
	}
	return New(rdb, prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) aliasKey(id uuid.UUID) string { return s.prefix + "alias:" + id.String() }
func (s *Store) orderKey() string             { return s.prefix + "order" }
func (s *Store) orderSeqKey() string          { return s.prefix + "seq:order" }
func (s *Store) linkSeqKey() string           { return s.prefix + "seq:link" }

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, urlalias.ErrNotFound) {
		return err
	}
	return &urlalias.StoreError{Backend: "redis", Op: op, Err: err}
}

func encode(alias *urlalias.URLAlias) ([]byte, error) {
	stored := alias.Clone()
	stored.DisplayID = ""
	return json.Marshal(stored)
}

func decode(data string) (*urlalias.URLAlias, error) {
	var alias urlalias.URLAlias
	if err := json.Unmarshal([]byte(data), &alias); err != nil {
		return nil, err
	}
	return &alias, nil
}

func (s *Store) Find(ctx context.Context, m urlalias.Match) ([]*urlalias.URLAlias, error) {
	ids, err := s.rdb.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, s.wrap("find", err)
	}
	result := make([]*urlalias.URLAlias, 0)
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "alias:" + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrap("find", err)
	}
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			// removed between ZRANGE and MGET
			continue
		}
		alias, err := decode(data)
		if err != nil {
			return nil, s.wrap("find", err)
		}
		if m.Matches(alias) {
			result = append(result, alias)
		}
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, alias *urlalias.URLAlias) (*urlalias.URLAlias, error) {
	stored := alias.Clone()
	if stored.ID.ID == uuid.Nil {
		stored.ID.ID = uuid.New()
	}
	stored.CreatedAt = time.Now().UTC()
	data, err := encode(stored)
	if err != nil {
		return nil, s.wrap("create", err)
	}

	seq, err := s.rdb.Incr(ctx, s.orderSeqKey()).Result()
	if err != nil {
		return nil, s.wrap("create", err)
	}
	// ZADD NX leaves the order of an existing record alone when SETNX fails.
	var created *redis.BoolCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, s.aliasKey(stored.ID.ID), data, 0)
		pipe.ZAddNX(ctx, s.orderKey(), &redis.Z{Score: float64(seq), Member: stored.ID.ID.String()})
		return nil
	})
	if err != nil {
		return nil, s.wrap("create", err)
	}
	if !created.Val() {
		return nil, s.wrap("create", urlalias.ErrForbidden)
	}
	stored.DisplayID = ""
	return stored, nil
}

func (s *Store) Update(ctx context.Context, alias *urlalias.URLAlias) error {
	current, err := s.Load(ctx, alias.ID.ID)
	if err != nil {
		return err
	}
	stored := alias.Clone()
	stored.CreatedAt = current.CreatedAt
	data, err := encode(stored)
	if err != nil {
		return s.wrap("update", err)
	}
	ok, err := s.rdb.SetXX(ctx, s.aliasKey(alias.ID.ID), data, 0).Result()
	if err != nil {
		return s.wrap("update", err)
	}
	if !ok {
		return urlalias.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.aliasKey(id))
		pipe.ZRem(ctx, s.orderKey(), id.String())
		return nil
	})
	if err != nil {
		return s.wrap("delete", err)
	}
	if del.Val() == 0 {
		return urlalias.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByMatch(ctx context.Context, m urlalias.Match) (int, error) {
	matched, err := s.Find(ctx, m)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range matched {
			pipe.Del(ctx, s.aliasKey(a.ID.ID))
			pipe.ZRem(ctx, s.orderKey(), a.ID.ID.String())
		}
		return nil
	})
	if err != nil {
		return 0, s.wrap("delete by match", err)
	}
	return len(matched), nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*urlalias.URLAlias, error) {
	data, err := s.rdb.Get(ctx, s.aliasKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, urlalias.ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("load", err)
	}
	alias, err := decode(data)
	if err != nil {
		return nil, s.wrap("load", err)
	}
	return alias, nil
}

func (s *Store) NextLinkID(ctx context.Context) (int64, error) {
	link, err := s.rdb.Incr(ctx, s.linkSeqKey()).Result()
	if err != nil {
		return 0, s.wrap("next link", err)
	}
	return link, nil
}
