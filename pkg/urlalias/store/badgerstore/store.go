// Package badgerstore implements urlalias.Store on an embedded Badger database.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

var (
	aliasPrefix = []byte("alias/")
	linkSeqKey  = []byte("seq/link")
	orderSeqKey = []byte("seq/order")
)

const sequenceBandwidth = 100

// Store implements urlalias.Store using Badger
type Store struct {
	db     *badger.DB
	links  *badger.Sequence
	order  *badger.Sequence
	ownsDB bool
}

type record struct {
	Seq   uint64             `json:"seq"`
	Alias *urlalias.URLAlias `json:"alias"`
}

// Open opens or creates a database directory.
func Open(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *badger.DB) (*Store, error) {
	links, err := db.GetSequence(linkSeqKey, sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("link sequence: %w", err)
	}
	order, err := db.GetSequence(orderSeqKey, sequenceBandwidth)
	if err != nil {
		links.Release()
		return nil, fmt.Errorf("order sequence: %w", err)
	}
	return &Store{db: db, links: links, order: order}, nil
}

// Close releases the sequences and, when opened by this package, the database.
func (s *Store) Close() error {
	err := errors.Join(s.links.Release(), s.order.Release())
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

func aliasKey(id uuid.UUID) []byte {
	return append(append([]byte{}, aliasPrefix...), id[:]...)
}

func (s *Store) wrap(op string, err error) error {
	if errors.Is(err, urlalias.ErrNotFound) {
		return err
	}
	return &urlalias.StoreError{Backend: "badger", Op: op, Err: err}
}

func getRecord(txn *badger.Txn, id uuid.UUID) (*record, error) {
	item, err := txn.Get(aliasKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, urlalias.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func setRecord(txn *badger.Txn, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(aliasKey(rec.Alias.ID.ID), data)
}

// scan calls fn for every stored record.
func scan(txn *badger.Txn, fn func(rec *record) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(aliasPrefix); it.ValidForPrefix(aliasPrefix); it.Next() {
		var rec record
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Find(ctx context.Context, m urlalias.Match) ([]*urlalias.URLAlias, error) {
	var matched []*record
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, func(rec *record) error {
			if m.Matches(rec.Alias) {
				matched = append(matched, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, s.wrap("find", err)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Seq < matched[j].Seq })
	result := make([]*urlalias.URLAlias, len(matched))
	for i, rec := range matched {
		result[i] = rec.Alias
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, alias *urlalias.URLAlias) (*urlalias.URLAlias, error) {
	seq, err := s.order.Next()
	if err != nil {
		return nil, s.wrap("create", err)
	}
	stored := alias.Clone()
	stored.DisplayID = ""
	if stored.ID.ID == uuid.Nil {
		stored.ID.ID = uuid.New()
	}
	stored.CreatedAt = time.Now().UTC()

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := getRecord(txn, stored.ID.ID); err == nil {
			return urlalias.ErrForbidden
		} else if !errors.Is(err, urlalias.ErrNotFound) {
			return err
		}
		return setRecord(txn, &record{Seq: seq, Alias: stored})
	})
	if err != nil {
		return nil, s.wrap("create", err)
	}
	return stored.Clone(), nil
}

func (s *Store) Update(ctx context.Context, alias *urlalias.URLAlias) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, alias.ID.ID)
		if err != nil {
			return err
		}
		stored := alias.Clone()
		stored.DisplayID = ""
		stored.CreatedAt = rec.Alias.CreatedAt
		return setRecord(txn, &record{Seq: rec.Seq, Alias: stored})
	})
	if err != nil {
		return s.wrap("update", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getRecord(txn, id); err != nil {
			return err
		}
		return txn.Delete(aliasKey(id))
	})
	if err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

func (s *Store) DeleteByMatch(ctx context.Context, m urlalias.Match) (int, error) {
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		var ids []uuid.UUID
		err := scan(txn, func(rec *record) error {
			if m.Matches(rec.Alias) {
				ids = append(ids, rec.Alias.ID.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := txn.Delete(aliasKey(id)); err != nil {
				return err
			}
		}
		removed = len(ids)
		return nil
	})
	if err != nil {
		return 0, s.wrap("delete by match", err)
	}
	return removed, nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*urlalias.URLAlias, error) {
	var alias *urlalias.URLAlias
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		alias = rec.Alias
		return nil
	})
	if err != nil {
		return nil, s.wrap("load", err)
	}
	return alias, nil
}

// NextLinkID hands out link ids starting at 1.
func (s *Store) NextLinkID(ctx context.Context) (int64, error) {
	n, err := s.links.Next()
	if err != nil {
		return 0, s.wrap("next link", err)
	}
	return int64(n) + 1, nil
}
