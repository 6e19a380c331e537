package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// Store implements urlalias.Store using in-memory storage
type Store struct {
	mu       sync.RWMutex
	aliases  map[uuid.UUID]*entry
	seq      uint64
	lastLink atomic.Int64
}

type entry struct {
	alias *urlalias.URLAlias
	seq   uint64
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		aliases: make(map[uuid.UUID]*entry),
	}
}

func (s *Store) Find(ctx context.Context, m urlalias.Match) ([]*urlalias.URLAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*entry, 0)
	for _, e := range s.aliases {
		if m.Matches(e.alias) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq < matched[j].seq
	})

	result := make([]*urlalias.URLAlias, len(matched))
	for i, e := range matched {
		result[i] = e.alias.Clone()
	}
	return result, nil
}

func (s *Store) Create(ctx context.Context, alias *urlalias.URLAlias) (*urlalias.URLAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a copy to avoid external modifications
	stored := alias.Clone()
	stored.DisplayID = ""
	if stored.ID.ID == uuid.Nil {
		stored.ID.ID = uuid.New()
	}
	if _, exists := s.aliases[stored.ID.ID]; exists {
		return nil, &urlalias.StoreError{Backend: "memory", Op: "create", Err: urlalias.ErrForbidden}
	}
	stored.CreatedAt = time.Now().UTC()

	s.seq++
	s.aliases[stored.ID.ID] = &entry{alias: stored, seq: s.seq}
	s.observeLink(stored.ID.Link)

	return stored.Clone(), nil
}

func (s *Store) Update(ctx context.Context, alias *urlalias.URLAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.aliases[alias.ID.ID]
	if !exists {
		return urlalias.ErrNotFound
	}

	stored := alias.Clone()
	stored.DisplayID = ""
	stored.CreatedAt = e.alias.CreatedAt
	e.alias = stored
	s.observeLink(stored.ID.Link)
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.aliases[id]; !exists {
		return urlalias.ErrNotFound
	}
	delete(s.aliases, id)
	return nil
}

func (s *Store) DeleteByMatch(ctx context.Context, m urlalias.Match) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.aliases {
		if m.Matches(e.alias) {
			delete(s.aliases, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*urlalias.URLAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.aliases[id]
	if !exists {
		return nil, urlalias.ErrNotFound
	}
	return e.alias.Clone(), nil
}

func (s *Store) NextLinkID(ctx context.Context) (int64, error) {
	return s.lastLink.Add(1), nil
}

// observeLink keeps the link counter ahead of explicitly stored links.
func (s *Store) observeLink(link int64) {
	for {
		current := s.lastLink.Load()
		if link <= current || s.lastLink.CompareAndSwap(current, link) {
			return
		}
	}
}
