package urlalias

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Store persists alias records. Implementations must be safe for concurrent
// use and must return records from Find in insertion order.
type Store interface {
	// Find returns copies of every record satisfying the match.
	Find(ctx context.Context, m Match) ([]*URLAlias, error)
	// Create persists a new record, assigning ID.ID when it is nil and CreatedAt.
	Create(ctx context.Context, alias *URLAlias) (*URLAlias, error)
	// Update replaces an existing record. Insertion order and CreatedAt are kept.
	Update(ctx context.Context, alias *URLAlias) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByMatch removes every record satisfying the match and returns the count.
	DeleteByMatch(ctx context.Context, m Match) (int, error)
	Load(ctx context.Context, id uuid.UUID) (*URLAlias, error)
	// NextLinkID returns a link id never handed out before by this store.
	NextLinkID(ctx context.Context) (int64, error)
}

// Match selects alias records. Nil fields match everything.
type Match struct {
	// Parents matches any of the listed parent link ids.
	Parents      []int64
	Link         *int64
	Type         *AliasType
	Destination  *string
	IsHistory    *bool
	IsCustom     *bool
	LanguageCode *string
}

// MatchOption configures a Match.
type MatchOption func(*Match)

// NewMatch builds a Match from options.
func NewMatch(opts ...MatchOption) Match {
	var m Match
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// ByParent matches records whose parent is any of ids.
func ByParent(ids ...int64) MatchOption {
	return func(m *Match) { m.Parents = append(m.Parents, ids...) }
}

// ByLink matches the record owning the link id.
func ByLink(link int64) MatchOption {
	return func(m *Match) { m.Link = &link }
}

// ByType matches records of the alias type.
func ByType(t AliasType) MatchOption {
	return func(m *Match) { m.Type = &t }
}

// ByDestination matches records pointing at destination.
func ByDestination(destination string) MatchOption {
	return func(m *Match) { m.Destination = &destination }
}

// ByHistory matches history or live records.
func ByHistory(isHistory bool) MatchOption {
	return func(m *Match) { m.IsHistory = &isHistory }
}

// ByCustom matches custom or autogenerated records.
func ByCustom(isCustom bool) MatchOption {
	return func(m *Match) { m.IsCustom = &isCustom }
}

// ByLanguage matches records listing the language code.
func ByLanguage(languageCode string) MatchOption {
	return func(m *Match) { m.LanguageCode = &languageCode }
}

// Matches reports whether the alias satisfies every set field.
func (m Match) Matches(a *URLAlias) bool {
	if len(m.Parents) > 0 && !slices.Contains(m.Parents, a.ID.Parent) {
		return false
	}
	if m.Link != nil && a.ID.Link != *m.Link {
		return false
	}
	if m.Type != nil && a.Type != *m.Type {
		return false
	}
	if m.Destination != nil && a.Destination != *m.Destination {
		return false
	}
	if m.IsHistory != nil && a.IsHistory != *m.IsHistory {
		return false
	}
	if m.IsCustom != nil && a.IsCustom != *m.IsCustom {
		return false
	}
	if m.LanguageCode != nil && !slices.Contains(a.LanguageCodes, *m.LanguageCode) {
		return false
	}
	return true
}

// EventSink receives notifications after successful mutations.
// Errors are logged by the service and never fail the operation.
type EventSink interface {
	AliasPublished(ctx context.Context, alias *URLAlias) error
	AliasCreated(ctx context.Context, alias *URLAlias) error
	AliasHistorized(ctx context.Context, alias *URLAlias) error
	AliasRemoved(ctx context.Context, alias *URLAlias) error
	LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error
	LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error
	LocationDeleted(ctx context.Context, locationID int64, removed int) error
}

// LookupCache memoizes Lookup results. Invalidate is called after every mutation.
type LookupCache interface {
	GetOrLoad(key string, load func() (*URLAlias, error)) (*URLAlias, error)
	Invalidate()
}
