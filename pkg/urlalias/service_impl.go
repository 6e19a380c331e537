package urlalias

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxSuffixAttempts bounds the name, name2, name3... probing of publish.
const DefaultMaxSuffixAttempts = 1000

// service implements the Service interface
type service struct {
	store             Store
	eventSink         EventSink
	cache             LookupCache
	logger            *slog.Logger
	validate          *validator.Validate
	defaultLanguage   string
	maxSuffixAttempts int
	locks             *keyedMutex
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the alias store
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLookupCache enables memoization of Lookup
func WithLookupCache(cache LookupCache) Option {
	return func(s *service) {
		s.cache = cache
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithDefaultLanguage sets the language used by custom aliases created without one
func WithDefaultLanguage(languageCode string) Option {
	return func(s *service) {
		s.defaultLanguage = languageCode
	}
}

// WithMaxSuffixAttempts bounds suffix probing during publish
func WithMaxSuffixAttempts(n int) Option {
	return func(s *service) {
		s.maxSuffixAttempts = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:         NewNoopEventSink(),
		logger:            slog.Default(),
		validate:          validator.New(),
		defaultLanguage:   DefaultLanguage,
		maxSuffixAttempts: DefaultMaxSuffixAttempts,
		locks:             newKeyedMutex(),
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxSuffixAttempts < 1 {
		return nil, fmt.Errorf("max suffix attempts must be positive, got %d", s.maxSuffixAttempts)
	}
	if s.defaultLanguage == "" {
		return nil, fmt.Errorf("default language is required")
	}

	return s, nil
}

func (s *service) notify(ctx context.Context, event string, fn func(EventSink) error) {
	if err := fn(s.eventSink); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", event, "error", err)
	}
}

func (s *service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// topLevelParents returns 0 followed by the links of live root aliases. Root
// aliases have an empty path, so their children sit at the top level too.
func (s *service) topLevelParents(ctx context.Context) ([]int64, error) {
	roots, err := s.store.Find(ctx, NewMatch(ByParent(0), ByType(AliasTypeLocation), ByHistory(false)))
	if err != nil {
		return nil, err
	}
	parents := []int64{0}
	for _, root := range roots {
		if len(root.PathData) == 0 {
			parents = append(parents, root.ID.Link)
		}
	}
	return parents, nil
}

// siblingParents returns the parent links sharing one namespace with parent.
// The first element is the lock key of that namespace.
func (s *service) siblingParents(ctx context.Context, parent int64) ([]int64, error) {
	top, err := s.topLevelParents(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range top {
		if p == parent {
			return top, nil
		}
	}
	return []int64{parent}, nil
}

// loadAlias returns the alias owning the slot for text under parents: the
// newest live non-virtual match, else the newest virtual, else the newest
// history record. It returns nil when the slot is free.
func (s *service) loadAlias(ctx context.Context, parents []int64, text string) (*URLAlias, error) {
	candidates, err := s.store.Find(ctx, NewMatch(ByParent(parents...)))
	if err != nil {
		return nil, err
	}
	var live, virtual, history *URLAlias
	for _, c := range candidates {
		leaf, ok := c.Leaf()
		if !ok {
			continue
		}
		if _, ok := leaf.Match(text); !ok {
			continue
		}
		switch {
		case c.IsHistory:
			history = c
		case c.Type == AliasTypeVirtual:
			virtual = c
		default:
			live = c
		}
	}
	switch {
	case live != nil:
		return live, nil
	case virtual != nil:
		return virtual, nil
	default:
		return history, nil
	}
}

// loadAutogeneratedAlias returns the live autogenerated alias of a location,
// optionally restricted to one parent link, or nil when there is none.
func (s *service) loadAutogeneratedAlias(ctx context.Context, locationID int64, parent *int64) (*URLAlias, error) {
	opts := []MatchOption{
		ByType(AliasTypeLocation),
		ByDestination(locationDestination(locationID)),
		ByHistory(false),
		ByCustom(false),
	}
	if parent != nil {
		opts = append(opts, ByParent(*parent))
	}
	found, err := s.store.Find(ctx, NewMatch(opts...))
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, aliasError("load autogenerated", locationDestination(locationID), ErrDuplicateAutogenerated)
	}
}

// requireLocationAlias is loadAutogeneratedAlias for locations that must have one.
func (s *service) requireLocationAlias(ctx context.Context, op string, locationID int64, missing error) (*URLAlias, error) {
	alias, err := s.loadAutogeneratedAlias(ctx, locationID, nil)
	if err != nil {
		return nil, err
	}
	if alias == nil {
		return nil, aliasError(op, locationDestination(locationID), missing)
	}
	return alias, nil
}

// lockLocationNamespace resolves the autogenerated alias of a location, locks
// the namespace of its children and returns the alias with its sibling set.
// The alias is resolved again under the lock in case it moved meanwhile.
func (s *service) lockLocationNamespace(ctx context.Context, op string, locationID int64) (*URLAlias, []int64, func(), error) {
	for {
		alias, err := s.requireLocationAlias(ctx, op, locationID, ErrMissingParentAlias)
		if err != nil {
			return nil, nil, nil, err
		}
		parents, err := s.siblingParents(ctx, alias.ID.Link)
		if err != nil {
			return nil, nil, nil, err
		}
		unlock := s.locks.Lock(parents[0])

		again, err := s.requireLocationAlias(ctx, op, locationID, ErrMissingParentAlias)
		if err != nil {
			unlock()
			return nil, nil, nil, err
		}
		if again.ID.Link == alias.ID.Link {
			return again, parents, unlock, nil
		}
		unlock()
	}
}

func (s *service) nextLink(ctx context.Context) (int64, error) {
	link, err := s.store.NextLinkID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next link id: %w", err)
	}
	return link, nil
}

func withDisplayID(alias *URLAlias, text string) *URLAlias {
	out := alias.Clone()
	out.DisplayID = DisplayID(out.ID.Parent, text)
	return out
}
