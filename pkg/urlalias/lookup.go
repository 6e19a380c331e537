package urlalias

import (
	"context"
	"slices"
	"strconv"

	"github.com/google/uuid"
)

// Lookup resolves url to the alias at its end.
func (s *service) Lookup(ctx context.Context, url string) (*URLAlias, error) {
	if s.cache == nil {
		return s.lookup(ctx, url)
	}
	alias, err := s.cache.GetOrLoad(lookupKey(url), func() (*URLAlias, error) {
		return s.lookup(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return alias.Clone(), nil
}

func (s *service) lookup(ctx context.Context, url string) (*URLAlias, error) {
	segments, err := splitPath(url)
	if err != nil {
		return nil, aliasError("lookup", url, ErrNotFound)
	}
	if len(segments) == 0 {
		return s.lookupRoot(ctx, url)
	}

	parents, err := s.topLevelParents(ctx)
	if err != nil {
		return nil, err
	}
	alias, err := s.resolve(ctx, parents, segments)
	if err != nil {
		return nil, err
	}
	if alias == nil {
		return nil, aliasError("lookup", url, ErrNotFound)
	}
	return alias, nil
}

func (s *service) lookupRoot(ctx context.Context, url string) (*URLAlias, error) {
	roots, err := s.store.Find(ctx, NewMatch(ByParent(0), ByType(AliasTypeLocation), ByHistory(false)))
	if err != nil {
		return nil, err
	}
	for i := len(roots) - 1; i >= 0; i-- {
		if len(roots[i].PathData) == 0 {
			root := roots[i].Clone()
			root.DisplayID = DisplayID(0, "")
			return root, nil
		}
	}
	return nil, aliasError("lookup", url, ErrNotFound)
}

// resolve walks segments below parents depth first and backtracks when a
// branch dead-ends. Live candidates are tried before history ones, newest
// first within each group. The final node must not be virtual.
func (s *service) resolve(ctx context.Context, parents []int64, segments []string) (*URLAlias, error) {
	children, err := s.store.Find(ctx, NewMatch(ByParent(parents...)))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		alias *URLAlias
		text  string
	}
	var live, history []candidate
	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		leaf, ok := child.Leaf()
		if !ok {
			continue
		}
		text, ok := leaf.Match(segments[0])
		if !ok {
			continue
		}
		if len(segments) == 1 && child.Type == AliasTypeVirtual {
			continue
		}
		if child.IsHistory {
			history = append(history, candidate{child, text})
		} else {
			live = append(live, candidate{child, text})
		}
	}

	for _, c := range append(live, history...) {
		if len(segments) == 1 {
			return withDisplayID(c.alias, c.text), nil
		}
		found, err := s.resolve(ctx, []int64{c.alias.ID.Link}, segments[1:])
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// LoadURLAlias resolves a display id. Live records win over history records,
// newer over older.
func (s *service) LoadURLAlias(ctx context.Context, id string) (*URLAlias, error) {
	parent, hash, err := ParseDisplayID(id)
	if err != nil {
		return nil, aliasError("load", id, ErrNotFound)
	}
	candidates, err := s.store.Find(ctx, NewMatch(ByParent(parent)))
	if err != nil {
		return nil, err
	}

	var history *URLAlias
	var historyText string
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		leaf, ok := c.Leaf()
		if !ok {
			continue
		}
		for _, lang := range leaf.Languages() {
			text := leaf.Translations[lang]
			if textHash(text) != hash {
				continue
			}
			if !c.IsHistory {
				return withDisplayID(c, text), nil
			}
			if history == nil {
				history, historyText = c, text
			}
			break
		}
	}
	if history != nil {
		return withDisplayID(history, historyText), nil
	}
	return nil, aliasError("load", id, ErrNotFound)
}

// ListGlobalURLAliases returns live custom resource aliases in insertion order.
func (s *service) ListGlobalURLAliases(ctx context.Context, req ListGlobalAliasesRequest) ([]*URLAlias, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, aliasError("list global", strconv.Itoa(req.Offset), ErrInvalidArgument)
	}
	opts := []MatchOption{ByType(AliasTypeResource), ByHistory(false), ByCustom(true)}
	if req.LanguageCode != "" {
		opts = append(opts, ByLanguage(req.LanguageCode))
	}
	found, err := s.store.Find(ctx, NewMatch(opts...))
	if err != nil {
		return nil, err
	}

	if req.Offset >= len(found) {
		return []*URLAlias{}, nil
	}
	found = found[req.Offset:]
	if req.Limit > 0 && req.Limit < len(found) {
		found = found[:req.Limit]
	}

	out := make([]*URLAlias, 0, len(found))
	for _, a := range found {
		leaf, _ := a.Leaf()
		text := leaf.FirstText()
		if req.LanguageCode != "" {
			if t, ok := leaf.Translations[req.LanguageCode]; ok {
				text = t
			}
		}
		out = append(out, withDisplayID(a, text))
	}
	return out, nil
}

// ListURLAliasesForLocation returns one entry per distinct leaf text.
func (s *service) ListURLAliasesForLocation(ctx context.Context, locationID int64, custom bool) ([]*URLAlias, error) {
	found, err := s.store.Find(ctx, NewMatch(
		ByType(AliasTypeLocation),
		ByDestination(locationDestination(locationID)),
		ByCustom(custom),
		ByHistory(false),
	))
	if err != nil {
		return nil, err
	}

	out := make([]*URLAlias, 0, len(found))
	for _, a := range found {
		leaf, ok := a.Leaf()
		if !ok {
			continue
		}
		var seen []string
		for _, lang := range leaf.Languages() {
			text := leaf.Translations[lang]
			if slices.Contains(seen, text) {
				continue
			}
			seen = append(seen, text)
			out = append(out, withDisplayID(a, text))
		}
	}
	return out, nil
}

// RemoveURLAliases deletes custom aliases. Autogenerated ones are skipped.
func (s *service) RemoveURLAliases(ctx context.Context, aliases []*URLAlias) error {
	for i, a := range aliases {
		if a == nil || a.ID.ID == uuid.Nil {
			return aliasError("remove", "aliases["+strconv.Itoa(i)+"]", ErrInvalidArgument)
		}
	}
	defer s.invalidate()

	for _, a := range aliases {
		if !a.IsCustom {
			continue
		}
		if err := s.removeCustom(ctx, a); err != nil {
			return aliasError("remove", a.DisplayID, err)
		}
		removed := a.Clone()
		s.notify(ctx, "alias_removed", func(sink EventSink) error { return sink.AliasRemoved(ctx, removed) })
	}
	return nil
}

func (s *service) removeCustom(ctx context.Context, a *URLAlias) error {
	keys, err := s.slotKeys(ctx, []*URLAlias{a})
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(keys...)
	defer unlock()

	stored, err := s.store.Load(ctx, a.ID.ID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, stored.ID.ID); err != nil {
		return err
	}
	return s.vacate(ctx, stored)
}
