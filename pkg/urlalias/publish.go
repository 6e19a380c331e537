package urlalias

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// InitializeRoot creates the root location alias when it does not exist yet.
func (s *service) InitializeRoot(ctx context.Context, rootLocationID int64) (*URLAlias, error) {
	if rootLocationID <= 0 {
		return nil, aliasError("initialize root", strconv.FormatInt(rootLocationID, 10), ErrInvalidArgument)
	}
	unlock := s.locks.Lock(0)
	defer unlock()

	top := int64(0)
	existing, err := s.loadAutogeneratedAlias(ctx, rootLocationID, &top)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	link, err := s.nextLink(ctx)
	if err != nil {
		return nil, err
	}
	root, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: link, Parent: 0},
		Type:            AliasTypeLocation,
		Destination:     locationDestination(rootLocationID),
		PathData:        []PathElement{},
		LanguageCodes:   []string{},
		AlwaysAvailable: true,
	})
	if err != nil {
		return nil, aliasError("initialize root", locationDestination(rootLocationID), err)
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "root alias created", "location_id", rootLocationID, "link", root.ID.Link)
	return root, nil
}

// PublishURLAliasForLocation publishes the autogenerated alias of a location
// in one language.
func (s *service) PublishURLAliasForLocation(ctx context.Context, req PublishRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return aliasError("publish", req.Name, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	parent, siblings, unlock, err := s.lockLocationNamespace(ctx, "publish", req.ParentLocationID)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	destination := locationDestination(req.LocationID)
	parentLink := parent.ID.Link

	for attempt := 1; attempt <= s.maxSuffixAttempts; attempt++ {
		text := suffixed(req.Name, attempt)

		owner, err := s.loadAlias(ctx, siblings, text)
		if err != nil {
			return err
		}
		if owner != nil && !reusableBy(owner, destination) {
			continue
		}

		existing, err := s.loadAutogeneratedAlias(ctx, req.LocationID, &parentLink)
		if err != nil {
			return err
		}

		var published *URLAlias
		if existing != nil {
			published, err = s.historizeAndUpdate(ctx, existing, parent.PathData, req.LanguageCode, text, req.AlwaysAvailable)
			if err != nil {
				return err
			}
			if owner != nil && owner.ID.ID != existing.ID.ID {
				deleted, err := s.downgrade(ctx, owner, req.LanguageCode)
				if err != nil {
					return err
				}
				if deleted {
					if err := s.adoptChildren(ctx, owner, published); err != nil {
						return err
					}
				}
			}
		} else {
			link := int64(0)
			if owner != nil {
				deleted, err := s.downgrade(ctx, owner, req.LanguageCode)
				if err != nil {
					return err
				}
				if deleted {
					if link, err = s.reclaimLink(ctx, owner); err != nil {
						return err
					}
				}
			}
			if link == 0 {
				if link, err = s.nextLink(ctx); err != nil {
					return err
				}
			}
			published, err = s.store.Create(ctx, &URLAlias{
				ID:              AliasID{Link: link, Parent: parentLink},
				Type:            AliasTypeLocation,
				Destination:     destination,
				PathData:        withPath(parent.PathData, PathElement{AlwaysAvailable: req.AlwaysAvailable, Translations: map[string]string{req.LanguageCode: text}}),
				LanguageCodes:   []string{req.LanguageCode},
				AlwaysAvailable: req.AlwaysAvailable,
			})
			if err != nil {
				return aliasError("publish", text, err)
			}
			if err := s.refreshDescendants(ctx, published); err != nil {
				return err
			}
		}

		s.logger.DebugContext(ctx, "alias published",
			"location_id", req.LocationID, "language", req.LanguageCode, "text", text, "link", published.ID.Link)
		published = withDisplayID(published, text)
		s.notify(ctx, "alias_published", func(sink EventSink) error { return sink.AliasPublished(ctx, published) })
		return nil
	}

	return aliasError("publish", req.Name, ErrSuffixExhausted)
}

// reusableBy reports whether a slot owner may be taken over by a location.
func reusableBy(owner *URLAlias, destination string) bool {
	if owner.IsHistory || owner.Type == AliasTypeVirtual {
		return true
	}
	return owner.Type == AliasTypeLocation && owner.Destination == destination
}

// historizeAndUpdate sets the leaf text of a live alias for one language. A
// replaced text that differs beyond case is kept as a history record.
func (s *service) historizeAndUpdate(ctx context.Context, alias *URLAlias, parentPath []PathElement, languageCode, text string, alwaysAvailable bool) (*URLAlias, error) {
	if old, ok := alias.Translation(languageCode); ok && !equalFold(old, text) && !stillNamed(alias, languageCode, old) {
		if err := s.historize(ctx, alias, languageCode, old); err != nil {
			return nil, err
		}
	}
	updated := withLeafTranslation(alias, parentPath, languageCode, text, alwaysAvailable)
	if err := s.store.Update(ctx, updated); err != nil {
		return nil, aliasError("update", text, err)
	}
	if !sameLeaf(alias, updated) {
		if err := s.refreshDescendants(ctx, updated); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// refreshDescendants rewrites the stored paths below alias after its leaf changed.
func (s *service) refreshDescendants(ctx context.Context, alias *URLAlias) error {
	children, err := s.store.Find(ctx, NewMatch(ByParent(alias.ID.Link)))
	if err != nil {
		return err
	}
	visited := map[int64]bool{alias.ID.Link: true}
	for _, child := range children {
		if err := s.rebase(ctx, child, alias.PathData, visited); err != nil {
			return err
		}
	}
	return nil
}

// historize stores a history record for the given language text of alias.
func (s *service) historize(ctx context.Context, alias *URLAlias, languageCode, text string) error {
	history, err := s.store.Create(ctx, historySnapshot(alias, languageCode, text))
	if err != nil {
		return aliasError("historize", text, err)
	}
	history = withDisplayID(history, text)
	s.notify(ctx, "alias_historized", func(sink EventSink) error { return sink.AliasHistorized(ctx, history) })
	return nil
}

// downgrade removes one language from alias. The record is deleted when no
// translation remains, which the return value reports.
func (s *service) downgrade(ctx context.Context, alias *URLAlias, languageCode string) (bool, error) {
	next, empty := withoutLanguage(alias, languageCode)
	if empty {
		if err := s.store.Delete(ctx, alias.ID.ID); err != nil {
			return false, aliasError("downgrade", alias.Destination, err)
		}
		return true, nil
	}
	if err := s.store.Update(ctx, next); err != nil {
		return false, aliasError("downgrade", alias.Destination, err)
	}
	return false, nil
}

// reclaimLink returns the link of a deleted slot owner when no remaining
// record carries it, so children of a vacated node are adopted. It returns 0
// when the link is still in use.
func (s *service) reclaimLink(ctx context.Context, owner *URLAlias) (int64, error) {
	rest, err := s.store.Find(ctx, NewMatch(ByLink(owner.ID.Link)))
	if err != nil {
		return 0, err
	}
	if len(rest) > 0 {
		return 0, nil
	}
	return owner.ID.Link, nil
}

// vacate keeps the children of a deleted record reachable. When no remaining
// record carries its link and children hang below it, a virtual node with the
// same link and leaf text takes its slot.
func (s *service) vacate(ctx context.Context, gone *URLAlias) error {
	leaf, ok := gone.Leaf()
	if !ok {
		return nil
	}
	free, err := s.reclaimLink(ctx, gone)
	if err != nil || free == 0 {
		return err
	}
	children, err := s.store.Find(ctx, NewMatch(ByParent(free)))
	if err != nil || len(children) == 0 {
		return err
	}

	translations := make(map[string]string, len(leaf.Translations)+1)
	for lang, text := range leaf.Translations {
		translations[lang] = text
	}
	if _, ok := translations[AlwaysAvailableLanguage]; !ok {
		translations[AlwaysAvailableLanguage] = leaf.FirstText()
	}
	placeholder, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: free, Parent: gone.ID.Parent},
		Type:            AliasTypeVirtual,
		PathData:        withPath(gone.PathData[:len(gone.PathData)-1], PathElement{AlwaysAvailable: true, Translations: translations}),
		LanguageCodes:   []string{},
		AlwaysAvailable: true,
		IsCustom:        true,
		Forward:         true,
	})
	if err != nil {
		return fmt.Errorf("keep children of link %d: %w", free, err)
	}
	s.logger.DebugContext(ctx, "virtual node kept for children",
		"link", placeholder.ID.Link, "parent_link", placeholder.ID.Parent, "children", len(children))
	return nil
}

// slotKeys returns the sorted lock keys guarding the slots of aliases and
// their children.
func (s *service) slotKeys(ctx context.Context, aliases []*URLAlias) ([]int64, error) {
	keys := make([]int64, 0, 2*len(aliases))
	for _, a := range aliases {
		siblings, err := s.siblingParents(ctx, a.ID.Parent)
		if err != nil {
			return nil, err
		}
		keys = append(keys, siblings[0], a.ID.Link)
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// adoptChildren moves the children of a deleted slot owner below alias when
// no remaining record carries the owner's link.
func (s *service) adoptChildren(ctx context.Context, owner, alias *URLAlias) error {
	free, err := s.reclaimLink(ctx, owner)
	if err != nil || free == 0 {
		return err
	}
	children, err := s.store.Find(ctx, NewMatch(ByParent(free)))
	if err != nil {
		return err
	}
	visited := map[int64]bool{alias.ID.Link: true}
	for _, child := range children {
		child.ID.Parent = alias.ID.Link
		if err := s.rebase(ctx, child, alias.PathData, visited); err != nil {
			return err
		}
	}
	return nil
}
