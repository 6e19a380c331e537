package urlalias

import (
	"context"
	"fmt"
	"slices"
)

// relocation holds the aliases a move or copy works on.
type relocation struct {
	oldParent   *URLAlias
	newParent   *URLAlias
	alias       *URLAlias
	oldSiblings []int64
	newSiblings []int64
}

func (r *relocation) lockKeys() []int64 {
	return []int64{r.oldSiblings[0], r.newSiblings[0], r.alias.ID.Link}
}

func (r *relocation) sameLinks(o *relocation) bool {
	return r.oldParent.ID.Link == o.oldParent.ID.Link &&
		r.newParent.ID.Link == o.newParent.ID.Link &&
		r.alias.ID.Link == o.alias.ID.Link &&
		r.oldSiblings[0] == o.oldSiblings[0] &&
		r.newSiblings[0] == o.newSiblings[0]
}

func (s *service) resolveRelocation(ctx context.Context, op string, locationID, oldParentID, newParentID int64) (*relocation, error) {
	oldParent, err := s.requireLocationAlias(ctx, op, oldParentID, ErrMissingParentAlias)
	if err != nil {
		return nil, err
	}
	newParent, err := s.requireLocationAlias(ctx, op, newParentID, ErrMissingParentAlias)
	if err != nil {
		return nil, err
	}
	oldSiblings, err := s.siblingParents(ctx, oldParent.ID.Link)
	if err != nil {
		return nil, err
	}
	newSiblings, err := s.siblingParents(ctx, newParent.ID.Link)
	if err != nil {
		return nil, err
	}

	oldParentLink := oldParent.ID.Link
	alias, err := s.loadAutogeneratedAlias(ctx, locationID, &oldParentLink)
	if err != nil {
		return nil, err
	}
	if alias == nil {
		return nil, aliasError(op, locationDestination(locationID), ErrMissingLocationAlias)
	}
	return &relocation{
		oldParent:   oldParent,
		newParent:   newParent,
		alias:       alias,
		oldSiblings: oldSiblings,
		newSiblings: newSiblings,
	}, nil
}

// lockRelocation resolves the aliases of a move or copy and locks both parent
// namespaces and the children of the location. Everything is resolved again
// under the lock; a concurrent move or delete that got there first surfaces
// as ErrMissingLocationAlias.
func (s *service) lockRelocation(ctx context.Context, op string, locationID, oldParentID, newParentID int64) (*relocation, func(), error) {
	for {
		r, err := s.resolveRelocation(ctx, op, locationID, oldParentID, newParentID)
		if err != nil {
			return nil, nil, err
		}
		unlock := s.locks.Lock(r.lockKeys()...)

		again, err := s.resolveRelocation(ctx, op, locationID, oldParentID, newParentID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if again.sameLinks(r) {
			return again, unlock, nil
		}
		unlock()
	}
}

// LocationMoved keeps the old alias of a moved location as history, creates
// its alias under the new parent and moves autogenerated children along.
func (s *service) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	const op = "location moved"

	r, unlock, err := s.lockRelocation(ctx, op, locationID, oldParentID, newParentID)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	moved, newParent := r.alias, r.newParent
	leaf, ok := moved.Leaf()
	if !ok {
		return aliasError(op, locationDestination(locationID), fmt.Errorf("%w: the root alias cannot move", ErrInvalidArgument))
	}

	historic := moved.Clone()
	historic.IsHistory = true
	if err := s.store.Update(ctx, historic); err != nil {
		return aliasError(op, locationDestination(locationID), err)
	}

	link, err := s.nextLink(ctx)
	if err != nil {
		return err
	}
	created, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: link, Parent: newParent.ID.Link},
		Type:            AliasTypeLocation,
		Destination:     moved.Destination,
		PathData:        withPath(newParent.PathData, leaf),
		LanguageCodes:   languageCodesOf(leaf),
		AlwaysAvailable: moved.AlwaysAvailable,
	})
	if err != nil {
		return aliasError(op, locationDestination(locationID), err)
	}

	children, err := s.store.Find(ctx, NewMatch(
		ByParent(moved.ID.Link),
		ByType(AliasTypeLocation),
		ByHistory(false),
		ByCustom(false),
	))
	if err != nil {
		return err
	}
	visited := map[int64]bool{created.ID.Link: true}
	for _, child := range children {
		child.ID.Parent = created.ID.Link
		if err := s.rebase(ctx, child, created.PathData, visited); err != nil {
			return err
		}
	}

	s.logger.InfoContext(ctx, "location moved",
		"location_id", locationID, "old_parent_id", oldParentID, "new_parent_id", newParentID,
		"link", created.ID.Link, "children", len(children))
	s.notify(ctx, "location_moved", func(sink EventSink) error {
		return sink.LocationMoved(ctx, locationID, oldParentID, newParentID)
	})
	return nil
}

// rebase stores alias with its path rewritten onto parentPath and refreshes
// every descendant path below it.
func (s *service) rebase(ctx context.Context, alias *URLAlias, parentPath []PathElement, visited map[int64]bool) error {
	leaf, ok := alias.Leaf()
	if !ok {
		return nil
	}
	alias.PathData = withPath(parentPath, leaf)
	if err := s.store.Update(ctx, alias); err != nil {
		return fmt.Errorf("rebase alias %d: %w", alias.ID.Link, err)
	}
	if visited[alias.ID.Link] {
		return nil
	}
	visited[alias.ID.Link] = true

	descendants, err := s.store.Find(ctx, NewMatch(ByParent(alias.ID.Link)))
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if err := s.rebase(ctx, d, alias.PathData, visited); err != nil {
			return err
		}
	}
	return nil
}

// LocationCopied creates an autogenerated alias for the copy under the new
// parent, carrying the leaf of the alias under the old parent.
func (s *service) LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	const op = "location copied"

	r, unlock, err := s.lockRelocation(ctx, op, locationID, oldParentID, newParentID)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	source, newParent := r.alias, r.newParent
	leaf, ok := source.Leaf()
	if !ok {
		return aliasError(op, locationDestination(locationID), fmt.Errorf("%w: the root alias cannot be copied", ErrInvalidArgument))
	}
	link, err := s.nextLink(ctx)
	if err != nil {
		return err
	}
	created, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: link, Parent: newParent.ID.Link},
		Type:            AliasTypeLocation,
		Destination:     source.Destination,
		PathData:        withPath(newParent.PathData, leaf),
		LanguageCodes:   languageCodesOf(leaf),
		AlwaysAvailable: source.AlwaysAvailable,
	})
	if err != nil {
		return aliasError(op, locationDestination(locationID), err)
	}

	s.logger.InfoContext(ctx, "location copied",
		"location_id", locationID, "old_parent_id", oldParentID, "new_parent_id", newParentID,
		"link", created.ID.Link, "namespace", r.newSiblings[0])
	s.notify(ctx, "location_copied", func(sink EventSink) error {
		return sink.LocationCopied(ctx, locationID, oldParentID, newParentID)
	})
	return nil
}

// LocationDeleted removes every alias pointing at the location, history
// included. Slots with children left below them become virtual nodes.
func (s *service) LocationDeleted(ctx context.Context, locationID int64) error {
	const op = "location deleted"
	match := NewMatch(
		ByType(AliasTypeLocation),
		ByDestination(locationDestination(locationID)),
	)

	var (
		found  []*URLAlias
		unlock func()
	)
	for {
		before, err := s.store.Find(ctx, match)
		if err != nil {
			return aliasError(op, locationDestination(locationID), err)
		}
		keys, err := s.slotKeys(ctx, before)
		if err != nil {
			return err
		}
		unlock = s.locks.Lock(keys...)

		found, err = s.store.Find(ctx, match)
		if err != nil {
			unlock()
			return aliasError(op, locationDestination(locationID), err)
		}
		again, err := s.slotKeys(ctx, found)
		if err != nil {
			unlock()
			return err
		}
		if slices.Equal(keys, again) {
			break
		}
		unlock()
	}
	defer unlock()
	defer s.invalidate()

	removed, err := s.store.DeleteByMatch(ctx, match)
	if err != nil {
		return aliasError(op, locationDestination(locationID), err)
	}
	for _, gone := range slotOwners(found) {
		if err := s.vacate(ctx, gone); err != nil {
			return aliasError(op, locationDestination(locationID), err)
		}
	}

	s.logger.InfoContext(ctx, "location deleted", "location_id", locationID, "removed", removed)
	s.notify(ctx, "location_deleted", func(sink EventSink) error {
		return sink.LocationDeleted(ctx, locationID, removed)
	})
	return nil
}

// slotOwners picks one record per link, preferring the live one over history.
func slotOwners(aliases []*URLAlias) []*URLAlias {
	byLink := map[int64]*URLAlias{}
	var links []int64
	for _, a := range aliases {
		current, ok := byLink[a.ID.Link]
		if !ok {
			links = append(links, a.ID.Link)
		}
		if !ok || current.IsHistory || !a.IsHistory {
			byLink[a.ID.Link] = a
		}
	}
	out := make([]*URLAlias, 0, len(links))
	for _, link := range links {
		out = append(out, byLink[link])
	}
	return out
}
