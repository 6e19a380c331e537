package urlalias

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

var resourcePattern = regexp.MustCompile(`^([a-zA-Z0-9_]+):(.+)?$`)

// CreateCustomURLAlias creates a custom alias pointing at a location.
func (s *service) CreateCustomURLAlias(ctx context.Context, req CreateCustomAliasRequest) (*URLAlias, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, aliasError("create custom", req.Path, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	return s.createURLAlias(ctx, "create custom", aliasSpec{
		Type:            AliasTypeLocation,
		Destination:     locationDestination(req.LocationID),
		Path:            req.Path,
		Forward:         req.Forwarding,
		LanguageCode:    req.LanguageCode,
		AlwaysAvailable: req.AlwaysAvailable,
	})
}

// CreateGlobalURLAlias creates a custom alias pointing at a resource.
func (s *service) CreateGlobalURLAlias(ctx context.Context, req CreateGlobalAliasRequest) (*URLAlias, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, aliasError("create global", req.Path, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	aliasType, destination, err := parseResource(req.Resource)
	if err != nil {
		return nil, aliasError("create global", req.Resource, err)
	}
	return s.createURLAlias(ctx, "create global", aliasSpec{
		Type:            aliasType,
		Destination:     destination,
		Path:            req.Path,
		Forward:         req.Forwarding,
		LanguageCode:    req.LanguageCode,
		AlwaysAvailable: req.AlwaysAvailable,
	})
}

// parseResource maps "module:path" resources. Resources of the form
// "eznode:<id>" point at a location.
func parseResource(resource string) (AliasType, string, error) {
	m := resourcePattern.FindStringSubmatch(resource)
	if m == nil {
		return "", "", fmt.Errorf("%w: resource %q does not match module:path", ErrInvalidArgument, resource)
	}
	if m[1] == "eznode" {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || id <= 0 {
			return "", "", fmt.Errorf("%w: invalid location resource %q", ErrInvalidArgument, resource)
		}
		return AliasTypeLocation, locationDestination(id), nil
	}
	return AliasTypeResource, resource, nil
}

type aliasSpec struct {
	Type            AliasType
	Destination     string
	Path            string
	Forward         bool
	LanguageCode    string
	AlwaysAvailable bool
}

// createURLAlias walks the path from the top level, creating virtual nodes
// for missing intermediate segments, and places the custom alias at the leaf.
func (s *service) createURLAlias(ctx context.Context, op string, spec aliasSpec) (*URLAlias, error) {
	segments, err := splitPath(spec.Path)
	if err != nil {
		return nil, aliasError(op, spec.Path, err)
	}
	if len(segments) == 0 {
		return nil, aliasError(op, spec.Path, fmt.Errorf("%w: empty path", ErrInvalidArgument))
	}
	languageCode := spec.LanguageCode
	if languageCode == "" {
		languageCode = s.defaultLanguage
	}

	parentLink := int64(0)
	var parentPath []PathElement
	for _, segment := range segments[:len(segments)-1] {
		parentLink, parentPath, err = s.descend(ctx, parentLink, parentPath, segment)
		if err != nil {
			return nil, aliasError(op, spec.Path, err)
		}
	}

	text := segments[len(segments)-1]
	siblings, err := s.siblingParents(ctx, parentLink)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(siblings[0])
	defer unlock()
	defer s.invalidate()

	owner, err := s.loadAlias(ctx, siblings, text)
	if err != nil {
		return nil, err
	}
	link := int64(0)
	if owner != nil {
		if !owner.IsHistory && owner.Type != AliasTypeVirtual {
			return nil, aliasError(op, spec.Path, ErrForbidden)
		}
		deleted, err := s.downgrade(ctx, owner, languageCode)
		if err != nil {
			return nil, err
		}
		if deleted {
			if link, err = s.reclaimLink(ctx, owner); err != nil {
				return nil, err
			}
		}
	}
	if link == 0 {
		if link, err = s.nextLink(ctx); err != nil {
			return nil, err
		}
	}

	created, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: link, Parent: parentLink},
		Type:            spec.Type,
		Destination:     spec.Destination,
		PathData:        withPath(parentPath, PathElement{AlwaysAvailable: spec.AlwaysAvailable, Translations: map[string]string{languageCode: text}}),
		LanguageCodes:   []string{languageCode},
		AlwaysAvailable: spec.AlwaysAvailable,
		IsCustom:        true,
		Forward:         spec.Forward,
	})
	if err != nil {
		return nil, aliasError(op, spec.Path, err)
	}
	if err := s.refreshDescendants(ctx, created); err != nil {
		return nil, err
	}

	created = withDisplayID(created, text)
	s.logger.DebugContext(ctx, "custom alias created", "path", spec.Path, "type", spec.Type, "destination", spec.Destination)
	s.notify(ctx, "alias_created", func(sink EventSink) error { return sink.AliasCreated(ctx, created) })
	return created, nil
}

// descend returns the link and path of the node named segment under
// parentLink, creating a virtual node when none exists.
func (s *service) descend(ctx context.Context, parentLink int64, parentPath []PathElement, segment string) (int64, []PathElement, error) {
	siblings, err := s.siblingParents(ctx, parentLink)
	if err != nil {
		return 0, nil, err
	}
	unlock := s.locks.Lock(siblings[0])
	defer unlock()

	existing, err := s.loadAlias(ctx, siblings, segment)
	if err != nil {
		return 0, nil, err
	}
	if existing != nil {
		path, err := s.currentPath(ctx, existing)
		if err != nil {
			return 0, nil, err
		}
		return existing.ID.Link, path, nil
	}

	link, err := s.nextLink(ctx)
	if err != nil {
		return 0, nil, err
	}
	virtual, err := s.store.Create(ctx, &URLAlias{
		ID:              AliasID{Link: link, Parent: parentLink},
		Type:            AliasTypeVirtual,
		PathData:        withPath(parentPath, PathElement{AlwaysAvailable: true, Translations: map[string]string{AlwaysAvailableLanguage: segment}}),
		LanguageCodes:   []string{},
		AlwaysAvailable: true,
		IsCustom:        true,
		Forward:         true,
	})
	if err != nil {
		return 0, nil, err
	}
	s.invalidate()
	return virtual.ID.Link, virtual.PathData, nil
}

// currentPath returns the path of the live record sharing the link of a
// history node, so new children are stored under the current text.
func (s *service) currentPath(ctx context.Context, node *URLAlias) ([]PathElement, error) {
	if node.IsHistory {
		live, err := s.store.Find(ctx, NewMatch(ByLink(node.ID.Link), ByHistory(false)))
		if err != nil {
			return nil, err
		}
		if len(live) > 0 {
			return clonePath(live[len(live)-1].PathData), nil
		}
	}
	return clonePath(node.PathData), nil
}
