package urlalias

import "context"

// Service is the main interface of the URL alias engine.
type Service interface {
	// InitializeRoot creates the autogenerated alias of the root location
	// (empty path, top level). It is idempotent.
	InitializeRoot(ctx context.Context, rootLocationID int64) (*URLAlias, error)

	// PublishURLAliasForLocation creates or updates the autogenerated alias of
	// a location in one language, probing name, name2, name3... for a free slot.
	PublishURLAliasForLocation(ctx context.Context, req PublishRequest) error

	// CreateCustomURLAlias creates a custom alias at an arbitrary path pointing
	// at a location. Missing intermediate segments become virtual nodes.
	CreateCustomURLAlias(ctx context.Context, req CreateCustomAliasRequest) (*URLAlias, error)

	// CreateGlobalURLAlias creates a custom alias pointing at a "module:path" resource.
	CreateGlobalURLAlias(ctx context.Context, req CreateGlobalAliasRequest) (*URLAlias, error)

	ListGlobalURLAliases(ctx context.Context, req ListGlobalAliasesRequest) ([]*URLAlias, error)

	// ListURLAliasesForLocation returns one entry per distinct leaf text of the
	// live custom or autogenerated aliases of a location.
	ListURLAliasesForLocation(ctx context.Context, locationID int64, custom bool) ([]*URLAlias, error)

	// RemoveURLAliases deletes the given custom aliases. Autogenerated ones are skipped.
	RemoveURLAliases(ctx context.Context, aliases []*URLAlias) error

	// Lookup resolves a slash separated URL to an alias, case-insensitively.
	Lookup(ctx context.Context, url string) (*URLAlias, error)

	// LoadURLAlias resolves a display id of the form "<parent>-<hash>".
	LoadURLAlias(ctx context.Context, id string) (*URLAlias, error)

	LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error
	LocationCopied(ctx context.Context, locationID, oldParentID, newParentID int64) error
	LocationDeleted(ctx context.Context, locationID int64) error
}
