package urlalias

// PublishRequest contains parameters for publishing the autogenerated alias
// of a location in one language.
type PublishRequest struct {
	LocationID       int64  `validate:"gt=0"`
	ParentLocationID int64  `validate:"gt=0"`
	Name             string `validate:"required,excludes=/"`
	LanguageCode     string `validate:"required"`
	AlwaysAvailable  bool
}

// CreateCustomAliasRequest contains parameters for a custom alias pointing at a location.
type CreateCustomAliasRequest struct {
	LocationID int64  `validate:"gt=0"`
	Path       string `validate:"required"`
	Forwarding bool
	// LanguageCode defaults to the service default language when empty.
	LanguageCode    string
	AlwaysAvailable bool
}

// CreateGlobalAliasRequest contains parameters for a custom alias pointing at
// a "module:path" resource.
type CreateGlobalAliasRequest struct {
	Resource        string `validate:"required"`
	Path            string `validate:"required"`
	Forwarding      bool
	LanguageCode    string
	AlwaysAvailable bool
}

// ListGlobalAliasesRequest filters and pages global aliases.
// A Limit of zero or less returns everything after Offset.
type ListGlobalAliasesRequest struct {
	LanguageCode string
	Offset       int `validate:"gte=0"`
	Limit        int
}
