package urlalias

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AliasType describes what an alias points to.
type AliasType string

const (
	// AliasTypeLocation points at a content location (numeric id as string).
	AliasTypeLocation AliasType = "location"
	// AliasTypeResource points at an arbitrary "module:path" resource.
	AliasTypeResource AliasType = "resource"
	// AliasTypeVirtual is an intermediate path node with no real target.
	AliasTypeVirtual AliasType = "virtual"
)

// IsValid reports whether t is one of the known alias types.
func (t AliasType) IsValid() bool {
	switch t {
	case AliasTypeLocation, AliasTypeResource, AliasTypeVirtual:
		return true
	}
	return false
}

// AlwaysAvailableLanguage is the pseudo language key used by virtual nodes.
const AlwaysAvailableLanguage = "always-available"

// DefaultLanguage is used when a custom or global alias is created without a language.
const DefaultLanguage = "eng-GB"

// AliasID is the internal composite identity of an alias record.
type AliasID struct {
	// ID identifies the stored record.
	ID uuid.UUID `json:"id"`
	// Link is the node id children attach to. History records share the link
	// of the live record they were taken from.
	Link int64 `json:"link"`
	// Parent is the link id of the parent node, 0 for the top level.
	Parent int64 `json:"parent"`
}

// PathElement is one segment of a URL path in all of its translations.
type PathElement struct {
	AlwaysAvailable bool              `json:"always_available"`
	Translations    map[string]string `json:"translations"`
}

// Clone returns a deep copy of the element.
func (p PathElement) Clone() PathElement {
	out := PathElement{AlwaysAvailable: p.AlwaysAvailable, Translations: make(map[string]string, len(p.Translations))}
	for lang, text := range p.Translations {
		out.Translations[lang] = text
	}
	return out
}

// Languages returns the translation keys in sorted order.
func (p PathElement) Languages() []string {
	langs := make([]string, 0, len(p.Translations))
	for lang := range p.Translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Match returns the translation equal to text under case folding.
func (p PathElement) Match(text string) (string, bool) {
	folded := foldText(text)
	for _, lang := range p.Languages() {
		if foldText(p.Translations[lang]) == folded {
			return p.Translations[lang], true
		}
	}
	return "", false
}

// FirstText returns the translation of the lowest sorted language key.
func (p PathElement) FirstText() string {
	langs := p.Languages()
	if len(langs) == 0 {
		return ""
	}
	return p.Translations[langs[0]]
}

// URLAlias is a single alias record in the alias tree.
type URLAlias struct {
	ID AliasID `json:"internal_id"`
	// DisplayID is "<parent>-<md5(lower(text))>", computed on read and never stored.
	DisplayID       string        `json:"id,omitempty"`
	Type            AliasType     `json:"type"`
	Destination     string        `json:"destination"`
	PathData        []PathElement `json:"path_data"`
	LanguageCodes   []string      `json:"language_codes"`
	AlwaysAvailable bool          `json:"always_available"`
	IsHistory       bool          `json:"is_history"`
	IsCustom        bool          `json:"is_custom"`
	Forward         bool          `json:"forward"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Clone returns a deep copy of the alias.
func (a *URLAlias) Clone() *URLAlias {
	if a == nil {
		return nil
	}
	out := *a
	out.PathData = clonePath(a.PathData)
	out.LanguageCodes = append([]string(nil), a.LanguageCodes...)
	return &out
}

// Leaf returns the last path element. The root alias has none.
func (a *URLAlias) Leaf() (PathElement, bool) {
	if len(a.PathData) == 0 {
		return PathElement{}, false
	}
	return a.PathData[len(a.PathData)-1], true
}

// Translation returns the leaf text for the given language.
func (a *URLAlias) Translation(languageCode string) (string, bool) {
	leaf, ok := a.Leaf()
	if !ok {
		return "", false
	}
	text, ok := leaf.Translations[languageCode]
	return text, ok
}

// Path joins the path elements using the given language, falling back to the
// first available translation per element.
func (a *URLAlias) Path(languageCode string) string {
	out := ""
	for i, el := range a.PathData {
		if i > 0 {
			out += "/"
		}
		if text, ok := el.Translations[languageCode]; ok {
			out += text
			continue
		}
		out += el.FirstText()
	}
	return out
}

// LocationID parses the destination of a location alias.
func (a *URLAlias) LocationID() (int64, bool) {
	if a.Type != AliasTypeLocation {
		return 0, false
	}
	id, err := strconv.ParseInt(a.Destination, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func clonePath(path []PathElement) []PathElement {
	if path == nil {
		return nil
	}
	out := make([]PathElement, len(path))
	for i, el := range path {
		out[i] = el.Clone()
	}
	return out
}

func locationDestination(locationID int64) string {
	return strconv.FormatInt(locationID, 10)
}
