package urlalias

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// languageCodesOf lists the real languages of a leaf, without the
// always-available pseudo language.
func languageCodesOf(leaf PathElement) []string {
	codes := make([]string, 0, len(leaf.Translations))
	for _, lang := range leaf.Languages() {
		if lang != AlwaysAvailableLanguage {
			codes = append(codes, lang)
		}
	}
	return codes
}

// withPath returns parentPath followed by leaf, all copied.
func withPath(parentPath []PathElement, leaf PathElement) []PathElement {
	out := make([]PathElement, 0, len(parentPath)+1)
	out = append(out, clonePath(parentPath)...)
	return append(out, leaf.Clone())
}

// withLeafTranslation sets the leaf text for one language and rebases the
// path onto parentPath.
func withLeafTranslation(alias *URLAlias, parentPath []PathElement, languageCode, text string, alwaysAvailable bool) *URLAlias {
	out := alias.Clone()
	leaf, ok := out.Leaf()
	if ok {
		leaf = leaf.Clone()
	} else {
		leaf = PathElement{Translations: map[string]string{}}
	}
	leaf.Translations[languageCode] = text
	leaf.AlwaysAvailable = alwaysAvailable

	out.PathData = withPath(parentPath, leaf)
	out.LanguageCodes = languageCodesOf(leaf)
	out.AlwaysAvailable = alwaysAvailable
	return out
}

// withoutLanguage strips one language from the leaf. Virtual nodes also lose
// the always-available pseudo language. It reports whether the leaf is empty.
func withoutLanguage(alias *URLAlias, languageCode string) (*URLAlias, bool) {
	out := alias.Clone()
	leaf, ok := out.Leaf()
	if !ok {
		return out, false
	}
	leaf = leaf.Clone()
	delete(leaf.Translations, languageCode)
	if out.Type == AliasTypeVirtual {
		delete(leaf.Translations, AlwaysAvailableLanguage)
	}
	out.PathData[len(out.PathData)-1] = leaf
	out.LanguageCodes = slices.DeleteFunc(out.LanguageCodes, func(code string) bool { return code == languageCode })
	return out, len(leaf.Translations) == 0
}

// historySnapshot is a history copy of alias holding only the given language
// text. It gets a new record id but keeps the link, so children stay
// reachable through the old text.
func historySnapshot(alias *URLAlias, languageCode, text string) *URLAlias {
	out := alias.Clone()
	out.ID = AliasID{ID: uuid.Nil, Link: alias.ID.Link, Parent: alias.ID.Parent}
	leaf, _ := alias.Leaf()
	out.PathData[len(out.PathData)-1] = PathElement{
		AlwaysAvailable: leaf.AlwaysAvailable,
		Translations:    map[string]string{languageCode: text},
	}
	out.LanguageCodes = []string{languageCode}
	out.IsHistory = true
	out.DisplayID = ""
	return out
}

// stillNamed reports whether another language of the leaf still carries text.
func stillNamed(alias *URLAlias, languageCode, text string) bool {
	leaf, ok := alias.Leaf()
	if !ok {
		return false
	}
	for lang, t := range leaf.Translations {
		if lang != languageCode && equalFold(t, text) {
			return true
		}
	}
	return false
}

// sameLeaf reports whether two aliases carry identical leaf elements.
func sameLeaf(a, b *URLAlias) bool {
	la, okA := a.Leaf()
	lb, okB := b.Leaf()
	if okA != okB {
		return false
	}
	return la.AlwaysAvailable == lb.AlwaysAvailable && maps.Equal(la.Translations, lb.Translations)
}
