package urlalias

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafAlias(translations map[string]string) *URLAlias {
	return &URLAlias{
		ID:   AliasID{ID: uuid.New(), Link: 7, Parent: 3},
		Type: AliasTypeLocation,
		PathData: []PathElement{
			{Translations: map[string]string{"eng-GB": "news"}},
			{AlwaysAvailable: true, Translations: translations},
		},
		LanguageCodes: languageCodesOf(PathElement{Translations: translations}),
		Destination:   "10",
	}
}

func TestWithoutLanguage(t *testing.T) {
	t.Run("other language survives", func(t *testing.T) {
		alias := leafAlias(map[string]string{"eng-GB": "story", "ger-DE": "geschichte"})
		out, empty := withoutLanguage(alias, "eng-GB")
		assert.False(t, empty)
		assert.Equal(t, map[string]string{"ger-DE": "geschichte"}, out.PathData[1].Translations)
		assert.Equal(t, []string{"ger-DE"}, out.LanguageCodes)
		assert.Len(t, alias.PathData[1].Translations, 2, "input is not modified")
	})

	t.Run("last language empties leaf", func(t *testing.T) {
		_, empty := withoutLanguage(leafAlias(map[string]string{"eng-GB": "story"}), "eng-GB")
		assert.True(t, empty)
	})

	t.Run("virtual loses always-available", func(t *testing.T) {
		alias := leafAlias(map[string]string{AlwaysAvailableLanguage: "promo"})
		alias.Type = AliasTypeVirtual
		_, empty := withoutLanguage(alias, "eng-GB")
		assert.True(t, empty)
	})

	t.Run("root has no leaf", func(t *testing.T) {
		_, empty := withoutLanguage(&URLAlias{Type: AliasTypeLocation}, "eng-GB")
		assert.False(t, empty)
	})
}

func TestHistorySnapshot(t *testing.T) {
	alias := leafAlias(map[string]string{"eng-GB": "story", "ger-DE": "geschichte"})
	alias.DisplayID = "3-abc"

	h := historySnapshot(alias, "ger-DE", "geschichte")
	assert.Equal(t, uuid.Nil, h.ID.ID)
	assert.Equal(t, alias.ID.Link, h.ID.Link)
	assert.Equal(t, alias.ID.Parent, h.ID.Parent)
	assert.True(t, h.IsHistory)
	assert.Empty(t, h.DisplayID)
	assert.Equal(t, []string{"ger-DE"}, h.LanguageCodes)
	assert.Equal(t, map[string]string{"ger-DE": "geschichte"}, h.PathData[1].Translations)
	assert.Equal(t, alias.PathData[0], h.PathData[0])
	assert.False(t, alias.IsHistory)
}

func TestWithLeafTranslation(t *testing.T) {
	alias := leafAlias(map[string]string{"eng-GB": "story"})
	parentPath := []PathElement{{Translations: map[string]string{"eng-GB": "archive"}}}

	out := withLeafTranslation(alias, parentPath, "ger-DE", "geschichte", false)
	require.Len(t, out.PathData, 2)
	assert.Equal(t, "archive", out.PathData[0].Translations["eng-GB"])
	assert.Equal(t, map[string]string{"eng-GB": "story", "ger-DE": "geschichte"}, out.PathData[1].Translations)
	assert.Equal(t, []string{"eng-GB", "ger-DE"}, out.LanguageCodes)
	assert.False(t, out.AlwaysAvailable)
	assert.False(t, sameLeaf(alias, out))
	assert.Equal(t, "news", alias.PathData[0].Translations["eng-GB"])
}

func TestStillNamed(t *testing.T) {
	alias := leafAlias(map[string]string{"eng-GB": "Intro", "fre-FR": "intro"})
	assert.True(t, stillNamed(alias, "eng-GB", "Intro"))
	assert.False(t, stillNamed(alias, "eng-GB", "outro"))
}

func TestSuffixed(t *testing.T) {
	assert.Equal(t, "foo", suffixed("foo", 1))
	assert.Equal(t, "foo2", suffixed("foo", 2))
	assert.Equal(t, "foo17", suffixed("foo", 17))
}

func TestParseDisplayID(t *testing.T) {
	parent, hash, err := ParseDisplayID(DisplayID(42, "News"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), parent)
	assert.Equal(t, textHash("news"), hash)

	for _, id := range []string{"", "42", "x-" + textHash("a"), "-1-" + textHash("a"), "4-zz"} {
		_, _, err := ParseDisplayID(id)
		assert.ErrorIs(t, err, ErrInvalidArgument, id)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path    string
		want    []string
		wantErr bool
	}{
		{path: "", want: nil},
		{path: "/", want: nil},
		{path: "a", want: []string{"a"}},
		{path: "/a/b/", want: []string{"a", "b"}},
		{path: "a//b", wantErr: true},
		{path: "a/ /b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := splitPath(tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidArgument, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestEqualFold(t *testing.T) {
	assert.True(t, equalFold("caf\u00e9", "CAFE\u0301"))
	assert.True(t, equalFold("café", "CAFÉ"))
	assert.False(t, equalFold("news", "new"))
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(3, 1, 3)
			defer unlock()
			assert.Equal(t, int32(1), inside.Add(1))
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	// other keys are independent
	unlock := k.Lock(1)
	done := make(chan struct{})
	go func() {
		k.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated key blocked")
	}
	unlock()

	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}
