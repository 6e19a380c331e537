package urlalias_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
	"github.com/tendant/simple-urlalias/pkg/urlalias/cache"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/memory"
)

const rootLocation = 2

func newTestService(t *testing.T, opts ...urlalias.Option) (urlalias.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := urlalias.New(append([]urlalias.Option{urlalias.WithStore(store)}, opts...)...)
	require.NoError(t, err)

	_, err = svc.InitializeRoot(context.Background(), rootLocation)
	require.NoError(t, err)
	return svc, store
}

func publish(t *testing.T, svc urlalias.Service, locationID, parentID int64, name, lang string) {
	t.Helper()
	err := svc.PublishURLAliasForLocation(context.Background(), urlalias.PublishRequest{
		LocationID:       locationID,
		ParentLocationID: parentID,
		Name:             name,
		LanguageCode:     lang,
		AlwaysAvailable:  true,
	})
	require.NoError(t, err)
}

func lookup(t *testing.T, svc urlalias.Service, url string) *urlalias.URLAlias {
	t.Helper()
	alias, err := svc.Lookup(context.Background(), url)
	require.NoError(t, err, url)
	return alias
}

func history(t *testing.T, store *memory.Store, destination string) []*urlalias.URLAlias {
	t.Helper()
	found, err := store.Find(context.Background(), urlalias.NewMatch(
		urlalias.ByDestination(destination),
		urlalias.ByHistory(true),
	))
	require.NoError(t, err)
	return found
}

func TestNew(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := urlalias.New()
		assert.Error(t, err)
	})

	t.Run("rejects non-positive suffix attempts", func(t *testing.T) {
		_, err := urlalias.New(urlalias.WithStore(memory.New()), urlalias.WithMaxSuffixAttempts(0))
		assert.Error(t, err)
	})
}

func TestInitializeRoot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	again, err := svc.InitializeRoot(ctx, rootLocation)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID.Link)
	assert.Empty(t, again.PathData)

	root := lookup(t, svc, "/")
	assert.Equal(t, "2", root.Destination)
}

func TestPublish_UnderRoot(t *testing.T) {
	svc, _ := newTestService(t)
	publish(t, svc, 10, rootLocation, "news", "eng-GB")

	alias := lookup(t, svc, "news")
	assert.Equal(t, "10", alias.Destination)
	assert.Equal(t, urlalias.AliasTypeLocation, alias.Type)
	assert.Equal(t, int64(1), alias.ID.Parent)
	assert.Equal(t, []urlalias.PathElement{
		{AlwaysAvailable: true, Translations: map[string]string{"eng-GB": "news"}},
	}, alias.PathData)
	assert.Equal(t, []string{"eng-GB"}, alias.LanguageCodes)
	assert.Equal(t, urlalias.DisplayID(1, "news"), alias.DisplayID)
	assert.False(t, alias.IsCustom)
	assert.False(t, alias.IsHistory)
}

func TestPublish_SuffixProbing(t *testing.T) {
	svc, _ := newTestService(t)
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 11, rootLocation, "foo", "eng-GB")

	assert.Equal(t, "10", lookup(t, svc, "foo").Destination)
	assert.Equal(t, "11", lookup(t, svc, "foo2").Destination)

	// republishing keeps the slot already owned
	publish(t, svc, 11, rootLocation, "foo", "eng-GB")
	assert.Equal(t, "11", lookup(t, svc, "foo2").Destination)
	_, err := svc.Lookup(context.Background(), "foo3")
	assert.True(t, urlalias.IsNotFound(err))
}

func TestPublish_SuffixExhausted(t *testing.T) {
	svc, _ := newTestService(t, urlalias.WithMaxSuffixAttempts(2))
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 11, rootLocation, "foo", "eng-GB")

	err := svc.PublishURLAliasForLocation(context.Background(), urlalias.PublishRequest{
		LocationID: 12, ParentLocationID: rootLocation, Name: "foo", LanguageCode: "eng-GB",
	})
	assert.ErrorIs(t, err, urlalias.ErrSuffixExhausted)
}

func TestPublish_RenameKeepsHistory(t *testing.T) {
	svc, store := newTestService(t)
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 10, rootLocation, "bar", "eng-GB")

	live := lookup(t, svc, "bar")
	assert.Equal(t, "10", live.Destination)
	assert.False(t, live.IsHistory)

	old := lookup(t, svc, "foo")
	assert.Equal(t, "10", old.Destination)
	assert.True(t, old.IsHistory)
	assert.Equal(t, live.ID.Link, old.ID.Link)
	assert.Equal(t, []string{"eng-GB"}, old.LanguageCodes)

	require.Len(t, history(t, store, "10"), 1)
}

func TestPublish_CaseOnlyRenameIsNotHistorized(t *testing.T) {
	svc, store := newTestService(t)
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 10, rootLocation, "Foo", "eng-GB")

	alias := lookup(t, svc, "FOO")
	assert.Equal(t, "Foo", alias.PathData[0].Translations["eng-GB"])
	assert.Empty(t, history(t, store, "10"))
}

func TestPublish_MultipleLanguages(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "news", "eng-GB")
	publish(t, svc, 10, rootLocation, "nachrichten", "ger-DE")

	eng := lookup(t, svc, "news")
	ger := lookup(t, svc, "Nachrichten")
	assert.Equal(t, eng.ID, ger.ID)
	assert.Equal(t, []string{"eng-GB", "ger-DE"}, ger.LanguageCodes)
	assert.Equal(t, "nachrichten", ger.Path("ger-DE"))
	assert.Empty(t, history(t, store, "10"))

	listed, err := svc.ListURLAliasesForLocation(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, urlalias.DisplayID(1, "news"), listed[0].DisplayID)
	assert.Equal(t, urlalias.DisplayID(1, "nachrichten"), listed[1].DisplayID)
}

func TestPublish_ReclaimsHistorySlot(t *testing.T) {
	svc, store := newTestService(t)
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 10, rootLocation, "bar", "eng-GB")
	require.Len(t, history(t, store, "10"), 1)

	publish(t, svc, 11, rootLocation, "foo", "eng-GB")

	alias := lookup(t, svc, "foo")
	assert.Equal(t, "11", alias.Destination)
	assert.False(t, alias.IsHistory)
	assert.Empty(t, history(t, store, "10"))
	assert.NotEqual(t, lookup(t, svc, "bar").ID.Link, alias.ID.Link)
}

func TestPublish_HistoryInOtherLanguageSurvives(t *testing.T) {
	svc, store := newTestService(t)
	publish(t, svc, 10, rootLocation, "foo", "ger-DE")
	publish(t, svc, 10, rootLocation, "bar", "ger-DE")

	publish(t, svc, 11, rootLocation, "foo", "eng-GB")

	assert.Equal(t, "11", lookup(t, svc, "foo").Destination)
	remaining := history(t, store, "10")
	require.Len(t, remaining, 1)
	assert.Equal(t, "foo", remaining[0].PathData[0].Translations["ger-DE"])
}

func TestPublish_RenamedParentKeepsChildrenReachable(t *testing.T) {
	svc, _ := newTestService(t)
	publish(t, svc, 10, rootLocation, "news", "eng-GB")
	publish(t, svc, 11, 10, "story", "eng-GB")
	publish(t, svc, 10, rootLocation, "updates", "eng-GB")

	current := lookup(t, svc, "updates/story")
	assert.Equal(t, "11", current.Destination)
	assert.Equal(t, "updates", current.PathData[0].Translations["eng-GB"])

	old := lookup(t, svc, "news/story")
	assert.Equal(t, current.ID, old.ID)
}

func TestPublish_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  urlalias.PublishRequest
	}{
		{"empty name", urlalias.PublishRequest{LocationID: 10, ParentLocationID: rootLocation, LanguageCode: "eng-GB"}},
		{"slash in name", urlalias.PublishRequest{LocationID: 10, ParentLocationID: rootLocation, Name: "a/b", LanguageCode: "eng-GB"}},
		{"missing language", urlalias.PublishRequest{LocationID: 10, ParentLocationID: rootLocation, Name: "a"}},
		{"missing location", urlalias.PublishRequest{ParentLocationID: rootLocation, Name: "a", LanguageCode: "eng-GB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.PublishURLAliasForLocation(ctx, tt.req)
			assert.ErrorIs(t, err, urlalias.ErrInvalidArgument)
		})
	}
}

func TestPublish_MissingParentAlias(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.PublishURLAliasForLocation(context.Background(), urlalias.PublishRequest{
		LocationID: 10, ParentLocationID: 99, Name: "orphan", LanguageCode: "eng-GB",
	})
	assert.ErrorIs(t, err, urlalias.ErrMissingParentAlias)
	assert.True(t, urlalias.IsConsistency(err))
}

func TestPublish_ConcurrentSameName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(locationID int64) {
			defer wg.Done()
			err := svc.PublishURLAliasForLocation(ctx, urlalias.PublishRequest{
				LocationID: locationID, ParentLocationID: rootLocation, Name: "same", LanguageCode: "eng-GB",
			})
			assert.NoError(t, err)
		}(int64(100 + i))
	}
	wg.Wait()

	live, err := store.Find(ctx, urlalias.NewMatch(urlalias.ByParent(1), urlalias.ByHistory(false)))
	require.NoError(t, err)
	require.Len(t, live, 20)

	texts := map[string]bool{}
	for _, a := range live {
		texts[a.PathData[0].Translations["eng-GB"]] = true
	}
	assert.Len(t, texts, 20)
	assert.True(t, texts["same"])
	assert.True(t, texts["same20"])
}

func TestLookup_DepthMustMatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "a", "eng-GB")
	publish(t, svc, 11, 10, "b", "eng-GB")

	assert.Equal(t, "11", lookup(t, svc, "a/b").Destination)
	assert.Equal(t, "11", lookup(t, svc, "/A/B/").Destination)

	for _, url := range []string{"a/b/c", "b", "a//b", "x"} {
		_, err := svc.Lookup(ctx, url)
		assert.True(t, urlalias.IsNotFound(err), url)
	}
}

func TestLookup_WithCache(t *testing.T) {
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	svc, _ := newTestService(t, urlalias.WithLookupCache(c))
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	assert.False(t, lookup(t, svc, "foo").IsHistory)
	c.Wait()

	publish(t, svc, 10, rootLocation, "bar", "eng-GB")
	assert.True(t, lookup(t, svc, "foo").IsHistory)
	assert.Equal(t, "10", lookup(t, svc, "bar").Destination)
}

func TestCreateCustomURLAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{
		LocationID: 10, Path: "/promo/summer/", Forwarding: true,
	})
	require.NoError(t, err)
	assert.True(t, created.IsCustom)
	assert.True(t, created.Forward)
	assert.Equal(t, []string{urlalias.DefaultLanguage}, created.LanguageCodes)
	require.Len(t, created.PathData, 2)
	assert.Equal(t, "promo", created.PathData[0].Translations[urlalias.AlwaysAvailableLanguage])

	found := lookup(t, svc, "promo/summer")
	assert.Equal(t, "10", found.Destination)
	assert.Equal(t, created.DisplayID, found.DisplayID)

	_, err = svc.Lookup(ctx, "promo")
	assert.True(t, urlalias.IsNotFound(err), "virtual nodes do not resolve")

	_, err = svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 11, Path: "promo/SUMMER"})
	assert.ErrorIs(t, err, urlalias.ErrForbidden)

	listed, err := svc.ListURLAliasesForLocation(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestCreateCustomURLAlias_OverVirtualNode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: "docs/intro"})
	require.NoError(t, err)

	docs, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 11, Path: "docs"})
	require.NoError(t, err)

	assert.Equal(t, "11", lookup(t, svc, "docs").Destination)
	intro := lookup(t, svc, "docs/intro")
	assert.Equal(t, docs.ID.Link, intro.ID.Parent, "children of the vacated node are adopted")
}

func TestCreateCustomURLAlias_UnderLocationAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "news", "eng-GB")

	_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{
		LocationID: 11, Path: "news/special", LanguageCode: "eng-GB",
	})
	require.NoError(t, err)

	news := lookup(t, svc, "news")
	special := lookup(t, svc, "news/special")
	assert.Equal(t, news.ID.Link, special.ID.Parent)
	assert.Equal(t, "news", special.PathData[0].Translations["eng-GB"])
}

func TestCreateCustomURLAlias_OverHistorySlot(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "foo", "eng-GB")
	publish(t, svc, 10, rootLocation, "bar", "eng-GB")

	_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 12, Path: "foo"})
	require.NoError(t, err)

	assert.Equal(t, "12", lookup(t, svc, "foo").Destination)
	assert.Empty(t, history(t, store, "10"))
}

func TestCreateCustomURLAlias_TakenByLiveAlias(t *testing.T) {
	svc, _ := newTestService(t)
	publish(t, svc, 10, rootLocation, "news", "eng-GB")

	_, err := svc.CreateCustomURLAlias(context.Background(), urlalias.CreateCustomAliasRequest{LocationID: 11, Path: "news"})
	assert.True(t, urlalias.IsForbidden(err))
}

func TestCreateCustomURLAlias_InvalidPath(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, path := range []string{"", "/", "a//b"} {
		_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: path})
		assert.ErrorIs(t, err, urlalias.ErrInvalidArgument, path)
	}
}

func TestCreateGlobalURLAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	search, err := svc.CreateGlobalURLAlias(ctx, urlalias.CreateGlobalAliasRequest{Resource: "content:search", Path: "find"})
	require.NoError(t, err)
	assert.Equal(t, urlalias.AliasTypeResource, search.Type)
	assert.Equal(t, "content:search", search.Destination)

	_, err = svc.CreateGlobalURLAlias(ctx, urlalias.CreateGlobalAliasRequest{Resource: "user:login", Path: "anmelden", LanguageCode: "ger-DE"})
	require.NoError(t, err)

	node, err := svc.CreateGlobalURLAlias(ctx, urlalias.CreateGlobalAliasRequest{Resource: "eznode:10", Path: "ten"})
	require.NoError(t, err)
	assert.Equal(t, urlalias.AliasTypeLocation, node.Type)
	assert.Equal(t, "10", node.Destination)

	_, err = svc.CreateGlobalURLAlias(ctx, urlalias.CreateGlobalAliasRequest{Resource: "no-module", Path: "x"})
	assert.ErrorIs(t, err, urlalias.ErrInvalidArgument)

	t.Run("list", func(t *testing.T) {
		tests := []struct {
			name string
			req  urlalias.ListGlobalAliasesRequest
			want []string
		}{
			{"all", urlalias.ListGlobalAliasesRequest{}, []string{"content:search", "user:login"}},
			{"language", urlalias.ListGlobalAliasesRequest{LanguageCode: "ger-DE"}, []string{"user:login"}},
			{"offset", urlalias.ListGlobalAliasesRequest{Offset: 1}, []string{"user:login"}},
			{"limit", urlalias.ListGlobalAliasesRequest{Limit: 1}, []string{"content:search"}},
			{"offset past end", urlalias.ListGlobalAliasesRequest{Offset: 5}, []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				listed, err := svc.ListGlobalURLAliases(ctx, tt.req)
				require.NoError(t, err)
				got := make([]string, 0, len(listed))
				for _, a := range listed {
					got = append(got, a.Destination)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestRemoveURLAliases(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "news", "eng-GB")
	_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: "latest"})
	require.NoError(t, err)

	err = svc.RemoveURLAliases(ctx, []*urlalias.URLAlias{nil})
	assert.ErrorIs(t, err, urlalias.ErrInvalidArgument)

	autogenerated, err := svc.ListURLAliasesForLocation(ctx, 10, false)
	require.NoError(t, err)
	custom, err := svc.ListURLAliasesForLocation(ctx, 10, true)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveURLAliases(ctx, append(autogenerated, custom...)))

	assert.Equal(t, "10", lookup(t, svc, "news").Destination)
	_, err = svc.Lookup(ctx, "latest")
	assert.True(t, urlalias.IsNotFound(err))
}

func TestRemoveURLAliases_KeepsChildrenReachable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	promo, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: "promo"})
	require.NoError(t, err)
	_, err = svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 11, Path: "promo/summer"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveURLAliases(ctx, []*urlalias.URLAlias{promo}))

	_, err = svc.Lookup(ctx, "promo")
	assert.True(t, urlalias.IsNotFound(err))
	assert.Equal(t, "11", lookup(t, svc, "promo/summer").Destination)

	slot, err := store.Find(ctx, urlalias.NewMatch(urlalias.ByLink(promo.ID.Link)))
	require.NoError(t, err)
	require.Len(t, slot, 1)
	assert.Equal(t, urlalias.AliasTypeVirtual, slot[0].Type)

	_, err = svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 12, Path: "promo/summer"})
	assert.True(t, urlalias.IsForbidden(err))

	// claiming the vacated slot again takes over its children
	again, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 12, Path: "promo"})
	require.NoError(t, err)
	assert.Equal(t, promo.ID.Link, again.ID.Link)
	assert.Equal(t, "12", lookup(t, svc, "promo").Destination)
	assert.Equal(t, "11", lookup(t, svc, "promo/summer").Destination)
}

func TestRemoveURLAliases_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: "promo"})
	require.NoError(t, err)
	require.NoError(t, svc.RemoveURLAliases(ctx, []*urlalias.URLAlias{created}))

	err = svc.RemoveURLAliases(ctx, []*urlalias.URLAlias{created})
	assert.True(t, urlalias.IsNotFound(err))
}

func TestLoadURLAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "News", "eng-GB")

	live := lookup(t, svc, "news")
	loaded, err := svc.LoadURLAlias(ctx, live.DisplayID)
	require.NoError(t, err)
	assert.Equal(t, live.ID, loaded.ID)
	assert.Equal(t, urlalias.DisplayID(1, "news"), loaded.DisplayID)

	publish(t, svc, 10, rootLocation, "archive", "eng-GB")
	old, err := svc.LoadURLAlias(ctx, urlalias.DisplayID(1, "News"))
	require.NoError(t, err)
	assert.True(t, old.IsHistory)

	for _, id := range []string{"garbage", "1-xyz", urlalias.DisplayID(1, "nothing"), urlalias.DisplayID(7, "news")} {
		_, err := svc.LoadURLAlias(ctx, id)
		assert.True(t, urlalias.IsNotFound(err), id)
	}
}

// tree publishes: news(5) and archive(6) under root, story(10) under news,
// part(11) under story.
func tree(t *testing.T, svc urlalias.Service) {
	t.Helper()
	publish(t, svc, 5, rootLocation, "news", "eng-GB")
	publish(t, svc, 6, rootLocation, "archive", "eng-GB")
	publish(t, svc, 10, 5, "story", "eng-GB")
	publish(t, svc, 11, 10, "part", "eng-GB")
}

func TestLocationMoved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tree(t, svc)
	before := lookup(t, svc, "news/story")

	require.NoError(t, svc.LocationMoved(ctx, 10, 5, 6))

	moved := lookup(t, svc, "archive/story")
	assert.Equal(t, "10", moved.Destination)
	assert.False(t, moved.IsHistory)
	assert.Equal(t, lookup(t, svc, "archive").ID.Link, moved.ID.Parent)
	assert.NotEqual(t, before.ID.Link, moved.ID.Link)

	old := lookup(t, svc, "news/story")
	assert.Equal(t, "10", old.Destination)
	assert.True(t, old.IsHistory)

	child := lookup(t, svc, "archive/story/part")
	assert.Equal(t, "11", child.Destination)
	assert.Equal(t, moved.ID.Link, child.ID.Parent)
	require.Len(t, child.PathData, 3)
	assert.Equal(t, "archive", child.PathData[0].Translations["eng-GB"])

	// further publishes below the moved location land under its new alias
	publish(t, svc, 12, 10, "epilogue", "eng-GB")
	assert.Equal(t, "12", lookup(t, svc, "archive/story/epilogue").Destination)
}

func TestLocationMoved_MissingAliases(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tree(t, svc)

	err := svc.LocationMoved(ctx, 10, 99, 6)
	assert.ErrorIs(t, err, urlalias.ErrMissingParentAlias)

	err = svc.LocationMoved(ctx, 42, 5, 6)
	assert.ErrorIs(t, err, urlalias.ErrMissingLocationAlias)
}

// slowStore widens the window between reading and writing an alias.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Find(ctx context.Context, m urlalias.Match) ([]*urlalias.URLAlias, error) {
	time.Sleep(time.Millisecond)
	return s.Store.Find(ctx, m)
}

func (s slowStore) Update(ctx context.Context, alias *urlalias.URLAlias) error {
	time.Sleep(20 * time.Millisecond)
	return s.Store.Update(ctx, alias)
}

func newSlowService(t *testing.T) (urlalias.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc, err := urlalias.New(urlalias.WithStore(slowStore{store}))
	require.NoError(t, err)
	_, err = svc.InitializeRoot(context.Background(), rootLocation)
	require.NoError(t, err)
	return svc, store
}

func liveAutogenerated(t *testing.T, store *memory.Store, destination string) []*urlalias.URLAlias {
	t.Helper()
	found, err := store.Find(context.Background(), urlalias.NewMatch(
		urlalias.ByType(urlalias.AliasTypeLocation),
		urlalias.ByDestination(destination),
		urlalias.ByHistory(false),
		urlalias.ByCustom(false),
	))
	require.NoError(t, err)
	return found
}

func TestLocationMoved_Concurrent(t *testing.T) {
	svc, store := newSlowService(t)
	ctx := context.Background()
	tree(t, svc)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.LocationMoved(ctx, 10, 5, 6)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, urlalias.ErrMissingLocationAlias)
	}
	assert.Equal(t, 1, succeeded)

	live := liveAutogenerated(t, store, "10")
	require.Len(t, live, 1)
	assert.Equal(t, lookup(t, svc, "archive").ID.Link, live[0].ID.Parent)
	assert.Equal(t, "11", lookup(t, svc, "archive/story/part").Destination)
}

func TestLocationMoved_ConcurrentPublish(t *testing.T) {
	svc, store := newSlowService(t)
	ctx := context.Background()
	tree(t, svc)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.PublishURLAliasForLocation(ctx, urlalias.PublishRequest{
			LocationID: 10, ParentLocationID: 5, Name: "press", LanguageCode: "eng-GB",
		}))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.LocationMoved(ctx, 10, 5, 6))
	}()
	wg.Wait()

	// whichever ran first, the rename survives
	moved, errMoved := svc.Lookup(ctx, "archive/press")
	kept, errKept := svc.Lookup(ctx, "news/press")
	switch {
	case errMoved == nil:
		assert.Equal(t, "10", moved.Destination)
	case errKept == nil:
		assert.Equal(t, "10", kept.Destination)
	default:
		t.Fatalf("rename lost: %v, %v", errMoved, errKept)
	}

	perParent := map[int64]int{}
	for _, a := range liveAutogenerated(t, store, "10") {
		perParent[a.ID.Parent]++
	}
	for parent, n := range perParent {
		assert.Equal(t, 1, n, "parent link %d", parent)
	}
}

func TestLocationCopied_MissingSource(t *testing.T) {
	svc, _ := newTestService(t)
	tree(t, svc)

	err := svc.LocationCopied(context.Background(), 42, 5, 6)
	assert.ErrorIs(t, err, urlalias.ErrMissingLocationAlias)
}

func TestLocationCopied(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tree(t, svc)

	require.NoError(t, svc.LocationCopied(ctx, 10, 5, 6))

	source := lookup(t, svc, "news/story")
	assert.False(t, source.IsHistory)
	copied := lookup(t, svc, "archive/story")
	assert.Equal(t, "10", copied.Destination)
	assert.NotEqual(t, source.ID.Link, copied.ID.Link)
	assert.Equal(t, source.PathData[1], copied.PathData[1])
}

func TestLocationDeleted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	publish(t, svc, 10, rootLocation, "news", "eng-GB")
	publish(t, svc, 10, rootLocation, "latest", "eng-GB")
	_, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{LocationID: 10, Path: "promo"})
	require.NoError(t, err)
	publish(t, svc, 11, rootLocation, "other", "eng-GB")

	require.NoError(t, svc.LocationDeleted(ctx, 10))

	for _, url := range []string{"news", "latest", "promo"} {
		_, err := svc.Lookup(ctx, url)
		assert.True(t, urlalias.IsNotFound(err), url)
	}
	assert.Equal(t, "11", lookup(t, svc, "other").Destination)
}

func TestLocationDeleted_KeepsChildrenReachable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	tree(t, svc)
	publish(t, svc, 10, 5, "feature", "eng-GB")
	storyLink := lookup(t, svc, "news/feature").ID.Link

	require.NoError(t, svc.LocationDeleted(ctx, 10))

	for _, url := range []string{"news/feature", "news/story"} {
		_, err := svc.Lookup(ctx, url)
		assert.True(t, urlalias.IsNotFound(err), url)
	}
	assert.Equal(t, "11", lookup(t, svc, "news/feature/part").Destination)

	slot, err := store.Find(ctx, urlalias.NewMatch(urlalias.ByLink(storyLink)))
	require.NoError(t, err)
	require.Len(t, slot, 1)
	assert.Equal(t, urlalias.AliasTypeVirtual, slot[0].Type)

	require.NoError(t, svc.LocationDeleted(ctx, 11))
	_, err = svc.Lookup(ctx, "news/feature/part")
	assert.True(t, urlalias.IsNotFound(err))
}

type recordingSink struct {
	urlalias.NoopEventSink
	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *recordingSink) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.fail {
		return errors.New("sink unavailable")
	}
	return nil
}

func (r *recordingSink) AliasPublished(ctx context.Context, a *urlalias.URLAlias) error {
	return r.record("published:" + a.DisplayID)
}

func (r *recordingSink) AliasHistorized(ctx context.Context, a *urlalias.URLAlias) error {
	return r.record("historized:" + a.DisplayID)
}

func (r *recordingSink) LocationMoved(ctx context.Context, locationID, oldParentID, newParentID int64) error {
	return r.record(fmt.Sprintf("moved:%d:%d:%d", locationID, oldParentID, newParentID))
}

func TestEvents(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestService(t, urlalias.WithEventSink(sink))
	ctx := context.Background()
	tree(t, svc)
	publish(t, svc, 10, 5, "tale", "eng-GB")
	require.NoError(t, svc.LocationMoved(ctx, 10, 5, 6))

	storyParent := lookup(t, svc, "news").ID.Link
	assert.Contains(t, sink.events, "published:"+urlalias.DisplayID(storyParent, "tale"))
	assert.Contains(t, sink.events, "historized:"+urlalias.DisplayID(storyParent, "story"))
	assert.Contains(t, sink.events, "moved:10:5:6")
}

func TestEvents_SinkFailureDoesNotFailOperation(t *testing.T) {
	svc, _ := newTestService(t, urlalias.WithEventSink(&recordingSink{fail: true}))
	publish(t, svc, 10, rootLocation, "news", "eng-GB")
	assert.Equal(t, "10", lookup(t, svc, "news").Destination)
}
