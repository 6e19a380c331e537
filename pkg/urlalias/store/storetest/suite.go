// Package storetest holds the behaviour every urlalias.Store must share.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

// StoreSuite runs against a fresh store per test.
type StoreSuite struct {
	suite.Suite
	NewStore func(t *testing.T) urlalias.Store

	ctx   context.Context
	store urlalias.Store
}

// Run executes the suite with newStore as the factory.
func Run(t *testing.T, newStore func(t *testing.T) urlalias.Store) {
	suite.Run(t, &StoreSuite{NewStore: newStore})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

// Alias builds a single-segment alias for tests.
func Alias(parent, link int64, aliasType urlalias.AliasType, destination, lang, text string) *urlalias.URLAlias {
	return &urlalias.URLAlias{
		ID:          urlalias.AliasID{Link: link, Parent: parent},
		Type:        aliasType,
		Destination: destination,
		PathData: []urlalias.PathElement{
			{Translations: map[string]string{lang: text}},
		},
		LanguageCodes: []string{lang},
	}
}

func (s *StoreSuite) create(a *urlalias.URLAlias) *urlalias.URLAlias {
	created, err := s.store.Create(s.ctx, a)
	s.Require().NoError(err)
	return created
}

func (s *StoreSuite) TestCreateAssignsIdentity() {
	created := s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))

	s.NotEqual(uuid.Nil, created.ID.ID)
	s.False(created.CreatedAt.IsZero())
	s.Equal(int64(2), created.ID.Link)
	s.Equal(int64(1), created.ID.Parent)

	loaded, err := s.store.Load(s.ctx, created.ID.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, loaded.ID)
	s.Equal("news", loaded.PathData[0].Translations["eng-GB"])
	s.Equal([]string{"eng-GB"}, loaded.LanguageCodes)
	s.Empty(loaded.DisplayID)
}

func (s *StoreSuite) TestCreateKeepsGivenID() {
	a := Alias(0, 3, urlalias.AliasTypeVirtual, "", urlalias.AlwaysAvailableLanguage, "docs")
	a.ID.ID = uuid.New()
	created := s.create(a)
	s.Equal(a.ID.ID, created.ID.ID)
}

func (s *StoreSuite) TestFindPreservesInsertionOrder() {
	first := s.create(Alias(1, 5, urlalias.AliasTypeLocation, "10", "eng-GB", "b"))
	second := s.create(Alias(1, 3, urlalias.AliasTypeLocation, "11", "eng-GB", "a"))
	third := s.create(Alias(1, 4, urlalias.AliasTypeLocation, "12", "eng-GB", "c"))

	// updates must not reorder
	first.IsHistory = true
	s.Require().NoError(s.store.Update(s.ctx, first))

	found, err := s.store.Find(s.ctx, urlalias.NewMatch(urlalias.ByParent(1)))
	s.Require().NoError(err)
	s.Require().Len(found, 3)
	s.Equal(first.ID.ID, found[0].ID.ID)
	s.Equal(second.ID.ID, found[1].ID.ID)
	s.Equal(third.ID.ID, found[2].ID.ID)
	s.True(found[0].IsHistory)
	s.Equal(first.CreatedAt.Unix(), found[0].CreatedAt.Unix())
}

func (s *StoreSuite) TestFindByMatch() {
	location := s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))
	custom := Alias(0, 3, urlalias.AliasTypeResource, "content:search", "ger-DE", "suche")
	custom.IsCustom = true
	s.create(custom)
	history := Alias(1, 4, urlalias.AliasTypeLocation, "10", "eng-GB", "old-news")
	history.IsHistory = true
	s.create(history)

	tests := []struct {
		name  string
		match urlalias.Match
		want  int
	}{
		{"all", urlalias.NewMatch(), 3},
		{"parent", urlalias.NewMatch(urlalias.ByParent(1)), 2},
		{"any parent", urlalias.NewMatch(urlalias.ByParent(0, 1)), 3},
		{"link", urlalias.NewMatch(urlalias.ByLink(3)), 1},
		{"type", urlalias.NewMatch(urlalias.ByType(urlalias.AliasTypeResource)), 1},
		{"destination", urlalias.NewMatch(urlalias.ByDestination("10")), 2},
		{"live", urlalias.NewMatch(urlalias.ByDestination("10"), urlalias.ByHistory(false)), 1},
		{"custom", urlalias.NewMatch(urlalias.ByCustom(true)), 1},
		{"language", urlalias.NewMatch(urlalias.ByLanguage("ger-DE")), 1},
		{"no match", urlalias.NewMatch(urlalias.ByParent(42)), 0},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			found, err := s.store.Find(s.ctx, tt.match)
			s.Require().NoError(err)
			s.Len(found, tt.want)
		})
	}

	live, err := s.store.Find(s.ctx, urlalias.NewMatch(urlalias.ByDestination("10"), urlalias.ByHistory(false)))
	s.Require().NoError(err)
	s.Equal(location.ID.ID, live[0].ID.ID)
}

func (s *StoreSuite) TestUpdate() {
	created := s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))

	created.PathData[0].Translations["ger-DE"] = "nachrichten"
	created.LanguageCodes = []string{"eng-GB", "ger-DE"}
	created.ID.Parent = 7
	s.Require().NoError(s.store.Update(s.ctx, created))

	loaded, err := s.store.Load(s.ctx, created.ID.ID)
	s.Require().NoError(err)
	s.Equal(int64(7), loaded.ID.Parent)
	s.Equal("nachrichten", loaded.PathData[0].Translations["ger-DE"])
	s.ElementsMatch([]string{"eng-GB", "ger-DE"}, loaded.LanguageCodes)
}

func (s *StoreSuite) TestUpdateMissing() {
	missing := Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news")
	missing.ID.ID = uuid.New()
	err := s.store.Update(s.ctx, missing)
	s.ErrorIs(err, urlalias.ErrNotFound)
}

func (s *StoreSuite) TestDelete() {
	created := s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))

	s.Require().NoError(s.store.Delete(s.ctx, created.ID.ID))
	_, err := s.store.Load(s.ctx, created.ID.ID)
	s.ErrorIs(err, urlalias.ErrNotFound)

	err = s.store.Delete(s.ctx, created.ID.ID)
	s.ErrorIs(err, urlalias.ErrNotFound)
}

func (s *StoreSuite) TestDeleteByMatch() {
	s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))
	s.create(Alias(2, 3, urlalias.AliasTypeLocation, "10", "eng-GB", "archive"))
	keep := s.create(Alias(1, 4, urlalias.AliasTypeLocation, "11", "eng-GB", "blog"))

	removed, err := s.store.DeleteByMatch(s.ctx, urlalias.NewMatch(urlalias.ByDestination("10")))
	s.Require().NoError(err)
	s.Equal(2, removed)

	found, err := s.store.Find(s.ctx, urlalias.NewMatch())
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(keep.ID.ID, found[0].ID.ID)
}

func (s *StoreSuite) TestLoadNotFound() {
	_, err := s.store.Load(s.ctx, uuid.New())
	s.ErrorIs(err, urlalias.ErrNotFound)
}

func (s *StoreSuite) TestNextLinkIDIsMonotonic() {
	first, err := s.store.NextLinkID(s.ctx)
	s.Require().NoError(err)
	s.Positive(first)

	second, err := s.store.NextLinkID(s.ctx)
	s.Require().NoError(err)
	s.Greater(second, first)
}

func (s *StoreSuite) TestReturnedRecordsAreCopies() {
	created := s.create(Alias(1, 2, urlalias.AliasTypeLocation, "10", "eng-GB", "news"))
	created.PathData[0].Translations["eng-GB"] = "mutated"

	found, err := s.store.Find(s.ctx, urlalias.NewMatch(urlalias.ByLink(2)))
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("news", found[0].PathData[0].Translations["eng-GB"])

	found[0].PathData[0].Translations["eng-GB"] = "mutated again"
	loaded, err := s.store.Load(s.ctx, created.ID.ID)
	s.Require().NoError(err)
	s.Equal("news", loaded.PathData[0].Translations["eng-GB"])
}
