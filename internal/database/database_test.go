package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jon4hz/catalogsync/internal/catalog"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(&config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "catalog.db"),
		EnableWAL:   true,
		BusyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type RepositoryTestSuite struct {
	suite.Suite
	db  *Client
	ctx context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = newTestClient(s.T())
	s.ctx = context.Background()
}

func movie(id int, title string) catalog.Item {
	return catalog.Item{
		ExternalID:  id,
		MediaType:   catalog.MediaTypeMovie,
		Title:       title,
		Popularity:  10,
		VoteAverage: 7.5,
		VoteCount:   100,
	}
}

func (s *RepositoryTestSuite) TestUpsertItem_Idempotent() {
	first, res, err := s.db.UpsertItem(s.ctx, movie(603, "The Matrix"))
	s.Require().NoError(err)
	s.Equal(Inserted, res)

	second, res, err := s.db.UpsertItem(s.ctx, movie(603, "The Matrix Reloaded"))
	s.Require().NoError(err)
	s.Equal(Updated, res)
	s.Equal(first.ID, second.ID)
	s.Equal("The Matrix Reloaded", second.Title)

	n, err := s.db.CountItems(s.ctx, catalog.MediaTypeMovie)
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *RepositoryTestSuite) TestUpsertItem_SameIDDifferentType() {
	show := movie(603, "Some Show")
	show.MediaType = catalog.MediaTypeShow

	_, res, err := s.db.UpsertItem(s.ctx, movie(603, "The Matrix"))
	s.Require().NoError(err)
	s.Equal(Inserted, res)
	_, res, err = s.db.UpsertItem(s.ctx, show)
	s.Require().NoError(err)
	s.Equal(Inserted, res)

	counts, err := s.db.GetCounts(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, counts.Movies)
	s.EqualValues(1, counts.Shows)
}

func (s *RepositoryTestSuite) TestUpsertItem_Invalid() {
	_, _, err := s.db.UpsertItem(s.ctx, movie(0, "x"))
	s.Error(err)
	_, _, err = s.db.UpsertItem(s.ctx, movie(1, ""))
	s.Error(err)
}

func (s *RepositoryTestSuite) TestGenres() {
	n, err := s.db.UpsertGenres(s.ctx, []catalog.Genre{{ExternalID: 28, Name: "Action"}, {ExternalID: 18, Name: "Drama"}})
	s.Require().NoError(err)
	s.Equal(2, n)

	// Renamed upstream.
	_, err = s.db.UpsertGenres(s.ctx, []catalog.Genre{{ExternalID: 18, Name: "Drama Series"}})
	s.Require().NoError(err)

	item, _, err := s.db.UpsertItem(s.ctx, movie(1, "Heat"))
	s.Require().NoError(err)
	s.Require().NoError(s.db.LinkGenres(s.ctx, item, []catalog.Genre{
		{ExternalID: 28, Name: "Action"},
		{ExternalID: 28, Name: "Action"},
		{ExternalID: 80, Name: "Crime"},
	}))

	stored, err := s.db.GetItem(s.ctx, catalog.MediaTypeMovie, 1)
	s.Require().NoError(err)
	names := lo.Map(stored.Genres, func(g Genre, _ int) string { return g.Name })
	s.ElementsMatch([]string{"Action", "Crime"}, names)

	// Relinking replaces the set.
	s.Require().NoError(s.db.LinkGenres(s.ctx, item, []catalog.Genre{{ExternalID: 18, Name: "Drama Series"}}))
	stored, err = s.db.GetItem(s.ctx, catalog.MediaTypeMovie, 1)
	s.Require().NoError(err)
	s.Require().Len(stored.Genres, 1)
	s.Equal("Drama Series", stored.Genres[0].Name)

	counts, err := s.db.GetCounts(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, counts.Genres)
}

func (s *RepositoryTestSuite) TestUpsertPerson_MergesMissingFields() {
	_, err := s.db.UpsertPerson(s.ctx, catalog.Person{
		ExternalID: 31,
		Name:       "Tom Hanks",
		Biography:  lo.ToPtr("Actor."),
		ImdbID:     lo.ToPtr("nm0000158"),
	})
	s.Require().NoError(err)

	p, err := s.db.UpsertPerson(s.ctx, catalog.Person{
		ExternalID:  31,
		Name:        "Thomas Hanks",
		ProfilePath: lo.ToPtr("/hanks.jpg"),
	})
	s.Require().NoError(err)

	s.Equal("Thomas Hanks", p.Name)
	s.Equal(lo.ToPtr("/hanks.jpg"), p.ProfilePath)
	s.Equal(lo.ToPtr("Actor."), p.Biography)
	s.Equal(lo.ToPtr("nm0000158"), p.ImdbID)

	counts, err := s.db.GetCounts(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, counts.People)
}

func (s *RepositoryTestSuite) TestAttachCast_UniquePerPair() {
	item, _, err := s.db.UpsertItem(s.ctx, movie(13, "Forrest Gump"))
	s.Require().NoError(err)
	p, err := s.db.UpsertPerson(s.ctx, catalog.Person{ExternalID: 31, Name: "Tom Hanks"})
	s.Require().NoError(err)

	s.Require().NoError(s.db.AttachCast(s.ctx, item, p, lo.ToPtr("Forrest"), 0))
	s.Require().NoError(s.db.AttachCast(s.ctx, item, p, lo.ToPtr("Forrest Gump"), 1))

	stored, err := s.db.GetItem(s.ctx, catalog.MediaTypeMovie, 13)
	s.Require().NoError(err)
	s.Require().Len(stored.Cast, 1)
	s.Equal(lo.ToPtr("Forrest Gump"), stored.Cast[0].Character)
	s.Equal(1, stored.Cast[0].Order)
	s.Equal("Tom Hanks", stored.Cast[0].Person.Name)
}

func (s *RepositoryTestSuite) TestSeasonsAndEpisodes() {
	showItem := movie(1399, "Game of Thrones")
	showItem.MediaType = catalog.MediaTypeShow
	show, _, err := s.db.UpsertItem(s.ctx, showItem)
	s.Require().NoError(err)

	season, err := s.db.UpsertSeason(s.ctx, show, catalog.Season{Number: 1, Title: lo.ToPtr("Season 1")})
	s.Require().NoError(err)
	again, err := s.db.UpsertSeason(s.ctx, show, catalog.Season{Number: 1, Title: lo.ToPtr("S1")})
	s.Require().NoError(err)
	s.Equal(season.ID, again.ID)
	s.Equal(lo.ToPtr("S1"), again.Title)

	s.Require().NoError(s.db.UpsertEpisode(s.ctx, season, catalog.Episode{Number: 1, Title: lo.ToPtr("Winter Is Coming")}))
	s.Require().NoError(s.db.UpsertEpisode(s.ctx, season, catalog.Episode{Number: 1, Title: lo.ToPtr("Pilot"), RuntimeMin: lo.ToPtr(62)}))

	stored, err := s.db.GetItem(s.ctx, catalog.MediaTypeShow, 1399)
	s.Require().NoError(err)
	s.Require().Len(stored.Seasons, 1)
	s.Require().Len(stored.Seasons[0].Episodes, 1)
	s.Equal(lo.ToPtr("Pilot"), stored.Seasons[0].Episodes[0].Title)

	m, _, err := s.db.UpsertItem(s.ctx, movie(2, "Heat"))
	s.Require().NoError(err)
	_, err = s.db.UpsertSeason(s.ctx, m, catalog.Season{Number: 1})
	s.Error(err)
}

func (s *RepositoryTestSuite) TestInTx_RollsBack() {
	err := s.db.InTx(s.ctx, func(tx *Client) error {
		if _, _, err := tx.UpsertItem(s.ctx, movie(5, "Rolled Back")); err != nil {
			return err
		}
		_, err := tx.UpsertPerson(s.ctx, catalog.Person{ExternalID: 7})
		return err
	})
	s.Require().Error(err)

	n, err := s.db.CountItems(s.ctx, catalog.MediaTypeMovie)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RepositoryTestSuite) TestCleanupStale() {
	item, _, err := s.db.UpsertItem(s.ctx, movie(1, "Old"))
	s.Require().NoError(err)
	p, err := s.db.UpsertPerson(s.ctx, catalog.Person{ExternalID: 9, Name: "Someone"})
	s.Require().NoError(err)
	s.Require().NoError(s.db.AttachCast(s.ctx, item, p, nil, 0))
	s.Require().NoError(s.db.LinkGenres(s.ctx, item, []catalog.Genre{{ExternalID: 28, Name: "Action"}}))

	cutoff := time.Now().UTC().Add(time.Second)
	_, _, err = s.db.UpsertItem(s.ctx, movie(2, "Kept"))
	s.Require().NoError(err)
	s.Require().NoError(s.db.db.Model(&CatalogItem{}).Where("external_id = ?", 2).
		Update("updated_at", cutoff.Add(time.Hour)).Error)

	res, err := s.db.CleanupStale(s.ctx, cutoff)
	s.Require().NoError(err)
	s.EqualValues(1, res.Items)
	s.EqualValues(1, res.Cast)
	s.EqualValues(1, res.Links)

	counts, err := s.db.GetCounts(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, counts.Movies)
	s.EqualValues(1, counts.People)
	s.EqualValues(1, counts.Genres)

	s.NoError(s.db.Vacuum(s.ctx))
}

func (s *RepositoryTestSuite) TestKPIUpsert() {
	now := time.Now().UTC()
	s.Require().NoError(s.db.UpsertKPI(s.ctx, "title_stats", "total_titles", map[string]int{"total": 1}, now))
	s.Require().NoError(s.db.UpsertKPI(s.ctx, "title_stats", "total_titles", map[string]int{"total": 2}, now))
	s.Require().NoError(s.db.UpsertKPI(s.ctx, "title_stats", "by_type", []int{1, 2}, now))

	kpis, err := s.db.GetKPIsByCategory(s.ctx, "title_stats")
	s.Require().NoError(err)
	s.Require().Len(kpis, 2)
	s.Equal("by_type", kpis[0].Name)

	k, err := s.db.GetKPI(s.ctx, "title_stats", "total_titles")
	s.Require().NoError(err)
	var v map[string]int
	s.Require().NoError(k.Decode(&v))
	s.Equal(2, v["total"])
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{Path: "data/x.db", EnableWAL: true, BusyTimeout: 30 * time.Second})
	assert.Contains(t, dsn, "data/x.db?")
	assert.Contains(t, dsn, "busy_timeout%2830000%29")
	assert.Contains(t, dsn, "journal_mode%28WAL%29")

	dsn = DSN(&config.DatabaseConfig{Path: "x.db", BusyTimeout: time.Second})
	assert.NotContains(t, dsn, "journal_mode")
}
