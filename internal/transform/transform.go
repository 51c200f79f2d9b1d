// Package transform turns upstream records into normalized catalog records.
// Everything here is pure: no storage, no network.
package transform

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/jon4hz/catalogsync/internal/catalog"
	"github.com/jon4hz/catalogsync/internal/tmdb"
	"github.com/samber/lo"
)

// CleanText trims whitespace and strips control characters other than
// newlines and tabs. It returns nil when nothing is left.
func CleanText(s string) *string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// ReleaseYear extracts the year of a YYYY[-MM-DD] date.
func ReleaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}

// fullDate keeps a date only when it is a complete YYYY-MM-DD value.
func fullDate(date string) *string {
	if len(date) < 10 {
		return nil
	}
	return lo.ToPtr(date)
}

// Movie normalizes a movie detail.
func Movie(d *tmdb.MovieDetail) catalog.Item {
	item := catalog.Item{
		ExternalID:       d.ID,
		MediaType:        catalog.MediaTypeMovie,
		Title:            lo.FromPtr(CleanText(d.Title)),
		Overview:         CleanText(d.Overview),
		PosterPath:       CleanText(d.PosterPath),
		BackdropPath:     CleanText(d.BackdropPath),
		OriginalLanguage: CleanText(d.OriginalLanguage),
		Popularity:       d.Popularity,
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
		ReleaseDate:      fullDate(d.ReleaseDate),
		ReleaseYear:      ReleaseYear(d.ReleaseDate),
		Genres:           Genres(d.Genres),
	}
	if d.Runtime > 0 {
		item.RuntimeMin = lo.ToPtr(d.Runtime)
	}
	return item
}

// Show normalizes a show detail.
func Show(d *tmdb.ShowDetail) catalog.Item {
	return catalog.Item{
		ExternalID:       d.ID,
		MediaType:        catalog.MediaTypeShow,
		Title:            lo.FromPtr(CleanText(d.Name)),
		Overview:         CleanText(d.Overview),
		PosterPath:       CleanText(d.PosterPath),
		BackdropPath:     CleanText(d.BackdropPath),
		OriginalLanguage: CleanText(d.OriginalLanguage),
		Popularity:       d.Popularity,
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
		ReleaseDate:      fullDate(d.FirstAirDate),
		ReleaseYear:      ReleaseYear(d.FirstAirDate),
		LastAirDate:      fullDate(d.LastAirDate),
		Genres:           Genres(d.Genres),
	}
}

// Genres normalizes a genre list, dropping unnamed entries.
func Genres(genres []tmdb.Genre) []catalog.Genre {
	named := lo.Filter(genres, func(g tmdb.Genre, _ int) bool {
		return strings.TrimSpace(g.Name) != ""
	})
	return lo.Map(named, func(g tmdb.Genre, _ int) catalog.Genre {
		return catalog.Genre{ExternalID: g.ID, Name: strings.TrimSpace(g.Name)}
	})
}

// MergeGenres merges several genre vocabularies by upstream id; the first
// occurrence of an id wins.
func MergeGenres(lists ...[]tmdb.Genre) []catalog.Genre {
	return lo.UniqBy(Genres(lo.Flatten(lists)), func(g catalog.Genre) int {
		return g.ExternalID
	})
}

// Person builds a person from the cast entry (id, name, profile image) and
// the optional detail payload. Cast entry values always win.
func Person(id int, name, profilePath string, detail *tmdb.PersonDetail) catalog.Person {
	p := catalog.Person{
		ExternalID:  id,
		Name:        lo.FromPtr(CleanText(name)),
		ProfilePath: CleanText(profilePath),
	}
	if detail == nil {
		return p
	}

	p.Birthday = CleanText(detail.Birthday)
	p.Deathday = CleanText(detail.Deathday)
	p.PlaceOfBirth = CleanText(detail.PlaceOfBirth)
	p.Biography = CleanText(detail.Biography)
	p.ImdbID = lo.CoalesceOrEmpty(CleanText(detail.ImdbID), CleanText(detail.ExternalIDs.ImdbID))
	p.InstagramID = CleanText(detail.ExternalIDs.InstagramID)
	p.TwitterID = CleanText(detail.ExternalIDs.TwitterID)
	p.FacebookID = CleanText(detail.ExternalIDs.FacebookID)
	return p
}

// MovieCast builds a cast assignment from a movie credit.
func MovieCast(c tmdb.CastMember, detail *tmdb.PersonDetail) catalog.Cast {
	return catalog.Cast{
		Person:    Person(c.ID, c.Name, c.ProfilePath, detail),
		Character: CleanText(c.Character),
		Order:     c.Order,
	}
}

// ShowCast builds a cast assignment from an aggregate show credit. The
// character falls back to the first role, the order to the episode count.
func ShowCast(c tmdb.AggregateCastMember, detail *tmdb.PersonDetail) catalog.Cast {
	character := CleanText(c.Character)
	if character == nil && len(c.Roles) > 0 {
		character = CleanText(c.Roles[0].Character)
	}
	order := c.TotalEpisodeCount
	if c.Order != nil {
		order = *c.Order
	}
	return catalog.Cast{
		Person:    Person(c.ID, c.Name, c.ProfilePath, detail),
		Character: character,
		Order:     order,
	}
}

// Season normalizes a season. Specials (number 0) and seasons without a
// number are rejected. Episodes come from the optional detail, capped at
// maxEpisodes.
func Season(s tmdb.SeasonSummary, detail *tmdb.SeasonDetail, maxEpisodes int) (catalog.Season, bool) {
	if s.SeasonNumber == nil || *s.SeasonNumber == 0 {
		return catalog.Season{}, false
	}
	season := catalog.Season{
		Number:  *s.SeasonNumber,
		Title:   CleanText(s.Name),
		AirDate: CleanText(s.AirDate),
	}
	if detail == nil {
		return season, true
	}

	episodes := detail.Episodes
	if len(episodes) > maxEpisodes {
		episodes = episodes[:maxEpisodes]
	}
	season.Episodes = lo.Map(episodes, func(e tmdb.Episode, _ int) catalog.Episode {
		return Episode(e)
	})
	return season, true
}

// Episode normalizes an episode.
func Episode(e tmdb.Episode) catalog.Episode {
	ep := catalog.Episode{
		Number:  e.EpisodeNumber,
		Title:   CleanText(e.Name),
		AirDate: CleanText(e.AirDate),
	}
	if e.Runtime != nil && *e.Runtime > 0 {
		ep.RuntimeMin = lo.ToPtr(*e.Runtime)
	}
	return ep
}
