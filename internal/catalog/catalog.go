// Package catalog holds the normalized catalog records passed from the
// transformer to the repository.
package catalog

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "tv"
)

// Item is a normalized movie or show.
type Item struct {
	ExternalID       int
	MediaType        MediaType
	Title            string
	Overview         *string
	PosterPath       *string
	BackdropPath     *string
	OriginalLanguage *string
	Popularity       float64
	VoteAverage      float64
	VoteCount        int
	// ReleaseDate is the full date (movie release or show first air date), when known.
	ReleaseDate *string
	ReleaseYear *int
	LastAirDate *string
	RuntimeMin  *int
	Genres      []Genre
}

// Genre is a genre reference as observed upstream.
type Genre struct {
	ExternalID int
	Name       string
}

// Person is a cast member with optional enrichment fields.
type Person struct {
	ExternalID   int
	Name         string
	ProfilePath  *string
	Birthday     *string
	Deathday     *string
	PlaceOfBirth *string
	Biography    *string
	ImdbID       *string
	InstagramID  *string
	TwitterID    *string
	FacebookID   *string
}

// Cast links a person to an item.
type Cast struct {
	Person    Person
	Character *string
	Order     int
}

// Season is a show season with its capped episode list.
type Season struct {
	Number   int
	Title    *string
	AirDate  *string
	Episodes []Episode
}

// Episode is a season episode.
type Episode struct {
	Number     int
	Title      *string
	AirDate    *string
	RuntimeMin *int
}
