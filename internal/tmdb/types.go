package tmdb

// Genre is an upstream genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type genreList struct {
	Genres []Genre `json:"genres"`
}

// Page is one page of a listing endpoint.
type Page[T any] struct {
	Page         int `json:"page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []T `json:"results"`
}

// Summary is a listing entry. Movies carry Title, shows carry Name.
type Summary struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

// MovieDetail is /movie/{id} with credits appended.
type MovieDetail struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	Genres           []Genre `json:"genres"`
	Credits          Credits `json:"credits"`
}

// Credits holds the movie cast list.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// CastMember is a movie credit.
type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
}

// ShowDetail is /tv/{id} with aggregate credits appended.
type ShowDetail struct {
	ID               int              `json:"id"`
	Name             string           `json:"name"`
	Overview         string           `json:"overview"`
	PosterPath       string           `json:"poster_path"`
	BackdropPath     string           `json:"backdrop_path"`
	OriginalLanguage string           `json:"original_language"`
	FirstAirDate     string           `json:"first_air_date"`
	LastAirDate      string           `json:"last_air_date"`
	VoteAverage      float64          `json:"vote_average"`
	VoteCount        int              `json:"vote_count"`
	Popularity       float64          `json:"popularity"`
	Genres           []Genre          `json:"genres"`
	Seasons          []SeasonSummary  `json:"seasons"`
	AggregateCredits AggregateCredits `json:"aggregate_credits"`
}

// AggregateCredits holds the show cast list across all seasons.
type AggregateCredits struct {
	Cast []AggregateCastMember `json:"cast"`
}

// AggregateCastMember is a show credit. Character and Order are often absent;
// the roles list and episode count are used as fallbacks.
type AggregateCastMember struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	ProfilePath       string `json:"profile_path"`
	Character         string `json:"character"`
	Order             *int   `json:"order"`
	TotalEpisodeCount int    `json:"total_episode_count"`
	Roles             []Role `json:"roles"`
}

// Role is one character played in a show.
type Role struct {
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
}

// SeasonSummary is a season entry embedded in the show detail.
type SeasonSummary struct {
	ID           int    `json:"id"`
	SeasonNumber *int   `json:"season_number"`
	Name         string `json:"name"`
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
}

// SeasonDetail is /tv/{id}/season/{n}.
type SeasonDetail struct {
	ID           int       `json:"id"`
	SeasonNumber int       `json:"season_number"`
	Name         string    `json:"name"`
	AirDate      string    `json:"air_date"`
	Episodes     []Episode `json:"episodes"`
}

// Episode is an entry of a season detail.
type Episode struct {
	ID            int    `json:"id"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	AirDate       string `json:"air_date"`
	Runtime       *int   `json:"runtime"`
}

// PersonDetail is /person/{id} with external ids appended.
type PersonDetail struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	ProfilePath  string      `json:"profile_path"`
	Birthday     string      `json:"birthday"`
	Deathday     string      `json:"deathday"`
	PlaceOfBirth string      `json:"place_of_birth"`
	Biography    string      `json:"biography"`
	ImdbID       string      `json:"imdb_id"`
	ExternalIDs  ExternalIDs `json:"external_ids"`
}

// ExternalIDs holds the social and profile identifiers of a person.
type ExternalIDs struct {
	ImdbID      string `json:"imdb_id"`
	InstagramID string `json:"instagram_id"`
	TwitterID   string `json:"twitter_id"`
	FacebookID  string `json:"facebook_id"`
}
