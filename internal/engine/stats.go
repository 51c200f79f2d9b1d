package engine

import (
	"time"

	"github.com/jon4hz/catalogsync/internal/monitor"
)

// OutcomeKind classifies what happened to one item.
type OutcomeKind int

const (
	OutcomeInserted OutcomeKind = iota + 1
	OutcomeUpdated
	OutcomeSkipped
	OutcomeErrored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one item.
type Outcome struct {
	Kind OutcomeKind
	// Reason explains a skip.
	Reason string
	// Err is set for errored items.
	Err error
	// People is the number of cast members stored with the item.
	People int
	// Partial holds season failures of a stored show.
	Partial []error
}

func skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }
func errored(err error) Outcome     { return Outcome{Kind: OutcomeErrored, Err: err} }

// EntityStats counts the items of one media type.
type EntityStats struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s *EntityStats) add(o Outcome) {
	switch o.Kind {
	case OutcomeInserted:
		s.Inserted++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeErrored:
		s.Errors++
	}
}

// Stats are the counters of one orchestrator run.
type Stats struct {
	Movies       EntityStats   `json:"movies"`
	Shows        EntityStats   `json:"shows"`
	GenresSynced int           `json:"genres_synced"`
	PeopleSynced int           `json:"people_synced"`
	APICalls     int64         `json:"api_calls"`
	Errors       int           `json:"errors"`
	StaleRemoved int64         `json:"stale_removed"`
	Duration     time.Duration `json:"duration"`
}

// Counters converts the stats to the run monitor snapshot.
func (s Stats) Counters() monitor.Counters {
	return monitor.Counters{
		MoviesProcessed: s.Movies.Processed,
		MoviesInserted:  s.Movies.Inserted,
		MoviesUpdated:   s.Movies.Updated,
		MoviesSkipped:   s.Movies.Skipped,
		ShowsProcessed:  s.Shows.Processed,
		ShowsInserted:   s.Shows.Inserted,
		ShowsUpdated:    s.Shows.Updated,
		ShowsSkipped:    s.Shows.Skipped,
		GenresSynced:    s.GenresSynced,
		PeopleSynced:    s.PeopleSynced,
		APICalls:        s.APICalls,
		Errors:          s.Errors,
	}
}
