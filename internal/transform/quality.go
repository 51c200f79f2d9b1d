package transform

import (
	"fmt"
	"strings"

	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/tmdb"
)

// Thresholds are the quality gate settings.
type Thresholds struct {
	MinVoteCount    int
	MinPopularity   float64
	RequirePoster   bool
	RequireOverview bool
}

// ThresholdsFromConfig copies the quality gate settings out of the config.
func ThresholdsFromConfig(cfg *config.DataQualityConfig) Thresholds {
	if cfg == nil {
		return Thresholds{}
	}
	return Thresholds{
		MinVoteCount:    cfg.MinVoteCount,
		MinPopularity:   cfg.MinPopularity,
		RequirePoster:   cfg.RequirePoster,
		RequireOverview: cfg.RequireOverview,
	}
}

// Candidate is the part of an upstream record the quality gate looks at.
type Candidate struct {
	VoteCount  int
	Popularity float64
	PosterPath string
	Overview   string
}

// MovieCandidate extracts the gate fields of a movie.
func MovieCandidate(d *tmdb.MovieDetail) Candidate {
	return Candidate{VoteCount: d.VoteCount, Popularity: d.Popularity, PosterPath: d.PosterPath, Overview: d.Overview}
}

// ShowCandidate extracts the gate fields of a show.
func ShowCandidate(d *tmdb.ShowDetail) Candidate {
	return Candidate{VoteCount: d.VoteCount, Popularity: d.Popularity, PosterPath: d.PosterPath, Overview: d.Overview}
}

// ValidateQuality reports whether a record passes the gate. A rejection
// comes with a short reason and is not an error.
func ValidateQuality(c Candidate, t Thresholds) (bool, string) {
	if c.VoteCount < t.MinVoteCount {
		return false, fmt.Sprintf("vote count %d below %d", c.VoteCount, t.MinVoteCount)
	}
	if c.Popularity < t.MinPopularity {
		return false, fmt.Sprintf("popularity %.2f below %.2f", c.Popularity, t.MinPopularity)
	}
	if t.RequirePoster && strings.TrimSpace(c.PosterPath) == "" {
		return false, "missing poster"
	}
	if t.RequireOverview && strings.TrimSpace(c.Overview) == "" {
		return false, "missing overview"
	}
	return true, ""
}
