package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/cache"
	"github.com/jon4hz/catalogsync/internal/catalog"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/metrics"
	"github.com/jon4hz/catalogsync/internal/tmdb"
	"github.com/jon4hz/catalogsync/internal/transform"
	"github.com/samber/lo"
)

// Upstream is the catalog API used by a sync run.
type Upstream interface {
	MovieGenres(ctx context.Context) ([]tmdb.Genre, error)
	TVGenres(ctx context.Context) ([]tmdb.Genre, error)
	PopularMovies(ctx context.Context, page int) (*tmdb.Page[tmdb.Summary], error)
	PopularShows(ctx context.Context, page int) (*tmdb.Page[tmdb.Summary], error)
	MovieDetail(ctx context.Context, id int) (*tmdb.MovieDetail, error)
	ShowDetail(ctx context.Context, id int) (*tmdb.ShowDetail, error)
	PersonDetail(ctx context.Context, id int) (*tmdb.PersonDetail, error)
	SeasonDetail(ctx context.Context, showID, seasonNumber int) (*tmdb.SeasonDetail, error)
	Calls() int64
	ResetCalls()
}

// ErrorLog receives per-item failures.
type ErrorLog interface {
	LogError(ctx context.Context, runID uint, errorType, message string, detail *string) error
}

// Orchestrator runs one sync pass: genres, then movies, then shows.
// Items are processed one at a time and each is committed in its own
// short transaction.
type Orchestrator struct {
	api     Upstream
	db      *database.Client
	people  *cache.PersonCache
	errs    ErrorLog
	limits  config.DataLimitsConfig
	quality transform.Thresholds
	// staleDays enables cleanup of items not refreshed for this many days.
	staleDays int
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg *config.Config, api Upstream, db *database.Client, people *cache.PersonCache, errs ErrorLog) *Orchestrator {
	return &Orchestrator{
		api:       api,
		db:        db,
		people:    people,
		errs:      errs,
		limits:    *cfg.DataLimits,
		quality:   transform.ThresholdsFromConfig(cfg.DataQuality),
		staleDays: cfg.DataQuality.CleanupStaleDays,
		now:       time.Now,
	}
}

// Run executes one sync pass and logs item failures under runID.
// The returned error is set only when the run as a whole failed.
func (o *Orchestrator) Run(ctx context.Context, runID uint) (Stats, error) {
	start := time.Now()
	var stats Stats

	o.api.ResetCalls()
	o.people.Reset(ctx)
	defer o.people.Reset(context.WithoutCancel(ctx))

	finish := func(err error) (Stats, error) {
		stats.APICalls = o.api.Calls()
		stats.Duration = time.Since(start)
		return stats, err
	}

	log.Info("Syncing genres")
	genres, err := o.syncGenres(ctx)
	if err != nil {
		return finish(fmt.Errorf("genre sync failed: %w", err))
	}
	stats.GenresSynced = genres

	log.Info("Syncing movies", "limit", o.limits.Movies)
	if err := o.syncMedia(ctx, runID, catalog.MediaTypeMovie, &stats); err != nil {
		return finish(err)
	}

	log.Info("Syncing shows", "limit", o.limits.Shows)
	if err := o.syncMedia(ctx, runID, catalog.MediaTypeShow, &stats); err != nil {
		return finish(err)
	}

	if o.staleDays > 0 {
		cutoff := o.now().AddDate(0, 0, -o.staleDays)
		res, err := o.db.CleanupStale(ctx, cutoff)
		if err != nil {
			return finish(fmt.Errorf("stale cleanup failed: %w", err))
		}
		stats.StaleRemoved = res.Items
		log.Info("Removed stale items", "items", res.Items, "older_than", cutoff)
	}

	return finish(nil)
}

func (o *Orchestrator) syncGenres(ctx context.Context) (int, error) {
	movieGenres, err := o.api.MovieGenres(ctx)
	if err != nil {
		return 0, err
	}
	tvGenres, err := o.api.TVGenres(ctx)
	if err != nil {
		return 0, err
	}
	return o.db.UpsertGenres(ctx, transform.MergeGenres(movieGenres, tvGenres))
}

func (o *Orchestrator) syncMedia(ctx context.Context, runID uint, mediaType catalog.MediaType, stats *Stats) error {
	var (
		list    tmdb.PageFunc[tmdb.Summary]
		limit   int
		process func(context.Context, tmdb.Summary) Outcome
		counts  *EntityStats
	)
	switch mediaType {
	case catalog.MediaTypeMovie:
		list, limit, process, counts = o.api.PopularMovies, o.limits.Movies, o.processMovie, &stats.Movies
	default:
		list, limit, process, counts = o.api.PopularShows, o.limits.Shows, o.processShow, &stats.Shows
	}
	kind := mediaKind(mediaType)

	for summary, err := range tmdb.Paginate(ctx, list, limit) {
		if err != nil {
			return fmt.Errorf("failed to list popular %ss: %w", kind, err)
		}

		counts.Processed++
		outcome := process(ctx, summary)
		counts.add(outcome)
		metrics.ItemsTotal.WithLabelValues(string(mediaType), outcome.Kind.String()).Inc()

		switch outcome.Kind {
		case OutcomeSkipped:
			log.Debug("Skipped item", "type", kind, "id", summary.ID, "reason", outcome.Reason)
		case OutcomeErrored:
			stats.Errors++
			o.logItemError(ctx, runID, kind+"_processing", summary, outcome.Err)
			log.Warn("Failed to process item", "type", kind, "id", summary.ID, "error", outcome.Err)
			if ctx.Err() != nil || tmdb.IsFatal(outcome.Err) {
				return fmt.Errorf("%w: aborting %s sync: %w", ErrRunFatal, kind, outcome.Err)
			}
		default:
			stats.PeopleSynced += outcome.People
		}

		for _, err := range outcome.Partial {
			stats.Errors++
			o.logItemError(ctx, runID, "season_processing", summary, err)
		}
	}
	return nil
}

func (o *Orchestrator) logItemError(ctx context.Context, runID uint, errorType string, s tmdb.Summary, err error) {
	detail := fmt.Sprintf("id=%d title=%q", s.ID, lo.CoalesceOrEmpty(s.Title, s.Name))
	if lerr := o.errs.LogError(context.WithoutCancel(ctx), runID, errorType, err.Error(), &detail); lerr != nil {
		log.Error("failed to record sync error", "error", lerr)
	}
}

func (o *Orchestrator) processMovie(ctx context.Context, s tmdb.Summary) Outcome {
	detail, err := o.api.MovieDetail(ctx, s.ID)
	if err != nil {
		return errored(fmt.Errorf("failed to fetch movie %d: %w", s.ID, err))
	}
	if ok, reason := transform.ValidateQuality(transform.MovieCandidate(detail), o.quality); !ok {
		return skipped(reason)
	}

	members := lo.Filter(detail.Credits.Cast, func(c tmdb.CastMember, _ int) bool {
		return c.ID > 0 && c.Name != ""
	})
	cast := make([]catalog.Cast, 0, min(len(members), o.limits.MaxCast))
	for _, c := range lo.Slice(members, 0, o.limits.MaxCast) {
		cast = append(cast, transform.MovieCast(c, o.personDetail(ctx, c.ID)))
	}

	return o.persist(ctx, transform.Movie(detail), cast, nil)
}

func (o *Orchestrator) processShow(ctx context.Context, s tmdb.Summary) Outcome {
	detail, err := o.api.ShowDetail(ctx, s.ID)
	if err != nil {
		return errored(fmt.Errorf("failed to fetch show %d: %w", s.ID, err))
	}
	if ok, reason := transform.ValidateQuality(transform.ShowCandidate(detail), o.quality); !ok {
		return skipped(reason)
	}

	members := lo.Filter(detail.AggregateCredits.Cast, func(c tmdb.AggregateCastMember, _ int) bool {
		return c.ID > 0 && c.Name != ""
	})
	cast := make([]catalog.Cast, 0, min(len(members), o.limits.MaxCast))
	for _, c := range lo.Slice(members, 0, o.limits.MaxCast) {
		cast = append(cast, transform.ShowCast(c, o.personDetail(ctx, c.ID)))
	}

	var seasons []catalog.Season
	for _, summary := range detail.Seasons {
		if summary.SeasonNumber == nil || *summary.SeasonNumber == 0 {
			continue
		}
		var sd *tmdb.SeasonDetail
		if o.limits.EpisodesPerSeason > 0 {
			sd, err = o.api.SeasonDetail(ctx, s.ID, *summary.SeasonNumber)
			if err != nil {
				log.Warn("Failed to fetch season, storing it without episodes", "show", s.ID, "season", *summary.SeasonNumber, "error", err)
				sd = nil
			}
		}
		if season, ok := transform.Season(summary, sd, o.limits.EpisodesPerSeason); ok {
			seasons = append(seasons, season)
		}
	}

	return o.persist(ctx, transform.Show(detail), cast, seasons)
}

// personDetail returns the enrichment payload of a cast member. A failed
// fetch degrades to nil so the person is stored from the cast entry alone.
func (o *Orchestrator) personDetail(ctx context.Context, id int) *tmdb.PersonDetail {
	if detail, ok := o.people.Get(ctx, id); ok {
		return detail
	}
	detail, err := o.api.PersonDetail(ctx, id)
	if err != nil {
		log.Warn("Failed to fetch person details, using cast data only", "person", id, "error", err)
		return nil
	}
	o.people.Set(ctx, id, detail)
	return detail
}

// persist stores an item with its genres and cast in one transaction and
// then each season with its episodes in a transaction of its own.
func (o *Orchestrator) persist(ctx context.Context, item catalog.Item, cast []catalog.Cast, seasons []catalog.Season) Outcome {
	var (
		row    *database.CatalogItem
		result database.UpsertResult
	)

	err := o.db.InTx(ctx, func(tx *database.Client) error {
		var err error
		row, result, err = tx.UpsertItem(ctx, item)
		if err != nil {
			return err
		}
		if err := tx.LinkGenres(ctx, row, item.Genres); err != nil {
			return err
		}
		for _, c := range cast {
			person, err := tx.UpsertPerson(ctx, c.Person)
			if err != nil {
				return err
			}
			if err := tx.AttachCast(ctx, row, person, c.Character, c.Order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errored(fmt.Errorf("failed to store %s %d: %w", mediaKind(item.MediaType), item.ExternalID, err))
	}

	outcome := Outcome{Kind: OutcomeInserted, People: len(cast)}
	if result == database.Updated {
		outcome.Kind = OutcomeUpdated
	}

	for _, s := range seasons {
		err := o.db.InTx(ctx, func(tx *database.Client) error {
			season, err := tx.UpsertSeason(ctx, row, s)
			if err != nil {
				return err
			}
			for _, e := range s.Episodes {
				if err := tx.UpsertEpisode(ctx, season, e); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			outcome.Partial = append(outcome.Partial, fmt.Errorf("failed to store season %d of show %d: %w", s.Number, item.ExternalID, err))
		}
	}
	return outcome
}

func mediaKind(mt catalog.MediaType) string {
	if mt == catalog.MediaTypeShow {
		return "show"
	}
	return "movie"
}

