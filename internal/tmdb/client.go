package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Client is a rate limited, retrying client for the upstream catalog API.
// It knows nothing about local storage.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	language    string
	maxRetries  int
	backoffBase time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	calls       atomic.Int64
	log         *log.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new catalog API client.
func New(cfg *config.TMDbConfig, apiCfg *config.APIConfig) (*Client, error) {
	if cfg == nil || apiCfg == nil {
		return nil, fmt.Errorf("tmdb and api config are required")
	}
	if cfg.APIKey == "" {
		return nil, &FatalError{Reason: "missing api key"}
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	limit := rate.Inf
	if apiCfg.RequestDelay > 0 {
		limit = rate.Every(apiCfg.RequestDelay)
	}

	maxRetries := apiCfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: apiCfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		language:    cfg.Language,
		maxRetries:  maxRetries,
		backoffBase: apiCfg.BackoffBase,
		limiter:     rate.NewLimiter(limit, 1),
		log:         log.Default().WithPrefix("tmdb"),
		sleep:       sleepContext,
	}
	c.breaker = newBreaker(apiCfg, c.log)
	return c, nil
}

func newBreaker(apiCfg *config.APIConfig, logger *log.Logger) *gobreaker.CircuitBreaker[[]byte] {
	failures := apiCfg.BreakerFailures
	if failures == 0 {
		failures = 10
	}
	metrics.CircuitBreakerState.Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 1,
		Timeout:     apiCfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// only upstream unavailability counts against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			switch to {
			case gobreaker.StateClosed:
				metrics.CircuitBreakerState.Set(0)
			case gobreaker.StateHalfOpen:
				metrics.CircuitBreakerState.Set(1)
			case gobreaker.StateOpen:
				metrics.CircuitBreakerState.Set(2)
			}
		},
	})
}

// Calls returns the number of requests sent since the last reset, retries included.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// ResetCalls zeroes the call counter.
func (c *Client) ResetCalls() {
	c.calls.Store(0)
}

// Get requests path with params and decodes the JSON response into out.
// Transient failures are retried with exponential backoff; the last error is
// returned once all attempts are used.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		body, err := c.do(ctx, path, params)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response of %s: %w", path, err)
			}
			return nil
		}

		lastErr = err
		if !IsTransient(err) || attempt == c.maxRetries-1 {
			break
		}

		delay := c.backoffBase * time.Duration(1<<uint(attempt))
		c.log.Warn("request failed, retrying",
			"path", path,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries,
			"backoff", delay,
			"error", err)
		metrics.APIRetriesTotal.Inc()
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.calls.Add(1)
	metrics.APICallsTotal.Inc()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, path, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransientError{Path: path, Err: err}
	}
	return body, err
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", c.apiKey)
	if c.language != "" && query.Get("language") == "" {
		query.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Path: path, Err: err}
	}
	defer resp.Body.Close() //nolint: errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Path: path, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &FatalError{Path: path, StatusCode: resp.StatusCode, Reason: "invalid api key"}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{Path: path, StatusCode: resp.StatusCode}
	default:
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
}

// MovieGenres returns the movie genre vocabulary.
func (c *Client) MovieGenres(ctx context.Context) ([]Genre, error) {
	var list genreList
	if err := c.Get(ctx, "/genre/movie/list", nil, &list); err != nil {
		return nil, err
	}
	return list.Genres, nil
}

// TVGenres returns the show genre vocabulary.
func (c *Client) TVGenres(ctx context.Context) ([]Genre, error) {
	var list genreList
	if err := c.Get(ctx, "/genre/tv/list", nil, &list); err != nil {
		return nil, err
	}
	return list.Genres, nil
}

// PopularMovies returns one page of the popular movies listing.
func (c *Client) PopularMovies(ctx context.Context, page int) (*Page[Summary], error) {
	return c.listing(ctx, "/movie/popular", page)
}

// PopularShows returns one page of the popular shows listing.
func (c *Client) PopularShows(ctx context.Context, page int) (*Page[Summary], error) {
	return c.listing(ctx, "/tv/popular", page)
}

func (c *Client) listing(ctx context.Context, path string, page int) (*Page[Summary], error) {
	var p Page[Summary]
	params := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.Get(ctx, path, params, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// MovieDetail returns a movie with its credits embedded.
func (c *Client) MovieDetail(ctx context.Context, id int) (*MovieDetail, error) {
	var d MovieDetail
	params := url.Values{"append_to_response": {"credits"}}
	if err := c.Get(ctx, "/movie/"+strconv.Itoa(id), params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ShowDetail returns a show with its aggregate credits and season list embedded.
func (c *Client) ShowDetail(ctx context.Context, id int) (*ShowDetail, error) {
	var d ShowDetail
	params := url.Values{"append_to_response": {"aggregate_credits"}}
	if err := c.Get(ctx, "/tv/"+strconv.Itoa(id), params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PersonDetail returns a person with external ids embedded.
func (c *Client) PersonDetail(ctx context.Context, id int) (*PersonDetail, error) {
	var d PersonDetail
	params := url.Values{"append_to_response": {"external_ids"}}
	if err := c.Get(ctx, "/person/"+strconv.Itoa(id), params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SeasonDetail returns a season with its episodes.
func (c *Client) SeasonDetail(ctx context.Context, showID, seasonNumber int) (*SeasonDetail, error) {
	var d SeasonDetail
	path := fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber)
	if err := c.Get(ctx, path, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
