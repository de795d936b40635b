package discogs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"vinylsync/internal/metrics"
	"vinylsync/internal/models"
)

const (
	DefaultBaseURL             = "https://api.discogs.com"
	DefaultUserAgent           = "VinylSync/1.0"
	DefaultCollectionFolderID  = 1
	DefaultSuggestionsFolderID = 8797697

	// FullPageSize is the page size used when walking an entire list.
	FullPageSize = 100
	// PageDelay separates consecutive page requests of one list walk.
	PageDelay = time.Second

	defaultPerPage        = 50
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 512
)

// Config holds the connection settings for the Discogs API.
type Config struct {
	BaseURL             string
	Username            string
	Token               string
	UserAgent           string
	CollectionFolderID  int64
	SuggestionsFolderID int64
	RequestTimeout      time.Duration
	// RequestsPerMinute caps the request rate shared by every caller of one client.
	// Zero or less disables the limiter.
	RequestsPerMinute int
}

// PageParams selects one page of a list. FolderID, Sort and SortOrder only apply to
// collection folders.
type PageParams struct {
	Page      int
	PerPage   int
	FolderID  *int64
	Sort      string
	SortOrder string
}

// Client talks to the Discogs REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger
	pause      func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPause replaces the inter-page delay implementation.
func WithPause(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.pause = fn }
}

// NewClient creates a Discogs client. Missing credentials are not an error here;
// they are reported by the first call that needs them.
func NewClient(cfg Config, logger zerolog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CollectionFolderID == 0 {
		cfg.CollectionFolderID = DefaultCollectionFolderID
	}
	if cfg.SuggestionsFolderID == 0 {
		cfg.SuggestionsFolderID = DefaultSuggestionsFolderID
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "discogs").Logger(),
		pause:   sleep,
	}
	c.breaker = newBreaker(c.logger)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(logger zerolog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "discogs-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only outages count against the breaker; 4xx answers are healthy responses.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, ErrUnavailable) {
				return false
			}
			return StatusCode(err) < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}

// Username returns the configured Discogs account name.
func (c *Client) Username() string { return c.cfg.Username }

// SuggestionsFolderID returns the folder that stores suggested releases.
func (c *Client) SuggestionsFolderID() int64 { return c.cfg.SuggestionsFolderID }

func (c *Client) credentials() (username, token string, err error) {
	if strings.TrimSpace(c.cfg.Token) == "" {
		return "", "", fmt.Errorf("%w: DISCOGS_API_TOKEN is empty", ErrNotConfigured)
	}
	if strings.TrimSpace(c.cfg.Username) == "" {
		return "", "", fmt.Errorf("%w: DISCOGS_USERNAME is empty", ErrNotConfigured)
	}
	return c.cfg.Username, c.cfg.Token, nil
}

func (c *Client) folderFor(kind models.ListKind) int64 {
	if kind == models.ListSuggestion {
		return c.cfg.SuggestionsFolderID
	}
	return c.cfg.CollectionFolderID
}

func (c *Client) listURL(username string, kind models.ListKind, p PageParams) string {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(p.PerPage))

	if kind == models.ListWantlist {
		return fmt.Sprintf("%s/users/%s/wants?%s", c.cfg.BaseURL, url.PathEscape(username), q.Encode())
	}

	folder := c.folderFor(kind)
	if p.FolderID != nil {
		folder = *p.FolderID
	}
	sort, order := p.Sort, p.SortOrder
	if sort == "" {
		sort = "added"
	}
	if order == "" {
		order = "desc"
	}
	q.Set("sort", sort)
	q.Set("sort_order", order)

	return fmt.Sprintf("%s/users/%s/collection/folders/%d/releases?%s", c.cfg.BaseURL, url.PathEscape(username), folder, q.Encode())
}

// FetchPage retrieves a single page of the given list.
func (c *Client) FetchPage(ctx context.Context, kind models.ListKind, p PageParams) (*Page, error) {
	username, token, err := c.credentials()
	if err != nil {
		return nil, err
	}

	endpoint := c.listURL(username, kind, p)
	c.logger.Debug().Str("list", string(kind)).Str("url", endpoint).Msg("fetching page")

	body, err := c.do(ctx, "fetch "+string(kind), http.MethodGet, endpoint, token)
	if err != nil {
		c.logger.Error().Err(err).Str("list", string(kind)).Msg("fetch page failed")
		return nil, err
	}

	page := &Page{}
	if kind == models.ListWantlist {
		var resp WantlistResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode wantlist page: %w", err)
		}
		page.Pagination, page.Items = resp.Pagination, resp.Wants
	} else {
		var resp CollectionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode collection page: %w", err)
		}
		page.Pagination, page.Items = resp.Pagination, resp.Releases
	}

	c.logger.Info().Str("list", string(kind)).Int("page", page.Pagination.Page).Int("items", len(page.Items)).Msg("fetched page")
	return page, nil
}

// FetchAll walks every page of a list at FullPageSize items per page, waiting
// PageDelay between consecutive requests. Items keep page order.
func (c *Client) FetchAll(ctx context.Context, kind models.ListKind) ([]Release, error) {
	c.logger.Info().Str("list", string(kind)).Msg("fetching entire list")

	var all []Release
	for page := 1; ; page++ {
		if page > 1 {
			if err := c.pause(ctx, PageDelay); err != nil {
				return nil, unavailable("fetch "+string(kind), err)
			}
		}

		p, err := c.FetchPage(ctx, kind, PageParams{Page: page, PerPage: FullPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)

		c.logger.Info().Str("list", string(kind)).Msgf("fetched page %d/%d (%d items)", page, p.Pagination.Pages, len(p.Items))

		if page >= p.Pagination.Pages {
			break
		}
	}

	c.logger.Info().Str("list", string(kind)).Int("items", len(all)).Msg("fetched complete list")
	return all, nil
}

// AddToFolder adds a release to a collection folder. A zero folderID selects the
// suggestions folder. ErrAlreadyExists is returned when Discogs answers 403.
func (c *Client) AddToFolder(ctx context.Context, releaseID, folderID int64) (*AddResult, error) {
	username, token, err := c.credentials()
	if err != nil {
		return nil, err
	}
	if folderID == 0 {
		folderID = c.cfg.SuggestionsFolderID
	}

	endpoint := fmt.Sprintf("%s/users/%s/collection/folders/%d/releases/%d", c.cfg.BaseURL, url.PathEscape(username), folderID, releaseID)
	c.logger.Debug().Int64("release_id", releaseID).Int64("folder_id", folderID).Msg("adding release to folder")

	body, err := c.do(ctx, "add to folder", http.MethodPost, endpoint, token)
	if err != nil {
		if StatusCode(err) == http.StatusForbidden {
			return nil, fmt.Errorf("add release %d to folder %d: %w", releaseID, folderID, ErrAlreadyExists)
		}
		c.logger.Error().Err(err).Int64("release_id", releaseID).Msg("add to folder failed")
		return nil, err
	}

	var result AddResult
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode add response: %w", err)
		}
	}

	c.logger.Info().Int64("release_id", releaseID).Int64("folder_id", folderID).Int64("instance_id", result.InstanceID).Msg("added release to folder")
	return &result, nil
}

// Search queries the release database. Discogs answers 404 for an empty result
// set, which is returned as an empty page.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*SearchResults, error) {
	_, token, err := c.credentials()
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "release")
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	endpoint := c.cfg.BaseURL + "/database/search?" + q.Encode()

	c.logger.Debug().Str("query", query).Msg("searching releases")

	body, err := c.do(ctx, "search", http.MethodGet, endpoint, token)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return &SearchResults{
				Results:    []SearchResult{},
				Pagination: Pagination{Page: page, Pages: 0, PerPage: perPage, Items: 0},
			}, nil
		}
		c.logger.Error().Err(err).Str("query", query).Msg("search failed")
		return nil, err
	}

	var results SearchResults
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}
	if results.Results == nil {
		results.Results = []SearchResult{}
	}

	c.logger.Info().Str("query", query).Int("results", len(results.Results)).Msg("search completed")
	return &results, nil
}

// do performs one rate-limited request through the circuit breaker and returns the
// body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, endpoint, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "unavailable").Inc()
		return nil, unavailable(op, err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", op, err)
		}
		req.Header.Set("Authorization", "Discogs token="+token)
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, unavailable(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("%s: %w", op, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, unavailable(op, err)
		}
		return data, nil
	})
	metrics.RemoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RemoteRequests.WithLabelValues(op, "rejected").Inc()
		return nil, unavailable(op, err)
	case errors.Is(err, ErrUnavailable):
		metrics.RemoteRequests.WithLabelValues(op, "unavailable").Inc()
	default:
		metrics.RemoteRequests.WithLabelValues(op, strconv.Itoa(StatusCode(err))).Inc()
	}
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
