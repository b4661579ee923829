// Package fetcher is the polite HTTP client every upstream request goes
// through: robots.txt, conditional GET and adaptive spacing per origin.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	ierrors "github.com/preston-bernstein/game-ingest-service/internal/errors"
	"github.com/preston-bernstein/game-ingest-service/internal/jsonfile"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

const (
	// BotName is the token matched against robots.txt User-agent groups.
	BotName = "game-ingest-bot"

	defaultAttemptTimeout = 30 * time.Second
	defaultRetryAfterCap  = 5 * time.Minute
	maxBodyBytes          = 16 << 20
	minSpacing            = time.Millisecond

	successDecay     = 1.0
	notModifiedDecay = 0.5
)

// UserAgent identifies the crawler and how to reach its operator.
func UserAgent(contact string) string {
	if contact == "" {
		return BotName + "/1.0"
	}
	return fmt.Sprintf("%s/1.0 (+%s)", BotName, contact)
}

// Config injects every policy knob; there are no package-level defaults that mutate.
type Config struct {
	UserAgent        string
	Normal           Profile
	Conservative     Profile
	FailureThreshold int
	Retry            RetryPolicy
	AttemptTimeout   time.Duration
	RetryAfterCap    time.Duration
	CachePath        string
	StatePath        string
	HTTPClient       *http.Client
	Logger           *slog.Logger
	Recorder         *metrics.Recorder
	Now              func() time.Time
}

// Response is the outcome of a successful fetch. A 304 yields FromCache
// with an empty body; the caller already holds the previous content.
type Response struct {
	URL       string
	Status    int
	Header    http.Header
	Body      []byte
	FromCache bool
}

// Status is a point-in-time view of the client for ops endpoints.
type Status struct {
	Profile             string        `json:"profile"`
	ConsecutiveFailures float64       `json:"consecutiveFailures"`
	RequiredDelay       time.Duration `json:"requiredDelay"`
	CacheEntries        int           `json:"cacheEntries"`
}

type originGate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// Fetcher is safe for concurrent use; requests to one origin are serialized.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	logger   *slog.Logger
	recorder *metrics.Recorder
	cache    *Cache
	robots   *robotsCache
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error

	mu    sync.Mutex
	state RateLimitState
	gates map[string]*originGate
}

// New builds a Fetcher, loading persisted cache and rate-limit state when present.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent("")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.RetryAfterCap <= 0 {
		cfg.RetryAfterCap = defaultRetryAfterCap
	}
	if cfg.Conservative == (Profile{}) {
		cfg.Conservative = cfg.Normal
	}
	cfg.Retry = cfg.Retry.withDefaults()

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	cache, err := NewCache(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("load fetch cache: %w", err)
	}

	state := newRateLimitState(cfg.Normal)
	if cfg.StatePath != "" && jsonfile.Exists(cfg.StatePath) {
		var persisted RateLimitState
		if err := jsonfile.Read(cfg.StatePath, &persisted); err != nil {
			return nil, fmt.Errorf("load rate-limit state: %w", err)
		}
		state.ConsecutiveFailures = persisted.ConsecutiveFailures
		if persisted.Conservative {
			state.swapConservative(cfg.Conservative)
		}
	}

	return &Fetcher{
		cfg:      cfg,
		client:   client,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		cache:    cache,
		robots:   newRobotsCache(),
		now:      now,
		sleep:    sleepCtx,
		state:    state,
		gates:    make(map[string]*originGate),
	}, nil
}

// Fetch retrieves rawURL politely. Robots disallow yields a PolicyDenied
// error; exhausted retries yield FetchFailed. Throttling is absorbed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, ierrors.FetchFailed(rawURL, 0, fmt.Errorf("invalid url: %w", err))
	}
	origin := target.Scheme + "://" + target.Host

	gate := f.gate(origin)
	gate.mu.Lock()
	defer gate.mu.Unlock()

	if !f.allowed(ctx, gate, origin, target.EscapedPath()) {
		f.recorder.RecordRobotsDenied(origin)
		logging.Ctx(ctx, f.logger, slog.LevelWarn, "robots.txt denies fetch",
			logging.FieldOrigin, origin,
			logging.FieldURL, rawURL,
		)
		return nil, ierrors.PolicyDenied(origin)
	}

	policy := f.cfg.Retry
	bo := policy.NewBackOff()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attempts = attempt
		if err := f.wait(ctx, gate); err != nil {
			return nil, err
		}

		resp, err := f.attempt(ctx, origin, rawURL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var status *statusError
		if ierrors.As(err, &status) && !policy.Retryable(status.StatusCode) {
			break
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := bo.NextBackOff()
		if rlErr, ok := asRateLimitError(err); ok && rlErr.RetryAfter > 0 {
			delay = rlErr.RetryAfter
		}
		logging.Ctx(ctx, f.logger, slog.LevelWarn, "fetch retry",
			logging.FieldURL, rawURL,
			logging.FieldAttempt, attempt,
			logging.FieldDelayMS, delay.Milliseconds(),
			"err", err,
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	logging.Ctx(ctx, f.logger, slog.LevelError, "fetch failed",
		logging.FieldURL, rawURL,
		"err", lastErr,
	)
	return nil, ierrors.FetchFailed(rawURL, attempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, origin, rawURL string) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	entry, cached := f.cache.Get(rawURL)
	if cached {
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	start := f.now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeRetry, f.now().Sub(start))
		f.failure(ctx, origin, false)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := f.now().Sub(start)
	if err != nil {
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeRetry, elapsed)
		f.failure(ctx, origin, false)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeNotModified, elapsed)
		f.success(notModifiedDecay)
		logging.Ctx(ctx, f.logger, slog.LevelDebug, "fetch not modified",
			logging.FieldURL, rawURL,
			logging.FieldDurationMS, elapsed.Milliseconds(),
		)
		return &Response{URL: rawURL, Status: resp.StatusCode, Header: resp.Header, FromCache: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeOK, elapsed)
		f.success(successDecay)
		if err := f.storeValidators(rawURL, resp.Header); err != nil {
			logging.Error(f.logger, "persist fetch cache failed", err, logging.FieldURL, rawURL)
		}
		logging.Ctx(ctx, f.logger, slog.LevelInfo, "fetch ok",
			logging.FieldURL, rawURL,
			logging.FieldStatusCode, resp.StatusCode,
			logging.FieldDurationMS, elapsed.Milliseconds(),
		)
		return &Response{URL: rawURL, Status: resp.StatusCode, Header: resp.Header, Body: body}, nil

	case isThrottle(resp.StatusCode):
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"), f.cfg.RetryAfterCap)
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeRetry, elapsed)
		f.recorder.RecordRateLimit(origin, retryAfter)
		f.failure(ctx, origin, true)
		return nil, fmt.Errorf("%w: %w", &rateLimitError{Origin: origin, StatusCode: resp.StatusCode, RetryAfter: retryAfter}, &statusError{StatusCode: resp.StatusCode})

	case RetryableStatus(resp.StatusCode):
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeRetry, elapsed)
		f.failure(ctx, origin, false)
		return nil, &statusError{StatusCode: resp.StatusCode}

	default:
		f.recorder.RecordFetchAttempt(origin, metrics.OutcomeFailed, elapsed)
		return nil, &statusError{StatusCode: resp.StatusCode}
	}
}

func (f *Fetcher) storeValidators(rawURL string, header http.Header) error {
	etag := header.Get("ETag")
	lastModified := header.Get("Last-Modified")
	if etag == "" && lastModified == "" {
		return nil
	}
	return f.cache.Put(rawURL, CacheEntry{
		ETag:         etag,
		LastModified: lastModified,
		FetchedAt:    f.now().UTC(),
	})
}

func (f *Fetcher) success(decay float64) {
	f.mu.Lock()
	f.state.recordSuccess(decay)
	state := f.state
	f.mu.Unlock()
	f.persistState(state)
}

func (f *Fetcher) failure(ctx context.Context, origin string, throttled bool) {
	f.mu.Lock()
	crossed := f.state.recordFailure(f.cfg.FailureThreshold)
	swapped := false
	if crossed || throttled {
		swapped = f.state.swapConservative(f.cfg.Conservative)
	}
	state := f.state
	f.mu.Unlock()

	if swapped {
		f.recorder.RecordProfileSwap(origin)
		logging.Ctx(ctx, f.logger, slog.LevelWarn, "switching to conservative fetch profile",
			logging.FieldOrigin, origin,
			"consecutive_failures", state.ConsecutiveFailures,
		)
	}
	f.persistState(state)
}

func (f *Fetcher) persistState(state RateLimitState) {
	if f.cfg.StatePath == "" {
		return
	}
	if _, err := jsonfile.Write(f.cfg.StatePath, state); err != nil {
		logging.Error(f.logger, "persist rate-limit state failed", err)
	}
}

// wait blocks until the origin's spacing allows another request.
func (f *Fetcher) wait(ctx context.Context, gate *originGate) error {
	f.mu.Lock()
	delay := f.state.RequiredDelay()
	f.mu.Unlock()

	if delay < minSpacing {
		delay = minSpacing
	}
	gate.limiter.SetLimit(rate.Every(delay))
	return gate.limiter.Wait(ctx)
}

func (f *Fetcher) gate(origin string) *originGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[origin]
	if !ok {
		g = &originGate{limiter: rate.NewLimiter(rate.Every(minSpacing), 1)}
		f.gates[origin] = g
	}
	return g
}

// allowed consults the per-day robots decision, fetching robots.txt once
// per origin per day. Any failure to read robots.txt allows the fetch.
func (f *Fetcher) allowed(ctx context.Context, gate *originGate, origin, path string) bool {
	day := f.now().UTC().Format("2006-01-02")
	if rules, ok := f.robots.get(origin, day); ok {
		return rules.allows(path)
	}

	rules := robotsRules{}
	body, err := f.fetchRobots(ctx, gate, origin)
	if err != nil {
		logging.Ctx(ctx, f.logger, slog.LevelWarn, "robots.txt unavailable; allowing",
			logging.FieldOrigin, origin,
			"err", err,
		)
	} else {
		rules = parseRobots(body, BotName)
	}
	f.robots.put(origin, day, rules)
	return rules.allows(path)
}

func (f *Fetcher) fetchRobots(ctx context.Context, gate *originGate, origin string) (string, error) {
	if err := f.wait(ctx, gate); err != nil {
		return "", err
	}
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, strings.TrimRight(origin, "/")+"/robots.txt", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Status reports the current profile and cache size.
func (f *Fetcher) Status() Status {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	return Status{
		Profile:             state.ProfileName(),
		ConsecutiveFailures: state.ConsecutiveFailures,
		RequiredDelay:       state.RequiredDelay(),
		CacheEntries:        f.cache.Len(),
	}
}

// State returns a copy of the rate-limit state.
func (f *Fetcher) State() RateLimitState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Cache exposes the conditional GET cache for inspection and pruning.
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
