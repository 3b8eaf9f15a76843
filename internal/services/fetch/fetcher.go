package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

const maxBodySize = 10 * 1024 * 1024

// contextAwareTransport wraps an http.RoundTripper so the caller's
// context cancels in-flight requests made through a cloned collector.
type contextAwareTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case <-t.ctx.Done():
		return nil, t.ctx.Err()
	default:
	}
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// Service retrieves pages and API payloads. Plain fetches go through a
// colly collector cloned per request; rendered fetches go through the
// headless browser pool. Both paths share robots.txt checks, per-host
// rate limits, and the retry policy.
type Service struct {
	config   *common.CrawlerConfig
	logger   arbor.ILogger
	base     *colly.Collector
	browsers *BrowserPool
	limiter  *HostLimiter
	robots   *RobotsCache
	retry    *RetryPolicy

	requestTimeout time.Duration
	renderTimeout  time.Duration
}

// NewService builds the fetcher. Browser instances start lazily on the
// first rendered fetch, so construction is cheap when rendering is
// never needed.
func NewService(crawlerConfig *common.CrawlerConfig, browserConfig *common.BrowserConfig, logger arbor.ILogger) *Service {
	userAgent := crawlerConfig.UserAgent
	if userAgent == "" {
		userAgent = "JobhoundBot/1.0 (+https://jobhound.dev/bot)"
	}

	requestTimeout := common.ParseDurationOr(crawlerConfig.RequestTimeout, 30*time.Second)
	renderTimeout := common.ParseDurationOr(crawlerConfig.RenderTimeout, 60*time.Second)

	// Robots policy is enforced through RobotsCache so the rendered path
	// is covered too; colly's own robots handling stays off to avoid a
	// second robots.txt fetch per host.
	opts := []colly.CollectorOption{
		colly.Async(true),
		colly.UserAgent(userAgent),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	}
	base := colly.NewCollector(opts...)
	base.MaxBodySize = maxBodySize
	base.SetRequestTimeout(requestTimeout)

	if crawlerConfig.RotateUserAgents {
		extensions.RandomUserAgent(base)
		extensions.Referer(base)
	}

	robotsTTL := common.ParseDurationOr(crawlerConfig.RobotsCacheTTL, 24*time.Hour)

	return &Service{
		config:         crawlerConfig,
		logger:         logger,
		base:           base,
		browsers:       NewBrowserPool(browserConfig.PoolSize, browserConfig.Headless, userAgent, logger),
		limiter:        NewHostLimiter(crawlerConfig),
		robots:         NewRobotsCache(userAgent, robotsTTL, logger),
		retry:          NewRetryPolicy(crawlerConfig),
		requestTimeout: requestTimeout,
		renderTimeout:  renderTimeout,
	}
}

// Fetch retrieves one URL under the fetch policy. Transport errors, 5xx,
// 429, and render timeouts retry with backoff; other 4xx and robots
// denials fail immediately.
func (s *Service) Fetch(ctx context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	if req == nil || req.URL == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "fetch request requires a URL")
	}

	if s.config.FollowRobotsTxt && !s.robots.Allowed(ctx, req.URL) {
		return nil, models.Errorf(models.ErrRobotsDenied, "%s disallowed by robots.txt", req.URL)
	}

	var result *interfaces.FetchResult
	var err error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if waitErr := s.limiter.Wait(ctx, req.URL); waitErr != nil {
			return nil, waitErr
		}

		if req.Render {
			result, err = s.fetchRendered(ctx, req)
		} else {
			result, err = s.fetchPlain(ctx, req)
		}

		status := 0
		if result != nil {
			status = result.StatusCode
		}
		s.limiter.Feedback(req.URL, status, err)

		if err == nil {
			return result, nil
		}
		if !models.IsRetryable(err) || attempt == s.retry.MaxAttempts-1 {
			break
		}

		backoff := s.retry.Backoff(attempt, retryAfterOf(result))
		s.logger.Debug().
			Str("url", req.URL).
			Int("attempt", attempt+1).
			Int("status", status).
			Dur("backoff", backoff).
			Err(err).
			Msg("Fetch failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, err
}

// FetchJSON retrieves a URL with a JSON accept header and decodes the
// body into out.
func (s *Service) FetchJSON(ctx context.Context, url string, out interface{}) error {
	result, err := s.Fetch(ctx, &interfaces.FetchRequest{URL: url, Accept: "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, out); err != nil {
		return models.Errorf(models.ErrParse, "failed to decode JSON from %s: %v", url, err)
	}
	return nil
}

// Close shuts down the browser pool.
func (s *Service) Close() error {
	return s.browsers.Shutdown()
}

func (s *Service) fetchPlain(ctx context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	c := s.base.Clone()
	c.WithTransport(&contextAwareTransport{base: http.DefaultTransport, ctx: ctx})

	result := &interfaces.FetchResult{URL: req.URL, FetchedAt: time.Now()}
	var transportErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if req.Accept != "" {
			r.Headers.Set("Accept", req.Accept)
		}
		if req.ContentType != "" {
			r.Headers.Set("Content-Type", req.ContentType)
		}
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.Body = r.Body
		if r.Request != nil && r.Request.URL != nil {
			result.FinalURL = r.Request.URL.String()
		}
		if r.Headers != nil {
			result.Header = r.Headers.Clone()
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			if r.StatusCode > 0 {
				result.StatusCode = r.StatusCode
			}
			if r.Headers != nil {
				result.Header = r.Headers.Clone()
			}
		}
		transportErr = err
	})

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var payload io.Reader
	if len(req.Body) > 0 {
		payload = bytes.NewReader(req.Body)
	}
	if err := c.Request(method, req.URL, payload, nil, nil); err != nil {
		transportErr = err
	}
	c.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if result.FinalURL == "" {
		result.FinalURL = req.URL
	}

	if result.StatusCode >= 400 {
		return result, models.HTTPError(result.StatusCode, fmt.Errorf("%s returned status %d", req.URL, result.StatusCode))
	}
	if transportErr != nil {
		return nil, models.NewError(models.ErrTransport, transportErr)
	}

	s.logger.Debug().
		Str("url", req.URL).
		Int("status", result.StatusCode).
		Int("body_length", len(result.Body)).
		Msg("Fetched page")

	return result, nil
}

func (s *Service) fetchRendered(ctx context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	if err := s.browsers.Init(); err != nil {
		return nil, models.NewError(models.ErrInternal, err)
	}

	html, status, err := s.browsers.Render(ctx, req.URL, req.WaitSelector, s.renderTimeout)
	if err != nil {
		return nil, err
	}

	result := &interfaces.FetchResult{
		URL:        req.URL,
		FinalURL:   req.URL,
		StatusCode: status,
		Body:       []byte(html),
		Rendered:   true,
		FetchedAt:  time.Now(),
	}
	if status >= 400 {
		return result, models.HTTPError(status, fmt.Errorf("%s rendered with status %d", req.URL, status))
	}
	return result, nil
}

// retryAfterOf reads a Retry-After header from the last response, either
// delay-seconds or an HTTP date.
func retryAfterOf(result *interfaces.FetchResult) time.Duration {
	if result == nil || result.Header == nil {
		return 0
	}
	value := result.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
