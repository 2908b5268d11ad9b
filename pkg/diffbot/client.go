// Package diffbot queries the Diffbot knowledge graph for Organization
// entities matched by company URL.
package diffbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/firmographics-cli/internal/ratelimit"
	"github.com/sells-group/firmographics-cli/internal/resilience"
	"github.com/sells-group/firmographics-cli/internal/store"
)

const (
	defaultBaseURL = "https://kg.diffbot.com/kg/v3/dql"
	querySize      = 10

	// Caps applied when cleaning a payload. The graph can return hundreds of
	// facts per entity; only the head of each list is useful downstream.
	maxLocations  = 3
	maxListedFact = 10

	cacheSource = "diffbot"
)

// Client fetches Organization entities from the knowledge graph.
type Client interface {
	FetchCompany(ctx context.Context, companyURL string) (*Payload, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default DQL endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithLimiter overrides the request throttle.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *httpClient) { c.limiter = l }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithCache enables the raw-payload cache with the given TTL.
func WithCache(cache store.Cache, ttlHours int) Option {
	return func(c *httpClient) {
		c.cache = cache
		c.cacheTTL = ttlHours
	}
}

type httpClient struct {
	token    string
	baseURL  string
	http     *http.Client
	limiter  *ratelimit.Limiter
	retry    resilience.RetryConfig
	cache    store.Cache
	cacheTTL int
}

// NewClient creates a knowledge-graph client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: ratelimit.New(1, time.Minute),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("diffbot", "fetch_company")
	}
	return c
}

// FetchCompany queries the graph for the organization behind companyURL.
// Exhausted retries surface as a SourceError so the caller can record the
// absence and move on to the next company.
func (c *httpClient) FetchCompany(ctx context.Context, companyURL string) (*Payload, error) {
	if cached, ok := c.fromCache(ctx, companyURL); ok {
		return cached, nil
	}

	payload, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Payload, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		raw, err := c.query(ctx, companyURL)
		if err != nil {
			return nil, err
		}
		// A body that fails to decode is retried like a transient status.
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "diffbot: unmarshal payload"), 0)
		}
		return &p, nil
	})
	if err != nil {
		return nil, &resilience.SourceError{Source: "diffbot", Identifier: companyURL, Err: err}
	}

	clean(payload, companyURL)
	payload.Metadata = Metadata{
		CollectedAt: time.Now().UTC(),
		CompanyURL:  companyURL,
	}

	c.toCache(ctx, companyURL, payload)
	return payload, nil
}

func (c *httpClient) query(ctx context.Context, companyURL string) ([]byte, error) {
	params := url.Values{}
	params.Set("type", "query")
	params.Set("query", fmt.Sprintf("type:Organization allUris:%q", companyURL))
	params.Set("col", "all")
	params.Set("size", strconv.Itoa(querySize))
	params.Set("format", "json")
	params.Set("nonCanonicalFacts", "true")
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "diffbot: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "diffbot: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "diffbot: read response")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("diffbot: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			te := resilience.NewTransientError(statusErr, resp.StatusCode)
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				te.RetryAfter = time.Duration(secs) * time.Second
			}
			return nil, te
		}
		return nil, statusErr
	}

	return body, nil
}

// clean caps the fact lists so downstream consumers and the snapshot stay
// bounded. Competitor homepages on the same domain as the company sort first
// before the cap is applied.
func clean(p *Payload, companyURL string) {
	domain := hostOf(companyURL)

	for i := range p.Data {
		e := &p.Data[i].Entity

		if len(e.Locations) > maxLocations {
			e.Locations = e.Locations[:maxLocations]
		}
		if len(e.Location) > maxLocations {
			e.Location = e.Location[:maxLocations]
		}
		if len(e.NaicsClassification) > maxListedFact {
			e.NaicsClassification = e.NaicsClassification[:maxListedFact]
		}
		if len(e.EmployeeCategories) > maxListedFact {
			e.EmployeeCategories = e.EmployeeCategories[:maxListedFact]
		}
		if len(e.Industries) > maxListedFact {
			e.Industries = e.Industries[:maxListedFact]
		}
		if len(e.Technographics) > maxListedFact {
			e.Technographics = e.Technographics[:maxListedFact]
		}
		if len(e.Articles) > maxListedFact {
			e.Articles = e.Articles[:maxListedFact]
		}

		if domain != "" {
			sortSameDomainFirst(e.Competitors, domain)
		}
		if len(e.Competitors) > maxListedFact {
			e.Competitors = e.Competitors[:maxListedFact]
		}
	}
}

func sortSameDomainFirst(comps []Competitor, domain string) {
	matched := make([]Competitor, 0, len(comps))
	var rest []Competitor
	for _, comp := range comps {
		if strings.Contains(hostOf(comp.Homepage), domain) {
			matched = append(matched, comp)
		} else {
			rest = append(rest, comp)
		}
	}
	copy(comps, append(matched, rest...))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.ToLower(rawURL), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func (c *httpClient) fromCache(ctx context.Context, companyURL string) (*Payload, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, cacheSource, companyURL)
	if err != nil {
		zap.L().Warn("diffbot cache read failed", zap.String("company_url", companyURL), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Warn("diffbot cache entry corrupt", zap.String("company_url", companyURL), zap.Error(err))
		return nil, false
	}
	payload.Metadata.FromCache = true
	return &payload, true
}

func (c *httpClient) toCache(ctx context.Context, companyURL string, payload *Payload) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheSource, companyURL, raw, c.cacheTTL); err != nil {
		zap.L().Warn("diffbot cache write failed", zap.String("company_url", companyURL), zap.Error(err))
	}
}
