// Package linkedin collects public company-page profiles. Raw page text is
// structured into a typed Profile by an LLM because the page layout is not
// stable enough to parse directly.
package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/firmographics-cli/internal/llmjson"
	"github.com/sells-group/firmographics-cli/internal/store"
	"github.com/sells-group/firmographics-cli/pkg/anthropic"
	"github.com/sells-group/firmographics-cli/pkg/perplexity"
)

const (
	defaultBaseURL = "https://www.linkedin.com"
	cacheSource    = "linkedin"
)

// Profile is the structured company profile extracted from a public page.
type Profile struct {
	Name           string `json:"name"`
	Industry       string `json:"industry"`
	TotalEmployees int    `json:"total_employees"`
	Headquarters   string `json:"headquarters"`
	Founded        string `json:"founded"`
	Specialties    string `json:"specialties"`
	Website        string `json:"website"`
	LinkedInURL    string `json:"linkedin_url"`
}

// Client fetches and structures company profiles.
type Client interface {
	FetchCompany(ctx context.Context, name, companyURL string) (*Profile, error)
}

// Option configures the client.
type Option func(*scrapeClient)

// WithBaseURL overrides the page host.
func WithBaseURL(u string) Option {
	return func(c *scrapeClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *scrapeClient) { c.http = hc }
}

// WithPageLimiter overrides the per-host fetch limiter.
func WithPageLimiter(l *rate.Limiter) Option {
	return func(c *scrapeClient) { c.limiter = l }
}

// WithSearchFallback uses the LLM search API when the public page is behind
// an auth wall.
func WithSearchFallback(pplx perplexity.Client) Option {
	return func(c *scrapeClient) { c.pplx = pplx }
}

// WithCache enables the raw-profile cache with the given TTL.
func WithCache(cache store.Cache, ttlHours int) Option {
	return func(c *scrapeClient) {
		c.cache = cache
		c.cacheTTL = ttlHours
	}
}

type scrapeClient struct {
	ai       anthropic.Client
	model    string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	pplx     perplexity.Client
	cache    store.Cache
	cacheTTL int
}

// NewClient creates a profile client. The anthropic client structures raw
// page text; it is required.
func NewClient(ai anthropic.Client, model string, opts ...Option) Client {
	c := &scrapeClient{
		ai:      ai,
		model:   model,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const searchPrompt = `Find the LinkedIn company profile for "%s" (%s).
Return all available company information including: company name, industry,
total employee count, headquarters location, founded year, specialties,
website, and LinkedIn URL. Return the raw information as text.`

const structurePrompt = `Extract structured company information from the following company page data.
Return a valid JSON object with these fields:
- name: string
- industry: string
- total_employees: number (0 if unknown)
- headquarters: string
- founded: string (year)
- specialties: string (comma-separated)
- website: string
- linkedin_url: string

If a field cannot be determined, use an empty string (or 0 for total_employees).

Page data:
%s`

// FetchCompany returns the structured profile for a company, fetching the
// public page first and falling back to the search API behind auth walls.
func (c *scrapeClient) FetchCompany(ctx context.Context, name, companyURL string) (*Profile, error) {
	log := zap.L().With(zap.String("company", name), zap.String("source", "linkedin"))

	domain := extractDomain(companyURL)
	if cached, ok := c.fromCache(ctx, domain); ok {
		log.Info("using cached profile", zap.String("domain", domain))
		return cached, nil
	}

	pageURL := buildCompanyPageURL(c.baseURL, name)

	raw, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		log.Debug("page fetch failed", zap.Error(err))
		raw = ""
	}
	if raw != "" && isLoginWall(raw) {
		log.Debug("page returned login wall")
		raw = ""
	}

	if raw == "" && c.pplx != nil {
		temp := 0.2
		resp, err := c.pplx.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "user", Content: fmt.Sprintf(searchPrompt, name, companyURL)},
			},
			Temperature: &temp,
		})
		if err != nil {
			return nil, eris.Wrap(err, "linkedin: search fallback")
		}
		raw = resp.Content()
	}

	if strings.TrimSpace(raw) == "" {
		return nil, eris.New("linkedin: no profile data available")
	}

	profile, err := c.structure(ctx, raw)
	if err != nil {
		return nil, err
	}
	if profile.LinkedInURL == "" {
		profile.LinkedInURL = pageURL
	}

	c.toCache(ctx, domain, profile)
	return profile, nil
}

func (c *scrapeClient) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "linkedin: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "linkedin: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("linkedin: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", eris.Wrap(err, "linkedin: read page")
	}
	return string(body), nil
}

// structure turns raw page or search text into a typed Profile.
func (c *scrapeClient) structure(ctx context.Context, raw string) (*Profile, error) {
	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(structurePrompt, raw)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "linkedin: structure profile")
	}

	text := llmjson.ExtractObject(resp.Text())
	if text == "" {
		return nil, eris.New("linkedin: no JSON in structuring response")
	}

	// total_employees sometimes comes back as a string with separators.
	var rawProfile struct {
		Name           string `json:"name"`
		Industry       string `json:"industry"`
		TotalEmployees any    `json:"total_employees"`
		Headquarters   string `json:"headquarters"`
		Founded        string `json:"founded"`
		Specialties    string `json:"specialties"`
		Website        string `json:"website"`
		LinkedInURL    string `json:"linkedin_url"`
	}
	if err := json.Unmarshal([]byte(text), &rawProfile); err != nil {
		return nil, eris.Wrap(err, "linkedin: parse structured profile")
	}

	total, err := llmjson.CoerceInt(rawProfile.TotalEmployees)
	if err != nil {
		zap.L().Warn("linkedin: uncoercible employee count", zap.Any("value", rawProfile.TotalEmployees))
		total = 0
	}

	return &Profile{
		Name:           rawProfile.Name,
		Industry:       rawProfile.Industry,
		TotalEmployees: total,
		Headquarters:   rawProfile.Headquarters,
		Founded:        rawProfile.Founded,
		Specialties:    rawProfile.Specialties,
		Website:        rawProfile.Website,
		LinkedInURL:    rawProfile.LinkedInURL,
	}, nil
}

// buildCompanyPageURL constructs a public company page URL from the name.
func buildCompanyPageURL(baseURL, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "&", "and")
	// Remove common entity suffixes for cleaner slug.
	for _, suffix := range []string{"-llc", "-inc", "-corp", "-ltd", "-co"} {
		slug = strings.TrimSuffix(slug, suffix)
	}
	slug = strings.TrimRight(slug, "-")
	return fmt.Sprintf("%s/company/%s", baseURL, slug)
}

// isLoginWall detects an auth wall served instead of the page content.
func isLoginWall(content string) bool {
	if len(content) < 100 {
		return true
	}
	lower := strings.ToLower(content)
	loginIndicators := []string{
		"sign in",
		"join now",
		"authwall",
		"login_required",
		"please log in",
		"sign up to view",
	}
	for _, indicator := range loginIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// extractDomain returns the bare domain from a company URL for cache keying.
func extractDomain(companyURL string) string {
	u, err := url.Parse(companyURL)
	if err != nil || u.Host == "" {
		return companyURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}

func (c *scrapeClient) fromCache(ctx context.Context, domain string) (*Profile, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, cacheSource, domain)
	if err != nil || !ok {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *scrapeClient) toCache(ctx context.Context, domain string, p *Profile) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheSource, domain, raw, c.cacheTTL); err != nil {
		zap.L().Warn("linkedin cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}
