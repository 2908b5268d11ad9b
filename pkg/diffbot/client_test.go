package diffbot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/firmographics-cli/internal/ratelimit"
	"github.com/sells-group/firmographics-cli/internal/resilience"
	"github.com/sells-group/firmographics-cli/internal/store"
)

func newTestClient(baseURL string, opts ...Option) Client {
	base := []Option{
		WithBaseURL(baseURL),
		WithLimiter(ratelimit.New(1000, time.Minute)),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	}
	return NewClient("test-token", append(base, opts...)...)
}

const sampleResponse = `{
	"data": [{
		"entity": {
			"name": "Acme Corp",
			"linkedInUri": "linkedin.com/company/acme",
			"homepageUri": "https://acme.com",
			"nbEmployees": 250,
			"revenue": {"value": 5000000, "currency": "USD"},
			"industries": [{"name": "Software"}],
			"location": {"country": {"name": "United States"}, "city": {"name": "Austin"}}
		}
	}]
}`

func TestFetchCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("type"))
		assert.Equal(t, `type:Organization allUris:"https://acme.com"`, q.Get("query"))
		assert.Equal(t, "all", q.Get("col"))
		assert.Equal(t, "10", q.Get("size"))
		assert.Equal(t, "true", q.Get("nonCanonicalFacts"))
		assert.Equal(t, "test-token", q.Get("token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	payload, err := client.FetchCompany(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.Len(t, payload.Data, 1)

	e := payload.Data[0].Entity
	assert.Equal(t, "Acme Corp", e.Name)
	assert.Equal(t, 250, e.NbEmployees)
	assert.Equal(t, "USD", e.Revenue.Currency)
	require.Len(t, e.AllLocations(), 1)
	assert.Equal(t, "United States", e.AllLocations()[0].Country.Name)
	assert.Equal(t, "https://acme.com", payload.Metadata.CompanyURL)
	assert.False(t, payload.Metadata.CollectedAt.IsZero())
}

func TestFetchCompanyRetriesGarbledBody(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if attempts.Add(1) == 1 {
			_, _ = w.Write([]byte(sampleResponse[:20]))
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	payload, err := client.FetchCompany(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "Acme Corp", payload.Data[0].Entity.Name)
	assert.Equal(t, int32(2), attempts.Load(), "truncated body should be refetched")
}

func TestFetchCompanyExhaustedRetriesIsSourceError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchCompany(context.Background(), "https://down.example")
	require.Error(t, err)
	assert.True(t, resilience.IsSourceError(err))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchCompanyNoRetryOnAuthFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchCompany(context.Background(), "https://acme.com")
	require.Error(t, err)
	assert.True(t, resilience.IsSourceError(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchCompanyUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	cache, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()
	require.NoError(t, cache.Migrate(context.Background()))

	client := newTestClient(srv.URL, WithCache(cache, 24))

	first, err := client.FetchCompany(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.False(t, first.Metadata.FromCache)

	second, err := client.FetchCompany(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.True(t, second.Metadata.FromCache)
	assert.Equal(t, first.Data[0].Entity.Name, second.Data[0].Entity.Name)

	assert.Equal(t, int32(1), hits.Load(), "second fetch should be served from cache")
}

func TestCleanCapsFactLists(t *testing.T) {
	var locs []Location
	for i := 0; i < 5; i++ {
		locs = append(locs, Location{Address: fmt.Sprintf("addr %d", i)})
	}
	var comps []Competitor
	for i := 0; i < 15; i++ {
		comps = append(comps, Competitor{Name: fmt.Sprintf("comp %d", i), Homepage: "https://other.example"})
	}
	comps[14].Homepage = "https://acme.com/about"

	p := &Payload{Data: []Result{{Entity: Entity{Locations: locs, Competitors: comps}}}}
	clean(p, "https://acme.com")

	e := p.Data[0].Entity
	assert.Len(t, e.Locations, 3)
	assert.Len(t, e.Competitors, 10)
	assert.Equal(t, "comp 14", e.Competitors[0].Name, "same-domain competitor should sort first")
}

func TestLocationListUnmarshal(t *testing.T) {
	var single LocationList
	require.NoError(t, json.Unmarshal([]byte(`{"city": {"name": "Austin"}}`), &single))
	require.Len(t, single, 1)
	assert.Equal(t, "Austin", single[0].City.Name)

	var list LocationList
	require.NoError(t, json.Unmarshal([]byte(`[{"city": "Austin"}, {"city": "Dallas"}]`), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Dallas", list[1].City.Name)
}

func TestNamedValueUnmarshal(t *testing.T) {
	var fromString NamedValue
	require.NoError(t, json.Unmarshal([]byte(`"Software"`), &fromString))
	assert.Equal(t, "Software", fromString.Name)

	var fromObject NamedValue
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Software"}`), &fromObject))
	assert.Equal(t, "Software", fromObject.Name)
}
