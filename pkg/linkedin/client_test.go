package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/firmographics-cli/pkg/anthropic"
	"github.com/sells-group/firmographics-cli/pkg/perplexity"
)

// stubAI returns a canned structuring response and records the prompt.
type stubAI struct {
	response string
	prompt   string
	err      error
}

func (s *stubAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if len(req.Messages) > 0 {
		s.prompt = req.Messages[0].Content
	}
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.response}},
	}, nil
}

// stubSearch is a perplexity stub for the auth-wall fallback path.
type stubSearch struct {
	content string
	called  bool
}

func (s *stubSearch) ChatCompletion(_ context.Context, _ perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	s.called = true
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: s.content}}},
	}, nil
}

const profileJSON = `{
	"name": "Acme Corp",
	"industry": "Software",
	"total_employees": "1,250",
	"headquarters": "Austin, TX",
	"founded": "2010",
	"specialties": "widgets, gadgets",
	"website": "https://acme.com",
	"linkedin_url": ""
}`

// pageBody is long enough to avoid the short-content login-wall heuristic.
var pageBody = "Acme Corp | Software | Austin, TX | " + strings.Repeat("company profile content ", 10)

func fastLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func TestFetchCompanyFromPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company/acme", r.URL.Path)
		fmt.Fprint(w, pageBody)
	}))
	defer srv.Close()

	ai := &stubAI{response: "```json\n" + profileJSON + "\n```"}
	client := NewClient(ai, "test-model", WithBaseURL(srv.URL), WithPageLimiter(fastLimiter()))

	p, err := client.FetchCompany(context.Background(), "Acme Inc", "https://acme.com")
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", p.Name)
	assert.Equal(t, 1250, p.TotalEmployees, "employee string with separators should coerce")
	assert.Equal(t, "Austin, TX", p.Headquarters)
	assert.Equal(t, srv.URL+"/company/acme", p.LinkedInURL, "page URL backfilled when absent")
	assert.Contains(t, ai.prompt, "Acme Corp | Software")
}

func TestFetchCompanyFallsBackOnLoginWall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 200)+" Sign in to view this page")
	}))
	defer srv.Close()

	ai := &stubAI{response: profileJSON}
	search := &stubSearch{content: "Acme Corp is a software company in Austin with 1250 employees."}
	client := NewClient(ai, "test-model",
		WithBaseURL(srv.URL),
		WithPageLimiter(fastLimiter()),
		WithSearchFallback(search),
	)

	p, err := client.FetchCompany(context.Background(), "Acme", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, search.called, "auth wall should trigger the search fallback")
	assert.Equal(t, "Acme Corp", p.Name)
}

func TestFetchCompanyNoDataWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ai := &stubAI{response: profileJSON}
	client := NewClient(ai, "test-model", WithBaseURL(srv.URL), WithPageLimiter(fastLimiter()))

	_, err := client.FetchCompany(context.Background(), "Ghost Co", "https://ghost.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile data")
}

func TestBuildCompanyPageURL(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Acme Corp", want: "https://www.linkedin.com/company/acme"},
		{name: "Smith & Sons LLC", want: "https://www.linkedin.com/company/smith-and-sons"},
		{name: "Plain", want: "https://www.linkedin.com/company/plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildCompanyPageURL("https://www.linkedin.com", tt.name))
	}
}

func TestIsLoginWall(t *testing.T) {
	assert.True(t, isLoginWall("short"))
	assert.True(t, isLoginWall(strings.Repeat("x", 200)+" authwall"))
	assert.False(t, isLoginWall(pageBody))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "acme.com", extractDomain("https://www.acme.com/about"))
	assert.Equal(t, "acme.com", extractDomain("https://acme.com"))
	assert.Equal(t, "not a url", extractDomain("not a url"))
}

func TestPageLimiterDelaysSecondFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageBody)
	}))
	defer srv.Close()

	ai := &stubAI{response: profileJSON}
	client := NewClient(ai, "test-model",
		WithBaseURL(srv.URL),
		WithPageLimiter(rate.NewLimiter(rate.Every(30*time.Millisecond), 1)),
	)

	start := time.Now()
	_, err := client.FetchCompany(context.Background(), "One", "https://one.example")
	require.NoError(t, err)
	_, err = client.FetchCompany(context.Background(), "Two", "https://two.example")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
