package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/firmographics-cli/internal/input"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Acme.com/", "acme.com"},
		{"http://acme.com", "acme.com"},
		{"Acme Corp", "acmecorp"},
		{"acme-corp_llc", "acmecorpllc"},
		{"  Acme \t Corp  ", "acmecorp"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeKey(tt.in), tt.in)
	}
}

func TestMatch(t *testing.T) {
	results := []diffbot.Result{
		{Entity: diffbot.Entity{Name: "Widgets Inc", HomepageURI: "https://widgets.example"}},
		{Entity: diffbot.Entity{Name: "Acme Corporation", HomepageURI: "https://acme.com", LinkedInURI: "linkedin.com/company/acme"}},
	}

	t.Run("by name containment", func(t *testing.T) {
		idx := Match(input.Company{Name: "Acme Corp", URL: "https://other.example"}, results)
		assert.Equal(t, 1, idx)
	})

	t.Run("by homepage", func(t *testing.T) {
		idx := Match(input.Company{Name: "Unrelated", URL: "https://www.acme.com/"}, results)
		assert.Equal(t, 1, idx)
	})

	t.Run("by network uri", func(t *testing.T) {
		idx := Match(input.Company{
			Name:        "Unrelated",
			URL:         "https://other.example",
			LinkedInURI: "https://www.linkedin.com/company/acme",
		}, results)
		assert.Equal(t, 1, idx)
	})

	t.Run("first candidate wins", func(t *testing.T) {
		idx := Match(input.Company{Name: "Widgets", URL: "https://widgets.example"}, results)
		assert.Equal(t, 0, idx)
	})

	t.Run("no match", func(t *testing.T) {
		idx := Match(input.Company{Name: "Globex", URL: "https://globex.example"}, results)
		assert.Equal(t, -1, idx)
	})
}
