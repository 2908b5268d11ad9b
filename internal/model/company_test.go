package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressFieldCount(t *testing.T) {
	tests := []struct {
		name string
		addr *Address
		want int
	}{
		{name: "nil", addr: nil, want: 0},
		{name: "empty", addr: &Address{}, want: 0},
		{name: "partial", addr: &Address{Country: "USA", City: "Austin"}, want: 2},
		{
			name: "full",
			addr: &Address{Country: "USA", City: "Austin", State: "TX", PostalCode: "78701", FullAddress: "100 Congress Ave"},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.FieldCount())
			assert.Equal(t, tt.want == 0, tt.addr.Empty())
		})
	}
}

func TestRevenueFieldCount(t *testing.T) {
	assert.Equal(t, 0, (*Revenue)(nil).FieldCount())
	assert.True(t, (&Revenue{}).Empty())
	assert.Equal(t, 2, (&Revenue{Amount: 5e6, Currency: "USD"}).FieldCount())
	assert.Equal(t, 3, (&Revenue{Amount: 5e6, Currency: "USD", Range: "1M-10M"}).FieldCount())
}

func TestNewsKey(t *testing.T) {
	a := NewsUpdate{Source: "diffbot", Date: "2025-04-01", Title: "Acme acquires Widgets Inc", URL: "https://x/1", Type: "M&A"}
	b := NewsUpdate{Source: "diffbot", Date: "2025-04-01", Title: "Acme acquires Widgets Inc", URL: "https://x/2", Type: "Other"}
	c := NewsUpdate{Source: "perplexity", Date: "2025-04-01", Title: "Acme acquires Widgets Inc"}

	assert.Equal(t, a.Key(), b.Key(), "url and type are not part of the identity")
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestHasNews(t *testing.T) {
	rec := CompanyRecord{
		NewsUpdates: []NewsUpdate{
			{Source: "diffbot", Date: "2025-01-15", Title: "Acme hires CISO"},
		},
	}

	assert.True(t, rec.HasNews(NewsUpdate{Source: "diffbot", Date: "2025-01-15", Title: "Acme hires CISO", URL: "other"}))
	assert.False(t, rec.HasNews(NewsUpdate{Source: "diffbot", Date: "2025-01-16", Title: "Acme hires CISO"}))
}

func TestNormalizeSortsSets(t *testing.T) {
	rec := CompanyRecord{
		IndustryVerticals: []string{"Software", "Finance", "Healthcare"},
		Technologies:      []string{"Kubernetes", "AWS", "Go"},
	}

	rec.Normalize()

	assert.Equal(t, []string{"Finance", "Healthcare", "Software"}, rec.IndustryVerticals)
	assert.Equal(t, []string{"AWS", "Go", "Kubernetes"}, rec.Technologies)
}
