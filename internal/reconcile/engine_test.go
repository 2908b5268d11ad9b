package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/firmographics-cli/internal/input"
	"github.com/sells-group/firmographics-cli/internal/model"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
	"github.com/sells-group/firmographics-cli/pkg/linkedin"
)

// stubResolver always returns a fixed choice and records the conflicts it saw.
type stubResolver struct {
	choice Choice
	seen   []FieldKind
}

func (s *stubResolver) Resolve(_ context.Context, kind FieldKind, _ string, _, _ any) (Choice, error) {
	s.seen = append(s.seen, kind)
	return s.choice, nil
}

func acmeInput() input.Company {
	return input.Company{Name: "Acme Corp", URL: "https://acme.com"}
}

func acmeKG() *diffbot.Payload {
	return &diffbot.Payload{Data: []diffbot.Result{{Entity: diffbot.Entity{
		Name:        "Acme Corp",
		LinkedInURI: "linkedin.com/company/acme",
		HomepageURI: "https://acme.com",
		NbEmployees: 500,
		Locations: diffbot.LocationList{{
			Country: diffbot.NamedValue{Name: "United States"},
			City:    diffbot.NamedValue{Name: "Austin"},
			Region:  diffbot.NamedValue{Name: "Texas"},
		}},
		Revenue:    &diffbot.RevenueFact{Value: 5e6, Currency: "USD"},
		Industries: diffbot.IndustryList{{Name: "Software"}},
		Technographics: []diffbot.Technographic{
			{Technology: diffbot.NamedValue{Name: "Kubernetes"}},
		},
		Competitors: []diffbot.Competitor{
			{Name: "Widgets Inc", Homepage: "https://widgets.example", Summary: "widget maker"},
		},
		Articles: []diffbot.Article{
			{Date: "2025-03-01", Title: "Acme acquisition rumors", URL: "https://n/1"},
		},
	}}}}
}

func TestReconcileKnowledgeGraphOnly(t *testing.T) {
	e := NewEngine(Options{})

	rec, err := e.Reconcile(context.Background(), acmeInput(), nil, acmeKG())
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", rec.EntityName)
	assert.Equal(t, "https://acme.com", rec.CompanyURL)
	assert.Equal(t, "linkedin.com/company/acme", rec.LinkedInURI)
	assert.Equal(t, 500, rec.Employees.Total)
	assert.Equal(t, "Austin", rec.HQAddress.City)
	assert.Equal(t, "Texas", rec.HQAddress.State)
	assert.Equal(t, 5e6, rec.Revenue.Amount)
	assert.Equal(t, []string{"Software"}, rec.IndustryVerticals)
	assert.Equal(t, []string{"Kubernetes"}, rec.Technologies)
	require.Len(t, rec.SimilarCompanies, 1)
	require.Len(t, rec.NewsUpdates, 1)
	assert.Equal(t, "M&A", rec.NewsUpdates[0].Type)
	assert.Greater(t, rec.Confidence, 0.0)
}

func TestReconcileProfilePrimacy(t *testing.T) {
	e := NewEngine(Options{})
	profile := &linkedin.Profile{
		Name:           "Acme Corporation",
		TotalEmployees: 480,
		Industry:       "Enterprise Software",
		Headquarters:   "Austin, Texas",
		LinkedInURL:    "https://www.linkedin.com/company/acme",
	}

	rec, err := e.Reconcile(context.Background(), acmeInput(), profile, acmeKG())
	require.NoError(t, err)

	assert.Equal(t, "Acme Corporation", rec.EntityName, "profile name wins")
	assert.Equal(t, 480, rec.Employees.Total, "profile headcount wins when present")
	// Industry union is sorted.
	assert.Equal(t, []string{"Enterprise Software", "Software"}, rec.IndustryVerticals)
	// Addresses agree on city/state; the more complete one is kept.
	assert.Equal(t, "United States", rec.HQAddress.Country)
}

func TestReconcileEmployeeAgreementHasOwnTolerance(t *testing.T) {
	profile := &linkedin.Profile{Name: "Acme Corp", TotalEmployees: 480, Headquarters: "Austin, Texas"}
	kg := acmeKG()
	kg.Data[0].Entity.NbEmployees = 600

	// 120/600 = 20% apart: outside the default tolerance, no headcount boost.
	strict, err := NewEngine(Options{}).Reconcile(context.Background(), acmeInput(), profile, kg)
	require.NoError(t, err)

	// Loosening the revenue threshold must not change the headcount verdict.
	looseRevenue, err := NewEngine(Options{RevenueConflictThreshold: 0.90}).Reconcile(context.Background(), acmeInput(), profile, kg)
	require.NoError(t, err)
	assert.Equal(t, strict.Confidence, looseRevenue.Confidence)

	loose, err := NewEngine(Options{EmployeeAgreementTolerance: 0.25}).Reconcile(context.Background(), acmeInput(), profile, kg)
	require.NoError(t, err)
	assert.InDelta(t, strict.Confidence+0.05, loose.Confidence, 1e-9)
}

func TestReconcileBothSourcesAbsent(t *testing.T) {
	e := NewEngine(Options{})

	rec, err := e.Reconcile(context.Background(), acmeInput(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", rec.EntityName)
	assert.Equal(t, 0, rec.Employees.Total)
	assert.Nil(t, rec.HQAddress)
	assert.Nil(t, rec.Revenue)
}

func TestReconcileLocationConflictDefaultPrefersPrimary(t *testing.T) {
	e := NewEngine(Options{})
	profile := &linkedin.Profile{Name: "Acme Corp", Headquarters: "Denver, Colorado, United States"}

	rec, err := e.Reconcile(context.Background(), acmeInput(), profile, acmeKG())
	require.NoError(t, err)

	assert.Equal(t, "Denver", rec.HQAddress.City)
}

func TestReconcileLocationConflictInteractive(t *testing.T) {
	resolver := &stubResolver{choice: ChoiceCandidate}
	e := NewEngine(Options{Interactive: true, Resolver: resolver})
	profile := &linkedin.Profile{Name: "Acme Corp", Headquarters: "Denver, Colorado, United States"}

	rec, err := e.Reconcile(context.Background(), acmeInput(), profile, acmeKG())
	require.NoError(t, err)

	assert.Equal(t, []FieldKind{FieldLocation}, resolver.seen)
	assert.Equal(t, "Austin", rec.HQAddress.City, "operator chose the graph address")
}

func TestReconcileLinkedInURIFallbackOrder(t *testing.T) {
	e := NewEngine(Options{})

	kg := acmeKG()
	kg.Data[0].Entity.LinkedInURI = ""

	c := acmeInput()
	c.LinkedInURI = "linkedin.com/company/acme-from-input"

	rec, err := e.Reconcile(context.Background(), c, nil, kg)
	require.NoError(t, err)
	assert.Equal(t, "linkedin.com/company/acme-from-input", rec.LinkedInURI)
}

func TestLocationConflict(t *testing.T) {
	a := &model.Address{Country: "United States", City: "Austin", State: "Texas"}

	assert.False(t, LocationConflict(a, &model.Address{City: "austin"}))
	assert.True(t, LocationConflict(a, &model.Address{City: "Dallas"}))
	assert.False(t, LocationConflict(a, nil))
	assert.False(t, LocationConflict(a, &model.Address{PostalCode: "99999"}))
}

func TestRevenueConflictUsesLargerAmountAsBase(t *testing.T) {
	a := &model.Revenue{Amount: 100}
	b := &model.Revenue{Amount: 112}

	// 12/112 ≈ 10.7% of the larger amount.
	assert.True(t, RevenueConflict(a, b, 0.10))
	assert.False(t, RevenueConflict(a, b, 0.11))
	assert.False(t, RevenueConflict(a, nil, 0.10))
	assert.False(t, RevenueConflict(a, &model.Revenue{Currency: "USD"}, 0.10))
}

func TestScoreCompleteness(t *testing.T) {
	empty := &model.CompanyRecord{}
	full := &model.CompanyRecord{
		EntityName:        "Acme",
		LinkedInURI:       "linkedin.com/company/acme",
		Employees:         model.Employees{Total: 100, ITStaff: 10},
		HQAddress:         &model.Address{City: "Austin"},
		Revenue:           &model.Revenue{Amount: 1e6},
		IndustryVerticals: []string{"Software"},
		Technologies:      []string{"Go"},
		SimilarCompanies:  []model.SimilarCompany{{Name: "Widgets"}},
	}

	assert.Equal(t, 0.0, Score(empty, 0))
	assert.Equal(t, 1.0, Score(full, 0))
	assert.Greater(t, Score(full, 2), Score(empty, 2))
	assert.LessOrEqual(t, Score(full, 3), 1.0)
}

func TestParseHeadquarters(t *testing.T) {
	assert.Nil(t, parseHeadquarters("  "))

	city := parseHeadquarters("Austin")
	assert.Equal(t, "Austin", city.City)

	cityState := parseHeadquarters("Austin, TX")
	assert.Equal(t, "Austin", cityState.City)
	assert.Equal(t, "TX", cityState.State)

	full := parseHeadquarters("Austin, Texas, United States")
	assert.Equal(t, "United States", full.Country)
	assert.Equal(t, "Austin, Texas, United States", full.FullAddress)
}
