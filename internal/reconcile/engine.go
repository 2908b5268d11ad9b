// Package reconcile merges the per-source partial records into one
// CompanyRecord per company and owns all cross-source conflict policy.
package reconcile

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/firmographics-cli/internal/extract"
	"github.com/sells-group/firmographics-cli/internal/input"
	"github.com/sells-group/firmographics-cli/internal/model"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
	"github.com/sells-group/firmographics-cli/pkg/linkedin"
)

// Options configures the merge policy.
type Options struct {
	// Interactive routes conflicts to Resolver instead of the default
	// prefer-primary policy.
	Interactive bool
	Resolver    ConflictResolver

	// TargetCurrency and Rates drive revenue normalization. Empty target
	// disables it.
	TargetCurrency string
	Rates          *RateTable

	// RevenueConflictThreshold is the relative difference (fraction of the
	// larger amount) above which two revenue figures count as conflicting.
	RevenueConflictThreshold float64

	// EmployeeAgreementTolerance is the relative difference within which two
	// headcount figures count as agreeing for the confidence boost.
	EmployeeAgreementTolerance float64
}

// Engine reconciles source payloads into CompanyRecords.
type Engine struct {
	opts Options
}

// NewEngine creates a reconciliation engine.
func NewEngine(opts Options) *Engine {
	if opts.RevenueConflictThreshold <= 0 {
		opts.RevenueConflictThreshold = 0.10
	}
	if opts.EmployeeAgreementTolerance <= 0 {
		opts.EmployeeAgreementTolerance = 0.10
	}
	return &Engine{opts: opts}
}

// Reconcile builds the record for one company from whichever sources
// produced data. Either source may be nil; with both absent the record
// still carries the input identity.
func (e *Engine) Reconcile(ctx context.Context, c input.Company, profile *linkedin.Profile, kg *diffbot.Payload) (*model.CompanyRecord, error) {
	log := zap.L().With(zap.String("company", c.Name))

	kg = e.matched(c, kg, log)

	rec := &model.CompanyRecord{
		EntityName: c.Name,
		CompanyURL: c.URL,
	}
	if profile != nil && profile.Name != "" {
		rec.EntityName = profile.Name
	}
	rec.LinkedInURI = pickLinkedInURI(c, profile, kg)

	agreements := 0

	// Employees: primary wins when it has a figure at all.
	primaryTotal := 0
	if profile != nil {
		primaryTotal = profile.TotalEmployees
	}
	secondaryTotal := extract.TotalEmployees(nil, kg)
	rec.Employees.Total = primaryTotal
	if primaryTotal == 0 {
		rec.Employees.Total = secondaryTotal
	} else if secondaryTotal > 0 && withinRatio(float64(primaryTotal), float64(secondaryTotal), e.opts.EmployeeAgreementTolerance) {
		agreements++
	}
	rec.Employees.ITStaff = extract.ITStaff(kg)

	// Location: replaced atomically, conflicts routed through policy.
	primaryAddr := parseHeadquarters(profileHeadquarters(profile))
	secondaryAddr := extract.HQAddress(kg)
	addr, agreed, err := e.resolveLocation(ctx, rec.EntityName, primaryAddr, secondaryAddr, log)
	if err != nil {
		return nil, err
	}
	rec.HQAddress = addr
	if agreed {
		agreements++
	}

	// Revenue comes only from the graph today, but the policy handles two
	// sources so enrichment can reuse it.
	rev, agreed, err := e.resolveRevenue(ctx, rec.EntityName, nil, extract.Revenue(kg), log)
	if err != nil {
		return nil, err
	}
	rec.Revenue = NormalizeCurrency(rev, e.opts.TargetCurrency, e.opts.Rates)
	if agreed {
		agreements++
	}

	rec.IndustryVerticals = unionSorted(extract.Industries(kg), profileIndustry(profile))
	rec.Technologies = extract.Technologies(kg)
	rec.SimilarCompanies = extract.SimilarCompanies(kg)
	rec.NewsUpdates = MergeNews(nil, extract.News(kg))

	rec.Normalize()
	rec.Confidence = Score(rec, agreements)
	return rec, nil
}

// matched reorders the payload so the entity matching the input identity
// comes first; extraction reads facts head-first.
func (e *Engine) matched(c input.Company, kg *diffbot.Payload, log *zap.Logger) *diffbot.Payload {
	if kg == nil || len(kg.Data) < 2 {
		return kg
	}
	idx := Match(c, kg.Data)
	if idx < 0 {
		log.Debug("no knowledge-graph entity matched identity, keeping source order")
		return kg
	}
	if idx == 0 {
		return kg
	}
	reordered := *kg
	reordered.Data = make([]diffbot.Result, 0, len(kg.Data))
	reordered.Data = append(reordered.Data, kg.Data[idx])
	reordered.Data = append(reordered.Data, kg.Data[:idx]...)
	reordered.Data = append(reordered.Data, kg.Data[idx+1:]...)
	return &reordered
}

// resolveLocation picks between two candidate addresses. It reports whether
// the two sources agreed (both present, no conflicting key field).
func (e *Engine) resolveLocation(ctx context.Context, company string, primary, secondary *model.Address, log *zap.Logger) (*model.Address, bool, error) {
	switch {
	case primary.Empty() && secondary.Empty():
		return nil, false, nil
	case primary.Empty():
		return secondary, false, nil
	case secondary.Empty():
		return primary, false, nil
	}

	if !LocationConflict(primary, secondary) {
		// Agreement: keep the more complete address.
		if secondary.FieldCount() >= primary.FieldCount() {
			return secondary, true, nil
		}
		return primary, true, nil
	}

	log.Info("location conflict between sources",
		zap.Int("primary_fields", primary.FieldCount()),
		zap.Int("secondary_fields", secondary.FieldCount()),
	)

	if e.opts.Interactive && e.opts.Resolver != nil {
		choice, err := e.opts.Resolver.Resolve(ctx, FieldLocation, company, primary, secondary)
		if err != nil {
			return nil, false, err
		}
		if choice == ChoiceCandidate {
			return secondary, false, nil
		}
		return primary, false, nil
	}

	return primary, false, nil
}

// resolveRevenue picks between two candidate revenues with the same policy
// shape as resolveLocation.
func (e *Engine) resolveRevenue(ctx context.Context, company string, primary, secondary *model.Revenue, log *zap.Logger) (*model.Revenue, bool, error) {
	switch {
	case primary.Empty() && secondary.Empty():
		return nil, false, nil
	case primary.Empty():
		return secondary, false, nil
	case secondary.Empty():
		return primary, false, nil
	}

	if !RevenueConflict(primary, secondary, e.opts.RevenueConflictThreshold) {
		if secondary.FieldCount() >= primary.FieldCount() {
			return secondary, true, nil
		}
		return primary, true, nil
	}

	log.Info("revenue conflict between sources",
		zap.Float64("primary_amount", primary.Amount),
		zap.Float64("secondary_amount", secondary.Amount),
	)

	if e.opts.Interactive && e.opts.Resolver != nil {
		choice, err := e.opts.Resolver.Resolve(ctx, FieldRevenue, company, primary, secondary)
		if err != nil {
			return nil, false, err
		}
		if choice == ChoiceCandidate {
			return secondary, false, nil
		}
		return primary, false, nil
	}

	return primary, false, nil
}

// LocationConflict reports whether two addresses disagree on any of country,
// city or state where both carry a value.
func LocationConflict(a, b *model.Address) bool {
	if a == nil || b == nil {
		return false
	}
	pairs := [][2]string{
		{a.Country, b.Country},
		{a.City, b.City},
		{a.State, b.State},
	}
	for _, pair := range pairs {
		if pair[0] != "" && pair[1] != "" && !strings.EqualFold(pair[0], pair[1]) {
			return true
		}
	}
	return false
}

// RevenueConflict reports whether two revenue amounts differ by more than
// threshold as a fraction of the larger amount.
func RevenueConflict(a, b *model.Revenue, threshold float64) bool {
	if a == nil || b == nil || a.Amount == 0 || b.Amount == 0 {
		return false
	}
	larger := math.Max(math.Abs(a.Amount), math.Abs(b.Amount))
	return math.Abs(a.Amount-b.Amount)/larger > threshold
}

// Score computes completeness-based confidence in [0,1]: the fraction of
// populated record fields, boosted by cross-source agreements observed
// during the merge.
func Score(rec *model.CompanyRecord, agreements int) float64 {
	populated := 0
	const total = 9

	if rec.EntityName != "" {
		populated++
	}
	if rec.LinkedInURI != "" {
		populated++
	}
	if rec.Employees.Total > 0 {
		populated++
	}
	if rec.Employees.ITStaff > 0 {
		populated++
	}
	if !rec.HQAddress.Empty() {
		populated++
	}
	if !rec.Revenue.Empty() {
		populated++
	}
	if len(rec.IndustryVerticals) > 0 {
		populated++
	}
	if len(rec.Technologies) > 0 {
		populated++
	}
	if len(rec.SimilarCompanies) > 0 {
		populated++
	}

	score := float64(populated)/total + 0.05*float64(agreements)
	return math.Round(math.Min(score, 1.0)*100) / 100
}

func withinRatio(a, b, threshold float64) bool {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return true
	}
	return math.Abs(a-b)/larger <= threshold
}

// parseHeadquarters splits a free-form headquarters string ("Austin, TX" or
// "Austin, Texas, United States") into a structured address.
func parseHeadquarters(hq string) *model.Address {
	hq = strings.TrimSpace(hq)
	if hq == "" {
		return nil
	}
	parts := strings.Split(hq, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	addr := &model.Address{FullAddress: hq}
	switch len(parts) {
	case 1:
		addr.City = parts[0]
	case 2:
		addr.City = parts[0]
		addr.State = parts[1]
	default:
		addr.City = parts[0]
		addr.State = parts[1]
		addr.Country = parts[len(parts)-1]
	}
	return addr
}

func profileHeadquarters(p *linkedin.Profile) string {
	if p == nil {
		return ""
	}
	return p.Headquarters
}

func profileIndustry(p *linkedin.Profile) []string {
	if p == nil || p.Industry == "" {
		return nil
	}
	return []string{p.Industry}
}

func pickLinkedInURI(c input.Company, profile *linkedin.Profile, kg *diffbot.Payload) string {
	if kg != nil && len(kg.Data) > 0 && kg.Data[0].Entity.LinkedInURI != "" {
		return kg.Data[0].Entity.LinkedInURI
	}
	if c.LinkedInURI != "" {
		return c.LinkedInURI
	}
	if profile != nil {
		return profile.LinkedInURL
	}
	return ""
}

func unionSorted(a []string, b []string) []string {
	set := map[string]bool{}
	for _, s := range a {
		if s != "" {
			set[s] = true
		}
	}
	for _, s := range b {
		if s != "" {
			set[s] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
