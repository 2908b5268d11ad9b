// Package extract turns raw source payloads into typed partial records.
// Every function is pure over the payloads it receives; precedence between
// sources lives here, conflict handling lives in reconcile.
package extract

import (
	"sort"
	"strings"

	"github.com/sells-group/firmographics-cli/internal/model"
	"github.com/sells-group/firmographics-cli/pkg/diffbot"
	"github.com/sells-group/firmographics-cli/pkg/linkedin"
)

// itCategoryKeywords mark an employee category as IT or engineering staff.
// Matched as case-insensitive substrings of the category name.
var itCategoryKeywords = []string{
	"engineer", "develop", "program", "tech",
	"it", "software", "system", "data", "cyber",
	"security", "network", "cloud", "devops",
	"architecture", "frontend", "backend", "fullstack",
	"web", "mobile", "app", "infra", "platform",
	"solution", "support", "analyst", "admin",
	"database", "ai", "ml", "artificial", "machine",
	"computing", "digital", "information",
}

// newsRelevanceKeywords gate which knowledge-graph articles become news
// updates at all.
var newsRelevanceKeywords = []string{
	"merger", "acquisition", "hiring", "security", "digital transformation",
}

// TotalEmployees returns the headcount, preferring the network profile and
// falling back through the knowledge-graph facts: NAICS headcount, then
// nbEmployees, then the range maximum, then nbEmployeesMax.
func TotalEmployees(p *linkedin.Profile, kg *diffbot.Payload) int {
	if p != nil && p.TotalEmployees > 0 {
		return p.TotalEmployees
	}
	e := firstEntity(kg)
	if e == nil {
		return 0
	}

	for _, naics := range e.NaicsClassification {
		if naics.NbEmployees != nil {
			return *naics.NbEmployees
		}
	}
	if e.NbEmployees > 0 {
		return e.NbEmployees
	}
	if e.EmployeesRange != nil && e.EmployeesRange.Max > 0 {
		return e.EmployeesRange.Max
	}
	return e.NbEmployeesMax
}

// ITStaff sums the headcounts of employee categories whose name matches an
// IT keyword.
func ITStaff(kg *diffbot.Payload) int {
	e := firstEntity(kg)
	if e == nil {
		return 0
	}

	total := 0
	for _, cat := range e.EmployeeCategories {
		name := strings.ToLower(cat.Category)
		for _, kw := range itCategoryKeywords {
			if strings.Contains(name, kw) {
				total += cat.NbEmployees
				break
			}
		}
	}
	return total
}

// HQAddress returns the first location fact across entities, or nil when the
// graph carries none.
func HQAddress(kg *diffbot.Payload) *model.Address {
	if kg == nil {
		return nil
	}
	for _, res := range kg.Data {
		locs := res.Entity.AllLocations()
		if len(locs) == 0 {
			continue
		}
		loc := locs[0]
		addr := &model.Address{
			Country:     loc.Country.Name,
			City:        loc.City.Name,
			State:       loc.Region.Name,
			PostalCode:  loc.PostalCode,
			FullAddress: loc.Address,
		}
		if !addr.Empty() {
			return addr
		}
	}
	return nil
}

// Revenue returns the first revenue fact across entities, or nil.
func Revenue(kg *diffbot.Payload) *model.Revenue {
	if kg == nil {
		return nil
	}
	for _, res := range kg.Data {
		if rev := res.Entity.Revenue; rev != nil {
			return &model.Revenue{
				Amount:   rev.Value,
				Currency: rev.Currency,
				Range:    rev.Range,
			}
		}
	}
	return nil
}

// Industries returns the sorted union of industry names across entities.
func Industries(kg *diffbot.Payload) []string {
	set := map[string]bool{}
	if kg != nil {
		for _, res := range kg.Data {
			for _, ind := range res.Entity.Industries {
				if ind.Name != "" {
					set[ind.Name] = true
				}
			}
		}
	}
	return sortedKeys(set)
}

// Technologies returns the sorted union of detected technology names.
func Technologies(kg *diffbot.Payload) []string {
	set := map[string]bool{}
	if kg != nil {
		for _, res := range kg.Data {
			for _, tech := range res.Entity.Technographics {
				if tech.Technology.Name != "" {
					set[tech.Technology.Name] = true
				}
			}
		}
	}
	return sortedKeys(set)
}

// SimilarCompanies returns the competitor list in source order, capped at 10
// per entity.
func SimilarCompanies(kg *diffbot.Payload) []model.SimilarCompany {
	var similar []model.SimilarCompany
	if kg == nil {
		return similar
	}
	for _, res := range kg.Data {
		comps := res.Entity.Competitors
		if len(comps) > 10 {
			comps = comps[:10]
		}
		for _, comp := range comps {
			similar = append(similar, model.SimilarCompany{
				Name:        comp.Name,
				URL:         comp.Homepage,
				Description: comp.Summary,
			})
		}
	}
	return similar
}

// News returns the relevant articles across entities as news updates.
func News(kg *diffbot.Payload) []model.NewsUpdate {
	var updates []model.NewsUpdate
	if kg == nil {
		return updates
	}
	for _, res := range kg.Data {
		for _, article := range res.Entity.Articles {
			if !isRelevantArticle(article) {
				continue
			}
			updates = append(updates, model.NewsUpdate{
				Source: "diffbot",
				Date:   article.Date,
				Title:  article.Title,
				URL:    article.URL,
				Type:   CategorizeArticle(article.Title, article.Summary),
			})
		}
	}
	return updates
}

// CategorizeArticle assigns a fixed-priority category from the article text:
// M&A, then Hiring, then Security, then Digital Transformation, else Other.
func CategorizeArticle(title, summary string) string {
	text := strings.ToLower(title + " " + summary)
	switch {
	case strings.Contains(text, "merger") || strings.Contains(text, "acquisition"):
		return "M&A"
	case strings.Contains(text, "hiring"):
		return "Hiring"
	case strings.Contains(text, "security"):
		return "Security"
	case strings.Contains(text, "digital transformation"):
		return "Digital Transformation"
	default:
		return "Other"
	}
}

func isRelevantArticle(article diffbot.Article) bool {
	text := strings.ToLower(article.Title + " " + article.Summary)
	for _, kw := range newsRelevanceKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func firstEntity(kg *diffbot.Payload) *diffbot.Entity {
	if kg == nil || len(kg.Data) == 0 {
		return nil
	}
	return &kg.Data[0].Entity
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
