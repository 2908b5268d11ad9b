// Package model defines the firmographics record that the reconciliation
// engine produces and the enrichment pass mutates.
package model

import "sort"

// Employees holds headcount figures for a company. Total may be present
// without ITStaff; zero is the absence sentinel for both.
type Employees struct {
	Total   int `json:"total"`
	ITStaff int `json:"it_staff"`
}

// Address is a headquarters location. A record either carries a populated
// Address or none at all; it is never partially overwritten.
type Address struct {
	Country     string `json:"country"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	FullAddress string `json:"full_address"`
}

// FieldCount returns the number of populated sub-fields.
func (a *Address) FieldCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, v := range []string{a.Country, a.City, a.State, a.PostalCode, a.FullAddress} {
		if v != "" {
			n++
		}
	}
	return n
}

// Empty reports whether the address carries no data.
func (a *Address) Empty() bool {
	return a.FieldCount() == 0
}

// Revenue holds annual revenue. Like Address it is replaced atomically.
type Revenue struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Range    string  `json:"range"`
}

// FieldCount returns the number of populated sub-fields.
func (r *Revenue) FieldCount() int {
	if r == nil {
		return 0
	}
	n := 0
	if r.Amount != 0 {
		n++
	}
	if r.Currency != "" {
		n++
	}
	if r.Range != "" {
		n++
	}
	return n
}

// Empty reports whether the revenue carries no data.
func (r *Revenue) Empty() bool {
	return r.FieldCount() == 0
}

// SimilarCompany is one entry of a company's competitor list, in source order.
type SimilarCompany struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// NewsUpdate is a single news event attached to a company. The news list is
// append-only across enrichment passes.
type NewsUpdate struct {
	Source string `json:"source"`
	Date   string `json:"date"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Type   string `json:"type"`
}

// NewsKey is the identity triple used to deduplicate news entries.
type NewsKey struct {
	Source string
	Date   string
	Title  string
}

// Key returns the dedup identity of the news item.
func (n NewsUpdate) Key() NewsKey {
	return NewsKey{Source: n.Source, Date: n.Date, Title: n.Title}
}

// CompanyRecord is the reconciled firmographics record for one company and
// the unit of work for the enrichment pass. EntityName is assigned once at
// first reconciliation and never changed afterwards.
type CompanyRecord struct {
	EntityName        string           `json:"entity_name"`
	CompanyURL        string           `json:"company_url"`
	LinkedInURI       string           `json:"linkedin_uri,omitempty"`
	Employees         Employees        `json:"employees"`
	HQAddress         *Address         `json:"hq_address,omitempty"`
	Revenue           *Revenue         `json:"revenue,omitempty"`
	IndustryVerticals []string         `json:"industry_verticals"`
	Technologies      []string         `json:"technologies"`
	SimilarCompanies  []SimilarCompany `json:"similar_companies"`
	NewsUpdates       []NewsUpdate     `json:"news_updates"`
	Confidence        float64          `json:"confidence"`
}

// Normalize sorts the set-valued fields so persisted output is stable across
// runs regardless of extraction order.
func (c *CompanyRecord) Normalize() {
	sort.Strings(c.IndustryVerticals)
	sort.Strings(c.Technologies)
}

// HasNews reports whether the record already contains a news item with the
// same identity key.
func (c *CompanyRecord) HasNews(n NewsUpdate) bool {
	key := n.Key()
	for _, existing := range c.NewsUpdates {
		if existing.Key() == key {
			return true
		}
	}
	return false
}
