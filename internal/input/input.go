// Package input loads the company list that drives a run.
package input

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Company is one row of the input CSV.
type Company struct {
	Name        string
	URL         string
	LinkedInID  string
	LinkedInURI string
}

// LoadCompanies reads the company CSV at path. The header row maps columns
// by name (company_name, company_url, li_company_id, li_company_uri) so
// column order is free. The company_url keys every downstream lookup, so
// rows without one are dropped with a warning, as are rows repeating an
// earlier company_url; the first occurrence wins.
func LoadCompanies(path string) ([]Company, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "input: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "input: read header")
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["company_name"]; !ok {
		return nil, eris.New("input: missing company_name column")
	}
	if _, ok := cols["company_url"]; !ok {
		return nil, eris.New("input: missing company_url column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var companies []Company
	seen := map[string]bool{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "input: read row")
		}

		c := Company{
			Name:        field(row, "company_name"),
			URL:         field(row, "company_url"),
			LinkedInID:  field(row, "li_company_id"),
			LinkedInURI: field(row, "li_company_uri"),
		}
		if c.Name == "" && c.URL == "" {
			continue
		}
		if c.URL == "" {
			zap.L().Warn("row has no company_url, skipping",
				zap.String("company", c.Name))
			continue
		}
		if seen[c.URL] {
			zap.L().Warn("duplicate company_url in input, keeping first occurrence",
				zap.String("company", c.Name),
				zap.String("company_url", c.URL),
			)
			continue
		}
		seen[c.URL] = true
		companies = append(companies, c)
	}

	return companies, nil
}
