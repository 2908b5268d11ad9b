// Package export projects the reconciled record set into a spreadsheet for
// people who work the list by hand.
package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/firmographics-cli/internal/model"
)

// WriteXLSX writes a workbook with one sheet per record facet. List-valued
// facets become one row per element; single-valued facets one row per
// company. The projection is read-only: nothing here feeds back into the
// snapshot.
func WriteXLSX(records []model.CompanyRecord, path string) error {
	f := xlsx.NewFile()

	if err := addCompaniesSheet(f, records); err != nil {
		return err
	}
	if err := addEmployeesSheet(f, records); err != nil {
		return err
	}
	if err := addAddressesSheet(f, records); err != nil {
		return err
	}
	if err := addJoinedListSheet(f, "Industries", "verticals", records, func(r model.CompanyRecord) []string {
		return r.IndustryVerticals
	}); err != nil {
		return err
	}
	if err := addSimilarCompaniesSheet(f, records); err != nil {
		return err
	}
	if err := addJoinedListSheet(f, "Technologies", "technologies", records, func(r model.CompanyRecord) []string {
		return r.Technologies
	}); err != nil {
		return err
	}
	if err := addNewsSheet(f, records); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	writeRow(sheet, header)
	return sheet, nil
}

func writeRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addCompaniesSheet(f *xlsx.File, records []model.CompanyRecord) error {
	sheet, err := addSheet(f, "Companies", []string{
		"company_name", "company_url", "linkedin_uri",
		"revenue_amount", "revenue_currency", "confidence",
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		amount, currency := "", ""
		if r.Revenue != nil {
			if r.Revenue.Amount != 0 {
				amount = strconv.FormatFloat(r.Revenue.Amount, 'f', -1, 64)
			}
			currency = r.Revenue.Currency
		}
		writeRow(sheet, []string{
			r.EntityName, r.CompanyURL, r.LinkedInURI,
			amount, currency,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
		})
	}
	return nil
}

func addEmployeesSheet(f *xlsx.File, records []model.CompanyRecord) error {
	sheet, err := addSheet(f, "Employees", []string{"company_name", "total", "it_staff"})
	if err != nil {
		return err
	}
	for _, r := range records {
		writeRow(sheet, []string{
			r.EntityName,
			strconv.Itoa(r.Employees.Total),
			strconv.Itoa(r.Employees.ITStaff),
		})
	}
	return nil
}

func addAddressesSheet(f *xlsx.File, records []model.CompanyRecord) error {
	sheet, err := addSheet(f, "Addresses", []string{
		"company_name", "country", "city", "state", "postal_code", "full_address",
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		addr := r.HQAddress
		if addr == nil {
			addr = &model.Address{}
		}
		writeRow(sheet, []string{
			r.EntityName, addr.Country, addr.City, addr.State, addr.PostalCode, addr.FullAddress,
		})
	}
	return nil
}

func addJoinedListSheet(f *xlsx.File, name, column string, records []model.CompanyRecord, pick func(model.CompanyRecord) []string) error {
	sheet, err := addSheet(f, name, []string{"company_name", column})
	if err != nil {
		return err
	}
	for _, r := range records {
		writeRow(sheet, []string{r.EntityName, strings.Join(pick(r), ", ")})
	}
	return nil
}

func addSimilarCompaniesSheet(f *xlsx.File, records []model.CompanyRecord) error {
	sheet, err := addSheet(f, "Similar Companies", []string{
		"company_name", "similar_company", "description", "url",
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		for _, s := range r.SimilarCompanies {
			writeRow(sheet, []string{r.EntityName, s.Name, s.Description, s.URL})
		}
	}
	return nil
}

func addNewsSheet(f *xlsx.File, records []model.CompanyRecord) error {
	sheet, err := addSheet(f, "News Updates", []string{
		"company_name", "source", "date", "title", "url", "type",
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		for _, n := range r.NewsUpdates {
			writeRow(sheet, []string{r.EntityName, n.Source, n.Date, n.Title, n.URL, n.Type})
		}
	}
	return nil
}
