package reconcile

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/firmographics-cli/internal/model"
)

// RateTable maps ISO-4217 currency codes to their value in USD. The table is
// operator-supplied; missing rates leave amounts in their source currency.
type RateTable struct {
	USDRates map[string]float64 `yaml:"usd_rates"`
}

// LoadRates reads a rate table from a YAML file. Codes are validated against
// ISO 4217.
func LoadRates(path string) (*RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read rates %s", path)
	}
	var table RateTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse rates")
	}
	for code, rate := range table.USDRates {
		if _, err := currency.ParseISO(code); err != nil {
			return nil, eris.Wrapf(err, "reconcile: invalid currency code %q in rates", code)
		}
		if rate <= 0 {
			return nil, eris.Errorf("reconcile: non-positive rate for %q", code)
		}
	}
	return &table, nil
}

// Rate returns the USD value of one unit of code.
func (t *RateTable) Rate(code string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	rate, ok := t.USDRates[code]
	return rate, ok
}

// NormalizeCurrency converts a revenue amount into the target currency when
// the rate table covers both currencies. When it does not, the revenue is
// returned unchanged with a warning, never dropped.
func NormalizeCurrency(rev *model.Revenue, target string, rates *RateTable) *model.Revenue {
	if rev == nil || rev.Amount == 0 || rev.Currency == "" || target == "" {
		return rev
	}
	if rev.Currency == target {
		return rev
	}
	if _, err := currency.ParseISO(target); err != nil {
		zap.L().Warn("invalid target currency, keeping source currency",
			zap.String("target", target))
		return rev
	}

	// USD is the pivot and always has rate 1.
	fromRate, okFrom := 1.0, rev.Currency == "USD"
	if !okFrom {
		fromRate, okFrom = rates.Rate(rev.Currency)
	}
	toRate, okTo := 1.0, target == "USD"
	if !okTo {
		toRate, okTo = rates.Rate(target)
	}
	if !okFrom || !okTo {
		zap.L().Warn("no exchange rate available, keeping source currency",
			zap.String("from", rev.Currency),
			zap.String("to", target))
		return rev
	}

	converted := *rev
	converted.Amount = rev.Amount * fromRate / toRate
	converted.Currency = target
	return &converted
}
