package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/firmographics-cli/internal/model"
)

func writeRatesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRates(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeRatesFile(t, "usd_rates:\n  EUR: 1.08\n  GBP: 1.27\n")
		table, err := LoadRates(path)
		require.NoError(t, err)

		rate, ok := table.Rate("EUR")
		assert.True(t, ok)
		assert.Equal(t, 1.08, rate)

		_, ok = table.Rate("JPY")
		assert.False(t, ok)
	})

	t.Run("unknown currency code", func(t *testing.T) {
		path := writeRatesFile(t, "usd_rates:\n  ZZZ: 1.0\n")
		_, err := LoadRates(path)
		assert.Error(t, err)
	})

	t.Run("non-positive rate", func(t *testing.T) {
		path := writeRatesFile(t, "usd_rates:\n  EUR: -1.0\n")
		_, err := LoadRates(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRates(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestNormalizeCurrency(t *testing.T) {
	rates := &RateTable{USDRates: map[string]float64{"EUR": 1.25, "GBP": 1.25}}

	t.Run("converts to usd pivot", func(t *testing.T) {
		got := NormalizeCurrency(&model.Revenue{Amount: 100, Currency: "EUR"}, "USD", rates)
		assert.Equal(t, 125.0, got.Amount)
		assert.Equal(t, "USD", got.Currency)
	})

	t.Run("converts from usd", func(t *testing.T) {
		got := NormalizeCurrency(&model.Revenue{Amount: 125, Currency: "USD"}, "EUR", rates)
		assert.Equal(t, 100.0, got.Amount)
		assert.Equal(t, "EUR", got.Currency)
	})

	t.Run("cross rate through usd", func(t *testing.T) {
		got := NormalizeCurrency(&model.Revenue{Amount: 80, Currency: "EUR"}, "GBP", rates)
		assert.Equal(t, 80.0, got.Amount)
		assert.Equal(t, "GBP", got.Currency)
	})

	t.Run("same currency untouched", func(t *testing.T) {
		rev := &model.Revenue{Amount: 100, Currency: "USD"}
		got := NormalizeCurrency(rev, "USD", rates)
		assert.Same(t, rev, got)
	})

	t.Run("missing rate keeps source currency", func(t *testing.T) {
		rev := &model.Revenue{Amount: 100, Currency: "JPY"}
		got := NormalizeCurrency(rev, "USD", rates)
		assert.Same(t, rev, got)
	})

	t.Run("invalid target keeps source currency", func(t *testing.T) {
		rev := &model.Revenue{Amount: 100, Currency: "EUR"}
		got := NormalizeCurrency(rev, "not-a-code", rates)
		assert.Same(t, rev, got)
	})

	t.Run("nil and empty revenue pass through", func(t *testing.T) {
		assert.Nil(t, NormalizeCurrency(nil, "USD", rates))
		rev := &model.Revenue{Range: "1M-5M"}
		assert.Same(t, rev, NormalizeCurrency(rev, "USD", rates))
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		rev := &model.Revenue{Amount: 100, Currency: "EUR"}
		_ = NormalizeCurrency(rev, "USD", rates)
		assert.Equal(t, 100.0, rev.Amount)
		assert.Equal(t, "EUR", rev.Currency)
	})
}
