package reconcile

import (
	"math"
	"strings"

	"github.com/sells-group/firmographics-cli/internal/model"
)

// ShouldUpdateEmployees reports whether a fresh headcount should replace the
// current one. A record with no headcount always accepts one; otherwise the
// new value must differ from the current by more than threshold (a fraction
// of the current value).
func ShouldUpdateEmployees(current, fresh int, threshold float64) bool {
	if current == 0 {
		return true
	}
	if fresh > 0 {
		ratio := math.Abs(float64(current-fresh)) / float64(current)
		return ratio > threshold
	}
	return false
}

// ShouldUpdateLocation reports whether a fresh address should replace the
// current one. A strictly more complete address always wins; at equal
// completeness the fresh address wins only when the two agree on fewer than
// two of country, city and state.
func ShouldUpdateLocation(current, fresh *model.Address) bool {
	curFields := current.FieldCount()
	newFields := fresh.FieldCount()

	if newFields > curFields {
		return true
	}

	matching := 0
	if current != nil && fresh != nil {
		pairs := [][2]string{
			{current.Country, fresh.Country},
			{current.City, fresh.City},
			{current.State, fresh.State},
		}
		for _, pair := range pairs {
			if pair[0] != "" && pair[1] != "" && strings.EqualFold(pair[0], pair[1]) {
				matching++
			}
		}
	}

	return matching < 2 && newFields >= curFields
}

// ShouldUpdateRevenue reports whether fresh revenue should replace the
// current one. Missing current revenue always accepts a fresh amount; when
// both carry amounts, the fresh one wins only when it differs by more than
// threshold (a fraction of the current amount) and is at least as complete.
func ShouldUpdateRevenue(current, fresh *model.Revenue, threshold float64) bool {
	curAmount := 0.0
	if current != nil {
		curAmount = current.Amount
	}
	freshAmount := 0.0
	if fresh != nil {
		freshAmount = fresh.Amount
	}

	if curAmount == 0 && freshAmount != 0 {
		return true
	}

	if curAmount != 0 && freshAmount != 0 {
		ratio := math.Abs(curAmount-freshAmount) / curAmount
		if ratio > threshold {
			return fresh.FieldCount() >= current.FieldCount()
		}
	}

	return false
}

// MergeNews appends the fetched items that are not already present, keyed by
// the (source, date, title) triple. Existing items are never removed or
// reordered.
func MergeNews(existing, fetched []model.NewsUpdate) []model.NewsUpdate {
	seen := make(map[model.NewsKey]bool, len(existing))
	for _, n := range existing {
		seen[n.Key()] = true
	}

	merged := existing
	for _, n := range fetched {
		if seen[n.Key()] {
			continue
		}
		seen[n.Key()] = true
		merged = append(merged, n)
	}
	return merged
}
