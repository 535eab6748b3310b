package aggregation

import (
	"sort"

	"github.com/Ramsey-B/aster/pkg/models"
)

// mean of a non-empty sample; callers guard the empty case
func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median returns the lower-middle element of the sorted sample
// (index floor(n/2)), never an interpolated value. The input is
// not mutated.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func minMax(values []float64) (min, max float64) {
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// frequencyTable counts values while remembering first-seen order so
// top-N cuts can break count ties deterministically
type frequencyTable struct {
	counts map[string]int
	order  []string
}

func newFrequencyTable() *frequencyTable {
	return &frequencyTable{counts: map[string]int{}}
}

func (ft *frequencyTable) Add(value string) {
	if _, seen := ft.counts[value]; !seen {
		ft.order = append(ft.order, value)
	}
	ft.counts[value]++
}

func (ft *frequencyTable) Len() int {
	return len(ft.order)
}

func (ft *frequencyTable) Counts() map[string]int {
	if len(ft.counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(ft.counts))
	for k, v := range ft.counts {
		out[k] = v
	}
	return out
}

// Top returns up to n values ordered by count descending. Ties keep
// first-seen input order: the sort is stable over the insertion order.
func (ft *frequencyTable) Top(n int) []string {
	ranked := make([]string, len(ft.order))
	copy(ranked, ft.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ft.counts[ranked[i]] > ft.counts[ranked[j]]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TopCounts is Top with the counts attached, for tables that render
// both the value and its frequency
func (ft *frequencyTable) TopCounts(n int) []models.FrequencyEntry {
	top := ft.Top(n)
	if len(top) == 0 {
		return nil
	}
	entries := make([]models.FrequencyEntry, 0, len(top))
	for _, value := range top {
		entries = append(entries, models.FrequencyEntry{Value: value, Count: ft.counts[value]})
	}
	return entries
}
