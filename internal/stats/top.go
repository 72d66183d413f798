package stats

import (
	"sort"

	"github.com/verte-zerg/labelmerge/internal/model"
)

type keyCount struct {
	key   string
	count int
}

func sortedCounts(table model.FrequencyTable, desc bool) []keyCount {
	items := make([]keyCount, 0, len(table))
	for k, n := range table {
		items = append(items, keyCount{key: k, count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count == items[j].count {
			return items[i].key < items[j].key
		}
		if desc {
			return items[i].count > items[j].count
		}
		return items[i].count < items[j].count
	})
	return items
}

// TopKeys returns the n most frequent keys, ties broken by key.
func TopKeys(table model.FrequencyTable, n int) []string {
	return firstKeys(sortedCounts(table, true), n)
}

// RareKeys returns the n least frequent keys, ties broken by key.
func RareKeys(table model.FrequencyTable, n int) []string {
	return firstKeys(sortedCounts(table, false), n)
}

func firstKeys(items []keyCount, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, items[i].key)
	}
	return out
}
