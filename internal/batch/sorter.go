package batch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sort orders batches by the sort keys, first key primary, later keys
// breaking ties. The sort is stable, so batches with fully equal keys keep
// their insertion order.
//
// Missing partition values sort after all present values within a key, for
// ascending and descending alike; direction only flips the order of present
// values. A key field absent from every batch fails the whole call with
// ErrUnknownSortField.
//
// The input slice is not modified; a new ordered slice is returned.
func Sort(batches []Batch, keys []SortKey) ([]Batch, error) {
	if len(batches) == 0 || len(keys) == 0 {
		out := make([]Batch, len(batches))
		copy(out, batches)
		return out, nil
	}

	for _, key := range keys {
		if !anyBatchHasField(batches, key.Field) {
			return nil, fmt.Errorf("%w: %q is not a partition field of any batch", ErrUnknownSortField, key.Field)
		}
	}

	out := make([]Batch, len(batches))
	copy(out, batches)

	sort.SliceStable(out, func(i, j int) bool {
		for _, key := range keys {
			a, aOK := out[i].Partitions[key.Field]
			b, bOK := out[j].Partitions[key.Field]

			switch {
			case !aOK && !bOK:
				continue
			case !aOK:
				// missing sorts last, independent of direction
				return false
			case !bOK:
				return true
			}

			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	return out, nil
}

func anyBatchHasField(batches []Batch, field string) bool {
	for _, b := range batches {
		if _, ok := b.Partitions[field]; ok {
			return true
		}
	}
	return false
}

// compareValues orders values in two classes so the comparison stays
// transitive when a field mixes numeric and non-numeric values: everything
// that parses as a number sorts before everything that does not. Within the
// numeric class the order is numeric ("2" < "10"), within the other class
// lexicographic ("a" < "b").
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
