package timerange

import (
	"time"

	"golang.org/x/exp/slices"
)

// Epoch is the lower bound for any TimeRange endpoint.
var Epoch = time.Unix(0, 0).UTC()

// MaxDateTime is the upper bound for any TimeRange endpoint.
var MaxDateTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)

// TimeRange is a closed interval [First, Last], both inclusive. It is an
// immutable value type - Extend and Contract return new values.
type TimeRange struct {
	First time.Time
	Last  time.Time
}

// Empty is the range that contains no instants: extending it with any range
// yields that range unchanged.
var Empty = TimeRange{First: MaxDateTime, Last: Epoch}

// Complete spans every representable instant: contracting it with any range
// yields that range unchanged.
var Complete = TimeRange{First: Epoch, Last: MaxDateTime}

// IsEmpty reports whether the range contains no instants.
func (r TimeRange) IsEmpty() bool {
	return r.First.After(r.Last)
}

// Extend returns the smallest range covering both r and other: First is the
// earlier of the two First values, Last is the later of the two Last
// values.
func (r TimeRange) Extend(other TimeRange) TimeRange {
	first := r.First
	if other.First.Before(first) {
		first = other.First
	}
	last := r.Last
	if other.Last.After(last) {
		last = other.Last
	}
	return TimeRange{First: first, Last: last}
}

// Contract returns the largest range contained by both r and other: First is
// the later of the two First values, Last is the earlier of the two Last
// values. The result may be empty.
func (r TimeRange) Contract(other TimeRange) TimeRange {
	first := r.First
	if other.First.After(first) {
		first = other.First
	}
	last := r.Last
	if other.Last.Before(last) {
		last = other.Last
	}
	return TimeRange{First: first, Last: last}
}

// Equal reports structural equality on (First, Last).
func (r TimeRange) Equal(other TimeRange) bool {
	return r.First.Equal(other.First) && r.Last.Equal(other.Last)
}

// Merge sorts ranges by First and coalesces every pair that overlaps or
// touches (r.Last.Before(next.First) is false) into a single range,
// returning the minimal covering set in ascending order. Empty ranges are
// dropped before merging. Input is not mutated.
func Merge(ranges []TimeRange) []TimeRange {
	work := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsEmpty() {
			work = append(work, r)
		}
	}
	if len(work) == 0 {
		return nil
	}

	slices.SortFunc(work, func(a, b TimeRange) int {
		switch {
		case a.First.Before(b.First):
			return -1
		case a.First.After(b.First):
			return 1
		default:
			return 0
		}
	})

	merged := work[:1]
	for _, r := range work[1:] {
		last := &merged[len(merged)-1]
		if r.First.After(last.Last) {
			merged = append(merged, r)
			continue
		}
		if r.Last.After(last.Last) {
			last.Last = r.Last
		}
	}
	return merged
}
