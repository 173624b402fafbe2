package timereg

import (
	"sort"
	"time"
)

// KeyFunc derives the grouping key for an entry, typically a cost-account
// identification. The second return value is false when no key could be
// resolved for the entry; such entries accumulate under the empty key.
type KeyFunc func(Entry) (string, bool)

// ByAccountIdentification groups entries by the given account identification
// type. Entries without that identification are reported as unresolved.
func ByAccountIdentification(identType string) KeyFunc {
	return func(entry Entry) (string, bool) {
		value, ok := entry.AccountIdentifications[identType]
		return value, ok
	}
}

// Bucket is one day x account cell of an aggregation.
type Bucket struct {
	Account string
	Hours   float64
	Entries []Entry

	// Unresolved is true when at least one entry in the bucket had no
	// resolvable account key.
	Unresolved bool
}

// Aggregation maps a normalized day to account key to summed bucket.
// Derived per run, never persisted.
type Aggregation map[time.Time]map[string]*Bucket

// Aggregate groups entries by normalized day, then by key. Summation is plain
// floating-point addition and no entry is dropped. Pure: no side effects, and
// two independently fetched entry lists aggregate identically.
func Aggregate(entries []Entry, key KeyFunc) Aggregation {
	agg := make(Aggregation)
	for _, entry := range entries {
		day := Day(entry.DateExecuted)
		account, resolved := key(entry)
		if !resolved {
			account = ""
		}

		dayBuckets, ok := agg[day]
		if !ok {
			dayBuckets = make(map[string]*Bucket)
			agg[day] = dayBuckets
		}

		bucket, ok := dayBuckets[account]
		if !ok {
			bucket = &Bucket{Account: account}
			dayBuckets[account] = bucket
		}
		bucket.Hours += entry.TimeUsed
		bucket.Entries = append(bucket.Entries, entry)
		if !resolved {
			bucket.Unresolved = true
		}
	}
	return agg
}

// Hours returns the account -> summed hours map for a day. Days without
// entries yield an empty map.
func (a Aggregation) Hours(day time.Time) map[string]float64 {
	hours := make(map[string]float64)
	for account, bucket := range a[Day(day)] {
		hours[account] = bucket.Hours
	}
	return hours
}

// Days returns the days present in the aggregation in ascending order.
func (a Aggregation) Days() []time.Time {
	days := make([]time.Time, 0, len(a))
	for day := range a {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// UnresolvedBuckets returns every bucket that contains entries without a
// resolvable account key, in ascending day order.
func (a Aggregation) UnresolvedBuckets() []*Bucket {
	var buckets []*Bucket
	for _, day := range a.Days() {
		for _, bucket := range a[day] {
			if bucket.Unresolved {
				buckets = append(buckets, bucket)
			}
		}
	}
	return buckets
}

// Total sums every bucket in the aggregation.
func (a Aggregation) Total() float64 {
	total := 0.0
	for _, dayBuckets := range a {
		for _, bucket := range dayBuckets {
			total += bucket.Hours
		}
	}
	return total
}
