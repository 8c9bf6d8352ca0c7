package episode

import (
	"sort"
	"time"
)

const (
	// BucketOffset approximates the channel's local clock as a fixed UTC+05:30.
	// It is not a timezone conversion: no DST or zone database is consulted.
	BucketOffset = 5*time.Hour + 30*time.Minute
	// RecentDays is the number of distinct upload days kept in a snapshot.
	RecentDays = 2
)

var bucketZone = time.FixedZone("UTC+05:30", int(BucketOffset/time.Second))

// Curate merges fresh candidates into the previous snapshot and returns the
// next one: deduplicated by ID (later entries win), newest first, limited to
// the RecentDays most recent upload days.
func Curate(previous, candidates []Episode) []Episode {
	merged := make([]Episode, 0, len(previous)+len(candidates))
	merged = append(merged, previous...)
	merged = append(merged, candidates...)

	deduped := Dedupe(merged)
	SortNewestFirst(deduped)
	return LimitDays(deduped, RecentDays)
}

// Dedupe keeps one episode per ID. The position of the first occurrence is
// kept, the fields of the last occurrence win.
func Dedupe(episodes []Episode) []Episode {
	index := make(map[string]int, len(episodes))
	out := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if i, ok := index[ep.ID]; ok {
			out[i] = ep
			continue
		}
		index[ep.ID] = len(out)
		out = append(out, ep)
	}
	return out
}

// SortNewestFirst orders episodes by PublishedAt descending. Ties keep their order.
func SortNewestFirst(episodes []Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].PublishedAt.After(episodes[j].PublishedAt)
	})
}

// BucketDate is the calendar day an episode falls on in the shifted clock.
func BucketDate(ep Episode) string {
	return ep.PublishedAt.In(bucketZone).Format(time.DateOnly)
}

// LimitDays keeps the episodes whose bucket date is one of the first n
// distinct dates seen in order. Input is expected newest first.
func LimitDays(episodes []Episode, n int) []Episode {
	keep := make(map[string]struct{}, n)
	for _, ep := range episodes {
		if len(keep) == n {
			break
		}
		keep[BucketDate(ep)] = struct{}{}
	}

	out := make([]Episode, 0, len(episodes))
	for _, ep := range episodes {
		if _, ok := keep[BucketDate(ep)]; ok {
			out = append(out, ep)
		}
	}
	return out
}
