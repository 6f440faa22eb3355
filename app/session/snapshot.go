package session

import (
	"sort"
	"time"
)

// SnapshotKey is the single well-known key under which the article list
// state is persisted. No other code path reads or writes it directly.
const SnapshotKey = "articleListState"

type FilterMode string

const (
	FilterModeAll    FilterMode = "all"
	FilterModeUnread FilterMode = "unread"
)

// Filter identifies one article list view. FeedID and TagID are mutually
// exclusive; both empty means the unscoped list.
type Filter struct {
	Mode   FilterMode
	FeedID string
	TagID  string
}

func (f Filter) Equal(other Filter) bool {
	return f.Mode == other.Mode && f.FeedID == other.FeedID && f.TagID == other.TagID
}

// Snapshot is the persisted article list state. Field names are fixed by
// the session storage contract consumed by the UI.
type Snapshot struct {
	FilterMode         FilterMode `json:"filterMode"`
	FeedID             string     `json:"feedId,omitempty"`
	TagID              string     `json:"tagId,omitempty"`
	ManualReadArticles []string   `json:"manualReadArticles"`
	AutoReadArticles   []string   `json:"autoReadArticles"`
	ScrollPosition     float64    `json:"scrollPosition"`
	Timestamp          int64      `json:"timestamp"` // unix milliseconds
}

func (s *Snapshot) Filter() Filter {
	return Filter{Mode: s.FilterMode, FeedID: s.FeedID, TagID: s.TagID}
}

func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}

func setToSorted(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sliceToSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
