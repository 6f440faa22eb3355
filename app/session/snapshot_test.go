package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFilterEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Filter
		equal bool
	}{
		{"identical unscoped", Filter{Mode: FilterModeAll}, Filter{Mode: FilterModeAll}, true},
		{"different mode", Filter{Mode: FilterModeAll}, Filter{Mode: FilterModeUnread}, false},
		{"different feed", Filter{Mode: FilterModeAll, FeedID: "a"}, Filter{Mode: FilterModeAll, FeedID: "b"}, false},
		{"feed vs tag", Filter{Mode: FilterModeAll, FeedID: "a"}, Filter{Mode: FilterModeAll, TagID: "a"}, false},
		{"identical scoped", Filter{Mode: FilterModeUnread, TagID: "tech"}, Filter{Mode: FilterModeUnread, TagID: "tech"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Expected Equal=%v, got: %v", tt.equal, got)
			}
		})
	}
}

func TestSnapshotJSONContract(t *testing.T) {
	snapshot := Snapshot{
		FilterMode:         FilterModeUnread,
		FeedID:             "feed-1",
		ManualReadArticles: []string{"a"},
		AutoReadArticles:   []string{},
		ScrollPosition:     412.5,
		Timestamp:          1700000000000,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, key := range []string{"filterMode", "feedId", "manualReadArticles", "autoReadArticles", "scrollPosition", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected field %q in encoded snapshot", key)
		}
	}
	if _, ok := fields["tagId"]; ok {
		t.Error("Expected empty tagId to be omitted")
	}
	if fields["filterMode"] != "unread" {
		t.Errorf("Expected filterMode 'unread', got: %v", fields["filterMode"])
	}
}

func TestSnapshotAge(t *testing.T) {
	now := time.Now()
	snapshot := Snapshot{Timestamp: now.Add(-5 * time.Minute).UnixMilli()}

	age := snapshot.Age(now)
	if age < 5*time.Minute-time.Millisecond || age > 5*time.Minute+time.Millisecond {
		t.Errorf("Expected age of 5 minutes, got: %v", age)
	}
}
