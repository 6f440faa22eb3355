package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Options struct {
	// DwellThreshold is the minimum viewport dwell time before a scrolled-past
	// article counts as read.
	DwellThreshold time.Duration
	// TTL bounds how long a persisted snapshot stays applicable.
	TTL time.Duration
	// ScrollThrottle is the minimum interval between scroll-only persists.
	ScrollThrottle time.Duration
}

// Tracker reconciles the article list's read/unread presentation state
// across list -> detail -> back navigation. It owns the persisted snapshot;
// the server's stored read flags stay authoritative for everything else.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	fallback Store // non-nil once the persistent store stopped accepting writes

	filter Filter
	manual map[string]struct{}
	auto   map[string]struct{}
	scroll float64

	dwellThreshold time.Duration
	ttl            time.Duration
	scrollThrottle time.Duration
	lastScrollSave time.Time

	now func() time.Time
}

func NewTracker(store Store, opts Options) *Tracker {
	return &Tracker{
		store:          store,
		filter:         Filter{Mode: FilterModeAll},
		manual:         make(map[string]struct{}),
		auto:           make(map[string]struct{}),
		dwellThreshold: opts.DwellThreshold,
		ttl:            opts.TTL,
		scrollThrottle: opts.ScrollThrottle,
		now:            time.Now,
	}
}

// RecordManualRead tracks an article the user explicitly marked read.
// Repeated calls are no-ops after the first.
func (t *Tracker) RecordManualRead(articleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.manual[articleID]; ok {
		return
	}

	t.manual[articleID] = struct{}{}
	t.persist()
}

// RecordAutoRead tracks an article that dwelled in the viewport while
// scrolling. It reports whether the dwell time reached the threshold and
// the read was committed; shorter dwells are rapid scroll-through and are
// ignored.
func (t *Tracker) RecordAutoRead(articleID string, dwellTime time.Duration, scrollPosition float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dwellTime < t.dwellThreshold {
		slog.Debug("Dwell below threshold, auto-read not committed",
			"article_id", articleID, "dwell", dwellTime, "threshold", t.dwellThreshold)
		return false
	}

	t.scroll = scrollPosition
	if _, ok := t.auto[articleID]; ok {
		return true
	}

	t.auto[articleID] = struct{}{}
	t.persist()
	return true
}

// RecordUnread reverts an article to its pre-read baseline, removing it
// from both tracked sets. The currently rendered list membership is left
// alone so the article does not vanish mid-session.
func (t *Tracker) RecordUnread(articleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, inManual := t.manual[articleID]
	_, inAuto := t.auto[articleID]
	if !inManual && !inAuto {
		return
	}

	delete(t.manual, articleID)
	delete(t.auto, articleID)
	t.persist()
}

// RecordScroll updates the tracked scroll offset. Persists are throttled so
// scroll storms do not hammer the store; the in-memory offset is always
// current.
func (t *Tracker) RecordScroll(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.scroll = position

	now := t.now()
	if now.Sub(t.lastScrollSave) < t.scrollThrottle {
		return
	}
	t.lastScrollSave = now
	t.persist()
}

// SessionRead reports whether the article was read during this session,
// through either path. The union drives the "session-preserved read"
// styling and unread-mode visibility.
func (t *Tracker) SessionRead(articleID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.manual[articleID]; ok {
		return true
	}
	_, ok := t.auto[articleID]
	return ok
}

// ReadSet returns a copy of the union of both tracked read sets.
func (t *Tracker) ReadSet() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := make(map[string]struct{}, len(t.manual)+len(t.auto))
	for id := range t.manual {
		set[id] = struct{}{}
	}
	for id := range t.auto {
		set[id] = struct{}{}
	}
	return set
}

func (t *Tracker) Filter() Filter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// OnFilterChange switches the tracker to a new list view. Re-selecting the
// same filter is a no-op. A genuine change clears the auto-read set and
// keeps only the manual reads that belong to the new view, so tracking
// stays bounded by the visible list.
func (t *Tracker) OnFilterChange(filter Filter, memberIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.filter.Equal(filter) {
		return
	}

	members := sliceToSet(memberIDs)
	for id := range t.manual {
		if _, ok := members[id]; !ok {
			delete(t.manual, id)
		}
	}

	t.auto = make(map[string]struct{})
	t.scroll = 0
	t.filter = filter
	t.persist()
}

// CaptureSnapshot serializes the current state.
func (t *Tracker) CaptureSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		FilterMode:         t.filter.Mode,
		FeedID:             t.filter.FeedID,
		TagID:              t.filter.TagID,
		ManualReadArticles: setToSorted(t.manual),
		AutoReadArticles:   setToSorted(t.auto),
		ScrollPosition:     t.scroll,
		Timestamp:          t.now().UnixMilli(),
	}
}

// RestoreSnapshot loads the persisted snapshot and applies it when it is
// fresh and matches the current navigation context. A stale or mismatched
// snapshot is discarded, never applied; absence of state is the normal
// first-mount branch, not an error.
func (t *Tracker) RestoreSnapshot(current Filter) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok, err := t.activeStore().GetItem(SnapshotKey)
	if err != nil {
		slog.Warn("Failed to read session snapshot", "error", err)
		return false
	}
	if !ok {
		return false
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(value), &snapshot); err != nil {
		slog.Warn("Discarding malformed session snapshot", "error", err)
		t.discardLocked()
		return false
	}

	if snapshot.Age(t.now()) > t.ttl {
		slog.Debug("Discarding expired session snapshot", "age", snapshot.Age(t.now()))
		t.discardLocked()
		return false
	}

	if !snapshot.Filter().Equal(current) {
		slog.Debug("Discarding session snapshot for different view",
			"snapshot_mode", snapshot.FilterMode, "current_mode", current.Mode)
		t.discardLocked()
		return false
	}

	t.filter = current
	t.manual = sliceToSet(snapshot.ManualReadArticles)
	t.auto = sliceToSet(snapshot.AutoReadArticles)
	t.scroll = snapshot.ScrollPosition
	return true
}

func (t *Tracker) discardLocked() {
	if err := t.activeStore().RemoveItem(SnapshotKey); err != nil {
		slog.Warn("Failed to discard session snapshot", "error", err)
	}
}

func (t *Tracker) activeStore() Store {
	if t.fallback != nil {
		return t.fallback
	}
	return t.store
}

// persist writes the snapshot through the active store. A write failure is
// retried once with the minimal essential payload (read sets plus filter
// identity); if that fails too the tracker switches to an in-memory store
// for the rest of the session. Loss of persistence is never surfaced as an
// error: the UI falls back to server truth on the next fetch.
func (t *Tracker) persist() {
	snapshot := t.snapshotLocked()

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to encode session snapshot", "error", err)
		return
	}

	err = t.activeStore().SetItem(SnapshotKey, string(data))
	if err == nil {
		return
	}
	slog.Warn("Failed to persist session snapshot, retrying with reduced payload", "error", err)

	snapshot.ScrollPosition = 0
	data, err = json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to encode reduced session snapshot", "error", err)
		return
	}

	if err := t.activeStore().SetItem(SnapshotKey, string(data)); err != nil {
		slog.Warn("Session store unavailable, keeping state in memory only", "error", err)
		t.fallback = NewMemoryStore()
		if err := t.fallback.SetItem(SnapshotKey, string(data)); err != nil {
			slog.Error("Failed to write in-memory session snapshot", "error", err)
		}
	}
}
