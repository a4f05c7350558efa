package presence

import (
	"sync"
	"time"
)

// Tracker answers whether a user is currently active in the app. An active
// user never receives push, mentions included; the in-app surface is assumed
// to show them the event directly.
type Tracker interface {
	IsActive(userID string) bool
}

// MemoryTracker keeps last-seen timestamps fed by the heartbeat endpoint and
// the socket layer. A user counts as active while their last heartbeat is
// within the configured window.
type MemoryTracker struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
	window   time.Duration
	now      func() time.Time
}

const DefaultActiveWindow = 2 * time.Minute

func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultActiveWindow
	}
	return &MemoryTracker{
		lastSeen: make(map[string]time.Time),
		window:   window,
		now:      time.Now,
	}
}

// Touch records user activity.
func (t *MemoryTracker) Touch(userID string) {
	t.mu.Lock()
	t.lastSeen[userID] = t.now()
	t.mu.Unlock()
}

// Forget drops a user's presence, used when their last socket disconnects.
func (t *MemoryTracker) Forget(userID string) {
	t.mu.Lock()
	delete(t.lastSeen, userID)
	t.mu.Unlock()
}

func (t *MemoryTracker) IsActive(userID string) bool {
	t.mu.RLock()
	seen, ok := t.lastSeen[userID]
	t.mu.RUnlock()
	return ok && t.now().Sub(seen) < t.window
}

// SetClock overrides the time source for tests.
func (t *MemoryTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}
