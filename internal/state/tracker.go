package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/event"
)

// Tracker maintains the current enabled/disabled state per media category as
// announced by the controller. A category that has never been announced is
// disabled: we never upload anything whose toggle state is unknown.
type Tracker struct {
	mu      sync.RWMutex
	enabled map[event.MediaCategory]bool
	logger  *zap.Logger
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		enabled: make(map[event.MediaCategory]bool),
		logger:  logger,
	}
}

// Apply records a state-change message. Applying the same change twice is a
// no-op.
func (t *Tracker) Apply(category event.MediaCategory, enabled bool) {
	t.mu.Lock()
	prev, seen := t.enabled[category]
	t.enabled[category] = enabled
	t.mu.Unlock()

	if !seen || prev != enabled {
		t.logger.Info("subscription state changed",
			zap.String("category", string(category)),
			zap.Bool("enabled", enabled),
		)
	}
}

// Enabled reports whether artifacts of the given category should be synced.
// It never blocks on anything but the internal lock.
func (t *Tracker) Enabled(category event.MediaCategory) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled[category]
}

// Snapshot returns a copy of the current state, for the status endpoint.
func (t *Tracker) Snapshot() map[event.MediaCategory]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[event.MediaCategory]bool, len(t.enabled))
	for k, v := range t.enabled {
		out[k] = v
	}
	return out
}
