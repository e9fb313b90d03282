// Package dedup suppresses redundant delivery of an artifact that was
// already uploaded to a given destination during this process lifetime.
// Nothing is persisted: after a restart every artifact is fair game again,
// which is acceptable because destinations treat re-upload as overwrite.
package dedup

import "sync"

type key struct {
	destination string
	artifact    string
}

// Guard is a concurrency-safe set of (destination, artifact) pairs that have
// been confirmed delivered.
type Guard struct {
	mu   sync.Mutex
	seen map[key]struct{}
}

func NewGuard() *Guard {
	return &Guard{seen: make(map[key]struct{})}
}

// Delivered reports whether the artifact was already delivered to the
// destination.
func (g *Guard) Delivered(destinationID, artifactID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[key{destinationID, artifactID}]
	return ok
}

// Record marks the pair as delivered. Recording the same pair twice is a
// no-op.
func (g *Guard) Record(destinationID, artifactID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[key{destinationID, artifactID}] = struct{}{}
}

// Len returns the number of recorded deliveries.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
