package event

import (
	"fmt"
	"path"
	"time"
)

// MediaCategory identifies which subscription toggle an artifact belongs to.
type MediaCategory string

const (
	CategorySnapshot  MediaCategory = "snapshot"
	CategoryRecording MediaCategory = "recording"
)

// StateChange is a parsed broker message toggling a category on or off.
type StateChange struct {
	Category MediaCategory
	Enabled  bool
}

// SourceHint carries everything an ArtifactSource needs to produce the
// artifact bytes. Snapshots arrive inline on the broker message; recording
// clips are fetched from the controller API by camera and time window.
type SourceHint struct {
	Camera    string
	Object    string
	Inline    []byte
	ClipStart float64
	ClipEnd   float64
}

// ArtifactEvent announces that a new artifact is available. It is immutable
// once parsed and consumed exactly once by the router.
type ArtifactEvent struct {
	Category  MediaCategory
	ID        string
	Timestamp time.Time
	Hint      SourceHint
}

// FileName returns the artifact's file name at a destination.
func (e ArtifactEvent) FileName() string {
	ext := ".bin"
	switch e.Category {
	case CategorySnapshot:
		ext = ".jpg"
	case CategoryRecording:
		ext = ".mp4"
	}
	return fmt.Sprintf("%s%s", e.ID, ext)
}

// RelPath returns the slash-separated upload path relative to a destination
// root: <category>/<date>/<file>.
func (e ArtifactEvent) RelPath() string {
	return path.Join(string(e.Category), e.Timestamp.Format("2006-01-02"), e.FileName())
}
