package uploader

import (
	"github.com/your-org/videosync/internal/destination"
	"github.com/your-org/videosync/internal/event"
)

// Task is one dispatched artifact bound to the full destination list. The
// payload is held in memory so every destination can read it independently.
type Task struct {
	WorkflowID   string
	Event        event.ArtifactEvent
	RelPath      string
	Payload      []byte
	Destinations []destination.Destination
}

// Status is the terminal state of one (task, destination) pair.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome reports how an upload to a single destination ended.
type Outcome struct {
	Status   Status
	Attempts int
	// FailureKind and Err are set only when Status is StatusFailed.
	FailureKind destination.ErrorKind
	Err         error
}
