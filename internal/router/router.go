// Package router makes the dispatch decision for incoming artifact events:
// drop them when their category is disabled, otherwise fetch the payload and
// hand a ready upload task to the orchestrator.
package router

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/destination"
	"github.com/your-org/videosync/internal/event"
	"github.com/your-org/videosync/internal/source"
	"github.com/your-org/videosync/internal/state"
	"github.com/your-org/videosync/internal/uploader"
)

// Decision is the outcome of routing one artifact event.
type Decision string

const (
	// Dispatch means the payload was fetched and an upload task built.
	Dispatch Decision = "dispatch"
	// IgnoreDisabled means the event's category is currently disabled.
	// The artifact is discarded, not queued: ignoring is not a failure.
	IgnoreDisabled Decision = "ignore_disabled"
	// IgnoreFetchFailed means payload retrieval failed. The controller is
	// the system of record and its retention may expire the artifact, so
	// there is no fetch retry; the event is dropped for this occurrence.
	IgnoreFetchFailed Decision = "ignore_fetch_failed"
)

// Router decides whether an artifact event becomes an upload task.
type Router struct {
	tracker      *state.Tracker
	source       source.Source
	destinations []destination.Destination
	logger       *zap.Logger
}

func New(tracker *state.Tracker, src source.Source, destinations []destination.Destination, logger *zap.Logger) *Router {
	return &Router{
		tracker:      tracker,
		source:       src,
		destinations: destinations,
		logger:       logger,
	}
}

// Route returns a non-nil task exactly when the decision is Dispatch.
func (r *Router) Route(ctx context.Context, ev event.ArtifactEvent) (*uploader.Task, Decision) {
	if !r.tracker.Enabled(ev.Category) {
		r.logger.Debug("ignoring artifact, category disabled",
			zap.String("category", string(ev.Category)),
			zap.String("artifact_id", ev.ID),
		)
		return nil, IgnoreDisabled
	}

	payload, err := r.source.Fetch(ctx, ev.Hint)
	if err != nil {
		r.logger.Warn("artifact payload fetch failed, dropping event",
			zap.String("category", string(ev.Category)),
			zap.String("artifact_id", ev.ID),
			zap.Error(err),
		)
		return nil, IgnoreFetchFailed
	}

	return &uploader.Task{
		WorkflowID:   uuid.NewString(),
		Event:        ev,
		RelPath:      ev.RelPath(),
		Payload:      payload,
		Destinations: r.destinations,
	}, Dispatch
}
