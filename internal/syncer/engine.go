// Package syncer hosts the event-driven synchronization engine: it consumes
// parsed broker messages, keeps subscription state current, and spawns an
// independent upload workflow per dispatched artifact.
package syncer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/event"
	"github.com/your-org/videosync/internal/router"
	"github.com/your-org/videosync/internal/state"
	"github.com/your-org/videosync/internal/uploader"
)

// OutcomeSink receives terminal outcomes for external observability. Sink
// errors are logged, never escalated.
type OutcomeSink interface {
	Publish(ctx context.Context, task *uploader.Task, outcomes map[string]uploader.Outcome) error
}

// Params wires the engine's collaborators.
type Params struct {
	Tracker      *state.Tracker
	Router       *router.Router
	Orchestrator *uploader.Orchestrator
	Outcomes     OutcomeSink
	Logger       *zap.Logger
}

// Engine implements the broker adapter's Sink. Workflows for different
// artifacts run fully in parallel; the only ordering guarantee is that each
// workflow reaches a terminal outcome per destination.
type Engine struct {
	tracker      *state.Tracker
	router       *router.Router
	orchestrator *uploader.Orchestrator
	outcomes     OutcomeSink
	logger       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	inFlight atomic.Int64
	closed   atomic.Bool
}

func New(p Params) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tracker:      p.Tracker,
		router:       p.Router,
		orchestrator: p.Orchestrator,
		outcomes:     p.Outcomes,
		logger:       p.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// ApplyStateChange updates the subscription tracker.
func (e *Engine) ApplyStateChange(sc event.StateChange) {
	e.tracker.Apply(sc.Category, sc.Enabled)
}

// Submit starts a workflow for the artifact event and returns immediately;
// payload fetch and uploads never block the ingestion path. Events submitted
// after Close begins are dropped.
func (e *Engine) Submit(ev event.ArtifactEvent) {
	if e.closed.Load() {
		e.logger.Debug("engine draining, dropping event", zap.String("artifact_id", ev.ID))
		return
	}
	e.wg.Add(1)
	go e.process(ev)
}

// InFlight reports the number of running workflows, for the status endpoint.
func (e *Engine) InFlight() int64 {
	return e.inFlight.Load()
}

func (e *Engine) process(ev event.ArtifactEvent) {
	defer e.wg.Done()
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	task, decision := e.router.Route(e.ctx, ev)
	if decision != router.Dispatch {
		return
	}

	outcomes := e.orchestrator.Run(e.ctx, task)

	succeeded, failed, skipped := 0, 0, 0
	for _, out := range outcomes {
		switch out.Status {
		case uploader.StatusSuccess:
			succeeded++
		case uploader.StatusFailed:
			failed++
		case uploader.StatusSkipped:
			skipped++
		}
	}
	e.logger.Info("upload workflow finished",
		zap.String("workflow_id", task.WorkflowID),
		zap.String("artifact_id", ev.ID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
	)

	if e.outcomes != nil {
		if err := e.outcomes.Publish(e.ctx, task, outcomes); err != nil {
			e.logger.Warn("publishing outcomes failed",
				zap.String("workflow_id", task.WorkflowID),
				zap.Error(err),
			)
		}
	}
}

// Close drains the engine: no new workflows are accepted, in-flight ones get
// until ctx's deadline to finish, then their contexts are cancelled and the
// engine waits for them to unwind. Destinations abort cleanly on cancel, so
// no partial artifact is left visible.
func (e *Engine) Close(ctx context.Context) error {
	e.closed.Store(true)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("grace period expired, cancelling in-flight uploads",
			zap.Int64("in_flight", e.InFlight()))
		e.cancel()
		<-done
	}
	e.cancel()
	return nil
}
