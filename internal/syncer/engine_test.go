package syncer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/dedup"
	"github.com/your-org/videosync/internal/destination"
	"github.com/your-org/videosync/internal/event"
	"github.com/your-org/videosync/internal/router"
	"github.com/your-org/videosync/internal/state"
	"github.com/your-org/videosync/internal/uploader"
)

type recordingDest struct {
	id string

	mu      sync.Mutex
	uploads []string
	block   chan struct{}
}

func (d *recordingDest) ID() string                  { return d.id }
func (d *recordingDest) Kind() destination.Kind      { return destination.KindLocal }
func (d *recordingDest) Probe(context.Context) error { return nil }
func (d *recordingDest) Close() error                { return nil }

func (d *recordingDest) Upload(ctx context.Context, relPath string, r io.Reader, _ int64) error {
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return &destination.TransferError{Kind: destination.ErrConnectivity, Op: "blocked", Err: ctx.Err()}
		}
	}
	io.Copy(io.Discard, r)
	d.mu.Lock()
	d.uploads = append(d.uploads, relPath)
	d.mu.Unlock()
	return nil
}

func (d *recordingDest) uploadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.uploads)
}

type inlineSource struct{}

func (inlineSource) Fetch(_ context.Context, hint event.SourceHint) ([]byte, error) {
	return hint.Inline, nil
}

type memorySink struct {
	mu     sync.Mutex
	events int
}

func (s *memorySink) Publish(_ context.Context, _ *uploader.Task, outcomes map[string]uploader.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events += len(outcomes)
	return nil
}

func newTestEngine(t *testing.T, sink OutcomeSink, dests ...destination.Destination) (*Engine, *state.Tracker, *dedup.Guard) {
	t.Helper()
	logger := zap.NewNop()
	tracker := state.NewTracker(logger)
	guard := dedup.NewGuard()
	orch := uploader.New(guard,
		uploader.RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxAttempts: 2},
		logger,
		func() backoff.BackOff { return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 1) },
	)
	rtr := router.New(tracker, inlineSource{}, dests, logger)
	engine := New(Params{
		Tracker:      tracker,
		Router:       rtr,
		Orchestrator: orch,
		Outcomes:     sink,
		Logger:       logger,
	})
	return engine, tracker, guard
}

func snapshotEvent(id string) event.ArtifactEvent {
	return event.ArtifactEvent{
		Category:  event.CategorySnapshot,
		ID:        id,
		Timestamp: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		Hint:      event.SourceHint{Camera: "front_door", Inline: []byte("jpeg")},
	}
}

func drain(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEngineUploadsEnabledArtifactToAllDestinations(t *testing.T) {
	local := &recordingDest{id: "local"}
	sftp := &recordingDest{id: "sftp"}
	sink := &memorySink{}
	engine, _, _ := newTestEngine(t, sink, local, sftp)

	engine.ApplyStateChange(event.StateChange{Category: event.CategorySnapshot, Enabled: true})
	engine.Submit(snapshotEvent("img-42"))
	drain(t, engine)

	if local.uploadCount() != 1 || sftp.uploadCount() != 1 {
		t.Fatalf("uploads = %d/%d, want 1/1", local.uploadCount(), sftp.uploadCount())
	}
	if sink.events != 2 {
		t.Fatalf("published outcome events = %d, want 2", sink.events)
	}
}

func TestEngineIgnoresDisabledCategory(t *testing.T) {
	local := &recordingDest{id: "local"}
	engine, _, _ := newTestEngine(t, nil, local)

	engine.Submit(snapshotEvent("img-7"))
	drain(t, engine)

	if local.uploadCount() != 0 {
		t.Fatal("disabled category must cause no destination I/O")
	}
}

func TestEngineDedupsDuplicateDelivery(t *testing.T) {
	local := &recordingDest{id: "local"}
	engine, _, guard := newTestEngine(t, nil, local)
	engine.ApplyStateChange(event.StateChange{Category: event.CategorySnapshot, Enabled: true})

	engine.Submit(snapshotEvent("img-42"))
	engine.Submit(snapshotEvent("img-42"))
	drain(t, engine)

	if got := local.uploadCount(); got != 1 {
		t.Fatalf("uploads = %d, want 1 (duplicate skipped)", got)
	}
	if !guard.Delivered("local", "img-42") {
		t.Fatal("delivery should be recorded")
	}
}

func TestEngineDropsEventsAfterCloseBegins(t *testing.T) {
	local := &recordingDest{id: "local"}
	engine, _, _ := newTestEngine(t, nil, local)
	engine.ApplyStateChange(event.StateChange{Category: event.CategorySnapshot, Enabled: true})

	drain(t, engine)
	engine.Submit(snapshotEvent("img-late"))

	// Give a mistakenly spawned workflow a moment to run.
	time.Sleep(20 * time.Millisecond)
	if local.uploadCount() != 0 {
		t.Fatal("events submitted after Close must be dropped")
	}
}

func TestEngineCancelsStuckUploadsAfterGrace(t *testing.T) {
	stuck := &recordingDest{id: "stuck", block: make(chan struct{})}
	engine, _, _ := newTestEngine(t, nil, stuck)
	engine.ApplyStateChange(event.StateChange{Category: event.CategorySnapshot, Enabled: true})

	engine.Submit(snapshotEvent("img-1"))

	// Wait for the workflow to be in flight before draining.
	deadline := time.Now().Add(2 * time.Second)
	for engine.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := engine.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Close took %v, should cancel after the grace period", elapsed)
	}
	if stuck.uploadCount() != 0 {
		t.Fatal("cancelled upload must not be recorded as written")
	}
}
