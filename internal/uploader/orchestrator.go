// Package uploader fans a dispatched artifact out to every configured
// destination. Destinations are independent failure domains: each gets its
// own goroutine, its own backoff schedule, and its own terminal outcome. A
// destination that is down never delays or fails the others.
package uploader

import (
	"bytes"
	"context"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/dedup"
	"github.com/your-org/videosync/internal/destination"
)

// RetryPolicy bounds the per-destination retry loop. Attempts counts the
// first try, so MaxAttempts=4 means one try plus three retries.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// Orchestrator runs upload tasks to completion.
type Orchestrator struct {
	guard        *dedup.Guard
	policy       RetryPolicy
	buildBackoff func() backoff.BackOff
	logger       *zap.Logger
	tracer       trace.Tracer
}

// New constructs an Orchestrator. A nil factory uses the policy's
// exponential backoff; tests inject a constant one.
func New(guard *dedup.Guard, policy RetryPolicy, logger *zap.Logger, factory func() backoff.BackOff) *Orchestrator {
	if factory == nil {
		factory = policy.newBackOff
	}
	return &Orchestrator{
		guard:        guard,
		policy:       policy,
		buildBackoff: factory,
		logger:       logger,
		tracer:       otel.Tracer("videosync/uploader"),
	}
}

// Run delivers the task to every destination concurrently and returns only
// once each destination has reached a terminal outcome, keyed by
// destination ID. It never returns partial results.
func (o *Orchestrator) Run(ctx context.Context, task *Task) map[string]Outcome {
	ctx, span := o.tracer.Start(ctx, "uploader.Run",
		trace.WithAttributes(
			attribute.String("artifact.id", task.Event.ID),
			attribute.String("artifact.category", string(task.Event.Category)),
			attribute.Int("destinations", len(task.Destinations)),
		))
	defer span.End()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[string]Outcome, len(task.Destinations))
	)
	for _, dest := range task.Destinations {
		wg.Add(1)
		go func(dest destination.Destination) {
			defer wg.Done()
			out := o.deliver(ctx, task, dest)
			mu.Lock()
			outcomes[dest.ID()] = out
			mu.Unlock()
		}(dest)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) deliver(ctx context.Context, task *Task, dest destination.Destination) Outcome {
	log := o.logger.With(
		zap.String("workflow_id", task.WorkflowID),
		zap.String("artifact_id", task.Event.ID),
		zap.String("destination", dest.ID()),
	)

	if o.guard.Delivered(dest.ID(), task.Event.ID) {
		log.Debug("artifact already delivered, skipping")
		return Outcome{Status: StatusSkipped}
	}

	attempts := 0
	op := func() error {
		attempts++
		err := dest.Upload(ctx, task.RelPath, bytes.NewReader(task.Payload), int64(len(task.Payload)))
		if err == nil {
			return nil
		}
		kind, _ := destination.KindOf(err)
		switch kind {
		case destination.ErrAuth, destination.ErrTerminal:
			// Hammering a dead credential or an unfixable conflict wastes
			// attempts; the next artifact starts fresh.
			return backoff.Permanent(err)
		}
		log.Warn("upload attempt failed",
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(o.buildBackoff(), ctx))
	if err != nil {
		kind, ok := destination.KindOf(err)
		if !ok {
			kind = destination.ErrConnectivity
		}
		log.Error("upload failed permanently",
			zap.Int("attempts", attempts),
			zap.String("failure_kind", string(kind)),
			zap.Error(err),
		)
		return Outcome{Status: StatusFailed, Attempts: attempts, FailureKind: kind, Err: err}
	}

	o.guard.Record(dest.ID(), task.Event.ID)
	log.Info("upload succeeded",
		zap.String("path", task.RelPath),
		zap.Int("attempts", attempts),
		zap.Int("size_bytes", len(task.Payload)),
	)
	return Outcome{Status: StatusSuccess, Attempts: attempts}
}
