package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/your-org/videosync/internal/uploader"
	"github.com/your-org/videosync/pkg/kafka"
)

// OutcomeEvent is the JSON shape published for every terminal
// (task, destination) outcome.
type OutcomeEvent struct {
	WorkflowID  string    `json:"workflow_id"`
	ArtifactID  string    `json:"artifact_id"`
	Category    string    `json:"category"`
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// KafkaOutcomes publishes outcome events through the shared producer.
type KafkaOutcomes struct {
	producer *kafka.Producer
}

func NewKafkaOutcomes(producer *kafka.Producer) *KafkaOutcomes {
	return &KafkaOutcomes{producer: producer}
}

func (s *KafkaOutcomes) Publish(ctx context.Context, task *uploader.Task, outcomes map[string]uploader.Outcome) error {
	for destID, out := range outcomes {
		ev := OutcomeEvent{
			WorkflowID:  task.WorkflowID,
			ArtifactID:  task.Event.ID,
			Category:    string(task.Event.Category),
			Destination: destID,
			Status:      string(out.Status),
			Attempts:    out.Attempts,
			FailureKind: string(out.FailureKind),
			CompletedAt: time.Now().UTC(),
		}
		if out.Err != nil {
			ev.Error = out.Err.Error()
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal outcome event: %w", err)
		}
		headers := map[string]string{
			"event_type":  "upload.outcome",
			"artifact_id": task.Event.ID,
		}
		if err := s.producer.Publish(ctx, []byte(task.Event.ID), payload, headers); err != nil {
			return fmt.Errorf("publish outcome event: %w", err)
		}
	}
	return nil
}
