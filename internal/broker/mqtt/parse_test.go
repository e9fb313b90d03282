package mqtt

import (
	"testing"
	"time"

	"github.com/your-org/videosync/internal/event"
)

var now = time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)

func jpegPayload(extra string) []byte {
	return append([]byte{0xff, 0xd8, 0xff, 0xe0}, []byte(extra)...)
}

func TestParseStateChange(t *testing.T) {
	cases := []struct {
		topic   string
		payload string
		want    event.StateChange
	}{
		{"frigate/front_door/snapshots/state", "ON", event.StateChange{Category: event.CategorySnapshot, Enabled: true}},
		{"frigate/front_door/snapshots/state", "OFF", event.StateChange{Category: event.CategorySnapshot, Enabled: false}},
		{"frigate/garage/recordings/state", "ON", event.StateChange{Category: event.CategoryRecording, Enabled: true}},
		{"frigate/garage/recordings/state", "OFF", event.StateChange{Category: event.CategoryRecording, Enabled: false}},
	}
	for _, tc := range cases {
		parsed, ok := Parse("frigate", tc.topic, []byte(tc.payload), now)
		if !ok || parsed.StateChange == nil {
			t.Fatalf("Parse(%q, %q) did not yield a state change", tc.topic, tc.payload)
		}
		if *parsed.StateChange != tc.want {
			t.Fatalf("Parse(%q, %q) = %+v, want %+v", tc.topic, tc.payload, *parsed.StateChange, tc.want)
		}
	}
}

func TestParseStateChangeRejectsGarbagePayload(t *testing.T) {
	if _, ok := Parse("frigate", "frigate/cam/snapshots/state", []byte("maybe"), now); ok {
		t.Fatal("non ON/OFF payload must be ignored")
	}
}

func TestParseSnapshot(t *testing.T) {
	payload := jpegPayload("image-data")
	parsed, ok := Parse("frigate", "frigate/front_door/person/snapshot", payload, now)
	if !ok || parsed.Artifact == nil {
		t.Fatal("snapshot topic did not yield an artifact")
	}
	ev := parsed.Artifact
	if ev.Category != event.CategorySnapshot {
		t.Fatalf("category = %v", ev.Category)
	}
	if ev.Hint.Camera != "front_door" || ev.Hint.Object != "person" {
		t.Fatalf("hint = %+v", ev.Hint)
	}
	if len(ev.Hint.Inline) != len(payload) {
		t.Fatal("inline payload must carry the message bytes")
	}
	if ev.Timestamp != now {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestParseSnapshotIDIsStableAcrossRedelivery(t *testing.T) {
	payload := jpegPayload("same-bytes")
	first, _ := Parse("frigate", "frigate/cam/person/snapshot", payload, now)
	second, _ := Parse("frigate", "frigate/cam/person/snapshot", payload, now.Add(time.Minute))
	if first.Artifact.ID != second.Artifact.ID {
		t.Fatalf("redelivered snapshot IDs differ: %q vs %q", first.Artifact.ID, second.Artifact.ID)
	}

	other, _ := Parse("frigate", "frigate/cam/person/snapshot", jpegPayload("other-bytes"), now)
	if first.Artifact.ID == other.Artifact.ID {
		t.Fatal("different payloads must yield different IDs")
	}
}

func TestParseSnapshotRejectsNonJPEG(t *testing.T) {
	if _, ok := Parse("frigate", "frigate/cam/person/snapshot", []byte("not a jpeg"), now); ok {
		t.Fatal("payload without SOI marker must be ignored")
	}
}

const reviewEndJSON = `{
  "type": "end",
  "before": {"id": "1745534741.333822-vsz5s4", "camera": "CameraLabel", "start_time": 1745534741.333822, "end_time": null, "severity": "alert", "thumb_path": "/clips/thumb.webp", "data": {}},
  "after": {"id": "1745534741.333822-vsz5s4", "camera": "CameraLabel", "start_time": 1745534741.333822, "end_time": 1745534801.5, "severity": "alert", "thumb_path": "/clips/thumb.webp", "data": {}}
}`

func TestParseReviewEnd(t *testing.T) {
	parsed, ok := Parse("frigate", "frigate/reviews", []byte(reviewEndJSON), now)
	if !ok || parsed.Artifact == nil {
		t.Fatal("ended review did not yield an artifact")
	}
	ev := parsed.Artifact
	if ev.Category != event.CategoryRecording {
		t.Fatalf("category = %v", ev.Category)
	}
	if ev.ID != "1745534741.333822-vsz5s4" {
		t.Fatalf("id = %q", ev.ID)
	}
	if ev.Hint.Camera != "CameraLabel" {
		t.Fatalf("camera = %q", ev.Hint.Camera)
	}
	if ev.Hint.ClipStart != 1745534741.333822 || ev.Hint.ClipEnd != 1745534801.5 {
		t.Fatalf("clip window = [%v, %v]", ev.Hint.ClipStart, ev.Hint.ClipEnd)
	}
}

func TestParseReviewInProgressIsIgnored(t *testing.T) {
	for _, typ := range []string{"new", "update"} {
		payload := `{"type": "` + typ + `", "after": {"id": "x", "camera": "c", "start_time": 1, "end_time": null}}`
		if _, ok := Parse("frigate", "frigate/reviews", []byte(payload), now); ok {
			t.Fatalf("review type %q must not dispatch", typ)
		}
	}
}

func TestParseIgnoresForeignTopics(t *testing.T) {
	cases := []struct {
		topic   string
		payload string
	}{
		{"other/cam/snapshots/state", "ON"},
		{"frigate/stats", `{}`},
		{"frigate/cam/person", "x"},
		{"frigate/reviews", "not json"},
	}
	for _, tc := range cases {
		if _, ok := Parse("frigate", tc.topic, []byte(tc.payload), now); ok {
			t.Fatalf("topic %q must be ignored", tc.topic)
		}
	}
}
