package mqtt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/videosync/internal/event"
)

// Parsed is the result of interpreting one broker message. At most one field
// is set; both nil means the topic carried nothing the engine cares about.
type Parsed struct {
	StateChange *event.StateChange
	Artifact    *event.ArtifactEvent
}

// Parse interprets a controller topic. Recognized shapes:
//
//	<prefix>/<camera>/snapshots/state    payload ON|OFF
//	<prefix>/<camera>/recordings/state   payload ON|OFF
//	<prefix>/<camera>/<object>/snapshot  payload JPEG bytes
//	<prefix>/reviews                     payload review JSON
//
// Everything else is ignored.
func Parse(prefix, topic string, payload []byte, now time.Time) (Parsed, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 || parts[0] != prefix {
		return Parsed{}, false
	}

	if sc, ok := parseStateChange(parts, payload); ok {
		return Parsed{StateChange: sc}, true
	}
	if ev, ok := parseSnapshot(parts, payload, now); ok {
		return Parsed{Artifact: ev}, true
	}
	if ev, ok := parseReview(parts, payload); ok {
		return Parsed{Artifact: ev}, true
	}
	return Parsed{}, false
}

func parseStateChange(parts []string, payload []byte) (*event.StateChange, bool) {
	if len(parts) != 4 || parts[3] != "state" {
		return nil, false
	}
	var category event.MediaCategory
	switch parts[2] {
	case "snapshots":
		category = event.CategorySnapshot
	case "recordings":
		category = event.CategoryRecording
	default:
		return nil, false
	}
	switch strings.TrimSpace(string(payload)) {
	case "ON":
		return &event.StateChange{Category: category, Enabled: true}, true
	case "OFF":
		return &event.StateChange{Category: category, Enabled: false}, true
	}
	return nil, false
}

func parseSnapshot(parts []string, payload []byte, now time.Time) (*event.ArtifactEvent, bool) {
	if len(parts) != 4 || parts[3] != "snapshot" {
		return nil, false
	}
	// SOI marker check instead of a full decode: the engine never
	// transforms artifacts, it only moves bytes.
	if len(payload) < 2 || payload[0] != 0xff || payload[1] != 0xd8 {
		return nil, false
	}
	camera, object := parts[1], parts[2]
	return &event.ArtifactEvent{
		Category: event.CategorySnapshot,
		// The payload digest keys the identifier so a redelivered message
		// maps to the same artifact and dedups downstream.
		ID:        fmt.Sprintf("%s-%s-%s", camera, object, payloadDigest(payload)),
		Timestamp: now,
		Hint: event.SourceHint{
			Camera: camera,
			Object: object,
			Inline: payload,
		},
	}, true
}

type reviewPayload struct {
	Type  string        `json:"type"`
	After reviewSegment `json:"after"`
}

type reviewSegment struct {
	ID        string   `json:"id"`
	Camera    string   `json:"camera"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Severity  string   `json:"severity"`
}

func parseReview(parts []string, payload []byte) (*event.ArtifactEvent, bool) {
	if len(parts) != 2 || parts[1] != "reviews" {
		return nil, false
	}
	var review reviewPayload
	if err := json.Unmarshal(payload, &review); err != nil {
		return nil, false
	}
	// A review becomes an artifact only once it ends and the clip window
	// is complete; new/update messages announce work in progress.
	if review.Type != "end" || review.After.EndTime == nil {
		return nil, false
	}
	end := *review.After.EndTime
	return &event.ArtifactEvent{
		Category:  event.CategoryRecording,
		ID:        review.After.ID,
		Timestamp: time.Unix(int64(end), 0),
		Hint: event.SourceHint{
			Camera:    review.After.Camera,
			ClipStart: review.After.StartTime,
			ClipEnd:   end,
		},
	}, true
}

func payloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:6])
}
