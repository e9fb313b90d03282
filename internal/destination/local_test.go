package destination

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestLocal(t *testing.T, overwrite bool) (*localSink, string) {
	t.Helper()
	root := t.TempDir()
	d, err := ParseDescriptor(root)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	return newLocal(d, overwrite, zap.NewNop()), root
}

func TestLocalUploadCreatesNestedDirs(t *testing.T) {
	sink, root := newTestLocal(t, true)

	payload := []byte("jpeg bytes")
	err := sink.Upload(context.Background(), "snapshot/2026-08-26/front-person-abc.jpg", bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "snapshot", "2026-08-26", "front-person-abc.jpg"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("file content mismatch: %q", got)
	}
}

func TestLocalUploadLeavesNoPartialFiles(t *testing.T) {
	sink, root := newTestLocal(t, true)

	payload := []byte("data")
	if err := sink.Upload(context.Background(), "a/b.bin", bytes.NewReader(payload), 4); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".partial-") {
			t.Fatalf("staging file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the final file, got %d entries", len(entries))
	}
}

func TestLocalUploadOverwrites(t *testing.T) {
	sink, root := newTestLocal(t, true)

	ctx := context.Background()
	if err := sink.Upload(ctx, "f.bin", strings.NewReader("old"), 3); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := sink.Upload(ctx, "f.bin", strings.NewReader("new"), 3); err != nil {
		t.Fatalf("second upload: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(root, "f.bin"))
	if string(got) != "new" {
		t.Fatalf("content = %q, want overwritten", got)
	}
}

func TestLocalNoOverwriteIdenticalContentSucceeds(t *testing.T) {
	sink, _ := newTestLocal(t, false)

	ctx := context.Background()
	if err := sink.Upload(ctx, "f.bin", strings.NewReader("same"), 4); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := sink.Upload(ctx, "f.bin", strings.NewReader("same"), 4); err != nil {
		t.Fatalf("re-upload of identical content should succeed: %v", err)
	}
}

func TestLocalNoOverwriteMismatchIsTerminal(t *testing.T) {
	sink, _ := newTestLocal(t, false)

	ctx := context.Background()
	if err := sink.Upload(ctx, "f.bin", strings.NewReader("one"), 3); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	err := sink.Upload(ctx, "f.bin", strings.NewReader("two"), 3)
	if err == nil {
		t.Fatal("conflicting upload should fail")
	}
	if kind, ok := KindOf(err); !ok || kind != ErrTerminal {
		t.Fatalf("kind = %v, want terminal", kind)
	}
}

func TestLocalProbe(t *testing.T) {
	sink, root := newTestLocal(t, true)
	if err := sink.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("probe should have ensured the root exists: %v", err)
	}
}
