package destination

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// localSink writes artifacts under a root directory. Files are staged to a
// temporary name in the final directory and renamed into place, so a
// concurrent reader never observes a half-written artifact.
type localSink struct {
	id        string
	root      string
	overwrite bool
	logger    *zap.Logger
}

func newLocal(d Descriptor, overwrite bool, logger *zap.Logger) *localSink {
	return &localSink{
		id:        d.ID,
		root:      d.Root,
		overwrite: overwrite,
		logger:    logger,
	}
}

func (s *localSink) ID() string { return s.id }

func (s *localSink) Kind() Kind { return KindLocal }

func (s *localSink) Upload(ctx context.Context, relPath string, r io.Reader, size int64) error {
	final := filepath.Join(s.root, filepath.FromSlash(relPath))
	dir := filepath.Dir(final)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &TransferError{Kind: ErrConnectivity, Op: "mkdir " + dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(final)+".partial-*")
	if err != nil {
		return &TransferError{Kind: ErrConnectivity, Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	hasher := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(r, hasher)); err != nil {
		cleanup()
		return &TransferError{Kind: ErrConnectivity, Op: "write " + tmpName, Err: err}
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return &TransferError{Kind: ErrConnectivity, Op: "write " + tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &TransferError{Kind: ErrConnectivity, Op: "close " + tmpName, Err: err}
	}

	if !s.overwrite {
		existing, err := fileChecksum(final)
		switch {
		case err == nil && bytes.Equal(existing, hasher.Sum(nil)):
			// Same bytes already in place; the earlier upload stands.
			os.Remove(tmpName)
			s.logger.Debug("file already present with identical content",
				zap.String("destination", s.id), zap.String("path", relPath))
			return nil
		case err == nil:
			os.Remove(tmpName)
			return &TransferError{
				Kind: ErrTerminal,
				Op:   "upload " + relPath,
				Err:  fmt.Errorf("target exists with different content and overwrite is disabled"),
			}
		case !os.IsNotExist(err):
			os.Remove(tmpName)
			return &TransferError{Kind: ErrConnectivity, Op: "stat " + final, Err: err}
		}
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return &TransferError{Kind: ErrConnectivity, Op: "rename to " + final, Err: err}
	}

	s.logger.Debug("wrote local file",
		zap.String("destination", s.id), zap.String("path", relPath), zap.Int64("size_bytes", size))
	return nil
}

func (s *localSink) Probe(ctx context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &TransferError{Kind: ErrConnectivity, Op: "mkdir " + s.root, Err: err}
	}
	if _, err := os.ReadDir(s.root); err != nil {
		return &TransferError{Kind: ErrConnectivity, Op: "list " + s.root, Err: err}
	}
	return nil
}

func (s *localSink) Close() error { return nil }

func fileChecksum(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
