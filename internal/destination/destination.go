// Package destination implements the upload sinks: a local directory, a
// remote SFTP host, and an S3-compatible bucket. All three are dispatched
// through one Destination contract; the orchestrator never needs to know
// which kind it is talking to.
package destination

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Kind discriminates the supported sink variants.
type Kind string

const (
	KindLocal Kind = "local"
	KindSFTP  Kind = "sftp"
	KindS3    Kind = "s3"
)

// ErrorKind classifies an upload failure for the retry policy.
type ErrorKind string

const (
	// ErrConnectivity covers transport-level failures that are worth
	// retrying: refused connections, dropped sessions, I/O timeouts.
	ErrConnectivity ErrorKind = "connectivity"
	// ErrAuth covers credential failures. Retrying within the same task
	// would hammer a dead credential; the next artifact re-attempts fresh.
	ErrAuth ErrorKind = "auth"
	// ErrTerminal covers failures that no amount of retrying fixes, such
	// as a content conflict at the target path.
	ErrTerminal ErrorKind = "terminal"
)

// TransferError wraps an upload failure with its retry classification.
type TransferError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain. The second return
// is false when the error carries no TransferError.
func KindOf(err error) (ErrorKind, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// Destination is a sink that accepts a named artifact and reports the
// outcome. Implementations must not leave a partially written file visible
// at the target path, even when the context is cancelled mid-upload.
type Destination interface {
	// ID is stable for the process lifetime and used for dedup keys and
	// log fields.
	ID() string
	Kind() Kind
	// Upload writes size bytes from r to relPath under the destination
	// root, creating intermediate directories as needed.
	Upload(ctx context.Context, relPath string, r io.Reader, size int64) error
	// Probe performs a cheap liveness check. Probe failures are logged at
	// startup but never fatal.
	Probe(ctx context.Context) error
	Close() error
}

// Options carries cross-destination settings resolved from configuration.
type Options struct {
	// LocalOverwrite replaces an existing file at the target path. When
	// false, an existing file with identical content counts as success and
	// a content mismatch is a terminal error.
	LocalOverwrite bool
	S3             S3Options
	Logger         *zap.Logger
}

// S3Options holds the endpoint and credentials shared by all s3 descriptors.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New builds a Destination from a parsed descriptor.
func New(d Descriptor, opts Options) (Destination, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch d.Kind {
	case KindLocal:
		return newLocal(d, opts.LocalOverwrite, logger), nil
	case KindSFTP:
		return newSFTP(d, logger)
	case KindS3:
		return newS3(d, opts.S3, logger)
	default:
		return nil, fmt.Errorf("unsupported destination kind: %s", d.Kind)
	}
}

// Build parses and constructs every configured destination, preserving order.
func Build(specs []string, opts Options) ([]Destination, error) {
	dests := make([]Destination, 0, len(specs))
	for _, spec := range specs {
		desc, err := ParseDescriptor(spec)
		if err != nil {
			return nil, fmt.Errorf("parse destination %q: %w", spec, err)
		}
		dest, err := New(desc, opts)
		if err != nil {
			return nil, fmt.Errorf("build destination %q: %w", desc.ID, err)
		}
		dests = append(dests, dest)
	}
	return dests, nil
}
