package destination

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const sftpDialTimeout = 15 * time.Second

// sftpSink uploads artifacts to a remote host over SFTP, authenticating with
// a private-key identity. The session is reused across uploads and re-dialed
// by the next attempt whenever it drops; the retry loop in the orchestrator
// drives reconnection, not the router.
type sftpSink struct {
	id         string
	host       string
	user       string
	remotePath string
	identity   string
	logger     *zap.Logger

	// guarded state; uploads to one sftp destination are serialized so a
	// dead session is observed and re-dialed exactly once.
	sem    chan struct{}
	conn   *ssh.Client
	client *sftp.Client
}

func newSFTP(d Descriptor, logger *zap.Logger) (*sftpSink, error) {
	return &sftpSink{
		id:         d.ID,
		host:       d.Host,
		user:       d.User,
		remotePath: d.RemotePath,
		identity:   d.IdentityFile,
		logger:     logger,
		sem:        make(chan struct{}, 1),
	}, nil
}

func (s *sftpSink) ID() string { return s.id }

func (s *sftpSink) Kind() Kind { return KindSFTP }

func (s *sftpSink) Upload(ctx context.Context, relPath string, r io.Reader, size int64) error {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return &TransferError{Kind: ErrConnectivity, Op: "acquire session", Err: ctx.Err()}
	}

	client, err := s.ensureClient()
	if err != nil {
		return err
	}

	final := path.Join(s.remotePath, relPath)
	dir := path.Dir(final)
	tmp := final + ".partial"

	if err := client.MkdirAll(dir); err != nil {
		return s.connectivityErr("mkdir "+dir, err)
	}

	f, err := client.Create(tmp)
	if err != nil {
		return s.connectivityErr("create "+tmp, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		// Never leave a truncated remote file behind.
		if rmErr := client.Remove(tmp); rmErr != nil {
			s.logger.Warn("failed to remove partial remote file",
				zap.String("destination", s.id), zap.String("path", tmp), zap.Error(rmErr))
		}
		return s.connectivityErr("write "+tmp, err)
	}
	if err := f.Close(); err != nil {
		client.Remove(tmp)
		return s.connectivityErr("close "+tmp, err)
	}

	if err := client.PosixRename(tmp, final); err != nil {
		client.Remove(tmp)
		return s.connectivityErr("rename to "+final, err)
	}

	s.logger.Debug("wrote remote file",
		zap.String("destination", s.id), zap.String("path", final), zap.Int64("size_bytes", size))
	return nil
}

func (s *sftpSink) Probe(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return &TransferError{Kind: ErrConnectivity, Op: "acquire session", Err: ctx.Err()}
	}

	client, err := s.ensureClient()
	if err != nil {
		return err
	}
	if _, err := client.ReadDir(s.remotePath); err != nil {
		return s.connectivityErr("list "+s.remotePath, err)
	}
	return nil
}

func (s *sftpSink) Close() error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	s.drop()
	return nil
}

// ensureClient returns a live sftp client, dialing a fresh session if the
// previous one was invalidated. Callers must hold the semaphore.
func (s *sftpSink) ensureClient() (*sftp.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	key, err := os.ReadFile(s.identity)
	if err != nil {
		return nil, &TransferError{Kind: ErrAuth, Op: "read identity " + s.identity, Err: err}
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, &TransferError{Kind: ErrAuth, Op: "parse identity " + s.identity, Err: err}
	}

	sshCfg := &ssh.ClientConfig{
		User: s.user,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// Host keys are not pinned; deployments run against hosts on the
		// same trusted network segment as the controller.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sftpDialTimeout,
	}

	conn, err := ssh.Dial("tcp", s.host, sshCfg)
	if err != nil {
		return nil, &TransferError{Kind: classifySSHError(err), Op: "dial " + s.host, Err: err}
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, &TransferError{Kind: ErrConnectivity, Op: "open sftp channel", Err: err}
	}

	s.logger.Info("sftp session established",
		zap.String("destination", s.id), zap.String("host", s.host))
	s.conn = conn
	s.client = client
	return client, nil
}

// connectivityErr invalidates the session and wraps err as retryable. The
// next attempt re-dials.
func (s *sftpSink) connectivityErr(op string, err error) error {
	s.drop()
	return &TransferError{Kind: ErrConnectivity, Op: op, Err: err}
}

func (s *sftpSink) drop() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// classifySSHError separates credential rejections from transport failures.
// x/crypto/ssh reports auth failures only through error text, so this matches
// the handshake messages it emits.
func classifySSHError(err error) ErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnectivity
	}
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied") {
		return ErrAuth
	}
	return ErrConnectivity
}
