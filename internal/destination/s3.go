package destination

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// s3Sink uploads artifacts to an S3-compatible bucket. Object puts are
// atomic on the server side, so no staging rename is needed here.
type s3Sink struct {
	id     string
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

func newS3(d Descriptor, opts S3Options, logger *zap.Logger) (*s3Sink, error) {
	cl, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, &TransferError{Kind: ErrConnectivity, Op: "init s3 client", Err: err}
	}
	return &s3Sink{
		id:     d.ID,
		client: cl,
		bucket: d.Bucket,
		prefix: d.Prefix,
		logger: logger,
	}, nil
}

func (s *s3Sink) ID() string { return s.id }

func (s *s3Sink) Kind() Kind { return KindS3 }

func (s *s3Sink) Upload(ctx context.Context, relPath string, r io.Reader, size int64) error {
	key := path.Join(s.prefix, relPath)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{})
	if err != nil {
		return &TransferError{Kind: classifyS3Error(err), Op: "put " + key, Err: err}
	}
	s.logger.Debug("wrote object",
		zap.String("destination", s.id), zap.String("key", key), zap.Int64("size_bytes", size))
	return nil
}

func (s *s3Sink) Probe(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &TransferError{Kind: classifyS3Error(err), Op: "head bucket " + s.bucket, Err: err}
	}
	if !ok {
		return &TransferError{Kind: ErrTerminal, Op: "head bucket " + s.bucket, Err: errors.New("bucket does not exist")}
	}
	return nil
}

func (s *s3Sink) Close() error { return nil }

func classifyS3Error(err error) ErrorKind {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrAuth
	}
	return ErrConnectivity
}
