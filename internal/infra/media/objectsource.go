package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// ObjectStoreConfig points at the bucket where store cameras drop frames.
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is prepended to every key, e.g. "cameras/".
	Prefix string
}

// ObjectSource reads camera frames from MinIO or any S3 compatible store.
// It never writes.
type ObjectSource struct {
	client *minio.Client
	bucket string
	prefix string
	enc    *Encoder
	log    *zap.Logger
}

// NewObjectSource connects and verifies the bucket exists.
func NewObjectSource(ctx context.Context, cfg ObjectStoreConfig, enc *Encoder, log *zap.Logger) (*ObjectSource, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "object source", "endpoint and bucket are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, analysis.Wrap(analysis.ErrConfiguration, "object source", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if enc == nil {
		enc = NewEncoder(0)
	}
	s := &ObjectSource{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix, enc: enc, log: log.Named("objects")}

	// pastikan bucket ada, tapi jangan dibuat: sumber ini read-only
	if err := s.Check(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Check reports whether the bucket is reachable. Used by the health handler.
func (s *ObjectSource) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return analysis.Wrap(analysis.ErrNetwork, "bucket exists", err)
	}
	if !exists {
		return analysis.Errorf(analysis.ErrConfiguration, "bucket exists", "bucket %q does not exist", s.bucket)
	}
	return nil
}

// Fetch downloads one frame and encodes it. A missing key is an IO error,
// like an unreadable local file.
func (s *ObjectSource) Fetch(ctx context.Context, key string) (analysis.MediaPayload, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "fetch object", "empty key")
	}
	full := s.prefix + key

	obj, err := s.client.GetObject(ctx, s.bucket, full, minio.GetObjectOptions{})
	if err != nil {
		return analysis.MediaPayload{}, s.fetchErr(full, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return analysis.MediaPayload{}, s.fetchErr(full, err)
	}
	if info.Size > s.enc.MaxBytes() {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "fetch object", "%s is %d bytes, limit %d", full, info.Size, s.enc.MaxBytes())
	}

	p, err := s.enc.Encode(ctx, obj, info.ContentType)
	if err != nil {
		return analysis.MediaPayload{}, err
	}
	p.Name = path.Base(full)
	s.log.Debug("fetched frame", zap.String("key", full), zap.Int("bytes", p.Size()), zap.String("mime", p.MIMEType))
	return p, nil
}

func (s *ObjectSource) fetchErr(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied":
		return analysis.Wrap(analysis.ErrIO, "fetch object", fmt.Errorf("%s: %w", key, err))
	}
	return analysis.Wrap(analysis.ErrNetwork, "fetch object", fmt.Errorf("%s: %w", key, err))
}
