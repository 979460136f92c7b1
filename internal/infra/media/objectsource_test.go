package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// fakeS3 answers the handful of calls ObjectSource makes.
func fakeS3(t *testing.T, objects map[string][]byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		bucket, key, _ := strings.Cut(p, "/")
		if bucket != "frames" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if key == "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		data, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>` + key + `</Key><BucketName>frames</BucketName></Error>`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Last-Modified", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func testStoreConfig(endpoint, bucket string) ObjectStoreConfig {
	return ObjectStoreConfig{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		Bucket:    bucket,
		AccessKey: "minio",
		SecretKey: "minio123",
		Prefix:    "cam/",
	}
}

func TestObjectSource_Fetch(t *testing.T) {
	endpoint := fakeS3(t, map[string][]byte{"cam/aisle4.png": pngHeader})
	src, err := NewObjectSource(context.Background(), testStoreConfig(endpoint, "frames"), NewEncoder(1<<20), zap.NewNop())
	require.NoError(t, err)

	p, err := src.Fetch(context.Background(), "/aisle4.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIMEType)
	assert.Equal(t, "aisle4.png", p.Name)
	assert.Equal(t, pngHeader, p.Data)

	_, err = src.Fetch(context.Background(), "nope.png")
	assert.ErrorIs(t, err, analysis.ErrIO)

	_, err = src.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, analysis.ErrIO)
}

func TestObjectSource_OverLimit(t *testing.T) {
	endpoint := fakeS3(t, map[string][]byte{"cam/big.png": append(pngHeader, make([]byte, 64)...)})
	src, err := NewObjectSource(context.Background(), testStoreConfig(endpoint, "frames"), NewEncoder(32), nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), "big.png")
	assert.ErrorIs(t, err, analysis.ErrIO)
}

func TestObjectSource_MissingBucket(t *testing.T) {
	endpoint := fakeS3(t, nil)
	_, err := NewObjectSource(context.Background(), testStoreConfig(endpoint, "archive"), nil, nil)
	assert.ErrorIs(t, err, analysis.ErrConfiguration)

	_, err = NewObjectSource(context.Background(), ObjectStoreConfig{Endpoint: endpoint}, nil, nil)
	assert.ErrorIs(t, err, analysis.ErrConfiguration)
}

func TestObjectSource_FetchErrClass(t *testing.T) {
	s := &ObjectSource{}
	assert.ErrorIs(t, s.fetchErr("k", minio.ErrorResponse{Code: "AccessDenied"}), analysis.ErrIO)
	assert.ErrorIs(t, s.fetchErr("k", minio.ErrorResponse{Code: "SlowDown"}), analysis.ErrNetwork)
}
