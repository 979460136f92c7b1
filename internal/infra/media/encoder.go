// Package media turns uploads and stored camera frames into payloads the
// model adapters can ship.
package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// DefaultMaxBytes matches the inline data limit of the upstream model.
const DefaultMaxBytes int64 = 20 << 20

const chunkSize = 32 << 10

const octetStream = "application/octet-stream"

// Encoder reads media into memory. The zero value is not usable, see
// NewEncoder.
type Encoder struct {
	maxBytes int64
	spec     *analysis.Spec
}

func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{maxBytes: maxBytes}
}

// For returns an encoder that also enforces the picker filter of kind.
func (e *Encoder) For(kind analysis.Kind) (*Encoder, error) {
	spec, err := analysis.SpecFor(kind)
	if err != nil {
		return nil, err
	}
	return &Encoder{maxBytes: e.maxBytes, spec: &spec}, nil
}

// MaxBytes is the largest payload accepted.
func (e *Encoder) MaxBytes() int64 { return e.maxBytes }

// Encode reads r until EOF. The read stops between chunks once ctx is done.
// An empty or generic declared type is replaced by the sniffed one.
func (e *Encoder) Encode(ctx context.Context, r io.Reader, declaredMIME string) (analysis.MediaPayload, error) {
	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrCanceled, "encode", err)
		}
		n, err := r.Read(chunk)
		if n > 0 {
			if int64(buf.Len()+n) > e.maxBytes {
				return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "encode", "media exceeds %d bytes", e.maxBytes)
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrIO, "encode", err)
		}
	}
	if buf.Len() == 0 {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "encode", "media is empty")
	}

	data := buf.Bytes()
	mime := normalize(declaredMIME)
	if mime == "" || mime == octetStream {
		mime = mimetype.Detect(data).String()
		mime = normalize(mime)
	}
	if e.spec != nil && !e.spec.Accepts(mime) {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "encode", "%s does not accept %s (allowed: %s)",
			e.spec.Kind, mime, strings.Join(e.spec.Accept, ", "))
	}
	return analysis.MediaPayload{Data: data, MIMEType: mime}, nil
}

// EncodeFile reads a local file. The type is sniffed from the content.
func (e *Encoder) EncodeFile(ctx context.Context, path string) (analysis.MediaPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrIO, "open "+path, err)
	}
	defer f.Close()

	p, err := e.Encode(ctx, f, "")
	if err != nil {
		return analysis.MediaPayload{}, err
	}
	p.Name = filepath.Base(path)
	return p, nil
}

// EncodeMultipart reads one uploaded form file.
func (e *Encoder) EncodeMultipart(ctx context.Context, fh *multipart.FileHeader) (analysis.MediaPayload, error) {
	if fh == nil {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "encode upload", "no file")
	}
	if fh.Size > e.maxBytes {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "encode upload", "%s is %d bytes, limit %d", fh.Filename, fh.Size, e.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrIO, "open upload", err)
	}
	defer f.Close()

	p, err := e.Encode(ctx, f, fh.Header.Get("Content-Type"))
	if err != nil {
		return analysis.MediaPayload{}, err
	}
	p.Name = fh.Filename
	return p, nil
}

// normalize lower-cases a MIME type and drops its parameters.
func normalize(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}
