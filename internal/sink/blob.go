package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// Sink persists a finished report and returns where it wrote it.
type Sink interface {
	Write(ctx context.Context, r *Report) ([]string, error)
}

// BlobSink writes every table of a report as a CSV object.
type BlobSink struct {
	bucket *blob.Bucket
	url    string
	prefix string
	gzip   bool
	logger *slog.Logger
}

// BlobOptions configures OpenBlobSink.
type BlobOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// Gzip compresses objects and names them .csv.gz.
	Gzip   bool
	Logger *slog.Logger
}

// OpenBlobSink opens the bucket at rawURL. A plain or relative file path is
// treated as a local directory and created if needed.
func OpenBlobSink(ctx context.Context, rawURL string, opts BlobOptions) (*BlobSink, error) {
	bucketURL, err := normalizeBucketURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewBlobSink(bucket, bucketURL, opts), nil
}

// NewBlobSink wraps an open bucket. location is only used in the returned
// object locations.
func NewBlobSink(bucket *blob.Bucket, location string, opts BlobOptions) *BlobSink {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobSink{
		bucket: bucket,
		url:    location,
		prefix: strings.Trim(opts.Prefix, "/"),
		gzip:   opts.Gzip,
		logger: logger.With("component", "blob_sink"),
	}
}

func normalizeBucketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("output location is empty")
	}

	dir := ""
	switch {
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse output url: %w", err)
		}
		// file://./output and file://output are relative to the working directory.
		dir = u.Host + u.Path
		if u.Host == "" {
			dir = u.Path
		}
	case !strings.Contains(raw, "://"):
		dir = raw
	default:
		return raw, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", abs, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Key returns the object key for one table of a report.
func (s *BlobSink) Key(r *Report, table string) string {
	name := r.Command + "-" + table
	if r.Tag != "" {
		name += "-" + sanitize(r.Tag)
	}
	name += "-" + r.RunID + ".csv"
	if s.gzip {
		name += ".gz"
	}
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Write writes every table of r, including empty ones so that a run always
// leaves the same set of files.
func (s *BlobSink) Write(ctx context.Context, r *Report) ([]string, error) {
	var written []string
	for _, t := range r.Tables() {
		key := s.Key(r, t.Name)
		if err := s.writeTable(ctx, key, t); err != nil {
			return written, err
		}
		s.logger.Debug("table written", "key", key, "rows", t.Len())
		written = append(written, strings.TrimSuffix(s.url, "/")+"/"+key)
	}
	return written, nil
}

func (s *BlobSink) writeTable(ctx context.Context, key string, t Table) error {
	var buf bytes.Buffer
	if s.gzip {
		zw := gzip.NewWriter(&buf)
		if err := t.WriteCSV(zw); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress %s: %w", key, err)
		}
	} else if err := t.WriteCSV(&buf); err != nil {
		return err
	}

	opts := &blob.WriterOptions{ContentType: "text/csv"}
	if s.gzip {
		opts.ContentEncoding = "gzip"
	}

	w, err := s.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Close releases the bucket.
func (s *BlobSink) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
}
