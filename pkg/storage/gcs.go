package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	metaOriginalName = "original-name"
	gcsWriteTimeout  = 2 * time.Minute
)

// GCSStorage keeps archived uploads in a Cloud Storage bucket as
// <prefix>/<import id>/<name>. Credentials come from Application Default Credentials.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a client for bucket
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Upload(ctx context.Context, importID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsWriteTimeout)
	defer cancel()

	name := path.Join(s.importDir(importID), sanitizeFilename(filename))
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{metaOriginalName: filename}

	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("copy upload to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}

	return &FileInfo{
		ImportID:    importID,
		Name:        filename,
		Size:        size,
		ContentType: contentType,
		Path:        fmt.Sprintf("gs://%s/%s", s.bucket, name),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *GCSStorage) GetInfo(ctx context.Context, importID uuid.UUID) (*FileInfo, error) {
	attrs, err := s.find(ctx, importID)
	if err != nil {
		return nil, err
	}
	return s.fileInfo(importID, attrs), nil
}

func (s *GCSStorage) GetReader(ctx context.Context, importID uuid.UUID) (io.ReadCloser, error) {
	attrs, err := s.find(ctx, importID)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(attrs.Name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", s.bucket, attrs.Name, err)
	}
	return rc, nil
}

func (s *GCSStorage) Delete(ctx context.Context, importID uuid.UUID) error {
	attrs, err := s.find(ctx, importID)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", attrs.Name, err)
	}
	return nil
}

func (s *GCSStorage) List(ctx context.Context) ([]*FileInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: s.listPrefix()})

	var files []*FileInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		id, ok := s.importIDOf(attrs.Name)
		if !ok {
			continue
		}
		files = append(files, s.fileInfo(id, attrs))
	}
	return files, nil
}

// find returns the single object stored under the import's directory.
func (s *GCSStorage) find(ctx context.Context, importID uuid.UUID) (*gcs.ObjectAttrs, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: s.importDir(importID) + "/"})
	attrs, err := it.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, importID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup object: %w", err)
	}
	return attrs, nil
}

func (s *GCSStorage) fileInfo(importID uuid.UUID, attrs *gcs.ObjectAttrs) *FileInfo {
	name := attrs.Metadata[metaOriginalName]
	if name == "" {
		name = path.Base(attrs.Name)
	}
	return &FileInfo{
		ImportID:    importID,
		Name:        name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Path:        fmt.Sprintf("gs://%s/%s", s.bucket, attrs.Name),
		CreatedAt:   attrs.Created,
	}
}

func (s *GCSStorage) importDir(importID uuid.UUID) string {
	if s.prefix == "" {
		return importID.String()
	}
	return s.prefix + "/" + importID.String()
}

func (s *GCSStorage) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *GCSStorage) importIDOf(objectName string) (uuid.UUID, bool) {
	rest := strings.TrimPrefix(objectName, s.listPrefix())
	dir, _, ok := strings.Cut(rest, "/")
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(dir)
	return id, err == nil
}
