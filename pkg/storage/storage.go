// Package storage archives raw statement uploads, keyed by import ID.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived upload
type FileInfo struct {
	ImportID    uuid.UUID `json:"import_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // backend-specific location
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the archive operations
type Storage interface {
	// Upload stores the raw bytes of an import
	Upload(ctx context.Context, importID uuid.UUID, filename string, contentType string, r io.Reader) (*FileInfo, error)

	// GetInfo returns metadata for an archived import without reading it
	GetInfo(ctx context.Context, importID uuid.UUID) (*FileInfo, error)

	// GetReader returns a reader over the archived bytes
	GetReader(ctx context.Context, importID uuid.UUID) (io.ReadCloser, error)

	// Delete removes an archived import
	Delete(ctx context.Context, importID uuid.UUID) error

	// List returns every archived import
	List(ctx context.Context) ([]*FileInfo, error)
}

// Type identifies the storage backend
type Type string

const (
	TypeLocal Type = "local"
	TypeGCS   Type = "gcs"
)

// Config holds archive configuration
type Config struct {
	Type      Type
	LocalPath string
	GCSBucket string
	GCSPrefix string
}

// New creates a Storage implementation based on configuration
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case TypeGCS:
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	case TypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// PruneOlderThan deletes every archived import created before cutoff and
// returns how many were removed. Individual delete failures are logged.
func PruneOlderThan(ctx context.Context, s Storage, cutoff time.Time, logger *slog.Logger) (int, error) {
	files, err := s.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list archive: %w", err)
	}

	removed := 0
	for _, f := range files {
		if !f.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, f.ImportID); err != nil {
			logger.Warn("failed to prune archived import",
				slog.String("import_id", f.ImportID.String()),
				slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(strings.TrimSpace(name))
	if name == "" {
		return "upload"
	}
	return name
}
