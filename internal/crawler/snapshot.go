package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileSystemSink saves raw page HTML under a debug directory.
type FileSystemSink struct {
	root     string
	maxBytes int64
	enabled  bool
	logger   *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir. A disabled sink accepts
// every call and writes nothing.
func NewFileSystemSink(root string, maxBytes int64, enabled bool, logger *zap.Logger) (*FileSystemSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if enabled {
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("create sink dir %s: %w", root, err)
		}
	}
	return &FileSystemSink{
		root:     root,
		maxBytes: maxBytes,
		enabled:  enabled,
		logger:   logger.Named("snapshot"),
	}, nil
}

// Enabled reports whether snapshots are written.
func (s *FileSystemSink) Enabled() bool {
	return s != nil && s.enabled
}

// Path returns where a snapshot called name is stored.
func (s *FileSystemSink) Path(name string) string {
	return filepath.Join(s.root, SnapshotFileName(name))
}

// SaveHTML writes body to root/name.html and returns the path.
func (s *FileSystemSink) SaveHTML(ctx context.Context, name string, body []byte) (string, error) {
	return s.write(ctx, s.Path(name), body)
}

// SaveScreenshot writes a PNG next to the HTML snapshots.
func (s *FileSystemSink) SaveScreenshot(ctx context.Context, name string, png []byte) (string, error) {
	return s.write(ctx, filepath.Join(s.root, sanitizeName(name)+".png"), png)
}

func (s *FileSystemSink) write(ctx context.Context, target string, body []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty page body")
	}
	if s.maxBytes > 0 && int64(len(body)) > s.maxBytes {
		return "", fmt.Errorf("page size %d exceeds max %d", len(body), s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("creating snapshot dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("writing snapshot to %s: %w", target, err)
	}
	s.logger.Debug("saved snapshot", zap.String("path", target), zap.Int("bytes", len(body)))
	return target, nil
}

// SnapshotFileName sanitizes name and adds the .html extension.
func SnapshotFileName(name string) string {
	return sanitizeName(name) + ".html"
}

func sanitizeName(name string) string {
	clean := invalidFilenameChars.ReplaceAllString(name, "_")
	if clean == "" {
		clean = "page"
	}
	return clean
}

// PageSnapshotName is the snapshot name used for crawl page n.
func PageSnapshotName(n int) string {
	return fmt.Sprintf("page_%d", n)
}
