package compact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OffloadStore persists offloaded tool-result payloads, one file per result.
type OffloadStore interface {
	// Write stores content under a name derived from the original message
	// id and returns the stable path used to reference it.
	Write(ctx context.Context, sessionKey, originalID, content string) (string, error)

	// Read returns the exact content previously written to path.
	Read(ctx context.Context, path string) (string, error)

	// Delete removes one offloaded payload.
	Delete(ctx context.Context, path string) error

	// List returns the paths of every offloaded payload in the store.
	List(ctx context.Context) ([]string, error)
}

// FileOffloadStore stores payloads under baseDir, one subdirectory per
// session. Names are deterministic, so re-offloading the same message
// overwrites rather than accumulates.
type FileOffloadStore struct {
	baseDir string
}

// NewFileOffloadStore creates a file offload store rooted at baseDir.
func NewFileOffloadStore(baseDir string) (*FileOffloadStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create offload directory: %w", err)
	}
	return &FileOffloadStore{baseDir: baseDir}, nil
}

// Write stores content atomically and returns its path.
func (s *FileOffloadStore) Write(_ context.Context, sessionKey, originalID, content string) (string, error) {
	dir := filepath.Join(s.baseDir, sanitizePathComponent(sessionKey))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create session offload directory: %w", err)
	}

	path := filepath.Join(dir, sanitizePathComponent(originalID)+".txt")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write offload file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return "", fmt.Errorf("failed to finalize offload file: %w", err)
	}
	return path, nil
}

// Read returns the file content.
func (s *FileOffloadStore) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read offload file: %w", err)
	}
	return string(data), nil
}

// Delete removes the file. Missing files are not an error: cleanup may
// race an external removal.
func (s *FileOffloadStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete offload file: %w", err)
	}
	return nil
}

// List walks the store and returns every payload path.
func (s *FileOffloadStore) List(_ context.Context) ([]string, error) {
	var paths []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offload files: %w", err)
	}
	return paths, nil
}

// sanitizePathComponent makes an identifier safe to use as a single path
// element. Session keys like "telegram:12345" are common inputs.
func sanitizePathComponent(v string) string {
	if v == "" {
		return "unknown"
	}
	var sb strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
