package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps documents under a base directory. Relative paths are
// resolved against Dir; backups go to BackupDir, or next to the original
// when it's empty.
type FileStore struct {
	Dir       string
	BackupDir string
	now       func() time.Time
}

func NewFileStore(dir string, backupDir string) *FileStore {
	return &FileStore{Dir: dir, BackupDir: backupDir, now: time.Now}
}

func (s *FileStore) resolve(path string) string {
	if filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

func (s *FileStore) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}

func (s *FileStore) Save(ctx context.Context, content string, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return true, nil
}

func (s *FileStore) Backup(ctx context.Context, path string) (string, error) {
	content, err := s.Load(ctx, path)
	if err != nil {
		return "", err
	}
	full := s.resolve(path)
	dir := filepath.Dir(full)
	if s.BackupDir != "" {
		dir = s.resolve(s.BackupDir)
	}
	target := filepath.Join(dir, backupName(filepath.Base(full), s.now()))
	if err := s.Save(ctx, content, target); err != nil {
		return "", err
	}
	return target, nil
}
