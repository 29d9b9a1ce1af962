// Package cursor persists the highest mailbox UID that was fully
// processed.
package cursor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// FileStore keeps the cursor as decimal text in a single file. It is
// meant for one sequential caller and does no locking.
type FileStore struct {
	path string
	log  *zap.Logger
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored cursor. A missing, empty, unreadable or
// corrupt file reads as 0.
func (s *FileStore) Load() uint32 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("reading cursor failed, starting from zero",
				zap.String("path", s.path), zap.Error(err))
		}
		return 0
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0
	}

	uid, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		s.log.Warn("cursor file is corrupt, starting from zero",
			zap.String("path", s.path), zap.String("content", truncate(text, 32)))
		return 0
	}
	return uint32(uid)
}

// Save replaces the stored cursor. The value is written to a temporary
// file in the same directory and renamed over the old one, so readers
// see either the old or the new value.
func (s *FileStore) Save(uid uint32) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp cursor file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(strconv.FormatUint(uint64(uid), 10)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cursor: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cursor: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing cursor %s: %w", s.path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
