// Package store persists the update cursor so a restarted bot resumes
// after the last consumed update.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Replaceable for testing error paths.
var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
	timeNow      = time.Now
)

type cursorState struct {
	NextOffset uint64    `yaml:"next_offset"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// CursorFile stores the next update offset in a small YAML file
type CursorFile struct {
	path string
}

// NewCursorFile returns a store backed by path. The file is created on the
// first Save.
func NewCursorFile(path string) *CursorFile {
	return &CursorFile{path: path}
}

// Path returns the file location
func (f *CursorFile) Path() string {
	return f.path
}

// Load returns the stored offset, or zero when the file does not exist
func (f *CursorFile) Load() (uint64, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cursor file: read: %w", err)
	}

	var st cursorState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return 0, fmt.Errorf("cursor file: parse %s: %w", f.path, err)
	}
	return st.NextOffset, nil
}

// Save replaces the stored offset
func (f *CursorFile) Save(next uint64) error {
	data, err := yaml.Marshal(cursorState{
		NextOffset: next,
		UpdatedAt:  timeNow().UTC(),
	})
	if err != nil {
		return fmt.Errorf("cursor file: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("cursor file: create directory: %w", err)
	}
	if err := atomicWrite(f.path, data, 0o600); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"path": f.path,
		"next": next,
	}).Debug("update-cursor-saved")
	return nil
}

// atomicWrite writes data to path via a temp file in the same directory and
// a rename.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := osCreateTemp(filepath.Dir(path), ".tgembed-cursor-*")
	if err != nil {
		return fmt.Errorf("cursor file: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		return fmt.Errorf("cursor file: write: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("cursor file: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("cursor file: chmod: %w", err)
	}
	if err := osRename(tmpName, path); err != nil {
		return fmt.Errorf("cursor file: rename: %w", err)
	}

	success = true
	return nil
}
