package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// SequenceCounter stores the last file sequence number as plain text at path.
// Increments hold an exclusive flock on path+".lock" and replace the value
// file atomically, so concurrent processes never hand out the same number.
type SequenceCounter struct {
	path string
	mu   sync.Mutex
}

// NewSequenceCounter constructs a counter backed by path.
func NewSequenceCounter(path string) (*SequenceCounter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sequence counter: empty path")
	}
	return &SequenceCounter{path: path}, nil
}

// Path returns the value file location.
func (c *SequenceCounter) Path() string { return c.path }

// Next reads the current value (missing or corrupt content counts as 0),
// persists value+1 and returns it.
func (c *SequenceCounter) Next(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return 0, fmt.Errorf("sequence counter: mkdir: %w", err)
	}
	unlock, err := lockFile(c.path + ".lock")
	if err != nil {
		return 0, err
	}
	defer unlock()

	next := readValue(c.path) + 1
	if err := writeValue(c.path, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Current returns the stored value without advancing it.
func (c *SequenceCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readValue(c.path)
}

func lockFile(path string) (func(), error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sequence counter: open lock: %w", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("sequence counter: flock: %w", err)
	}
	return func() {
		_ = unix.Flock(fd, unix.LOCK_UN)
		_ = unix.Close(fd)
	}, nil
}

func readValue(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func writeValue(path string, value int) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("sequence counter: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(strconv.Itoa(value)); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sequence counter: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sequence counter: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("sequence counter: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("sequence counter: rename: %w", err)
	}
	return nil
}
