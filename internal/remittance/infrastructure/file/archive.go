package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const archiveExt = ".zst"

// Archive keeps a zstd-compressed copy of every emitted remittance file under root.
type Archive struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewArchive constructs an archive rooted at root.
func NewArchive(root string) (*Archive, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("archive: empty root")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("archive: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("archive: zstd decoder: %w", err)
	}
	return &Archive{root: root, encoder: encoder, decoder: decoder}, nil
}

// Put stores content under key and returns the key. Archived files are never
// replaced: an existing key fails with an error wrapping os.ErrExist.
func (a *Archive) Put(key string, content []byte) (string, error) {
	path, err := a.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", key, err)
	}
	if _, err := f.Write(a.encoder.EncodeAll(content, nil)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("archive: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("archive: close: %w", err)
	}
	return key, nil
}

// Get returns the decompressed content stored under key.
func (a *Archive) Get(key string) ([]byte, error) {
	path, err := a.pathFor(key)
	if err != nil {
		return nil, err
	}
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read: %w", err)
	}
	content, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: decompress: %w", err)
	}
	return content, nil
}

func (a *Archive) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive: invalid key %q", key)
	}
	return filepath.Join(a.root, clean) + archiveExt, nil
}
