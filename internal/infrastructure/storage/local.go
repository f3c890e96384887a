package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

const DefaultMaxBytes int64 = 10 << 20

var allowedExtensions = map[string]bool{
	".txt": true, ".pdf": true, ".doc": true, ".docx": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
}

// AllowedExtensions returns the accepted upload extensions, sorted.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// LocalStore keeps uploads in a single flat directory under generated names.
type LocalStore struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger
}

// NewLocalStore creates dir if needed. maxBytes <= 0 means DefaultMaxBytes.
func NewLocalStore(dir string, maxBytes int64, log zerolog.Logger) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes, log: log}, nil
}

func (s *LocalStore) MaxBytes() int64 { return s.maxBytes }

// Save stores r as <uuid><ext>. Disallowed extensions and bodies larger than
// the limit are rejected with domain.ErrFileRejected and leave nothing behind.
func (s *LocalStore) Save(_ context.Context, originalName string, r io.Reader) (string, error) {
	if originalName == "" {
		return "", fmt.Errorf("%w: no filename provided", domain.ErrFileRejected)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: file type not allowed, allowed types: %s",
			domain.ErrFileRejected, strings.Join(AllowedExtensions(), ", "))
	}

	name := uuid.NewString() + ext
	full := filepath.Join(s.dir, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = os.Remove(full)
		return "", fmt.Errorf("write upload: %w", err)
	case closeErr != nil:
		_ = os.Remove(full)
		return "", fmt.Errorf("close upload: %w", closeErr)
	case n > s.maxBytes:
		_ = os.Remove(full)
		return "", fmt.Errorf("%w: file too large, maximum size: %dMB", domain.ErrFileRejected, s.maxBytes>>20)
	}

	s.log.Info().Str("file", name).Int64("bytes", n).Msg("file uploaded")
	return name, nil
}

// Path resolves name inside the upload directory. Names that are not a
// single path element, or that do not exist, yield domain.ErrFileNotFound.
func (s *LocalStore) Path(name string) (string, error) {
	if !validName(name) {
		return "", domain.ErrFileNotFound
	}
	full := filepath.Join(s.dir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", domain.ErrFileNotFound
	}
	return full, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
