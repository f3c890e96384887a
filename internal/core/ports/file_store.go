package ports

import (
	"context"
	"io"
)

// FileStore keeps files uploaded alongside issues.
type FileStore interface {
	// Save validates and stores the upload, returning the generated name.
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Path resolves a stored name to a readable path, or domain.ErrFileNotFound.
	Path(name string) (string, error)
}
