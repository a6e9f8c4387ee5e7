// Package transfer moves rendered files to the host that serves them.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrMissingCredentials means the uploader was configured without a password.
	ErrMissingCredentials = errors.New("transfer: missing credentials")
	// ErrAuth means the remote host rejected the credentials.
	ErrAuth = errors.New("transfer: authentication failed")
	// ErrUnreachable means no connection could be established.
	ErrUnreachable = errors.New("transfer: host unreachable")
)

// File is one artifact to place under the uploader's target directory.
type File struct {
	Name string // slash-separated path relative to the target directory
	Data []byte
}

// Uploader writes files to a destination, replacing any existing file with the same name.
type Uploader interface {
	Upload(ctx context.Context, files []File) ([]string, error)
	Target() string
}

// DirUploader writes files into a local directory. It is used for dry runs.
type DirUploader struct {
	Root string
}

// NewDirUploader creates an uploader rooted at dir.
func NewDirUploader(dir string) *DirUploader {
	return &DirUploader{Root: dir}
}

func (d *DirUploader) Target() string { return "file://" + d.Root }

// Upload writes every file under Root, truncating existing ones.
func (d *DirUploader) Upload(ctx context.Context, files []File) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		name, err := cleanName(f.Name)
		if err != nil {
			return written, err
		}
		full := filepath.Join(d.Root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, fmt.Errorf("create dir for %s: %w", name, err)
		}
		if err := os.WriteFile(full, f.Data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, full)
	}
	return written, nil
}

// cleanName rejects names that would escape the target directory.
func cleanName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return clean, nil
}
