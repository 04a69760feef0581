package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
)

var ErrOutsideRoot = errors.New("path outside extensions root")

// FileFetcher reads entry sources from disk
type FileFetcher struct {
	root    string
	maxSize int64
}

// NewFileFetcher confines reads to root. An empty root disables the check.
func NewFileFetcher(root string) *FileFetcher {
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	return &FileFetcher{root: root, maxSize: 8 << 20}
}

// FetchEntrySource returns the text of main inside localPath
func (f *FileFetcher) FetchEntrySource(ctx context.Context, localPath, main string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", localPath, err)
	}
	if f.root != "" {
		rel, err := filepath.Rel(f.root, dir)
		if err != nil {
			return "", fmt.Errorf("%s: %w", localPath, ErrOutsideRoot)
		}
		if _, err := paths.Within(f.root, rel); err != nil {
			return "", fmt.Errorf("%s: %w", localPath, ErrOutsideRoot)
		}
	}

	path, err := paths.Within(dir, filepath.FromSlash(main))
	if err != nil {
		return "", fmt.Errorf("entry %q: %w", main, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("entry %q: %w", main, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("entry %q is a directory", main)
	}
	if info.Size() > f.maxSize {
		return "", fmt.Errorf("entry %q exceeds %d bytes", main, f.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("entry %q: %w", main, err)
	}
	return Normalize(data), nil
}
