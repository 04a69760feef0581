package packaging

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/paths"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported package format")
	ErrTooLarge          = errors.New("package exceeds size limits")
	ErrUnsafePath        = errors.New("unsafe path in package")
)

// Limits bound what an archive may unpack to
type Limits struct {
	MaxFiles int
	MaxBytes int64
}

// DefaultLimits returns the limits used for installs
func DefaultLimits() Limits {
	return Limits{MaxFiles: 10000, MaxBytes: 256 << 20}
}

// Format is a sniffed package format
type Format string

const (
	FormatDir     Format = "dir"
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar.gz"
	FormatTarZstd Format = "tar.zst"
)

// DetectFormat sniffs the package format of path from its content
func DetectFormat(path string) (Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return FormatDir, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect %s: %w", path, err)
	}
	switch {
	case mt.Is("application/zip"):
		return FormatZip, nil
	case mt.Is("application/gzip"):
		return FormatTarGzip, nil
	case mt.Is("application/zstd"):
		return FormatTarZstd, nil
	case mt.Is("application/x-tar"):
		return FormatTar, nil
	}
	return "", fmt.Errorf("%s (%s): %w", filepath.Base(path), mt.String(), ErrUnsupportedFormat)
}

// Extract unpacks src of the given format into dest
func Extract(ctx context.Context, format Format, src, dest string, limits Limits) error {
	switch format {
	case FormatZip:
		return extractZip(ctx, src, dest, limits)
	case FormatTar, FormatTarGzip, FormatTarZstd:
		return extractTar(ctx, format, src, dest, limits)
	case FormatDir:
		return copyTree(ctx, src, dest, limits)
	}
	return fmt.Errorf("%s: %w", format, ErrUnsupportedFormat)
}

type budget struct {
	limits Limits
	files  int
	bytes  int64
}

func (b *budget) add(size int64) error {
	b.files++
	b.bytes += size
	if b.files > b.limits.MaxFiles || b.bytes > b.limits.MaxBytes {
		return ErrTooLarge
	}
	return nil
}

func extractZip(ctx context.Context, src, dest string, limits Limits) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	b := &budget{limits: limits}
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := paths.Within(dest, filepath.FromSlash(file.Name))
		if err != nil {
			return fmt.Errorf("%s: %w", file.Name, ErrUnsafePath)
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		case !mode.IsRegular():
			// Symlinks and devices are never installed
			continue
		}

		if err := b.add(int64(file.UncompressedSize64)); err != nil {
			return err
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", file.Name, err)
		}
		err = writeFile(target, rc, b.limits.MaxBytes)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(ctx context.Context, format Format, src, dest string, limits Limits) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	var r io.Reader = file
	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	b := &budget{limits: limits}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		target, err := paths.Within(dest, filepath.FromSlash(header.Name))
		if err != nil {
			return fmt.Errorf("%s: %w", header.Name, ErrUnsafePath)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := b.add(header.Size); err != nil {
				return err
			}
			if err := writeFile(target, tr, b.limits.MaxBytes); err != nil {
				return err
			}
		}
	}
}

func writeFile(target string, r io.Reader, max int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	// Declared sizes can lie, so cap what is actually copied
	n, err := io.Copy(out, io.LimitReader(r, max+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	if n > max {
		return ErrTooLarge
	}
	return nil
}

func copyTree(ctx context.Context, src, dest string, limits Limits) error {
	files, err := listFiles(ctx, src)
	if err != nil {
		return err
	}

	b := &budget{limits: limits}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(rel, ".git/") {
			continue
		}

		from := filepath.Join(src, filepath.FromSlash(rel))
		info, err := os.Stat(from)
		if err != nil {
			return err
		}
		if err := b.add(info.Size()); err != nil {
			return err
		}

		in, err := os.Open(from)
		if err != nil {
			return err
		}
		err = writeFile(filepath.Join(dest, filepath.FromSlash(rel)), in, limits.MaxBytes)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
