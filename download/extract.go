package download

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

var (
	ErrArchiveInvalid = errors.New("archive is not a valid zip file")
	ErrUnsafePath     = errors.New("archive entry escapes the target directory")
)

// Extract unpacks the zip archive at archivePath into dir, returning the number of files written. An unreadable
// archive gives ErrArchiveInvalid; entries that would land outside dir give ErrUnsafePath and nothing more is
// extracted.
func Extract(archivePath string, dir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("extract").Sugar()

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum) {
			return 0, fmt.Errorf("%w: %v", ErrArchiveInvalid, err)
		}
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range r.File {
		target, err := entryPath(root, entry.Name)
		if err != nil {
			return count, err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			log.Debugf("skipping non-regular entry %s", entry.Name)
			continue
		}
		if err := extractFile(entry, target); err != nil {
			return count, err
		}
		count++
	}
	log.Infof("Extracted %d files", count)
	return count, nil
}

func entryPath(root string, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArchiveInvalid, entry.Name, err)
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %s: %v", ErrArchiveInvalid, entry.Name, err)
		}
		return err
	}
	return dst.Close()
}
