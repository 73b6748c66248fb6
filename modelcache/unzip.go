package modelcache

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for zip entries that would be written outside
// the destination directory
var ErrUnsafePath = errors.New("zip entry escapes destination")

// maxEntrySize bounds the unpacked size of a single bundle entry
const maxEntrySize = 4 << 30

// unzip extracts the archive at src into dest
func unzip(src, dest string) error {

	r, err := zip.OpenReader(src)

	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}

	if err != nil {
		return err
	}

	defer r.Close()

	dest = filepath.Clean(dest)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {

		target := filepath.Join(dest, f.Name)

		if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := extract(f, target); err != nil {
			return fmt.Errorf("error extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

func extract(f *zip.File, target string) error {

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()

	if err != nil {
		return err
	}

	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)

	if err != nil {
		return err
	}

	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))

	if err != nil {
		return err
	}

	if n > maxEntrySize {
		return fmt.Errorf("entry larger than %d bytes", int64(maxEntrySize))
	}

	return out.Close()
}
