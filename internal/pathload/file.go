package pathload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader reads a whole file given its absolute path. The build picks the
// implementation returned by OSFiles.
type FileLoader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// FSFiles serves reads from fsys, treating absolute paths as rooted at the
// top of fsys. Useful for embedded assets and tests.
func FSFiles(fsys fs.FS) FileLoader {
	return fsFiles{fsys: fsys}
}

type fsFiles struct{ fsys fs.FS }

func (f fsFiles) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
	if vol := filepath.VolumeName(path); vol != "" {
		name = strings.TrimPrefix(strings.TrimPrefix(name, filepath.ToSlash(vol)), "/")
	}
	if name == "" {
		name = "."
	}
	return fs.ReadFile(f.fsys, name)
}

// resolvePath makes p absolute against base, or against the process working
// directory when base is empty. A relative base is itself taken relative to
// the working directory.
func resolvePath(base, p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	if !filepath.IsAbs(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return "", err
		}
		base = abs
	}
	return filepath.Join(base, p), nil
}
