package docparse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/docparse/value"
)

var errNoFileName = errors.New("path has no file name component")

// ErrPathNotAllowed marks an endpoint request naming a path outside
// Config.PathRoot, or any path when Config.DenyPaths is set.
var ErrPathNotAllowed = errors.New("path not allowed")

// AllowPath reports whether an endpoint caller may name path. Direct calls
// to Parse are not checked.
func (p *Pipeline) AllowPath(path string) error {
	switch {
	case p.cfg.DenyPaths:
		return newError(KindInvalidPath, fmt.Errorf("%w: path requests are disabled, upload the file", ErrPathNotAllowed))
	case p.cfg.PathRoot == "":
		return nil
	case !within(p.cfg.PathRoot, path):
		return newError(KindInvalidPath, fmt.Errorf("%w: outside %s", ErrPathNotAllowed, p.cfg.PathRoot))
	}
	return nil
}

// within reports whether path lies under root once both are made absolute
// and symlink-free.
func within(root, path string) bool {
	root, err := resolve(root)
	if err != nil {
		return false
	}
	path, err = resolve(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve returns the absolute, symlink-free form of path. A missing file
// keeps its name under the resolved parent so not_found still surfaces.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// fileName returns the base name of path, or an invalid-path error when
// there is none (empty path, root, "." or ".." endings, non-UTF-8 names).
func fileName(path string) (string, error) {
	if path == "" {
		return "", newError(KindInvalidPath, errNoFileName)
	}
	base := filepath.Base(path)
	switch {
	case base == "." || base == ".." || base == string(filepath.Separator):
		return "", newError(KindInvalidPath, errNoFileName)
	case !utf8.ValidString(base):
		return "", newError(KindInvalidPath, errors.New("file name is not valid UTF-8"))
	}
	return base, nil
}

// extension returns the lowercased extension without the dot. A leading
// dot alone does not start an extension: ".csv" has none.
func extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// isFileWithExt is the metadata-only check behind every Validate.
func isFileWithExt(path string, ext Format) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return extension(path) == string(ext)
}

// readBufferSize clamps the file size into [8 KiB, 1 MiB].
func readBufferSize(size int64) int {
	const (
		minBuf = 8 << 10
		maxBuf = 1 << 20
	)
	switch {
	case size < minBuf:
		return minBuf
	case size > maxBuf:
		return maxBuf
	}
	return int(size)
}

// batch groups items into arrays of at most size elements. The last
// batch may be short; no empty batch is emitted.
func batch(items []value.Value, size int) []value.Value {
	out := make([]value.Value, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := make([]value.Value, end-start)
		copy(chunk, items[start:end])
		out = append(out, value.Array(chunk...))
	}
	return out
}
