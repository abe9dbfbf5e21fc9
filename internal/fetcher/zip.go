package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP writes the archive's regular files under destDir and returns
// their paths in archive order. A nil keep extracts every file; otherwise
// only entries whose name keep accepts. Directory entries and macOS resource
// forks (__MACOSX/, ._*) are skipped.
func ExtractZIP(zipPath, destDir string, keep func(name string) bool) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	var out []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || isResourceFork(f.Name) {
			continue
		}
		if keep != nil && !keep(f.Name) {
			continue
		}
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, root) {
			return out, eris.Errorf("zip: entry %q escapes the destination", f.Name)
		}
		if err := copyEntry(f, dest); err != nil {
			return out, err
		}
		out = append(out, dest)
	}
	return out, nil
}

// HasExt returns a keep filter matching any of exts, case-insensitively.
func HasExt(exts ...string) func(string) bool {
	return func(name string) bool {
		ext := path.Ext(name)
		for _, e := range exts {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	}
}

// FindByExt returns the first path with the given extension (case-insensitive).
func FindByExt(paths []string, ext string) (string, bool) {
	match := HasExt(ext)
	for _, p := range paths {
		if match(filepath.ToSlash(p)) {
			return p, true
		}
	}
	return "", false
}

func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

func copyEntry(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "zip: create %s", filepath.Dir(dest))
	}
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	w, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close() //nolint:errcheck
		return eris.Wrapf(err, "zip: write %s", dest)
	}
	return eris.Wrapf(w.Close(), "zip: close %s", dest)
}
