// Package fs provides a directory-backed sitezip.ArchiveWriter with atomic
// commit semantics.
package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/sitezip"
)

// Ensure DirWriter implements sitezip.ArchiveWriter at compile time.
var _ sitezip.ArchiveWriter = (*DirWriter)(nil)

// DirWriter writes archive entries as files below a directory.
// Entries are written to baseDir/name.tmp and moved to baseDir/name on Close;
// Abort removes the temporary directory.
//
// A URL path may be both a file and a directory on the site ("/docs" and
// "/docs/intro"). When an entry needs a directory where a file already
// exists, the file is moved to index.html inside that directory, and an
// entry whose path is an existing directory is written to its index.html.
type DirWriter struct {
	baseDir string
	name    string
	names   map[string]struct{}
	closed  bool
}

// NewDirWriter creates a new DirWriter.
// baseDir is the parent directory, name is the output directory name.
func NewDirWriter(baseDir, name string) *DirWriter {
	return &DirWriter{
		baseDir: baseDir,
		name:    name,
		names:   make(map[string]struct{}),
	}
}

func (w *DirWriter) tempDir() string {
	return filepath.Join(w.baseDir, w.name+".tmp")
}

func (w *DirWriter) finalDir() string {
	return filepath.Join(w.baseDir, w.name)
}

// Append writes body to path below the temporary directory.
func (w *DirWriter) Append(path string, body []byte) error {
	if w.closed {
		return sitezip.Errorf(sitezip.EINTERNAL, "archive is closed")
	}
	if _, ok := w.names[path]; ok {
		return sitezip.Errorf(sitezip.ECONFLICT, "duplicate archive entry %q", path)
	}

	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return sitezip.Errorf(sitezip.EINVALID, "entry %q escapes the archive: path traversal", path)
	}

	root := w.tempDir()
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if err := makeDirs(root, filepath.Dir(rel)); err != nil {
		return err
	}

	full := filepath.Join(root, rel)
	if fi, err := os.Stat(full); err == nil && fi.IsDir() {
		full = filepath.Join(full, sitezip.IndexFile)
		if _, err := os.Stat(full); err == nil {
			return sitezip.Errorf(sitezip.ECONFLICT, "archive entry %q clashes with an existing directory index", path)
		}
	}

	if err := os.WriteFile(full, body, 0644); err != nil {
		return err
	}
	w.names[path] = struct{}{}
	return nil
}

// makeDirs creates dir below root one component at a time, moving any file
// that occupies a component to index.html inside the new directory.
func makeDirs(root, dir string) error {
	if dir == "." {
		return nil
	}
	cur := root
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Stat(cur)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if err := os.Mkdir(cur, 0755); err != nil {
				return err
			}
		case err != nil:
			return err
		case !fi.IsDir():
			moved := cur + ".sitezip-move"
			if err := os.Rename(cur, moved); err != nil {
				return err
			}
			if err := os.Mkdir(cur, 0755); err != nil {
				return err
			}
			if err := os.Rename(moved, filepath.Join(cur, sitezip.IndexFile)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close replaces the final directory with the temporary one.
func (w *DirWriter) Close() error {
	if w.closed {
		return sitezip.Errorf(sitezip.EINTERNAL, "archive is closed")
	}
	w.closed = true

	if err := os.MkdirAll(w.tempDir(), 0755); err != nil {
		return err
	}

	// Only an empty final directory is replaced.
	if err := w.CheckTarget(); err != nil {
		return err
	}
	if err := os.Remove(w.finalDir()); err != nil && !os.IsNotExist(err) {
		return err
	}

	// Atomically rename temp to final
	return os.Rename(w.tempDir(), w.finalDir())
}

// CheckTarget returns EINVALID unless the final directory is absent or empty.
// Existing content is never overwritten.
func (w *DirWriter) CheckTarget() error {
	if w.name == "" || w.name == "." || w.name == ".." || strings.ContainsAny(w.name, `/\`) {
		return sitezip.Errorf(sitezip.EINVALID, "invalid output directory name %q", w.name)
	}
	fi, err := os.Lstat(w.finalDir())
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	if !fi.IsDir() {
		return sitezip.Errorf(sitezip.EINVALID, "output path %s exists and is not a directory", w.finalDir())
	}
	entries, err := os.ReadDir(w.finalDir())
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return sitezip.Errorf(sitezip.EINVALID, "output directory %s is not empty", w.finalDir())
	}
	return nil
}

// Abort discards everything written so far.
func (w *DirWriter) Abort() error {
	w.closed = true
	return os.RemoveAll(w.tempDir())
}
