package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/sitezip"
	"github.com/fwojciec/sitezip/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Story: Atomic Directory Output
// The writer uses a temp directory so an interrupted run leaves nothing behind

func TestDirWriter_AppendWritesToTempDirectory(t *testing.T) {
	t.Parallel()

	// Given a writer targeting a directory
	base := t.TempDir()
	w := fs.NewDirWriter(base, "output")

	// When I append an entry
	err := w.Append("example.com/css/site.css", []byte("body{}"))

	// Then no error occurs
	require.NoError(t, err)

	// And the file exists in the temp directory (not final)
	_, err = os.Stat(filepath.Join(base, "output.tmp", "example.com", "css", "site.css"))
	require.NoError(t, err, "file should exist in temp directory")

	// And final directory does not exist yet
	_, err = os.Stat(filepath.Join(base, "output"))
	assert.True(t, os.IsNotExist(err), "final directory should not exist until close")
}

func TestDirWriter_CloseMovesFromTempToFinal(t *testing.T) {
	t.Parallel()

	// Given a writer with entries
	base := t.TempDir()
	w := fs.NewDirWriter(base, "output")
	require.NoError(t, w.Append("example.com/index.html", []byte("<html></html>")))

	// When I close
	require.NoError(t, w.Close())

	// Then the final directory holds the content
	content, err := os.ReadFile(filepath.Join(base, "output", "example.com", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(content))

	// And temp directory is gone
	_, err = os.Stat(filepath.Join(base, "output.tmp"))
	assert.True(t, os.IsNotExist(err), "temp directory should be removed after close")
}

func TestDirWriter_NeverOverwritesExistingContent(t *testing.T) {
	t.Parallel()

	t.Run("close keeps a non-empty target untouched", func(t *testing.T) {
		t.Parallel()

		// Given a target directory holding a user's file
		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, "mydocs"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(base, "mydocs", "thesis.txt"), []byte("draft"), 0644))
		w := fs.NewDirWriter(base, "mydocs")
		require.NoError(t, w.Append("example.com/index.html", []byte("<html></html>")))

		// When I close and then abort
		err := w.Close()
		require.NoError(t, w.Abort())

		// Then close is refused and the user's file survives
		require.Error(t, err)
		assert.Equal(t, sitezip.EINVALID, sitezip.ErrorCode(err))
		content, err := os.ReadFile(filepath.Join(base, "mydocs", "thesis.txt"))
		require.NoError(t, err)
		assert.Equal(t, "draft", string(content))
		assert.NoDirExists(t, filepath.Join(base, "mydocs.tmp"))
	})

	t.Run("an empty target is replaced", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, "out"), 0755))
		w := fs.NewDirWriter(base, "out")
		require.NoError(t, w.CheckTarget())
		require.NoError(t, w.Append("a.txt", []byte("a")))

		require.NoError(t, w.Close())

		assert.FileExists(t, filepath.Join(base, "out", "a.txt"))
	})

	t.Run("check target rejects files and dot names", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(base, "file"), []byte("x"), 0644))

		for _, name := range []string{"file", ".", ".."} {
			err := fs.NewDirWriter(base, name).CheckTarget()
			assert.Equal(t, sitezip.EINVALID, sitezip.ErrorCode(err), name)
		}
	})
}

func TestDirWriter_AbortCleansUpTempDirectory(t *testing.T) {
	t.Parallel()

	// Given a writer with entries
	base := t.TempDir()
	w := fs.NewDirWriter(base, "output")
	require.NoError(t, w.Append("example.com/index.html", []byte("<html></html>")))

	// When I abort
	require.NoError(t, w.Abort())

	// Then neither directory exists
	_, err := os.Stat(filepath.Join(base, "output.tmp"))
	assert.True(t, os.IsNotExist(err), "temp directory should be removed after abort")
	_, err = os.Stat(filepath.Join(base, "output"))
	assert.True(t, os.IsNotExist(err), "final directory should not exist after abort")

	// And later appends fail
	assert.Error(t, w.Append("example.com/late.html", nil))
}

func TestDirWriter_RejectsDuplicatePath(t *testing.T) {
	t.Parallel()

	w := fs.NewDirWriter(t.TempDir(), "output")
	require.NoError(t, w.Append("example.com/index.html", []byte("first")))

	err := w.Append("example.com/index.html", []byte("second"))

	assert.Equal(t, sitezip.ECONFLICT, sitezip.ErrorCode(err))
}

func TestDirWriter_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	w := fs.NewDirWriter(t.TempDir(), "output")

	err := w.Append("../../etc/passwd", []byte("bad content"))

	require.Error(t, err, "path traversal should be rejected")
	assert.Contains(t, err.Error(), "path traversal")
}

func TestDirWriter_FileAndDirectoryShareAPath(t *testing.T) {
	t.Parallel()

	t.Run("file written before nested entry moves to index.html", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		w := fs.NewDirWriter(base, "output")
		require.NoError(t, w.Append("example.com/docs", []byte("docs page")))
		require.NoError(t, w.Append("example.com/docs/intro", []byte("intro page")))
		require.NoError(t, w.Close())

		index, err := os.ReadFile(filepath.Join(base, "output", "example.com", "docs", "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "docs page", string(index))
		intro, err := os.ReadFile(filepath.Join(base, "output", "example.com", "docs", "intro"))
		require.NoError(t, err)
		assert.Equal(t, "intro page", string(intro))
	})

	t.Run("file written after nested entry lands in index.html", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		w := fs.NewDirWriter(base, "output")
		require.NoError(t, w.Append("example.com/docs/intro", []byte("intro page")))
		require.NoError(t, w.Append("example.com/docs", []byte("docs page")))
		require.NoError(t, w.Close())

		index, err := os.ReadFile(filepath.Join(base, "output", "example.com", "docs", "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "docs page", string(index))
	})
}
