package link

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchlabs/localbench/settings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings(workDir string) *settings.Settings {
	return &settings.Settings{
		CloudProvider: "local",
		WorkingDir:    workDir,
		Repository: settings.Repository{
			URL: "https://github.com/benchlabs/consensus-node.git",
		},
	}
}

func TestRedirectCreatesSymlink(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "working_dir")
	projectRoot := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))

	linkPath, err := Redirect(testSettings(workDir), projectRoot, testLogger())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workDir, "consensus-node"), linkPath)

	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, projectRoot, target)
}

func TestRedirectMovesRealDirectoryAside(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "working_dir")
	projectRoot := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(projectRoot, 0o755))

	// A real checkout already sits at the link path.
	checkout := filepath.Join(workDir, "consensus-node")
	require.NoError(t, os.MkdirAll(checkout, 0o755))
	require.NoError(t,
		os.WriteFile(filepath.Join(checkout, "marker"), []byte("keep"), 0o644),
	)

	linkPath, err := Redirect(testSettings(workDir), projectRoot, testLogger())
	require.NoError(t, err)

	// The original directory survives intact under the backup name.
	kept, err := os.ReadFile(filepath.Join(checkout+".bak", "marker"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))

	info, err := os.Lstat(linkPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, projectRoot, target)
}

func TestRedirectReplacesStaleSymlink(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "working_dir")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	oldTarget := filepath.Join(dir, "old-project")
	newTarget := filepath.Join(dir, "new-project")
	require.NoError(t, os.MkdirAll(oldTarget, 0o755))
	require.NoError(t, os.MkdirAll(newTarget, 0o755))

	linkPath := filepath.Join(workDir, "consensus-node")
	require.NoError(t, os.Symlink(oldTarget, linkPath))

	got, err := Redirect(testSettings(workDir), newTarget, testLogger())
	require.NoError(t, err)
	require.Equal(t, linkPath, got)

	target, err := os.Readlink(linkPath)
	require.NoError(t, err)
	assert.Equal(t, newTarget, target)

	// No backup is made for a symlink, it is simply replaced.
	_, err = os.Lstat(linkPath + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestRedirectMissingSettings(t *testing.T) {
	dir := t.TempDir()

	s := testSettings("")
	_, err := Redirect(s, dir, testLogger())
	require.ErrorIs(t, err, settings.ErrMissingField)

	s = testSettings(filepath.Join(dir, "working_dir"))
	s.Repository.URL = ""
	_, err = Redirect(s, dir, testLogger())
	require.ErrorIs(t, err, settings.ErrMissingField)
}
