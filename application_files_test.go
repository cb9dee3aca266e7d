package modboot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
	}
}

func TestLoadDirLoadsFilesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.yaml", "a.yaml", ".hidden.yaml", "index.yaml", "notes.txt", "nested/c.yaml")

	app, _, _ := newTestApp(t, nil)

	var loaded []string
	err := app.LoadDir(context.Background(), dir, ".yaml", SyncFile(func(_ *Application, path string) error {
		loaded = append(loaded, filepath.Base(path))
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, loaded)
}

func TestLoadDirWithoutExtensionLoadsEveryFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.yaml", "a.txt", "index.js")

	app, _, _ := newTestApp(t, nil)

	var loaded []string
	err := app.LoadDir(context.Background(), dir, "", SyncFile(func(_ *Application, path string) error {
		loaded = append(loaded, filepath.Base(path))
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.yaml"}, loaded)
}

func TestLoadDirResolvesRelativeDirs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "routes/users.yaml")

	app, _, _ := newTestApp(t, nil, WithRootPath(root))

	var loaded []string
	err := app.LoadDir(context.Background(), "routes", ".yaml", SyncFile(func(_ *Application, path string) error {
		loaded = append(loaded, path)
		return nil
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "routes", "users.yaml")}, loaded)
}

func TestLoadDirStopsAtFirstError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.yaml", "b.yaml", "c.yaml")

	app, _, _ := newTestApp(t, nil)

	var loaded []string
	err := app.LoadDir(context.Background(), dir, ".yaml", SyncFile(func(_ *Application, path string) error {
		loaded = append(loaded, filepath.Base(path))
		if filepath.Base(path) == "b.yaml" {
			return errDiskFull
		}
		return nil
	}))

	var loadErr *FileLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, "b.yaml"), loadErr.Path)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, loaded)
}

func TestLoadDirMissingDir(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	err := app.LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), "", SyncFile(func(*Application, string) error {
		return nil
	}))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFilesAsync(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	var loaded []string
	err := app.LoadFiles(context.Background(), "conf", []string{"b", "a"}, AsyncFile(func(_ *Application, path string, done func(error)) {
		go func() {
			loaded = append(loaded, path)
			done(nil)
			done(errDiskFull)
		}()
	}))

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("conf", "b"), filepath.Join("conf", "a")}, loaded)
}

func TestLoadFilesAsyncError(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	errParse := errors.New("parse error")

	err := app.LoadFiles(context.Background(), "", []string{"a", "b"}, AsyncFile(func(_ *Application, path string, done func(error)) {
		done(errParse)
	}))

	var loadErr *FileLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "a", loadErr.Path)
	assert.ErrorIs(t, err, errParse)
}

func TestLoadFilesAsyncCancelled(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.LoadFiles(ctx, "", []string{"stuck"}, AsyncFile(func(_ *Application, _ string, _ func(error)) {
		cancel()
	}))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFilesRecoversPanics(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	err := app.LoadFiles(context.Background(), "", []string{"a"}, SyncFile(func(*Application, string) error {
		panic("bad file")
	}))

	assert.EqualError(t, err, "failed to load a: panic: bad file")
	assert.NotEmpty(t, StackTrace(err))
}

func TestLoadFilesRequiresAFunction(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	assert.ErrorIs(t, app.LoadFiles(context.Background(), "", []string{"a"}, FileLoader{}), ErrInvalidFileLoader)
}
