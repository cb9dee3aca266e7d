package modboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidFileLoader is returned for a FileLoader built without a function.
var ErrInvalidFileLoader = errors.New("file loader has no function")

// FileFunc loads one file synchronously.
type FileFunc func(app *Application, path string) error

// AsyncFileFunc loads one file and calls done once finished. Only the first
// call to done counts.
type AsyncFileFunc func(app *Application, path string, done func(error))

// FileLoader is the per-file step of LoadDir and LoadFiles, created with
// SyncFile or AsyncFile.
type FileLoader struct {
	sync  FileFunc
	async AsyncFileFunc
}

// SyncFile returns a FileLoader calling fn inline.
func SyncFile(fn FileFunc) FileLoader {
	return FileLoader{sync: fn}
}

// AsyncFile returns a FileLoader that waits for fn to signal completion.
func AsyncFile(fn AsyncFileFunc) FileLoader {
	return FileLoader{async: fn}
}

// FileLoadError reports the file a LoadDir or LoadFiles run stopped at.
type FileLoadError struct {
	Path string
	Err  error
}

func (e *FileLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *FileLoadError) Unwrap() error { return e.Err }

// LoadDir loads the files of dir one at a time, in name order. Hidden files,
// directories and files named index are skipped; when ext is not empty only
// files with that extension are loaded. A relative dir is resolved with
// PathTo. The first failure stops the run and is returned.
func (app *Application) LoadDir(ctx context.Context, dir, ext string, loader FileLoader) error {
	if !filepath.IsAbs(dir) {
		dir = app.PathTo(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if ext != "" && filepath.Ext(name) != ext {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == "index" {
			continue
		}
		files = append(files, name)
	}

	return app.LoadFiles(ctx, dir, files, loader)
}

// LoadFiles loads files, relative to dir, serially in the given order. The
// first failure stops the run; an async loader is also abandoned when ctx is
// done.
func (app *Application) LoadFiles(ctx context.Context, dir string, files []string, loader FileLoader) error {
	if loader.sync == nil && loader.async == nil {
		return ErrInvalidFileLoader
	}

	for _, file := range files {
		path := file
		if dir != "" && !filepath.IsAbs(file) {
			path = filepath.Join(dir, file)
		}

		if err := ctx.Err(); err != nil {
			return &FileLoadError{Path: path, Err: err}
		}

		var err error
		if loader.async != nil {
			err = app.loadFileAsync(ctx, loader.async, path)
		} else {
			err = app.loadFileSync(loader.sync, path)
		}
		if err != nil {
			return &FileLoadError{Path: path, Err: err}
		}
		app.logger.Debug("Loaded file", "path", path)
	}
	return nil
}

func (app *Application) loadFileSync(fn FileFunc, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn(app, path)
}

func (app *Application) loadFileAsync(ctx context.Context, fn AsyncFileFunc, path string) error {
	result := make(chan error, 1)
	var once sync.Once
	done := func(err error) {
		once.Do(func() { result <- err })
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done(panicError(r))
			}
		}()
		fn(app, path, done)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		done(nil)
		return ctx.Err()
	}
}
