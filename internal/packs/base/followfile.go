package base

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

// Followfile tails a file. Each run publishes the complete lines appended
// since the previous run as a []string; a trailing partial line is held back
// until its newline arrives. Rotation (the path being replaced) and
// truncation restart reading from the beginning of the new content.
type Followfile struct {
	plugin.DataHolder

	path    string
	file    *os.File
	offset  int64
	pending []byte
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

func NewFollowfile(opts config.Options, deps plugin.Dependencies) (plugin.Source, error) {
	deps = deps.WithDefaults()
	if err := opts.Require("location"); err != nil {
		return nil, err
	}
	location, err := opts.String("location", "")
	if err != nil {
		return nil, err
	}
	path, err := config.ExpandPath(location)
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("followfile does not exist: %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("followfile is not a regular file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Followfile{
		path:    path,
		file:    f,
		offset:  offset,
		watcher: watcher,
		logger:  deps.Logger,
	}, nil
}

func (f *Followfile) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rotated := f.file == nil
	if !rotated && f.drainEvents() {
		rotated = !f.samePath()
	}

	var lines []string
	if f.file != nil {
		if !rotated {
			if info, err := f.file.Stat(); err == nil && info.Size() < f.offset {
				f.logger.Info("followfile truncated", zap.String("path", f.path))
				f.offset = 0
				f.pending = nil
			}
		}
		chunk, err := f.readFrom(f.offset)
		if err != nil {
			return err
		}
		lines = f.split(chunk)
	}

	if rotated {
		if err := f.reopen(); err != nil {
			f.SetData(lines)
			return err
		}
		chunk, err := f.readFrom(0)
		if err != nil {
			return err
		}
		lines = append(lines, f.split(chunk)...)
	}

	f.SetData(lines)
	return nil
}

// drainEvents consumes pending watcher events and reports whether the path
// may have been replaced: it was created, removed or renamed, or the watcher
// reported an error such as a queue overflow.
func (f *Followfile) drainEvents() bool {
	changed := false
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return changed
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				f.logger.Debug("followfile event", zap.String("path", f.path), zap.Stringer("op", event.Op))
				changed = true
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return changed
			}
			f.logger.Warn("followfile watcher error", zap.Error(err))
			changed = true
		default:
			return changed
		}
	}
}

func (f *Followfile) samePath() bool {
	current, err := os.Stat(f.path)
	if err != nil {
		return false
	}
	held, err := f.file.Stat()
	if err != nil {
		return false
	}
	return os.SameFile(current, held)
}

func (f *Followfile) reopen() error {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
	f.offset = 0
	f.pending = nil
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("reopen followfile: %w", err)
	}
	f.logger.Info("followfile reopened", zap.String("path", f.path))
	f.file = file
	return nil
}

func (f *Followfile) readFrom(offset int64) ([]byte, error) {
	if _, err := f.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek followfile: %w", err)
	}
	chunk, err := io.ReadAll(f.file)
	if err != nil {
		return nil, fmt.Errorf("read followfile: %w", err)
	}
	f.offset = offset + int64(len(chunk))
	return chunk, nil
}

func (f *Followfile) split(chunk []byte) []string {
	buf := append(f.pending, chunk...)
	f.pending = nil
	var lines []string
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(buf[:i], "\r \t")))
		buf = buf[i+1:]
	}
	if len(buf) > 0 {
		f.pending = append([]byte(nil), buf...)
	}
	return lines
}

func (f *Followfile) Close() error {
	var errs []error
	if f.watcher != nil {
		errs = append(errs, f.watcher.Close())
	}
	if f.file != nil {
		errs = append(errs, f.file.Close())
		f.file = nil
	}
	return errors.Join(errs...)
}
