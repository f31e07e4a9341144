// Package tailer follows a growing log file and hands each complete,
// non-blank line to a callback on the caller's goroutine.
package tailer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Follower watches one file. Lines are delivered in file order and the
// callback is never invoked concurrently.
type Follower struct {
	// FromStart replays existing content before following.
	FromStart bool
	// PollInterval is the stat fallback for filesystems without events.
	PollInterval time.Duration
	Logger       *slog.Logger

	path    string
	file    *os.File
	offset  int64
	partial string
}

func New(path string) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("file does not exist: %s", abs)
	}
	return &Follower{path: abs, PollInterval: 250 * time.Millisecond}, nil
}

// Path returns the absolute path being followed.
func (f *Follower) Path() string { return f.path }

// Run blocks until ctx is done. handle receives lines without the trailing newline.
func (f *Follower) Run(ctx context.Context, handle func(line string)) error {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory so rotation (remove + create) is seen
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	if err := f.open(); err != nil {
		return err
	}
	defer f.close()

	if !f.FromStart {
		info, err := f.file.Stat()
		if err != nil {
			return err
		}
		f.offset = info.Size()
	}
	if err := f.drain(ctx, handle); err != nil {
		return stopErr(err)
	}

	interval := f.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != f.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				if err = f.reopen(); err == nil {
					err = f.drain(ctx, handle)
				}
			case event.Has(fsnotify.Write):
				err = f.poll(ctx, handle)
			default:
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("follow read failed", "path", f.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "path", f.path, "error", err)
		case <-ticker.C:
			if err := f.poll(ctx, handle); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Debug("follow poll failed", "path", f.path, "error", err)
			}
		}
	}
}

func (f *Follower) open() error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	f.file = file
	f.offset = 0
	f.partial = ""
	return nil
}

func (f *Follower) close() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
}

// reopen switches to a recreated file and starts at its beginning.
func (f *Follower) reopen() error {
	f.close()
	return f.open()
}

// poll covers missed events: growth, copytruncate, and rotation.
func (f *Follower) poll(ctx context.Context, handle func(string)) error {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.file == nil {
		if err := f.open(); err != nil {
			return err
		}
	} else if cur, err := f.file.Stat(); err == nil && !os.SameFile(cur, info) {
		if err := f.reopen(); err != nil {
			return err
		}
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = ""
	}
	if info.Size() > f.offset {
		return f.drain(ctx, handle)
	}
	return nil
}

// drain delivers every complete line after offset. A trailing partial line is
// held until its newline arrives.
func (f *Follower) drain(ctx context.Context, handle func(string)) error {
	if f.file == nil {
		return nil
	}
	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f.file)
	for {
		chunk, err := r.ReadString('\n')
		f.offset += int64(len(chunk))
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.partial += chunk
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		line := strings.TrimRight(f.partial+chunk, "\r\n")
		f.partial = ""
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		handle(line)
	}
}

func stopErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
