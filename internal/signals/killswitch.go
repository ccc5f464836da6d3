// Package signals implements a file-based kill switch: dropping a
// "stop-<thread id>" file into the signals directory cancels that thread's
// running research. Each thread has its own file, so concurrent runs sharing
// a signals directory never clear or trip each other.
package signals

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// stopPrefix prefixes the per-thread stop file name.
const stopPrefix = "stop-"

// StopFile returns the name of the file that trips the switch for threadID.
func StopFile(threadID string) string {
	return stopPrefix + threadID
}

// ErrStopped is the cancellation cause of contexts derived by Context.
var ErrStopped = errors.New("stop signal received")

// pollInterval is used when the watcher cannot be started.
const pollInterval = 500 * time.Millisecond

// KillSwitch watches a directory for one thread's stop file.
type KillSwitch struct {
	dir  string
	name string

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates the directory if needed and starts watching it for the stop
// file of threadID. When fsnotify is unavailable the directory is polled
// instead.
func New(dir, threadID string) (*KillSwitch, error) {
	if threadID == "" {
		return nil, errors.New("kill switch needs a thread id")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	ks := &KillSwitch{
		dir:    dir,
		name:   StopFile(threadID),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	if watcher, err := fsnotify.NewWatcher(); err == nil {
		if err := watcher.Add(dir); err == nil {
			ks.watcher = watcher
		} else {
			watcher.Close()
		}
	}

	ks.wg.Add(1)
	go ks.watch()
	return ks, nil
}

func (ks *KillSwitch) watch() {
	defer ks.wg.Done()

	var events <-chan fsnotify.Event
	var errs <-chan error
	var tick <-chan time.Time
	if ks.watcher != nil {
		events = ks.watcher.Events
		errs = ks.watcher.Errors
	} else {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ks.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == ks.name && event.Op&(fsnotify.Create|fsnotify.Write) != 0 && ks.fileExists() {
				ks.trigger()
			}
		case _, ok := <-errs:
			if !ok {
				return
			}
		case <-tick:
			if ks.fileExists() {
				ks.trigger()
			}
		}
	}
}

func (ks *KillSwitch) fileExists() bool {
	_, err := os.Stat(ks.Path())
	return err == nil
}

func (ks *KillSwitch) trigger() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if !ks.stopped {
		ks.stopped = true
		close(ks.stopCh)
	}
}

// Stopped reports whether the stop file has been seen.
func (ks *KillSwitch) Stopped() bool {
	// The watcher may have missed the event.
	if ks.fileExists() {
		ks.trigger()
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.stopped
}

// Context returns a child of parent that is cancelled with ErrStopped
// once the switch trips.
func (ks *KillSwitch) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	ks.mu.Lock()
	stopCh := ks.stopCh
	ks.mu.Unlock()

	ks.wg.Add(1)
	go func() {
		defer ks.wg.Done()
		select {
		case <-stopCh:
			cancel(ErrStopped)
		case <-ctx.Done():
		case <-ks.done:
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Send writes the stop file.
func (ks *KillSwitch) Send() error {
	return Send(ks.dir, strings.TrimPrefix(ks.name, stopPrefix))
}

// Send writes the stop file for threadID into dir without watching it.
func Send(dir, threadID string) error {
	if threadID == "" {
		return errors.New("stop signal needs a thread id")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, StopFile(threadID))
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop file and re-arms the switch. A missing file is not
// an error. If the file cannot be removed the switch stays tripped. Contexts
// derived before Clear keep their state.
func (ks *KillSwitch) Clear() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if err := os.Remove(ks.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear stop file: %w", err)
	}
	if ks.stopped {
		ks.stopped = false
		ks.stopCh = make(chan struct{})
	}
	return nil
}

// Dir returns the watched directory.
func (ks *KillSwitch) Dir() string {
	return ks.dir
}

// Path returns the stop file this switch watches for.
func (ks *KillSwitch) Path() string {
	return filepath.Join(ks.dir, ks.name)
}

// Close stops watching and waits for background goroutines.
func (ks *KillSwitch) Close() error {
	close(ks.done)
	var err error
	if ks.watcher != nil {
		err = ks.watcher.Close()
	}
	ks.wg.Wait()
	return err
}
