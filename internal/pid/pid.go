// Package pid guards host-wide measurements with a locked PID file. Host
// meters read machine-wide counters, so two concurrent windows would count
// each other.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
)

const DefaultFile = "carbonwise.pid"

var (
	mu   sync.Mutex
	held = map[string]*os.File{}
)

// DefaultPath is the PID file in the system temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), DefaultFile)
}

// Write takes an exclusive lock on path and records the current process in
// it. It fails with meter_busy while any open description holds the lock,
// this process included. The kernel drops the lock when its holder exits, so
// a file left by a dead process is simply reused.
func Write(path string) error {
	errFactory := errors.New()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return errFactory.Wrap(errors.ErrIO, err)
		}

		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			f.Close()
			if err == syscall.EWOULDBLOCK {
				owner, _ := readOwner(path)
				return errFactory.WithData(errors.ErrMeterBusy, owner)
			}
			return errFactory.Wrap(errors.ErrIO, err)
		}

		// The holder may have unlinked path between our open and flock.
		if !samePath(f, path) {
			f.Close()
			continue
		}

		if err := record(f); err != nil {
			f.Close()
			return errFactory.Wrap(errors.ErrIO, err)
		}

		mu.Lock()
		held[path] = f
		mu.Unlock()

		return nil
	}
}

// Remove releases the lock on path taken by Write and deletes the file. It
// does nothing when this process does not hold path.
func Remove(path string) error {
	mu.Lock()
	f, ok := held[path]
	delete(held, path)
	mu.Unlock()

	if !ok {
		return nil
	}

	errFactory := errors.New()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.Close()
		return errFactory.Wrap(errors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return errFactory.Wrap(errors.ErrIO, err)
	}

	return nil
}

func record(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}

	return f.Sync()
}

func samePath(f *os.File, path string) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	pi, err := os.Stat(path)
	if err != nil {
		return false
	}

	return os.SameFile(fi, pi)
}

func readOwner(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	owner, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || owner <= 0 {
		logger.Debug().Str("path", path).Msg("Unreadable PID file")
		return 0, false
	}

	return owner, true
}
