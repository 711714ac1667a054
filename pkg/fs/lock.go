package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrWouldBlock is returned by TryLock/TryRLock when the lock is held elsewhere.
var ErrWouldBlock = errors.New("fs: lock would block")

// ErrInvalidTimeout is returned when a non-positive timeout is passed to a
// timed lock call.
var ErrInvalidTimeout = errors.New("fs: invalid timeout")

var errInodeMismatch = errors.New("fs: file replaced during lock acquisition")

type lockType int

const (
	sharedLock    lockType = syscall.LOCK_SH
	exclusiveLock lockType = syscall.LOCK_EX
)

const lockPollMinInterval = time.Millisecond
const lockPollMaxInterval = 25 * time.Millisecond

// Locker acquires advisory flock-based locks on files identified by path.
//
// Locks are per-path, not per-handle: two Lockers (in the same process or
// different ones) contending for the same path block each other. A Locker
// does not itself prevent a path from being unlinked and recreated while a
// lock is held; Lock and RLock detect that race and retry rather than
// silently locking the wrong inode.
type Locker struct {
	fs FS
}

// NewLocker returns a Locker that opens lock target files through fsys.
func NewLocker(fsys FS) *Locker {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Locker{fs: fsys}
}

// Lock is a held advisory lock. Close releases it. Close is idempotent and
// safe to call multiple times.
type Lock struct {
	file   File
	closed bool
}

// Close releases the lock and closes the underlying file descriptor.
func (l *Lock) Close() error {
	if l.closed {
		return nil
	}

	l.closed = true

	unlockErr := flockRetryEINTR(l.file.Fd(), syscall.LOCK_UN)
	closeErr := l.file.Close()

	return errors.Join(unlockErr, closeErr)
}

// Lock acquires an exclusive lock on path, blocking until it is available.
func (lk *Locker) Lock(path string) (*Lock, error) {
	return lk.lockBlocking(path, exclusiveLock)
}

// RLock acquires a shared lock on path, blocking until it is available.
func (lk *Locker) RLock(path string) (*Lock, error) {
	return lk.lockBlocking(path, sharedLock)
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns ErrWouldBlock if the lock is currently held elsewhere.
func (lk *Locker) TryLock(path string) (*Lock, error) {
	return lk.lockPolling(path, exclusiveLock, 0)
}

// TryRLock attempts to acquire a shared lock without blocking.
func (lk *Locker) TryRLock(path string) (*Lock, error) {
	return lk.lockPolling(path, sharedLock, 0)
}

// LockWithTimeout acquires an exclusive lock, polling with backoff until
// timeout elapses. Returns ErrWouldBlock if the deadline passes first.
func (lk *Locker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	return lk.lockPolling(path, exclusiveLock, timeout)
}

// RLockWithTimeout acquires a shared lock, polling with backoff until
// timeout elapses.
func (lk *Locker) RLockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}

	return lk.lockPolling(path, sharedLock, timeout)
}

func (lk *Locker) lockBlocking(path string, lt lockType) (*Lock, error) {
	for {
		file, err := lk.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("fs: open lock file %q: %w", path, err)
		}

		flockErr := flockRetryEINTR(file.Fd(), int(lt))
		if flockErr != nil {
			file.Close()
			return nil, fmt.Errorf("fs: flock %q: %w", path, flockErr)
		}

		if checkErr := checkSameInode(lk.fs, path, file); checkErr != nil {
			file.Close()

			if errors.Is(checkErr, errInodeMismatch) {
				continue
			}

			return nil, checkErr
		}

		return &Lock{file: file}, nil
	}
}

func (lk *Locker) lockPolling(path string, lt lockType, timeout time.Duration) (*Lock, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = nowFunc().Add(timeout)
	}

	interval := lockPollMinInterval

	for {
		file, err := lk.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("fs: open lock file %q: %w", path, err)
		}

		flockErr := flockRetryEINTR(file.Fd(), int(lt)|syscall.LOCK_NB)
		if flockErr == nil {
			if checkErr := checkSameInode(lk.fs, path, file); checkErr != nil {
				file.Close()

				if errors.Is(checkErr, errInodeMismatch) {
					continue
				}

				return nil, checkErr
			}

			return &Lock{file: file}, nil
		}

		file.Close()

		if !errors.Is(flockErr, syscall.EWOULDBLOCK) && !errors.Is(flockErr, syscall.EAGAIN) {
			return nil, fmt.Errorf("fs: flock %q: %w", path, flockErr)
		}

		if deadline.IsZero() {
			return nil, ErrWouldBlock
		}

		if nowFunc().After(deadline) {
			return nil, ErrWouldBlock
		}

		time.Sleep(interval)

		interval *= 2
		if interval > lockPollMaxInterval {
			interval = lockPollMaxInterval
		}
	}
}

// checkSameInode guards against the classic flock race: path is unlinked
// and recreated between open and flock, leaving the lock held on an orphan
// inode nobody else can see. Comparing the just-opened fd's stat against a
// fresh stat of path detects that and signals a retry.
func checkSameInode(fsys FS, path string, file File) error {
	fdInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("fs: stat locked fd for %q: %w", path, err)
	}

	pathInfo, err := fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errInodeMismatch
		}

		return fmt.Errorf("fs: stat %q: %w", path, err)
	}

	if !os.SameFile(fdInfo, pathInfo) {
		return errInodeMismatch
	}

	return nil
}

func flockRetryEINTR(fd uintptr, how int) error {
	for {
		err := syscall.Flock(int(fd), how)
		if err == nil {
			return nil
		}

		if errors.Is(err, syscall.EINTR) {
			continue
		}

		return err
	}
}

// nowFunc is a var so tests can't need a toolchain-unavailable mock lib;
// kept as a seam for future fault injection.
var nowFunc = time.Now
