package directory

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrDirty is returned by Guard acquisition when the directory was
// left dirty by a previously failed write.
var ErrDirty = errors.New("directory is dirty")

// Rotator owns a current/next Directory pair and the rotation that
// swaps their roles after a successful backup copy.
type Rotator struct {
	mu      sync.Mutex
	current *Directory
	next    *Directory
}

// NewRotator builds a Rotator over an already-prepared pair.
func NewRotator(current, next *Directory) *Rotator {
	return &Rotator{current: current, next: next}
}

func (r *Rotator) Current() *Directory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Rotator) Next() *Directory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Backup runs the backup protocol: if next differs from current and
// is not already a valid copy of it, copy current into next. A
// filesystem error is returned without mutating any state.
func (r *Rotator) Backup() error {
	current, next := r.Current(), r.Next()

	if next == nil || next.Name() == current.Name() {
		return nil
	}
	if next.IsValidCopyOf(current) {
		return nil
	}
	return next.CopyFrom(current)
}

// Rotate swaps the roles of current and next. Callers must only
// rotate after a successful Backup.
func (r *Rotator) Rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current, r.next = r.next, r.current
}

// Guard is a scope-held lock on a Directory's write path. Acquiring a
// guard on a dirty directory fails immediately; if the guarded write
// fails, the guard must be released via Fail so subsequent
// acquisitions also fail until Directory.Reset runs.
type Guard struct {
	dir      *Directory
	released bool
}

// AcquireGuard acquires a write guard on dir, failing with ErrDirty if
// dir was left dirty by a previous failed write.
func AcquireGuard(dir *Directory) (*Guard, error) {
	if dir.Dirty() {
		return nil, errors.Wrapf(ErrDirty, "directory %v", dir.Name())
	}
	return &Guard{dir: dir}, nil
}

// Release drops the guard without altering validity, the normal path
// after a successful write.
func (g *Guard) Release() {
	g.released = true
}

// Fail marks the guarded directory dirty and drops the guard. Call
// this when the write the guard protected has failed.
func (g *Guard) Fail() {
	if g.released {
		return
	}
	g.released = true
	g.dir.markDirty()
}
