// Package directory implements the current/next directory pair that
// lets the index worker and recommend task service rebuild online:
// one root is always live, the other a prepared backup target, with
// a dirty-marking guard protecting every write path.
package directory

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/internal/vfs"
)

// appendLogName is the file recording every bundle filename whose
// mutations have been durably absorbed into a directory.
const appendLogName = ".append.log"

// Directory is one named on-disk root participating in a Rotator
// pair.
type Directory struct {
	mu         sync.Mutex
	name       string
	parentName string
	dir        vfs.Dir
	validFlag  bool
	dirty      bool
	appendLog  []string
}

// NewDirectory wraps an already-open vfs.Dir under name.
func NewDirectory(name string, dir vfs.Dir) *Directory {
	return &Directory{name: name, dir: dir}
}

func (d *Directory) Name() string { return d.name }

func (d *Directory) ParentName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parentName
}

func (d *Directory) Valid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validFlag && !d.dirty
}

func (d *Directory) Dir() vfs.Dir { return d.dir }

// Dirty reports whether the directory was marked dirty by a guard
// whose held write failed.
func (d *Directory) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Reset clears the dirty flag, the one sanctioned external recovery
// action after investigating a failed write.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
}

// ScdLogPath returns the relative path of the append-log file inside
// the directory.
func (d *Directory) ScdLogPath() string { return appendLogName }

// AppendSCD records name as durably absorbed. The in-memory log is
// mirrored to disk so RecoverMissedBundles can consult it after a
// restart.
func (d *Directory) AppendSCD(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.appendLog = append(d.appendLog, name)
	return vfs.WriteFile(d.dir, appendLogName, func(w io.Writer) error {
		for _, n := range d.appendLog {
			if _, err := io.WriteString(w, n+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendLog returns the list of filenames previously recorded via
// AppendSCD, loading it from disk on first use.
func (d *Directory) AppendLog() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.appendLog != nil {
		return append([]string(nil), d.appendLog...), nil
	}

	data, err := vfs.ReadFile(d.dir, appendLogName)
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				names = append(names, string(data[start:i]))
			}
			start = i + 1
		}
	}
	d.appendLog = names
	return append([]string(nil), names...), nil
}

// CopyFrom copies every file from other into d, marking d valid as a
// copy of other on success. A filesystem error leaves d's state
// unchanged.
func (d *Directory) CopyFrom(other *Directory) error {
	names, err := other.dir.ListFiles()
	if err != nil {
		return errors.Wrap(err, "failed to list source directory")
	}

	for _, name := range names {
		if name == appendLogName {
			continue
		}
		r, err := other.dir.OpenFile(name)
		if err != nil {
			return errors.Wrapf(err, "failed to open %v", name)
		}
		werr := vfs.WriteFile(d.dir, name, func(w io.Writer) error {
			_, err := io.Copy(w, r)
			return err
		})
		r.Close()
		if werr != nil {
			return errors.Wrapf(werr, "failed to copy %v", name)
		}
	}

	d.mu.Lock()
	d.parentName = other.name
	d.validFlag = true
	d.mu.Unlock()
	return nil
}

// IsValidCopyOf reports whether d is already marked as a valid copy
// of other, letting CopyFrom's caller skip a redundant copy.
func (d *Directory) IsValidCopyOf(other *Directory) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validFlag && d.parentName == other.name
}

func (d *Directory) markDirty() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
}
