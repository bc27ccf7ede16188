// Package vfs provides the directory/file abstraction that backs the
// collection data directories. It is adapted from the teacher's
// util/vfs + index/fs.go split: a real OS-backed directory for
// production use, and an in-memory directory for tests.
package vfs

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/pkg/errors"
)

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrExist        = os.ErrExist
	ErrNotExist     = os.ErrNotExist
)

func IsExist(err error) bool    { return os.IsExist(errors.Cause(err)) }
func IsNotExist(err error) bool { return os.IsNotExist(errors.Cause(err)) }

// FileReader is a readable, seekable file handle.
type FileReader interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// FileWriter is a write-then-Commit handle: the write is invisible to
// readers until Commit succeeds, matching safefile's replace-on-commit
// semantics.
type FileWriter interface {
	io.Writer
	io.Closer
	Commit() error
}

// Dir is a named root that can list, open, create and remove files,
// and rename a file within itself.
type Dir interface {
	Path() string
	OpenFile(name string) (FileReader, error)
	CreateFile(name string) (FileWriter, error)
	RemoveFile(name string) error
	RenameFile(oldName, newName string) error
	ListFiles() ([]string, error)
	Sub(name string) (Dir, error)
}

// WriteFile is a convenience wrapper that opens name for atomic
// writing, calls write, and commits, mirroring util/vfs.WriteFile.
func WriteFile(dir Dir, name string, write func(w io.Writer) error) error {
	file, err := dir.CreateFile(name)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	defer file.Close()

	if err := write(file); err != nil {
		return errors.Wrap(err, "write failed")
	}

	if err := file.Commit(); err != nil {
		return errors.Wrap(err, "commit failed")
	}

	return nil
}

// ReadFile reads the whole contents of name, or ErrNotExist.
func ReadFile(dir Dir, name string) ([]byte, error) {
	f, err := dir.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ioutil.ReadAll(f)
}

type fsDir struct {
	path string
}

// OpenDir opens a directory on the real filesystem, optionally
// creating it.
func OpenDir(path string, create bool) (Dir, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if stat, err := os.Stat(path); err != nil {
		if create && os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0750); err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}
	} else if !stat.IsDir() {
		return nil, ErrNotDirectory
	}

	return &fsDir{path: path}, nil
}

func (d *fsDir) OpenFile(name string) (FileReader, error) {
	return os.Open(filepath.Join(d.path, name))
}

func (d *fsDir) CreateFile(name string) (FileWriter, error) {
	return safefile.Create(filepath.Join(d.path, name), 0644)
}

func (d *fsDir) RemoveFile(name string) error {
	err := os.Remove(filepath.Join(d.path, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *fsDir) RenameFile(oldName, newName string) error {
	return os.Rename(filepath.Join(d.path, oldName), filepath.Join(d.path, newName))
}

func (d *fsDir) ListFiles() ([]string, error) {
	infos, err := ioutil.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (d *fsDir) Path() string { return d.path }

func (d *fsDir) Sub(name string) (Dir, error) {
	return OpenDir(filepath.Join(d.path, name), true)
}

// TempDir is a self-cleaning fsDir rooted under the OS temp directory.
type TempDir struct {
	fsDir
}

func NewTempDir() (*TempDir, error) {
	path, err := ioutil.TempDir("", "sf1r-")
	if err != nil {
		return nil, err
	}
	log.Printf("created new temp directory at %v", path)
	return &TempDir{fsDir: fsDir{path: path}}, nil
}

func (d *TempDir) Close() {
	os.RemoveAll(d.Path())
}

// memDir is an in-memory Dir used by tests.
type memDir struct {
	name    string
	entries map[string][]byte
	subs    map[string]*memDir
}

func NewMemDir() Dir {
	return &memDir{entries: make(map[string][]byte), subs: make(map[string]*memDir)}
}

type memFileReader struct {
	*bytes.Reader
}

func (f *memFileReader) Close() error { return nil }

type memFileWriter struct {
	bytes.Buffer
	dir  *memDir
	name string
}

func (f *memFileWriter) Commit() error {
	f.dir.entries[f.name] = append([]byte(nil), f.Bytes()...)
	return nil
}

func (f *memFileWriter) Close() error { return nil }

func (d *memDir) OpenFile(name string) (FileReader, error) {
	entry, ok := d.entries[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &memFileReader{Reader: bytes.NewReader(entry)}, nil
}

func (d *memDir) CreateFile(name string) (FileWriter, error) {
	return &memFileWriter{dir: d, name: name}, nil
}

func (d *memDir) RemoveFile(name string) error {
	delete(d.entries, name)
	return nil
}

func (d *memDir) RenameFile(oldName, newName string) error {
	data, ok := d.entries[oldName]
	if !ok {
		return os.ErrNotExist
	}
	d.entries[newName] = data
	delete(d.entries, oldName)
	return nil
}

func (d *memDir) ListFiles() ([]string, error) {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	return names, nil
}

func (d *memDir) Path() string { return d.name }

func (d *memDir) Sub(name string) (Dir, error) {
	if sub, ok := d.subs[name]; ok {
		return sub, nil
	}
	sub := &memDir{name: filepath.Join(d.name, name), entries: make(map[string][]byte), subs: make(map[string]*memDir)}
	d.subs[name] = sub
	return sub, nil
}
