package scd

import (
	"io"
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/internal/vfs"
)

// backupSubdir is the sibling directory scanned bundle files are
// moved into after a successful build pass.
const backupSubdir = "backup"

// Scan lists dir, keeps only regular files matching the bundle
// filename grammar, logs and skips the rest, and returns them ordered
// by the canonical filename comparator.
func Scan(dir vfs.Dir) ([]FileName, error) {
	names, err := dir.ListFiles()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bundle directory")
	}

	files := make([]FileName, 0, len(names))
	for _, name := range names {
		fn, err := ParseFileName(name)
		if err != nil {
			log.Printf("skipping %v: %v", name, err)
			continue
		}
		files = append(files, fn)
	}

	sort.Slice(files, func(i, j int) bool { return Less(files[i], files[j]) })
	return files, nil
}

// Backup moves each of files from dir into its "backup" subdirectory
// (copy, then remove the original), logging and continuing past any
// single-file failure rather than aborting the whole move.
func Backup(dir vfs.Dir, files []FileName) error {
	if len(files) == 0 {
		return nil
	}

	backup, err := dir.Sub(backupSubdir)
	if err != nil {
		return errors.Wrap(err, "failed to open backup directory")
	}

	for _, f := range files {
		if err := moveFile(dir, backup, f.Raw); err != nil {
			log.Printf("failed to move %v to backup: %v", f.Raw, err)
		}
	}
	return nil
}

func moveFile(src, dst vfs.Dir, name string) error {
	r, err := src.OpenFile(name)
	if err != nil {
		return errors.Wrap(err, "open source failed")
	}
	defer r.Close()

	err = vfs.WriteFile(dst, name, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "write backup copy failed")
	}

	return src.RemoveFile(name)
}
