package indexworker

import (
	"io"

	"github.com/sf1r/coreengine/internal/vfs"
)

// recoverMissedBundles moves bundle files that sit in the bundle
// directory's backup/ subdir but were never recorded in the current
// data directory's append log back into the live bundle path, so the
// next scan re-processes them. This covers the case where the current
// data directory was rotated in from a prior backup copy: whatever
// bundles landed in backup/ after that copy was taken were never
// reflected in the directory that is now live.
func (w *Worker) recoverMissedBundles() {
	current, next := w.rotator.Current(), w.rotator.Next()
	if next == nil || current.Name() == next.Name() {
		return
	}

	absorbed, err := current.AppendLog()
	if err != nil {
		logf("failed to read append log: %v", err)
		return
	}
	if len(absorbed) == 0 {
		return
	}
	absorbedSet := make(map[string]bool, len(absorbed))
	for _, name := range absorbed {
		absorbedSet[name] = true
	}

	backup, err := w.bundleDir.Sub("backup")
	if err != nil {
		logf("failed to open bundle backup directory: %v", err)
		return
	}
	names, err := backup.ListFiles()
	if err != nil {
		logf("failed to list bundle backup directory: %v", err)
		return
	}

	for _, name := range names {
		if absorbedSet[name] {
			continue
		}
		if err := moveBack(backup, w.bundleDir, name); err != nil {
			logf("failed to recover bundle %v: %v", name, err)
		}
	}
}

func moveBack(src, dst vfs.Dir, name string) error {
	r, err := src.OpenFile(name)
	if err != nil {
		return err
	}
	defer r.Close()

	err = vfs.WriteFile(dst, name, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return err
	}
	return src.RemoveFile(name)
}
