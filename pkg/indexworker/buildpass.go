package indexworker

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/directory"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/scd"
)

// BuildCollection runs one scan-dispatch-mine-backup pass over the
// bundle directory. It is atomic with respect to the Worker's internal
// build lock: a second concurrent call blocks until the first returns.
//
// It returns (true, docmodel.ErrCancelled) when ctx is cancelled
// mid-pass, since the index is left in a consistent, committed-so-far
// state rather than a failed one.
func (w *Worker) BuildCollection(ctx context.Context) (bool, error) {
	w.buildMu.Lock()
	defer w.buildMu.Unlock()

	preNames, err := w.bundleDir.ListFiles()
	if err != nil {
		return false, errors.Wrap(err, "failed to list bundle directory")
	}
	passSize := sumFileSizes(w.bundleDir, preNames)

	w.recoverMissedBundles()

	files, err := scd.Scan(w.bundleDir)
	if err != nil {
		return false, errors.Wrap(err, "failed to scan bundle directory")
	}
	if len(files) == 0 {
		logf("no bundle files found, nothing to do")
		return false, nil
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Raw
	}
	docCount := int(w.docMgr.GetMaxDocID())
	if docCount == 0 {
		docCount = 1
	}
	mode := w.idxMgr.SelectMode(sumFileSizes(w.bundleDir, names), docCount)

	guard, err := directory.AcquireGuard(w.rotator.Current())
	if err != nil {
		return false, errors.Wrap(err, "directory guard")
	}

	cancelled := w.dispatchAll(ctx, files)

	if err := w.docMgr.Flush(); err != nil {
		guard.Fail()
		return false, errors.Wrap(err, "failed to flush document store")
	}
	if err := w.idMgr.Flush(); err != nil {
		guard.Fail()
		return false, errors.Wrap(err, "failed to flush id manager")
	}
	if mode == docmodel.BatchMode {
		if err := w.idxMgr.Commit(); err != nil {
			guard.Fail()
			return false, errors.Wrap(err, "failed to commit index")
		}
	}

	if w.hook != nil && !w.hook.Finish(time.Now().UnixMicro()) {
		guard.Fail()
		return false, errors.New("index-finished hook rejected the pass")
	}

	if w.mining != nil {
		w.idxMgr.PauseMerge()
		w.mining.DoMiningCollection()
		w.idxMgr.ResumeMerge()
	}

	guard.Release()

	logf("build pass finished: updated=%d deleted=%d", w.numUpdated, w.numDeleted)
	w.numUpdated = 0
	w.numDeleted = 0

	if cancelled {
		return true, docmodel.ErrCancelled
	}

	// Files are only moved to backup/ and marked absorbed in the
	// append log once every document in the pass was actually
	// dispatched; on a cancelled pass they are left in place to be
	// picked up again by the next scan.
	if err := scd.Backup(w.bundleDir, files); err != nil {
		logf("backup of processed bundle files failed: %v", err)
	}
	for _, f := range files {
		if err := w.rotator.Current().AppendSCD(f.Raw); err != nil {
			logf("failed to record append-log entry for %v: %v", f.Raw, err)
		}
	}

	if w.requireBackup(passSize) {
		if err := w.idxMgr.Commit(); err != nil {
			return false, errors.Wrap(err, "failed to force-commit before backup")
		}
		if err := w.rotator.Backup(); err != nil {
			return false, errors.Wrap(err, "backup failed")
		}
		w.totalBytesSinceBackup = 0
	}

	return true, nil
}

// dispatchAll processes files in order, checking ctx at per-file
// granularity (the dispatcher itself checks at per-document
// granularity). It returns true if the pass was cut short by
// cancellation.
func (w *Worker) dispatchAll(ctx context.Context, files []scd.FileName) bool {
	for _, f := range files {
		select {
		case <-ctx.Done():
			return true
		default:
		}

		if err := w.dispatchFile(ctx, f); err != nil {
			logf("file %v aborted: %v", f.Raw, err)
		}
	}
	return false
}

// requireBackup accumulates passSize into the running total since the
// last backup and reports whether it now exceeds the threshold, given
// a valid (distinct, not-yet-rotated) next directory.
func (w *Worker) requireBackup(passSize int64) bool {
	w.totalBytesSinceBackup += passSize
	current, next := w.rotator.Current(), w.rotator.Next()
	if next == nil || current.Name() == next.Name() {
		return false
	}
	return w.totalBytesSinceBackup > w.cfg.BackupThresholdBytes
}
