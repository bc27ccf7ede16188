// Package indexworker implements the Index Worker: the build-pass
// state machine that scans a collection's bundle directory, dispatches
// inserts/updates/deletes through the document preparer into the
// document and index stores, drives mining after a successful pass,
// and decides when to trigger a directory backup.
package indexworker

import (
	"log"
	"sync"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/directory"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/docprep"
	"github.com/sf1r/coreengine/pkg/logserver"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

// backupThresholdBytes is the accumulated-bundle-size threshold that
// triggers a directory backup, per the design notes' resolution of
// the "does a failed pass count" open question: only successful
// passes accumulate toward it.
const backupThresholdBytes = 200 << 20

// IndexHookStage is invoked once a build pass finishes writing, before
// mining runs. Per the design notes' resolution of the hook-timestamp
// open question, it receives a microsecond-scale timestamp while every
// other collaborator call in this package uses second-scale time.Time
// values.
type IndexHookStage interface {
	Finish(timestampMicros int64) bool
}

// MiningCollaborator runs the recommendation/mining pass over the
// freshly committed index, invoked under a merge pause.
type MiningCollaborator interface {
	DoMiningCollection()
}

// ResetCacheHook is invoked once per processed document during an
// insert/update dispatch, carrying the same R-type classification the
// document preparer produced, so a search-side per-property cache can
// be reset precisely instead of dropped wholesale. For a non-R-type
// op it is called with rType=false, docID=0 and a nil field map,
// mirroring the original's reset_cache(rType, id, rTypeFieldValue)
// (id is only meaningful for an R-type update there too). It is
// invoked once more, with rType=false, docID=0 and a nil field map,
// after a delete bundle's dispatch completes.
type ResetCacheHook func(rType bool, docID docmodel.DocID, fields map[schema.PropertyID]propvalue.Value)

// Config carries the per-collection schema and tunables a Worker
// needs; it holds no mutable state of its own.
type Config struct {
	Schema      *schema.Schema
	SourceField string

	BackupThresholdBytes int64

	// ResetCacheHook and SourceCountSink are both optional; leaving
	// either nil simply skips that side effect.
	ResetCacheHook  ResetCacheHook
	SourceCountSink SourceCountSink
}

func (c Config) withDefaults() Config {
	if c.BackupThresholdBytes == 0 {
		c.BackupThresholdBytes = backupThresholdBytes
	}
	return c
}

// Worker drives one collection's build pass against its directory
// pair, document store, index store and id manager. BuildCollection
// is atomic with respect to an internal build-collection lock: only
// one pass runs at a time for a given Worker.
type Worker struct {
	cfg Config

	buildMu sync.Mutex

	bundleDir vfs.Dir
	rotator   *directory.Rotator

	idMgr  docmodel.IdManager
	docMgr docmodel.DocumentManager
	idxMgr docmodel.IndexManager

	hook    IndexHookStage
	mining  MiningCollaborator
	forward *logserver.Forwarder

	totalBytesSinceBackup int64
	numUpdated            int
	numDeleted            int

	// sourceCounts accumulates over a single bundle file's dispatch and
	// is reset at the start of each file; see SourceCountSink.
	sourceCounts SourceCounts
}

// New builds a Worker. hook, mining and forward are all optional
// (nil is a valid no-op collaborator).
func New(cfg Config, bundleDir vfs.Dir, rotator *directory.Rotator, idMgr docmodel.IdManager, docMgr docmodel.DocumentManager, idxMgr docmodel.IndexManager, hook IndexHookStage, mining MiningCollaborator, forward *logserver.Forwarder) *Worker {
	return &Worker{
		cfg:       cfg.withDefaults(),
		bundleDir: bundleDir,
		rotator:   rotator,
		idMgr:     idMgr,
		docMgr:    docMgr,
		idxMgr:    idxMgr,
		hook:      hook,
		mining:    mining,
		forward:   forward,
	}
}

func (w *Worker) preparer() *docprep.Preparer {
	return &docprep.Preparer{Schema: w.cfg.Schema, IDManager: w.idMgr, DocumentManager: w.docMgr, SourceField: w.cfg.SourceField}
}

func sumFileSizes(dir vfs.Dir, names []string) int64 {
	var total int64
	for _, name := range names {
		f, err := dir.OpenFile(name)
		if err != nil {
			continue
		}
		if n, err := f.Seek(0, 2); err == nil {
			total += n
		}
		f.Close()
	}
	return total
}

func logf(format string, args ...interface{}) {
	log.Printf("indexworker: "+format, args...)
}
