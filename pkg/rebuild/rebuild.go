// Package rebuild implements the rebuild coordinator: a full
// reindexing pass that reads every live document out of a source
// document store, assigns each one a fresh docid, and replays it
// through the insert path into a target document store and index.
// Unlike the index worker's build pass it never touches bundle files
// or the id manager's update path — every document it emits is, as
// far as the target stores are concerned, a brand new insert.
package rebuild

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/docmodel"
)

// IndexHookStage mirrors indexworker.IndexHookStage so a rebuild pass
// can share the same collaborator without importing indexworker.
type IndexHookStage interface {
	Finish(timestampMicros int64) bool
}

// MiningCollaborator mirrors indexworker.MiningCollaborator.
type MiningCollaborator interface {
	DoMiningCollection()
}

// Coordinator drives one rebuild pass. Source is read-only; Docs,
// Ids and Index are the target stores it populates.
type Coordinator struct {
	Source docmodel.DocumentManager

	Ids   docmodel.IdManager
	Docs  docmodel.DocumentManager
	Index docmodel.IndexManager

	Hook   IndexHookStage
	Mining MiningCollaborator

	// Now supplies the microsecond timestamp passed to Hook.Finish.
	// Defaults to time.Now if nil; tests can pin it to a fixed clock.
	// No per-document timestamp is synthesized: documents are inserted
	// into the destination unchanged.
	Now func() int64
}

// Stats summarizes one completed rebuild pass.
type Stats struct {
	Considered int
	Inserted   int
	Skipped    int
}

// Run walks docids 1..Source.GetMaxDocID() in ascending order,
// skipping deleted and malformed documents, assigning each survivor a
// fresh docid via Ids and inserting it into Docs/Index. It flushes all
// three target collaborators and runs Hook/Mining on success, matching
// the index worker's own end-of-pass sequence.
func (c *Coordinator) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	max := c.Source.GetMaxDocID()
	for id := docmodel.DocID(1); id <= max; id++ {
		select {
		case <-ctx.Done():
			return stats, docmodel.ErrCancelled
		default:
		}

		if c.Source.IsDeleted(id) {
			continue
		}
		doc, found, err := c.Source.GetDocument(id)
		if err != nil {
			return stats, errors.Wrapf(err, "failed to read source document %v", id)
		}
		if !found {
			continue
		}
		stats.Considered++

		if doc.ExternalID == "" {
			stats.Skipped++
			continue
		}

		_, _, newID, err := c.Ids.AssignNew(docmodel.HashDocID(doc.ExternalID))
		if err != nil {
			stats.Skipped++
			continue
		}

		if err := c.Docs.InsertDocument(newID, doc); err != nil {
			stats.Skipped++
			continue
		}
		if err := c.Index.InsertDocument(newID, doc); err != nil {
			stats.Skipped++
			continue
		}
		stats.Inserted++
	}

	if err := c.Docs.Flush(); err != nil {
		return stats, errors.Wrap(err, "failed to flush document store")
	}
	if err := c.Ids.Flush(); err != nil {
		return stats, errors.Wrap(err, "failed to flush id manager")
	}
	if err := c.Index.Flush(); err != nil {
		return stats, errors.Wrap(err, "failed to flush index")
	}

	if c.Hook != nil && !c.Hook.Finish(c.now()) {
		return stats, errors.New("index-finished hook rejected the rebuild")
	}

	if c.Mining != nil {
		c.Index.PauseMerge()
		c.Mining.DoMiningCollection()
		c.Index.ResumeMerge()
	}

	return stats, nil
}

func (c *Coordinator) now() int64 {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UnixMicro()
}
