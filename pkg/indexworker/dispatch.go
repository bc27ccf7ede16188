package indexworker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/internal/bitset"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/docprep"
	"github.com/sf1r/coreengine/pkg/logserver"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/scd"
	"github.com/sf1r/coreengine/pkg/schema"
)

// dispatchFile routes fn to the insert/update/delete handler matching
// its declared type. A rebuild-type bundle is not processed by the
// regular build pass; the rebuild coordinator handles those.
func (w *Worker) dispatchFile(ctx context.Context, fn scd.FileName) error {
	if fn.Type == scd.Rebuild {
		logf("skipping rebuild-type bundle %v: handled by the rebuild coordinator", fn.Raw)
		return nil
	}

	w.sourceCounts = make(SourceCounts)

	var err error
	switch fn.Type {
	case scd.Insert:
		err = w.dispatchInsert(ctx, fn)
	case scd.Update:
		err = w.dispatchUpdate(ctx, fn)
	case scd.Delete:
		err = w.dispatchDelete(ctx, fn)
	default:
		return errors.Errorf("unrecognized bundle type for %v", fn.Raw)
	}

	if w.cfg.SourceCountSink != nil && len(w.sourceCounts) > 0 {
		if saveErr := w.cfg.SourceCountSink.Save(sourceCountOp(fn.Type), w.sourceCounts); saveErr != nil {
			logf("failed to save source counts for %v: %v", fn.Raw, saveErr)
		}
	}

	return err
}

func (w *Worker) dispatchInsert(ctx context.Context, fn scd.FileName) error {
	reader, closer, err := scd.OpenBundle(w.bundleDir, fn.Raw, "DOCID")
	if err != nil {
		return err
	}
	defer closer.Close()

	prep := w.preparer()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			logf("skipping malformed record in %v: %v", fn.Raw, err)
			continue
		}

		res, err := prep.Prepare(rec, true, time.Time{}, false)
		if err != nil {
			logf("skipping document %v: %v", rec.Key, err)
			continue
		}
		if err := w.insertDoc(res); err != nil {
			logf("skipping document %v: %v", rec.Key, err)
		}
	}
}

func (w *Worker) dispatchUpdate(ctx context.Context, fn scd.FileName) error {
	reader, closer, err := scd.OpenBundle(w.bundleDir, fn.Raw, "DOCID")
	if err != nil {
		return err
	}
	defer closer.Close()

	prep := w.preparer()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			logf("skipping malformed record in %v: %v", fn.Raw, err)
			continue
		}

		res, err := prep.Prepare(rec, false, time.Time{}, false)
		if err != nil {
			logf("skipping update %v: %v", rec.Key, err)
			continue
		}

		if res.RType {
			err = w.updateRtypeDoc(res)
		} else {
			err = w.updateFullDoc(res)
		}
		if err != nil {
			logf("skipping update %v: %v", rec.Key, err)
		}
	}
}

func (w *Worker) dispatchDelete(ctx context.Context, fn scd.FileName) error {
	reader, closer, err := scd.OpenBundle(w.bundleDir, fn.Raw, "DOCID")
	if err != nil {
		return err
	}
	defer closer.Close()

	raw, err := reader.DeleteDocIDs()
	if err != nil {
		return err
	}

	seen := bitset.New(len(raw))
	ids := make([]docmodel.DocID, 0, len(raw))
	for _, docIDStr := range raw {
		id, found := w.idMgr.Resolve(docmodel.HashDocID(docIDStr))
		if !found {
			logf("delete: %v has no assigned docid, skipping", docIDStr)
			continue
		}
		// A delete bundle may list the same DOCID more than once; dedup
		// on the resolved docid so deleteDoc is never called twice for
		// the same document in a single batch.
		if seen.Contains(uint32(id)) {
			continue
		}
		seen.Add(uint32(id))
		ids = append(ids, id)
	}
	// Deletes within a delete bundle are applied in ascending docid
	// order, not file order, to guarantee deterministic index merges.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := w.deleteDoc(id); err != nil {
			logf("failed to delete docid %v: %v", id, err)
		}
	}

	if w.cfg.ResetCacheHook != nil {
		w.cfg.ResetCacheHook(false, 0, nil)
	}
	return nil
}

func (w *Worker) insertDoc(res *docprep.Result) error {
	if err := w.docMgr.InsertDocument(res.DocID, res.Doc); err != nil {
		return errors.Wrap(err, "document store rejected insert")
	}
	if err := w.idxMgr.InsertDocument(res.DocID, res.Doc); err != nil {
		return errors.Wrap(err, "index store rejected insert")
	}
	w.countSource(res.Source)
	w.resetCache(res)
	w.mirror(res.Doc, false)
	return nil
}

func (w *Worker) updateRtypeDoc(res *docprep.Result) error {
	partial := docmodel.NewDocument(res.Doc.ExternalID)
	for prop, value := range res.RTypeFields {
		partial.Values[prop] = value
	}

	if err := w.docMgr.UpdatePartialDocument(res.DocID, partial); err != nil {
		return errors.Wrap(err, "document store rejected rtype update")
	}
	if err := w.idxMgr.UpdateRtypeDocument(res.DocID, res.RTypeFields); err != nil {
		return errors.Wrap(err, "index store rejected rtype update")
	}
	w.numUpdated++
	w.countSource(res.Source)
	w.resetCache(res)
	w.mirror(res.Doc, false)
	return nil
}

func (w *Worker) updateFullDoc(res *docprep.Result) error {
	if res.HasOldDocID {
		if err := w.docMgr.RemoveDocument(res.OldDocID); err != nil {
			return errors.Wrap(err, "document store rejected removal of superseded docid")
		}
	}
	if err := w.docMgr.InsertDocument(res.DocID, res.Doc); err != nil {
		return errors.Wrap(err, "document store rejected full update")
	}
	if err := w.idxMgr.UpdateDocument(res.DocID, res.OldDocID, res.Doc); err != nil {
		return errors.Wrap(err, "index store rejected full update")
	}
	w.numUpdated++
	w.countSource(res.Source)
	w.resetCache(res)
	w.mirror(res.Doc, false)
	return nil
}

// countSource tallies source into the current bundle file's running
// per-source counts, if a source field is configured and the record
// carried a value for it.
func (w *Worker) countSource(source string) {
	if source == "" {
		return
	}
	w.sourceCounts[source]++
}

// resetCache invokes the configured ResetCacheHook, if any, with the
// classification Prepare produced for res.
func (w *Worker) resetCache(res *docprep.Result) {
	if w.cfg.ResetCacheHook == nil {
		return
	}
	if res.RType {
		w.cfg.ResetCacheHook(true, res.DocID, res.RTypeFields)
	} else {
		w.cfg.ResetCacheHook(false, 0, nil)
	}
}

func (w *Worker) deleteDoc(id docmodel.DocID) error {
	w.countDeletedSource(id)

	mutation := logserver.Mutation{Delete: true}
	if w.forward.Enabled() {
		if doc, found, err := w.docMgr.GetDocument(id); err == nil && found {
			mutation.Hash = docmodel.HashDocID(doc.ExternalID)
		}
	}

	if err := w.docMgr.RemoveDocument(id); err != nil {
		return errors.Wrap(err, "document store rejected removal")
	}
	if err := w.idxMgr.RemoveDocument(id); err != nil {
		return errors.Wrap(err, "index store rejected removal")
	}
	w.numDeleted++
	if w.forward.Enabled() {
		w.forward.Submit(mutation)
	}
	return nil
}

// countDeletedSource looks up the persisted source-field value for a
// document about to be deleted, since a delete bundle carries only a
// DOCID and not the rest of the record.
func (w *Worker) countDeletedSource(id docmodel.DocID) {
	if w.cfg.SourceField == "" {
		return
	}
	sourceProp, ok := w.cfg.Schema.Lookup(w.cfg.SourceField)
	if !ok {
		return
	}
	value, found, err := w.docMgr.GetPropertyValue(id, sourceProp.ID)
	if err != nil || !found || value.Str == "" {
		return
	}
	w.countSource(value.Str)
}

func (w *Worker) mirror(doc docmodel.Document, isDelete bool) {
	if !w.forward.Enabled() {
		return
	}
	w.forward.Submit(logserver.Mutation{
		Hash:       docmodel.HashDocID(doc.ExternalID),
		BundleText: reassemble(w.cfg.Schema, doc),
	})
}

// reassemble rebuilds an approximate bundle-record representation of
// doc for the log-server mirror, in <PROPNAME>value line form.
func reassemble(sch *schema.Schema, doc docmodel.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<DOCID>%s\n", doc.ExternalID)
	for prop, value := range doc.Values {
		name, ok := sch.NameByID(prop)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<%s>%s\n", name, valueText(value))
	}
	return b.String()
}

func valueText(v propvalue.Value) string {
	switch v.Type {
	case schema.StringType:
		return v.Str
	case schema.NominalType:
		return v.Nominal
	case schema.DateType:
		return v.DateText
	case schema.IntType:
		parts := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, "-")
	case schema.FloatType:
		parts := make([]string, len(v.Floats))
		for i, n := range v.Floats {
			parts[i] = strconv.FormatFloat(n, 'f', -1, 64)
		}
		return strings.Join(parts, "-")
	default:
		return ""
	}
}
