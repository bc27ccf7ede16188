package indexworker

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/directory"
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

func testSchema() *schema.Schema {
	return schema.New([]schema.Property{
		{ID: 0, Name: "DOCID", Type: schema.StringType},
		{ID: 1, Name: "DATE", Type: schema.DateType},
		{ID: 2, Name: "title", Type: schema.StringType, Flags: schema.Flags{IsIndex: true, IsAnalyzed: true}},
		{ID: 3, Name: "price", Type: schema.IntType, Flags: schema.Flags{IsIndex: true, IsFilter: true}},
		{ID: 4, Name: "source", Type: schema.StringType},
	}, "DOCID", "DATE")
}

type testFixture struct {
	worker    *Worker
	bundleDir vfs.Dir
	docMgr    *docmodel.MemDocumentManager
	idMgr     *docmodel.MemIdManager
	idxMgr    *docmodel.MemIndexManager
	rotator   *directory.Rotator
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	bundleDir := vfs.NewMemDir()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	idxMgr := docmodel.NewMemIndexManager()

	current := directory.NewDirectory("current", vfs.NewMemDir())
	rotator := directory.NewRotator(current, nil)

	w := New(Config{Schema: testSchema()}, bundleDir, rotator, idMgr, docMgr, idxMgr, nil, nil, nil)
	return &testFixture{worker: w, bundleDir: bundleDir, docMgr: docMgr, idMgr: idMgr, idxMgr: idxMgr, rotator: rotator}
}

func writeBundle(t *testing.T, dir vfs.Dir, name, body string) {
	t.Helper()
	err := vfs.WriteFile(dir, name, func(w io.Writer) error {
		_, err := w.Write([]byte(body))
		return err
	})
	require.NoError(t, err)
}

func TestBuildCollection_InsertThenRTypeUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n<price>10\n")
	ok, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	id, found := f.idMgr.Resolve(docmodel.HashDocID("A"))
	require.True(t, found)

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-U-books.SCD", "<DOCID>A\n<price>12\n")
	ok, err = f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	sameID, found := f.idMgr.Resolve(docmodel.HashDocID("A"))
	require.True(t, found)
	require.Equal(t, id, sameID)

	doc, found, err := f.docMgr.GetDocument(id)
	require.NoError(t, err)
	require.True(t, found)
	price, _ := doc.Get(3)
	require.Equal(t, []int64{12}, price.Ints)
	title, _ := doc.Get(2)
	require.Equal(t, "x", title.Str)
}

func TestBuildCollection_InsertThenNonRTypeUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n<price>10\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	oldID, _ := f.idMgr.Resolve(docmodel.HashDocID("A"))

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-U-books.SCD", "<DOCID>A\n<title>y\n")
	_, err = f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	newID, found := f.idMgr.Resolve(docmodel.HashDocID("A"))
	require.True(t, found)
	require.Greater(t, newID, oldID)
	require.True(t, f.docMgr.IsDeleted(oldID))
}

func TestBuildCollection_DeleteNonexistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-D-books.SCD", "<DOCID>Z\n")
	ok, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 0, f.idxMgr.NumDocs())
}

func TestBuildCollection_CancelledLeavesBundlesUnprocessed(t *testing.T) {
	f := newFixture(t)

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := f.worker.BuildCollection(ctx)
	require.True(t, ok)
	require.ErrorIs(t, err, docmodel.ErrCancelled)

	_, found := f.idMgr.Resolve(docmodel.HashDocID("A"))
	require.False(t, found, "document from an unprocessed file must not be assigned a docid")
	require.Equal(t, 0, f.idxMgr.NumDocs())

	remaining, err := f.bundleDir.ListFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"B-01-202608031200-0000001-I-books.SCD"}, remaining,
		"a cancelled pass must leave unprocessed bundle files in place, not move them to backup/")
}

func TestBuildCollection_DeleteDedupsRepeatedDocID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, f.idxMgr.NumDocs())

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-D-books.SCD", "<DOCID>A\n<DOCID>A\n")
	ok, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 0, f.idxMgr.NumDocs())
}

type resetCacheCall struct {
	rType  bool
	docID  docmodel.DocID
	fields map[schema.PropertyID]propvalue.Value
}

type fakeSourceCountSink struct {
	calls []struct {
		op     string
		counts SourceCounts
	}
}

func (f *fakeSourceCountSink) Save(op string, counts SourceCounts) error {
	cp := make(SourceCounts, len(counts))
	for k, v := range counts {
		cp[k] = v
	}
	f.calls = append(f.calls, struct {
		op     string
		counts SourceCounts
	}{op, cp})
	return nil
}

func newHookFixture(t *testing.T) (*testFixture, *[]resetCacheCall, *fakeSourceCountSink) {
	t.Helper()
	bundleDir := vfs.NewMemDir()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	idxMgr := docmodel.NewMemIndexManager()

	current := directory.NewDirectory("current", vfs.NewMemDir())
	rotator := directory.NewRotator(current, nil)

	var calls []resetCacheCall
	sink := &fakeSourceCountSink{}

	cfg := Config{
		Schema:      testSchema(),
		SourceField: "source",
		ResetCacheHook: func(rType bool, docID docmodel.DocID, fields map[schema.PropertyID]propvalue.Value) {
			calls = append(calls, resetCacheCall{rType, docID, fields})
		},
		SourceCountSink: sink,
	}
	w := New(cfg, bundleDir, rotator, idMgr, docMgr, idxMgr, nil, nil, nil)
	f := &testFixture{worker: w, bundleDir: bundleDir, docMgr: docMgr, idMgr: idMgr, idxMgr: idxMgr, rotator: rotator}
	return f, &calls, sink
}

func TestBuildCollection_InsertInvokesHooks(t *testing.T) {
	f, calls, sink := newHookFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD",
		"<DOCID>A\n<title>x\n<price>10\n<source>catalog\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	require.Equal(t, resetCacheCall{rType: false, docID: 0, fields: nil}, (*calls)[0])

	require.Len(t, sink.calls, 1)
	require.Equal(t, "insert", sink.calls[0].op)
	require.Equal(t, SourceCounts{"catalog": 1}, sink.calls[0].counts)
}

func TestBuildCollection_RTypeUpdateInvokesHookWithFields(t *testing.T) {
	f, calls, sink := newHookFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD",
		"<DOCID>A\n<title>x\n<price>10\n<source>catalog\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)
	id, found := f.idMgr.Resolve(docmodel.HashDocID("A"))
	require.True(t, found)

	*calls = nil
	sink.calls = nil

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-U-books.SCD",
		"<DOCID>A\n<price>12\n<source>feed\n")
	_, err = f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.True(t, call.rType)
	require.Equal(t, id, call.docID)
	require.Contains(t, call.fields, schema.PropertyID(3))

	require.Len(t, sink.calls, 1)
	require.Equal(t, "update", sink.calls[0].op)
	require.Equal(t, SourceCounts{"feed": 1}, sink.calls[0].counts)
}

func TestBuildCollection_NonRTypeUpdateInvokesHookWithZeroValues(t *testing.T) {
	f, calls, _ := newHookFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n<price>10\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	*calls = nil

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-U-books.SCD", "<DOCID>A\n<title>y\n")
	_, err = f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	require.Equal(t, resetCacheCall{rType: false, docID: 0, fields: nil}, (*calls)[0])
}

func TestBuildCollection_DeleteInvokesHookOnceAtEndWithPersistedSource(t *testing.T) {
	f, calls, sink := newHookFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD",
		"<DOCID>A\n<title>x\n<source>catalog\n")
	writeBundle(t, f.bundleDir, "B-01-202608031200-0000002-I-books.SCD",
		"<DOCID>B\n<title>y\n<source>catalog\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	*calls = nil
	sink.calls = nil

	writeBundle(t, f.bundleDir, "B-01-202608031201-0000001-D-books.SCD", "<DOCID>A\n<DOCID>B\n")
	_, err = f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	require.Len(t, *calls, 1, "reset_cache must be invoked exactly once for the whole delete bundle, not per document")
	require.Equal(t, resetCacheCall{rType: false, docID: 0, fields: nil}, (*calls)[0])

	require.Len(t, sink.calls, 1)
	require.Equal(t, "delete", sink.calls[0].op)
	require.Equal(t, SourceCounts{"catalog": 2}, sink.calls[0].counts,
		"delete-path source counts must come from the persisted document, since a delete record carries only a DOCID")
}

func TestBuildCollection_BundlesMovedToBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeBundle(t, f.bundleDir, "B-01-202608031200-0000001-I-books.SCD", "<DOCID>A\n<title>x\n")
	_, err := f.worker.BuildCollection(ctx)
	require.NoError(t, err)

	remaining, err := f.bundleDir.ListFiles()
	require.NoError(t, err)
	require.Empty(t, remaining)
}
