package docprep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/scd"
	"github.com/sf1r/coreengine/pkg/schema"
)

func testSchema() *schema.Schema {
	return schema.New([]schema.Property{
		{ID: 0, Name: "DOCID", Type: schema.StringType},
		{ID: 1, Name: "DATE", Type: schema.DateType},
		{ID: 2, Name: "title", Type: schema.StringType, Flags: schema.Flags{IsIndex: true, IsAnalyzed: true}},
		{ID: 3, Name: "price", Type: schema.IntType, Flags: schema.Flags{IsIndex: true, IsFilter: true}},
	}, "DOCID", "DATE")
}

func record(pairs ...string) scd.Record {
	rec := scd.Record{Key: pairs[1]}
	for i := 0; i < len(pairs); i += 2 {
		rec.Properties = append(rec.Properties, scd.Property{Name: pairs[i], Value: pairs[i+1]})
	}
	return rec
}

func TestPreparer_InsertThenRTypeUpdate(t *testing.T) {
	sch := testSchema()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	p := &Preparer{Schema: sch, IDManager: idMgr, DocumentManager: docMgr}

	insertRaw := record("DOCID", "A", "title", "x", "price", "10")
	res, err := p.Prepare(insertRaw, true, time.Time{}, false)
	require.NoError(t, err)
	require.NoError(t, docMgr.InsertDocument(res.DocID, res.Doc))

	updateRaw := record("DOCID", "A", "price", "12")
	res2, err := p.Prepare(updateRaw, false, time.Time{}, false)
	require.NoError(t, err)

	require.True(t, res2.RType)
	require.Equal(t, res.DocID, res2.DocID)
	require.Contains(t, res2.RTypeFields, schema.PropertyID(3))
	require.NotContains(t, res2.RTypeFields, schema.PropertyID(2))
}

func TestPreparer_RTypeUpdateRewritesChangedDate(t *testing.T) {
	sch := testSchema()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	p := &Preparer{Schema: sch, IDManager: idMgr, DocumentManager: docMgr}

	insertRaw := record("DOCID", "A", "DATE", "20260101000000", "price", "10")
	res, err := p.Prepare(insertRaw, true, time.Time{}, false)
	require.NoError(t, err)
	require.NoError(t, docMgr.InsertDocument(res.DocID, res.Doc))

	updateRaw := record("DOCID", "A", "DATE", "20260203000000", "price", "12")
	res2, err := p.Prepare(updateRaw, false, time.Time{}, false)
	require.NoError(t, err)

	require.True(t, res2.RType, "a changed DATE alongside other R-type-eligible fields must still classify as R-type")
	require.Contains(t, res2.RTypeFields, schema.PropertyID(1), "a changed DATE value must be carried through to the rewrite, not silently dropped")
	require.Contains(t, res2.RTypeFields, schema.PropertyID(3))
}

func TestPreparer_InsertThenNonRTypeUpdate(t *testing.T) {
	sch := testSchema()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	p := &Preparer{Schema: sch, IDManager: idMgr, DocumentManager: docMgr}

	insertRaw := record("DOCID", "A", "title", "x", "price", "10")
	res, err := p.Prepare(insertRaw, true, time.Time{}, false)
	require.NoError(t, err)
	require.NoError(t, docMgr.InsertDocument(res.DocID, res.Doc))

	updateRaw := record("DOCID", "A", "title", "y")
	res2, err := p.Prepare(updateRaw, false, time.Time{}, false)
	require.NoError(t, err)

	require.False(t, res2.RType)
	require.True(t, res2.HasOldDocID)
	require.Equal(t, res.DocID, res2.OldDocID)
	require.Greater(t, res2.DocID, res.DocID)

	title, ok := res2.Doc.Get(2)
	require.True(t, ok)
	require.Equal(t, "y", title.Str)
}

func TestPreparer_DuplicateDocID(t *testing.T) {
	sch := testSchema()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	p := &Preparer{Schema: sch, IDManager: idMgr, DocumentManager: docMgr}

	res, err := p.Prepare(record("DOCID", "A"), true, time.Time{}, false)
	require.NoError(t, err)
	require.NoError(t, docMgr.InsertDocument(res.DocID, res.Doc))

	// Force the document store's max docid artificially high, then
	// insert a brand new hash that would resolve to a lower id.
	require.NoError(t, docMgr.InsertDocument(res.DocID+100, docmodel.NewDocument("z")))

	_, err = p.Prepare(record("DOCID", "B"), true, time.Time{}, false)
	require.Error(t, err)
}

func TestPreparer_SynthesizesDateFromBuildTimestamp(t *testing.T) {
	sch := testSchema()
	idMgr := docmodel.NewMemIdManager()
	docMgr := docmodel.NewMemDocumentManager()
	p := &Preparer{Schema: sch, IDManager: idMgr, DocumentManager: docMgr}

	ts := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	res, err := p.Prepare(record("DOCID", "A"), true, ts, true)
	require.NoError(t, err)
	require.True(t, res.HasTimestamp)

	dateVal, ok := res.Doc.Get(1)
	require.True(t, ok)
	require.Equal(t, "20260803120000", dateVal.DateText)
}
