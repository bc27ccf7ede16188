package rebuild

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

func seedSourceDoc(t *testing.T, source *docmodel.MemDocumentManager, ids *docmodel.MemIdManager, externalID string) docmodel.DocID {
	t.Helper()
	_, _, id, err := ids.AssignNew(docmodel.HashDocID(externalID))
	require.NoError(t, err)
	doc := docmodel.NewDocument(externalID)
	doc.Set(2, propvalue.Value{Type: schema.StringType, Str: "x"})
	require.NoError(t, source.InsertDocument(id, doc))
	return id
}

func TestCoordinator_Run_SkipsDeletedReassignsLive(t *testing.T) {
	sourceIds := docmodel.NewMemIdManager()
	source := docmodel.NewMemDocumentManager()

	idA := seedSourceDoc(t, source, sourceIds, "A")
	seedSourceDoc(t, source, sourceIds, "B")
	require.NoError(t, source.RemoveDocument(idA))

	targetIds := docmodel.NewMemIdManager()
	targetDocs := docmodel.NewMemDocumentManager()
	targetIndex := docmodel.NewMemIndexManager()

	coord := &Coordinator{
		Source: source,
		Ids:    targetIds,
		Docs:   targetDocs,
		Index:  targetIndex,
	}

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Considered)
	require.Equal(t, 1, stats.Inserted)
	require.Equal(t, 0, stats.Skipped)

	newID, found := targetIds.Resolve(docmodel.HashDocID("B"))
	require.True(t, found)
	doc, found, err := targetDocs.GetDocument(newID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "B", doc.ExternalID)
	require.Equal(t, 1, targetIndex.NumDocs())
}

func TestCoordinator_Run_CancelledMidPass(t *testing.T) {
	sourceIds := docmodel.NewMemIdManager()
	source := docmodel.NewMemDocumentManager()
	seedSourceDoc(t, source, sourceIds, "A")

	coord := &Coordinator{
		Source: source,
		Ids:    docmodel.NewMemIdManager(),
		Docs:   docmodel.NewMemDocumentManager(),
		Index:  docmodel.NewMemIndexManager(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.Run(ctx)
	require.ErrorIs(t, err, docmodel.ErrCancelled)
}

type rejectingHook struct{}

func (rejectingHook) Finish(int64) bool { return false }

func TestCoordinator_Run_HookRejectionFailsPass(t *testing.T) {
	sourceIds := docmodel.NewMemIdManager()
	source := docmodel.NewMemDocumentManager()
	seedSourceDoc(t, source, sourceIds, "A")

	coord := &Coordinator{
		Source: source,
		Ids:    docmodel.NewMemIdManager(),
		Docs:   docmodel.NewMemDocumentManager(),
		Index:  docmodel.NewMemIndexManager(),
		Hook:   rejectingHook{},
	}

	_, err := coord.Run(context.Background())
	require.Error(t, err)
}
