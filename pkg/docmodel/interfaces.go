package docmodel

import (
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

// IdManager maps content hashes to docids. For a given hash, at most
// one docid is ever live at a time.
type IdManager interface {
	// Resolve returns the live docid for hash, if one is assigned.
	Resolve(hash ContentHash) (id DocID, found bool)

	// AssignNew issues a fresh docid for hash. If hash was previously
	// mapped to a now-superseded docid, oldID/hadOld report it (the
	// caller is responsible for marking it deleted).
	AssignNew(hash ContentHash) (oldID DocID, hadOld bool, newID DocID, err error)

	// UpdateExisting confirms that hash still maps to old (the docid
	// an R-type update keeps) and returns that same docid; it fails
	// with ErrIdConflict when the mapping differs.
	UpdateExisting(hash ContentHash, old DocID) (newID DocID, err error)

	Flush() error
}

// DocumentManager is the document store collaborator.
type DocumentManager interface {
	InsertDocument(id DocID, doc Document) error
	RemoveDocument(id DocID) error
	UpdatePartialDocument(id DocID, partial Document) error
	GetDocument(id DocID) (Document, bool, error)
	GetPropertyValue(id DocID, prop schema.PropertyID) (propvalue.Value, bool, error)
	GetMaxDocID() DocID
	IsDeleted(id DocID) bool
	Flush() error
}

// IndexMode selects how eagerly the index store commits during a
// build pass.
type IndexMode int

const (
	RealtimeMode IndexMode = iota
	BatchMode
)

func (m IndexMode) String() string {
	if m == RealtimeMode {
		return "realtime"
	}
	return "batch"
}

// IndexManager is the inverted-index store collaborator.
type IndexManager interface {
	InsertDocument(id DocID, doc Document) error
	UpdateDocument(id DocID, oldID DocID, doc Document) error
	UpdateRtypeDocument(id DocID, fields map[schema.PropertyID]propvalue.Value) error
	RemoveDocument(id DocID) error
	NumDocs() int
	PauseMerge()
	ResumeMerge()
	OptimizeIndex() error
	Flush() error
	Commit() error

	// SelectMode picks realtime or batch mode from a total-size hint
	// and the number of documents it covers.
	SelectMode(totalSizeBytes int64, docCount int) IndexMode
}

// TermIDResolver resolves a token string to a term id, used by the
// language analyzer while building a forward index.
type TermIDResolver interface {
	TermIDByString(term string) uint32
}

// LanguageAnalyzer tokenizes analyzed string properties into term id
// lists for the forward index.
type LanguageAnalyzer interface {
	GetTermIDList(resolver TermIDResolver, text string, analyzer schema.AnalyzerInfo, granularity int) ([]uint32, error)
}
