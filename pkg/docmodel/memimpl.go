package docmodel

import (
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

// MemIdManager is an in-memory IdManager reference implementation,
// used by tests and by deployments that do not need a persistent
// id-mapping store.
type MemIdManager struct {
	mu      sync.Mutex
	byHash  map[ContentHash]DocID
	nextID  DocID
	deleted map[DocID]bool
}

func NewMemIdManager() *MemIdManager {
	return &MemIdManager{byHash: make(map[ContentHash]DocID), deleted: make(map[DocID]bool), nextID: 1}
}

func (m *MemIdManager) Resolve(hash ContentHash) (DocID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	return id, ok
}

func (m *MemIdManager) AssignNew(hash ContentHash) (oldID DocID, hadOld bool, newID DocID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldID, hadOld = m.byHash[hash]
	newID = m.nextID
	m.nextID++
	m.byHash[hash] = newID
	if hadOld {
		m.deleted[oldID] = true
	}
	return oldID, hadOld, newID, nil
}

func (m *MemIdManager) UpdateExisting(hash ContentHash, old DocID) (DocID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byHash[hash]
	if !ok || current != old {
		return NilDocID, errors.Wrap(ErrIdConflict, "hash does not resolve to the expected docid")
	}
	return current, nil
}

func (m *MemIdManager) Flush() error { return nil }

// MemDocumentManager is an in-memory DocumentManager reference
// implementation backed by a plain map, mirroring the teacher's
// mutex-guarded in-memory DB in spirit.
type MemDocumentManager struct {
	mu      sync.Mutex
	docs    map[DocID]Document
	deleted map[DocID]bool
	maxID   DocID
}

func NewMemDocumentManager() *MemDocumentManager {
	return &MemDocumentManager{docs: make(map[DocID]Document), deleted: make(map[DocID]bool)}
}

func (m *MemDocumentManager) InsertDocument(id DocID, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; exists {
		return errors.Wrapf(ErrIdConflict, "docid %d already present", id)
	}
	m.docs[id] = doc
	delete(m.deleted, id)
	if id > m.maxID {
		m.maxID = id
	}
	return nil
}

func (m *MemDocumentManager) RemoveDocument(id DocID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[id]; !exists {
		return errors.Wrapf(ErrDocumentNotFound, "docid %d", id)
	}
	m.deleted[id] = true
	return nil
}

func (m *MemDocumentManager) UpdatePartialDocument(id DocID, partial Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[id]
	if !exists || m.deleted[id] {
		return errors.Wrapf(ErrDocumentNotFound, "docid %d", id)
	}
	for prop, value := range partial.Values {
		doc.Values[prop] = value
	}
	m.docs[id] = doc
	return nil
}

func (m *MemDocumentManager) GetDocument(id DocID) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted[id] {
		return Document{}, false, nil
	}
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, false, nil
	}
	return doc.Clone(), true, nil
}

func (m *MemDocumentManager) GetPropertyValue(id DocID, prop schema.PropertyID) (propvalue.Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleted[id] {
		return propvalue.Value{}, false, nil
	}
	doc, ok := m.docs[id]
	if !ok {
		return propvalue.Value{}, false, nil
	}
	v, ok := doc.Values[prop]
	return v, ok, nil
}

func (m *MemDocumentManager) GetMaxDocID() DocID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxID
}

func (m *MemDocumentManager) IsDeleted(id DocID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleted[id]
}

func (m *MemDocumentManager) Flush() error {
	log.Printf("flushed in-memory document store (docs=%d)", len(m.docs))
	return nil
}

// LiveDocIDsAscending returns every non-deleted docid in ascending
// order.
func (m *MemDocumentManager) LiveDocIDsAscending() []DocID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]DocID, 0, len(m.docs))
	for id := range m.docs {
		if !m.deleted[id] {
			ids = append(ids, id)
		}
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// MemIndexManager is an in-memory IndexManager reference
// implementation. It does not build a real forward/inverted index; it
// tracks enough state (live docids, merge-pause flag, commit flag)
// to exercise the index worker's contract in tests.
type MemIndexManager struct {
	mu          sync.Mutex
	live        map[DocID]bool
	mergePaused bool
	committed   bool
}

func NewMemIndexManager() *MemIndexManager {
	return &MemIndexManager{live: make(map[DocID]bool)}
}

func (m *MemIndexManager) InsertDocument(id DocID, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[id] = true
	return nil
}

func (m *MemIndexManager) UpdateDocument(id DocID, oldID DocID, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, oldID)
	m.live[id] = true
	return nil
}

func (m *MemIndexManager) UpdateRtypeDocument(id DocID, fields map[schema.PropertyID]propvalue.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live[id] {
		return errors.Wrapf(ErrDocumentNotFound, "docid %d not in index", id)
	}
	return nil
}

func (m *MemIndexManager) RemoveDocument(id DocID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
	return nil
}

func (m *MemIndexManager) NumDocs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *MemIndexManager) PauseMerge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergePaused = true
}

func (m *MemIndexManager) ResumeMerge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergePaused = false
}

func (m *MemIndexManager) OptimizeIndex() error { return nil }

func (m *MemIndexManager) Flush() error { return nil }

func (m *MemIndexManager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = true
	return nil
}

// SelectMode picks realtime mode when the average document size is at
// or below 4096 bytes and the total is at or below 64 MiB, and batch
// mode otherwise. Both thresholds are fixed constants. A docCount of
// zero selects realtime mode.
func (m *MemIndexManager) SelectMode(totalSizeBytes int64, docCount int) IndexMode {
	const (
		defaultPerDocThreshold  = 4096
		defaultMaxRealtimeBytes = 64 << 20
	)
	if docCount == 0 {
		return RealtimeMode
	}
	perDoc := totalSizeBytes / int64(docCount)
	if perDoc <= defaultPerDocThreshold && totalSizeBytes <= defaultMaxRealtimeBytes {
		return RealtimeMode
	}
	return BatchMode
}
