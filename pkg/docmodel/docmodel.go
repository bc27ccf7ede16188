// Package docmodel defines the document, docid and content-hash types
// shared across the ingestion pipeline, and the narrow collaborator
// interfaces (id manager, document store, index store, language
// analyzer) that the core treats as external.
package docmodel

import (
	"crypto/md5"

	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/schema"
)

// DocID is the opaque internal identifier assigned by the IdManager.
type DocID uint32

// NilDocID marks the absence of a docid.
const NilDocID DocID = 0

// ContentHash is the 128-bit key an external DOCID string is hashed
// to before being handed to the IdManager.
type ContentHash [16]byte

// HashDocID computes the content hash of an external DOCID string.
func HashDocID(docID string) ContentHash {
	return ContentHash(md5.Sum([]byte(docID)))
}

// Document is a mapping from property id to typed value, plus the
// external DOCID string it was built from.
type Document struct {
	ExternalID string
	Values     map[schema.PropertyID]propvalue.Value
}

// NewDocument builds an empty document for the given external id.
func NewDocument(externalID string) Document {
	return Document{ExternalID: externalID, Values: make(map[schema.PropertyID]propvalue.Value)}
}

// Get returns the value stored for prop, if any.
func (d Document) Get(prop schema.PropertyID) (propvalue.Value, bool) {
	v, ok := d.Values[prop]
	return v, ok
}

// Set stores value under prop.
func (d Document) Set(prop schema.PropertyID, value propvalue.Value) {
	d.Values[prop] = value
}

// Clone returns a deep copy, used when overlaying a non-R-type update
// on top of the previously stored document.
func (d Document) Clone() Document {
	out := NewDocument(d.ExternalID)
	for k, v := range d.Values {
		out.Values[k] = v
	}
	return out
}
