// Package docprep implements the document preparer: the classifier
// that turns a raw bundle record into an in-memory document, decides
// whether an update qualifies as R-type (field-level, no reindex) or
// must fall back to a full delete+insert, and assigns or resolves the
// docid through the IdManager collaborator.
package docprep

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/scd"
	"github.com/sf1r/coreengine/pkg/schema"
)

// dateLayout is the fixed timestamp format DATE properties are
// encoded in within bundle files: YYYYMMDDhhmmss.
const dateLayout = "20060102150405"

// SummaryBlock bounds a snippet/summary extract of a string property,
// in byte offsets into the original value.
type SummaryBlock struct {
	Start, End int
}

// Result is the outcome of Prepare: the assembled document plus
// enough bookkeeping for the index worker to dispatch the rest of the
// update (docid routing, R-type column rewrite, forward-index inputs).
type Result struct {
	Doc docmodel.Document

	DocID       docmodel.DocID
	OldDocID    docmodel.DocID
	HasOldDocID bool

	RType       bool
	RTypeFields map[schema.PropertyID]propvalue.Value

	Source string

	Timestamp    time.Time
	HasTimestamp bool

	// ForwardIndexInputs holds, per analyzed string property, the raw
	// text a language analyzer still needs to tokenize.
	ForwardIndexInputs map[schema.PropertyID]string

	// SummaryBlocks holds the sentence-offset blocks computed for
	// properties that requested a summary or snippet.
	SummaryBlocks map[schema.PropertyID][]SummaryBlock
}

// Preparer builds documents for a single collection schema.
type Preparer struct {
	Schema          *schema.Schema
	IDManager       docmodel.IdManager
	DocumentManager docmodel.DocumentManager

	// SourceField, if set, names the property recorded for per-source
	// counters (the original's productSourceField).
	SourceField string
}

// Prepare converts raw into a Result. insertMode forces the insert
// path even if the DOCID hash already resolves (used for rebuilds).
// buildTimestamp/hasBuildTimestamp supply the pass-level fallback
// timestamp used when the record carries no DATE property.
func (p *Preparer) Prepare(raw scd.Record, insertMode bool, buildTimestamp time.Time, hasBuildTimestamp bool) (*Result, error) {
	docIDValue, ok := findProperty(raw, "DOCID")
	if !ok {
		return nil, errors.Wrap(docmodel.ErrSchemaViolation, "record has no DOCID property")
	}

	result := &Result{
		Doc:                docmodel.NewDocument(docIDValue),
		ForwardIndexInputs: make(map[schema.PropertyID]string),
		SummaryBlocks:      make(map[schema.PropertyID][]SummaryBlock),
	}

	hash := docmodel.HashDocID(docIDValue)

	if err := p.resolveDocID(hash, raw, insertMode, result); err != nil {
		return nil, err
	}

	dateExists := false
	for _, prop := range raw.Properties {
		switch prop.Name {
		case "DOCID":
			continue
		case "DATE":
			dateExists = true
			if err := p.applyDate(prop.Value, result); err != nil {
				return nil, err
			}
			continue
		}

		sp, known := p.Schema.Lookup(prop.Name)
		if !known {
			continue
		}

		if p.SourceField != "" && prop.Name == p.SourceField {
			result.Source = prop.Value
		}

		value, err := propvalue.TryFrom(prop.Value, sp.Type)
		if err != nil {
			continue // malformed scalar: the property is dropped, record otherwise proceeds
		}
		result.Doc.Set(sp.ID, value)

		if sp.Type == schema.StringType && sp.Flags.IsIndex {
			if sp.Flags.IsAnalyzed {
				result.ForwardIndexInputs[sp.ID] = prop.Value
			}
			if sp.Summary != nil {
				result.SummaryBlocks[sp.ID] = makeSentenceBlocks(prop.Value, *sp.Summary)
			}
		}
	}

	if !dateExists && hasBuildTimestamp {
		result.Timestamp = buildTimestamp
		result.HasTimestamp = true
		if dateProp, ok := p.Schema.Lookup("DATE"); ok {
			result.Doc.Set(dateProp.ID, propvalue.Value{Type: schema.DateType, DateText: buildTimestamp.Format(dateLayout)})
		}
	}

	if !insertMode && result.HasOldDocID {
		old, found, err := p.DocumentManager.GetDocument(result.OldDocID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load previous document")
		}
		if !found {
			return nil, errors.Wrapf(docmodel.ErrDocumentNotFound, "docid %d", result.OldDocID)
		}
		result.Doc = overlay(old, result.Doc)
	}

	return result, nil
}

// resolveDocID implements the docid-routing half of the DOCID step:
// reuse the existing docid for an R-type update, hand off to the
// IdManager's mark-deleted-and-reissue path for a full update, or
// assign a fresh docid for an insert.
func (p *Preparer) resolveDocID(hash docmodel.ContentHash, raw scd.Record, insertMode bool, result *Result) error {
	if !insertMode {
		oldID, hadOld := p.IDManager.Resolve(hash)
		if hadOld {
			rtype, fields, err := p.classifyRType(oldID, raw)
			if err != nil {
				return err
			}
			if rtype {
				result.DocID = oldID
				result.RType = true
				result.RTypeFields = fields
				return nil
			}
			// Full update: fall through to AssignNew, which supersedes
			// oldID with a freshly issued docid.
		}
	}

	oldID, hadOld, newID, err := p.IDManager.AssignNew(hash)
	if err != nil {
		return errors.Wrap(err, "failed to assign docid")
	}
	if newID <= p.DocumentManager.GetMaxDocID() {
		return errors.Wrapf(docmodel.ErrDuplicateDocID, "docid %d", newID)
	}
	result.DocID = newID
	if hadOld {
		result.OldDocID = oldID
		result.HasOldDocID = true
	}
	return nil
}

func findProperty(raw scd.Record, name string) (string, bool) {
	for _, prop := range raw.Properties {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

func (p *Preparer) applyDate(raw string, result *Result) error {
	ts, err := time.Parse(dateLayout, raw)
	if err != nil {
		return errors.Wrapf(docmodel.ErrBadFormat, "DATE value %q", raw)
	}
	result.Timestamp = ts
	result.HasTimestamp = true
	if dateProp, ok := p.Schema.Lookup("DATE"); ok {
		result.Doc.Set(dateProp.ID, propvalue.Value{Type: schema.DateType, DateText: ts.Format(dateLayout)})
	}
	return nil
}

// overlay builds a new document by copying old and applying every
// property the new partial record set, implementing the non-R-type
// update's "load the old document and overlay new properties".
func overlay(old, partial docmodel.Document) docmodel.Document {
	merged := old.Clone()
	for prop, value := range partial.Values {
		merged.Values[prop] = value
	}
	return merged
}

func makeSentenceBlocks(text string, info schema.SummaryInfo) []SummaryBlock {
	var blocks []SummaryBlock
	start := 0
	for i := 0; i < len(text) && len(blocks) < info.SummaryNum; i++ {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			end := i + 1
			if end-start > info.DisplayLength {
				end = start + info.DisplayLength
				if end > len(text) {
					end = len(text)
				}
			}
			blocks = append(blocks, SummaryBlock{Start: start, End: end})
			start = i + 1
		}
	}
	if len(blocks) == 0 && len(text) > 0 {
		end := len(text)
		if end > info.DisplayLength {
			end = info.DisplayLength
		}
		blocks = append(blocks, SummaryBlock{Start: 0, End: end})
	}
	return blocks
}
