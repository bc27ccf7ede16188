package docprep

import (
	"github.com/sf1r/coreengine/pkg/docmodel"
	"github.com/sf1r/coreengine/pkg/propvalue"
	"github.com/sf1r/coreengine/pkg/scd"
	"github.com/sf1r/coreengine/pkg/schema"
)

// classifyRType walks raw once, deciding whether every changed
// property qualifies for a field-level rewrite. A property that is
// unchanged from the persisted value is skipped regardless of its
// flags; any changed property that is not (indexed ∧ filterable ∧
// not-analyzed) or (not-indexed) fails classification, falling back
// to a full reindex rather than erroring. DATE runs through the same
// test as every other property: a changed DATE value is only ever
// R-type-eligible (and so only ever gets rewritten here) if its
// schema flags say so, same as any other field. This is the first of
// the two passes over raw; Prepare's main loop is the second.
func (p *Preparer) classifyRType(oldID docmodel.DocID, raw scd.Record) (bool, map[schema.PropertyID]propvalue.Value, error) {
	changed := make(map[schema.PropertyID]propvalue.Value)

	for _, prop := range raw.Properties {
		if prop.Name == "DOCID" {
			continue
		}

		sp, known := p.Schema.Lookup(prop.Name)
		if !known {
			continue
		}

		newValue, err := propvalue.TryFrom(prop.Value, sp.Type)
		if err != nil {
			continue
		}

		oldValue, found, err := p.DocumentManager.GetPropertyValue(oldID, sp.ID)
		if err != nil {
			return false, nil, err
		}
		if found && oldValue.Equal(newValue) {
			continue
		}

		if !sp.IsRTypeEligible() {
			return false, nil, nil
		}

		changed[sp.ID] = newValue
	}

	return true, changed, nil
}
