// Package schema declares the property schema types shared by the
// document model, the document preparer, and the index worker.
package schema

// PropertyID is a small integer identifying a property within a
// collection schema.
type PropertyID uint16

// PropertyType is the closed set of value types a property can hold.
type PropertyType int

const (
	StringType PropertyType = iota
	IntType
	FloatType
	NominalType
	DateType
)

func (t PropertyType) String() string {
	switch t {
	case StringType:
		return "string"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case NominalType:
		return "nominal"
	case DateType:
		return "date"
	default:
		return "unknown"
	}
}

// Flags carries the indexing/storage behavior requested for a
// property.
type Flags struct {
	IsIndex       bool
	IsAnalyzed    bool
	IsFilter      bool
	IsMultiValue  bool
	IsStoreDocLen bool
}

// AnalyzerInfo names the language analyzer to apply to an analyzed
// string property.
type AnalyzerInfo struct {
	Name     string
	Language string
}

// SummaryInfo bounds the snippet/summary extracted from a string
// property. SummaryNum is clamped to at least 1 by NewSummaryInfo.
type SummaryInfo struct {
	DisplayLength int
	SummaryNum    int
}

// NewSummaryInfo builds a SummaryInfo, enforcing the "at least one
// sentence" floor.
func NewSummaryInfo(displayLength, summaryNum int) SummaryInfo {
	if summaryNum < 1 {
		summaryNum = 1
	}
	return SummaryInfo{DisplayLength: displayLength, SummaryNum: summaryNum}
}

// Property is a single declared schema field.
type Property struct {
	ID       PropertyID
	Name     string
	Type     PropertyType
	Flags    Flags
	Analyzer *AnalyzerInfo
	Summary  *SummaryInfo
}

// IsRTypeEligible reports whether a change to this property alone
// could ever qualify as an R-type (field-level, no-reindex) update:
// either the property is indexed, filterable and not analyzed, or it
// isn't indexed at all. Analyzed or non-filterable indexed properties
// always force a full reindex.
func (p Property) IsRTypeEligible() bool {
	if !p.Flags.IsIndex {
		return true
	}
	return p.Flags.IsFilter && !p.Flags.IsAnalyzed
}

// Schema is the ordered set of properties declared for a collection,
// plus the distinguished DOCID and DATE properties every collection
// carries.
type Schema struct {
	Properties      []Property
	byName          map[string]*Property
	byID            map[PropertyID]*Property
	DocIDProperty   PropertyID
	DateProperty    PropertyID
	HasDateProperty bool
}

// New builds a Schema from its property list, indexing by name for
// Lookup. DOCID is required; DATE is optional.
func New(props []Property, docIDName, dateName string) *Schema {
	s := &Schema{
		Properties: props,
		byName:     make(map[string]*Property, len(props)),
		byID:       make(map[PropertyID]*Property, len(props)),
	}
	for i := range props {
		p := &props[i]
		s.byName[p.Name] = p
		s.byID[p.ID] = p
		if p.Name == docIDName {
			s.DocIDProperty = p.ID
		}
		if dateName != "" && p.Name == dateName {
			s.DateProperty = p.ID
			s.HasDateProperty = true
		}
	}
	return s
}

// NameByID returns the declared name of prop, if any.
func (s *Schema) NameByID(prop PropertyID) (string, bool) {
	p, ok := s.byID[prop]
	if !ok {
		return "", false
	}
	return p.Name, true
}

// Lookup returns the property declared under name, if any.
func (s *Schema) Lookup(name string) (Property, bool) {
	p, ok := s.byName[name]
	if !ok {
		return Property{}, false
	}
	return *p, true
}
