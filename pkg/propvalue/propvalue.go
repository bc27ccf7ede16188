// Package propvalue implements the tagged property-value union that
// the document preparer builds from raw bundle-file strings, per the
// collection schema's declared property type.
package propvalue

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/schema"
)

// ErrBadNumeric is returned when a raw value cannot be cast, split and
// re-cast into any numeric representation the schema allows.
var ErrBadNumeric = errors.New("value is not a valid number")

// multiValueSeparators is the priority order the preparer tries when a
// scalar numeric cast fails, per the document preparer algorithm.
var multiValueSeparators = []string{"-", "~", ","}

// Value is a single typed property value. Exactly one of the typed
// fields is meaningful, selected by Type.
type Value struct {
	Type     schema.PropertyType
	Str      string
	Ints     []int64
	Floats   []float64
	Nominal  string
	DateText string
}

// TryFrom converts a raw string into a typed Value according to typ.
// Numeric types attempt a scalar cast first, then fall back to
// splitting on the multi-value separators in priority order; if every
// separator fails to produce int values, a float cast is attempted and
// truncated, matching the preparer's numeric coercion rule.
func TryFrom(raw string, typ schema.PropertyType) (Value, error) {
	switch typ {
	case schema.StringType:
		return Value{Type: typ, Str: raw}, nil
	case schema.NominalType:
		return Value{Type: typ, Nominal: raw}, nil
	case schema.DateType:
		return Value{Type: typ, DateText: raw}, nil
	case schema.IntType:
		ints, err := parseInts(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typ, Ints: ints}, nil
	case schema.FloatType:
		floats, err := parseFloats(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typ, Floats: floats}, nil
	default:
		return Value{}, errors.Errorf("unsupported property type %v", typ)
	}
}

func parseInts(raw string) ([]int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return []int64{v}, nil
	}

	for _, sep := range multiValueSeparators {
		if !strings.Contains(raw, sep) {
			continue
		}
		parts := strings.Split(raw, sep)
		ints := make([]int64, 0, len(parts))
		ok := true
		for _, part := range parts {
			v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				ok = false
				break
			}
			ints = append(ints, v)
		}
		if ok {
			return ints, nil
		}
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return []int64{int64(f)}, nil
	}

	return nil, errors.Wrapf(ErrBadNumeric, "int value %q", raw)
}

func parseFloats(raw string) ([]float64, error) {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return []float64{v}, nil
	}

	for _, sep := range multiValueSeparators {
		if !strings.Contains(raw, sep) {
			continue
		}
		parts := strings.Split(raw, sep)
		floats := make([]float64, 0, len(parts))
		ok := true
		for _, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				ok = false
				break
			}
			floats = append(floats, v)
		}
		if ok {
			return floats, nil
		}
	}

	return nil, errors.Wrapf(ErrBadNumeric, "float value %q", raw)
}

// Equal reports whether two values are the same for R-type
// classification purposes (exact string/value equality, not semantic
// numeric equality).
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case schema.StringType:
		return v.Str == other.Str
	case schema.NominalType:
		return v.Nominal == other.Nominal
	case schema.DateType:
		return v.DateText == other.DateText
	case schema.IntType:
		return int64SliceEqual(v.Ints, other.Ints)
	case schema.FloatType:
		return float64SliceEqual(v.Floats, other.Floats)
	default:
		return false
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func float64SliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
