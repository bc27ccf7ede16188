// Package scd implements the bundle-file (SCD) filename grammar,
// directory scanning and backup, and the record parser feeding the
// document preparer.
package scd

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/pkg/docmodel"
)

// Type is the closed set of bundle file kinds. Dispatch on Type must
// be exhaustive; an unrecognized letter fails to parse rather than
// silently falling through.
type Type int

const (
	Insert Type = iota
	Update
	Delete
	Rebuild
)

func (t Type) String() string {
	switch t {
	case Insert:
		return "I"
	case Update:
		return "U"
	case Delete:
		return "D"
	case Rebuild:
		return "R"
	default:
		return "?"
	}
}

func typeFromLetter(letter string) (Type, bool) {
	switch letter {
	case "I":
		return Insert, true
	case "U":
		return Update, true
	case "D":
		return Delete, true
	case "R":
		return Rebuild, true
	default:
		return 0, false
	}
}

// nameRe matches B-NN-YYYYMMDDhhmm-ssuuu-T-C.SCD.
var nameRe = regexp.MustCompile(`^B-(\d{2})-(\d{12})-(\d{7})-([IUDR])-(.+)\.SCD$`)

// FileName is a parsed bundle filename. Less orders names
// chronologically by embedded timestamp, then by sequence.
type FileName struct {
	Raw        string
	Sequence   int
	Timestamp  string // YYYYMMDDhhmm
	SubSecond  string // ssuuu
	Type       Type
	Collection string
}

// ParseFileName parses name against the bundle filename grammar,
// returning docmodel.ErrBadFormat if it does not match or the type
// letter is unrecognized.
func ParseFileName(name string) (FileName, error) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return FileName{}, errors.Wrapf(docmodel.ErrBadFormat, "bundle filename %q", name)
	}

	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return FileName{}, errors.Wrapf(docmodel.ErrBadFormat, "bundle filename %q: bad sequence", name)
	}

	typ, ok := typeFromLetter(m[4])
	if !ok {
		return FileName{}, errors.Wrapf(docmodel.ErrBadFormat, "bundle filename %q: bad type letter %q", name, m[4])
	}

	return FileName{
		Raw:        name,
		Sequence:   seq,
		Timestamp:  m[2],
		SubSecond:  m[3],
		Type:       typ,
		Collection: m[5],
	}, nil
}

// String reconstructs the canonical filename.
func (f FileName) String() string {
	if f.Raw != "" {
		return f.Raw
	}
	return fmt.Sprintf("B-%02d-%s-%s-%s-%s.SCD", f.Sequence, f.Timestamp, f.SubSecond, f.Type, f.Collection)
}

// Less implements the canonical bundle-file sort: chronological by
// embedded timestamp (minute, then sub-second field), then by
// sequence, with the raw filename breaking any remaining tie.
func Less(a, b FileName) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.SubSecond != b.SubSecond {
		return a.SubSecond < b.SubSecond
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.String() < b.String()
}
