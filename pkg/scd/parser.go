package scd

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/sf1r/coreengine/internal/vfs"
	"github.com/sf1r/coreengine/pkg/docmodel"
)

// Property is a single raw (name, value) pair as it appears in a
// bundle file record, before the document preparer interprets it
// against the schema.
type Property struct {
	Name  string
	Value string
}

// Record is one parsed document or user/order record: its key
// property value (the DOCID or USERID) plus every property in file
// order, key included.
type Record struct {
	Key        string
	Properties []Property
}

var propertyLineRe = regexp.MustCompile(`^<([^>]+)>(.*)$`)

// RecordReader is a lazy, restartable sequence of Records read from a
// bundle file body. It is restartable in the sense that it holds no
// state beyond the underlying reader's position: re-opening the same
// file and reading from the start reproduces the same sequence.
type RecordReader struct {
	scanner     *bufio.Scanner
	keyProperty string
	started     bool
	pending     *Record
	done        bool
}

// NewRecordReader wraps r, splitting records each time a property
// line named keyProperty is seen (DOCID for document bundles, USERID
// for user/order bundles).
func NewRecordReader(r io.Reader, keyProperty string) *RecordReader {
	return &RecordReader{scanner: bufio.NewScanner(r), keyProperty: keyProperty}
}

// OpenBundle opens name within dir and wraps it in a RecordReader
// keyed on keyProperty. The returned closer must be closed by the
// caller once done reading.
func OpenBundle(dir vfs.Dir, name, keyProperty string) (*RecordReader, io.Closer, error) {
	f, err := dir.OpenFile(name)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open bundle file %v", name)
	}
	return NewRecordReader(f, keyProperty), f, nil
}

// Next returns the next record, or io.EOF once the body is exhausted.
// A truncated trailing line (one that matches no property and is not
// blank) fails with docmodel.ErrBadFormat.
func (p *RecordReader) Next() (Record, error) {
	if p.done {
		return Record{}, io.EOF
	}

	for {
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return Record{}, errors.Wrap(err, "failed to read bundle file")
			}
			p.done = true
			if p.pending != nil {
				rec := *p.pending
				p.pending = nil
				return rec, nil
			}
			if !p.started {
				return Record{}, errors.Wrap(docmodel.ErrBadFormat, "bundle file has no records")
			}
			return Record{}, io.EOF
		}

		line := strings.TrimRight(p.scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		m := propertyLineRe.FindStringSubmatch(line)
		if m == nil {
			return Record{}, errors.Wrapf(docmodel.ErrBadFormat, "truncated record line %q", line)
		}
		name, value := m[1], m[2]

		if name == p.keyProperty {
			p.started = true
			finished := p.pending
			p.pending = &Record{Key: value, Properties: []Property{{Name: name, Value: value}}}
			if finished != nil {
				return *finished, nil
			}
			continue
		}

		if p.pending == nil {
			return Record{}, errors.Wrapf(docmodel.ErrBadFormat, "property %q before first %v", name, p.keyProperty)
		}
		p.pending.Properties = append(p.pending.Properties, Property{Name: name, Value: value})
	}
}

// DeleteDocIDs drains the reader and returns just the key values,
// without retaining full records, for delete bundles where only the
// DOCID list is needed.
func (p *RecordReader) DeleteDocIDs() ([]string, error) {
	var ids []string
	for {
		rec, err := p.Next()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, rec.Key)
	}
}
