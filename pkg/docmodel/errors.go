package docmodel

import "github.com/pkg/errors"

// Error kinds surfaced by the ingestion pipeline. Per-document kinds
// (BadFormat, SchemaViolation, IdConflict, StoreError) are caught at
// the dispatcher and logged; per-pass kinds (DirectoryDirty,
// FilesystemError, Cancelled) abort or terminate the build pass.
var (
	ErrBadFormat       = errors.New("bad format")
	ErrSchemaViolation = errors.New("schema violation")
	ErrIdConflict      = errors.New("id conflict")
	ErrStoreError      = errors.New("store error")
	ErrDirectoryDirty  = errors.New("directory dirty")
	ErrFilesystemError = errors.New("filesystem error")
	ErrCancelled       = errors.New("cancelled")

	// ErrDuplicateDocID is returned when assigning a new docid that is
	// not greater than the document store's current max docid.
	ErrDuplicateDocID = errors.New("duplicate docid")

	// ErrDocumentNotFound is returned when an update references a
	// docid the document store does not have.
	ErrDocumentNotFound = errors.New("document not found")
)

// IsBadFormat reports whether err (or its cause) is ErrBadFormat.
func IsBadFormat(err error) bool { return errors.Cause(err) == ErrBadFormat }

// IsSchemaViolation reports whether err (or its cause) is ErrSchemaViolation.
func IsSchemaViolation(err error) bool { return errors.Cause(err) == ErrSchemaViolation }

// IsStoreError reports whether err (or its cause) is ErrStoreError.
func IsStoreError(err error) bool { return errors.Cause(err) == ErrStoreError }
