package indexworker

import "github.com/sf1r/coreengine/pkg/scd"

// SourceCounts tallies documents processed per distinct value of the
// configured source field (Config.SourceField) within one bundle
// file's dispatch, mirroring the original's productSourceCount_ map.
type SourceCounts map[string]int

// SourceCountSink receives a bundle file's accumulated per-source
// counts once its dispatch completes. op is "insert", "update" or
// "delete", naming the bundle file's own type, matching the original's
// saveSourceCount_(op) call once per file.
type SourceCountSink interface {
	Save(op string, counts SourceCounts) error
}

func sourceCountOp(fileType scd.Type) string {
	switch fileType {
	case scd.Insert:
		return "insert"
	case scd.Update:
		return "update"
	case scd.Delete:
		return "delete"
	default:
		return "unknown"
	}
}
