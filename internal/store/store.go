package store

// DefaultDBPath is the default relative path for the SQLite DB.
// Resolve against the user's home or cwd; Open() creates the parent dir.
const DefaultDBPath = ".medic/medic.db"

// RunRecord is one recorded check run: which probes were requested,
// when, and how the counts came out. The rendered JSON report is kept
// alongside so past runs can be inspected without re-executing.
type RunRecord struct {
	ID            int64
	StartedAt     string // RFC 3339, UTC
	DurationMS    int64
	Probes        []string
	Passed        int
	Failed        int
	Unresolved    int
	NotApplicable int
	Report        string // JSON report document, may be empty
}

// Succeeded reports whether the run had no failures and no unresolved probes.
func (r *RunRecord) Succeeded() bool {
	return r.Failed == 0 && r.Unresolved == 0
}
