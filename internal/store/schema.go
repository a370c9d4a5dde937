package store

const schemaVersionV1 = 1

// schemaV1 is the initial schema: a version marker plus one row per run.
// Probe references are stored as a JSON array; the report column holds
// the full JSON result document when the caller provides one.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at     TEXT NOT NULL,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    probes         TEXT NOT NULL,
    passed         INTEGER NOT NULL DEFAULT 0,
    failed         INTEGER NOT NULL DEFAULT 0,
    unresolved     INTEGER NOT NULL DEFAULT 0,
    not_applicable INTEGER NOT NULL DEFAULT 0,
    report         TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
