package storage

// migrations holds one SQL script per schema version; migrations[n] brings
// the database from user_version n to n+1. Each script runs inside the
// upgrade transaction, so a future shape change to an existing collection
// gets its own entry here instead of an ad-hoc ALTER at open time.
var migrations = []string{
	// v1: provision the five collections.
	`
-- Server-owned glossary mirror. Overwritten wholesale by sync.
CREATE TABLE IF NOT EXISTS terms (
    id INTEGER PRIMARY KEY,
    term TEXT NOT NULL,
    definition TEXT NOT NULL,
    category TEXT NOT NULL
);

-- Server-owned formula mirror.
CREATE TABLE IF NOT EXISTS formulas (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    formula TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    variables TEXT NOT NULL DEFAULT 'null'
);

-- Mock exam results. Surrogate key keeps same-millisecond scores distinct.
CREATE TABLE IF NOT EXISTS quiz_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    score REAL NOT NULL,
    total REAL NOT NULL,
    timestamp DATETIME NOT NULL
);

-- Generic key/value rows; also carries study-time increments under the
-- 'studytime:' key prefix.
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- User-authored terms. AUTOINCREMENT ids are monotonic and never reused
-- within a database lifetime, and live in a keyspace separate from the
-- server-assigned ids in 'terms'.
CREATE TABLE IF NOT EXISTS custom_terms (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    term TEXT NOT NULL,
    definition TEXT NOT NULL,
    category TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
`,
}
