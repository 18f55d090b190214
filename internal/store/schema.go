package store

// Schema is the initial database layout. Idempotent: every statement is
// CREATE IF NOT EXISTS, so re-running it against an initialized store is a
// no-op. Later columns arrive via the best-effort migrations in Open.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	platform TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	trust TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(identifier, platform)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL DEFAULT '',
	identifier TEXT NOT NULL,
	platform TEXT NOT NULL,
	decision TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantine (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	platform TEXT NOT NULL,
	preview TEXT NOT NULL,
	body TEXT NOT NULL,
	reviewed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS canary_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	platform TEXT NOT NULL,
	score REAL NOT NULL,
	patterns TEXT NOT NULL DEFAULT '[]',
	verbs TEXT NOT NULL DEFAULT '[]',
	preview TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_platform ON contacts(platform);
CREATE INDEX IF NOT EXISTS idx_quarantine_identity ON quarantine(identifier, platform);
CREATE INDEX IF NOT EXISTS idx_canary_identity ON canary_events(identifier, platform);
`
