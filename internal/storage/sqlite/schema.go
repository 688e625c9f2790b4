package sqlite

const schema = `
-- Cycles table: one row per autopilot cycle
CREATE TABLE IF NOT EXISTS cycles (
    id TEXT PRIMARY KEY,
    recipe_id TEXT NOT NULL DEFAULT '',
    phase TEXT NOT NULL,
    gates_passed INTEGER NOT NULL DEFAULT 0,
    rolled_back INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '{}',
    started_at DATETIME NOT NULL,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cycles_recipe ON cycles(recipe_id);
CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at);

-- Trust events table: one row per learn step
CREATE TABLE IF NOT EXISTS trust_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recipe_id TEXT NOT NULL,
    success INTEGER NOT NULL,
    trust REAL NOT NULL,
    runs INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trust_events_recipe ON trust_events(recipe_id);

-- Attestations table: verified improvements
CREATE TABLE IF NOT EXISTS attestations (
    id TEXT PRIMARY KEY,
    recipe_id TEXT NOT NULL,
    hash TEXT NOT NULL,
    before_total INTEGER NOT NULL,
    after_total INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attestations_recipe ON attestations(recipe_id);

-- Guardian runs table: one row per audited URL
CREATE TABLE IF NOT EXISTS guardian_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    accessibility INTEGER NOT NULL DEFAULT 0,
    performance INTEGER NOT NULL DEFAULT 0,
    security INTEGER NOT NULL DEFAULT 0,
    console INTEGER NOT NULL DEFAULT 0,
    issue_count INTEGER NOT NULL DEFAULT 0,
    report_path TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_guardian_runs_url ON guardian_runs(url);
CREATE INDEX IF NOT EXISTS idx_guardian_runs_created_at ON guardian_runs(created_at);
`
