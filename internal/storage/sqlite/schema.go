package sqlite

const schema = `
-- Sessions table
-- One row per AI-assisted coding session. Structured sub-objects
-- (ai_provider, task_classification, outcome) and string lists are stored
-- as JSON text; timing counters are real columns so they can be incremented
-- in place.
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    branch TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    input TEXT NOT NULL DEFAULT '',
    output TEXT NOT NULL DEFAULT '',
    ai_provider TEXT NOT NULL DEFAULT '{}',
    task_classification TEXT NOT NULL DEFAULT '{}',
    outcome TEXT NOT NULL DEFAULT '{}',
    tasks_completed TEXT NOT NULL DEFAULT '[]',
    tasks_pending TEXT NOT NULL DEFAULT '[]',
    files_modified TEXT NOT NULL DEFAULT '[]',
    decisions TEXT NOT NULL DEFAULT '[]',
    errors_resolved TEXT NOT NULL DEFAULT '[]',
    startup_ms INTEGER NOT NULL DEFAULT 0,
    governance_overhead_ms INTEGER NOT NULL DEFAULT 0 CHECK(governance_overhead_ms >= 0),
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_at DATETIME,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_branch ON sessions(branch);
CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

-- Artifacts table
-- session_id is nullable: legacy rows predate session capture and associate
-- through the feature/title fallback. ON DELETE SET NULL turns artifacts of
-- pruned sessions into legacy rows instead of losing them.
CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    session_id TEXT REFERENCES sessions(id) ON DELETE SET NULL,
    type TEXT NOT NULL CHECK(type IN ('brainstorm', 'plan', 'research', 'adr', 'diagram', 'issue', 'spec', 'checklist', 'retro')),
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'done')),
    feature TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_type ON artifacts(type);
CREATE INDEX IF NOT EXISTS idx_artifacts_feature ON artifacts(feature);

-- Observations table
-- Narrative memory snippets captured during a session. Deleting a session
-- removes its observations.
CREATE TABLE IF NOT EXISTS observations (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    type TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    narrative TEXT NOT NULL DEFAULT '',
    facts TEXT NOT NULL DEFAULT '',
    concepts TEXT NOT NULL DEFAULT '[]',
    files_read TEXT NOT NULL DEFAULT '[]',
    files_modified TEXT NOT NULL DEFAULT '[]',
    discovery_tokens INTEGER NOT NULL DEFAULT 0 CHECK(discovery_tokens >= 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(session_id);
CREATE INDEX IF NOT EXISTS idx_observations_created_at ON observations(created_at);

-- Drafts table
-- Proposed framework files awaiting review. session_id is provenance only,
-- no foreign key: drafts outlive pruned sessions.
CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL CHECK(category IN ('rules', 'knowledge', 'skills', 'workflows')),
    title TEXT NOT NULL,
    filename TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0 CHECK(confidence >= 0 AND confidence <= 100),
    source TEXT NOT NULL CHECK(source IN ('evolution', 'manual')),
    evolution_candidate_id TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    artifact_type TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    approved_at DATETIME,
    rejected_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_drafts_title_status ON drafts(title, status);
CREATE INDEX IF NOT EXISTS idx_drafts_session ON drafts(session_id);

-- Evolution candidates table
CREATE TABLE IF NOT EXISTS evolution_candidates (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL CHECK(type IN ('routing_weight', 'skill_combo', 'rule_elevation', 'compound_workflow', 'tkb_promotion', 'new_convention', 'model_recommendation')),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0 CHECK(confidence >= 0 AND confidence <= 100),
    session_count INTEGER NOT NULL DEFAULT 0,
    evidence TEXT NOT NULL DEFAULT '[]',
    discovery_tokens_total INTEGER NOT NULL DEFAULT 0,
    suggested_action TEXT NOT NULL DEFAULT '',
    model_scope TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'drafted', 'approved', 'rejected', 'auto_applied')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_candidates_status ON evolution_candidates(status);
CREATE INDEX IF NOT EXISTS idx_candidates_type_title ON evolution_candidates(type, title);

-- Evolution log table (append-only audit trail)
-- No foreign key on candidate_id: log entries must outlive deleted
-- candidates.
CREATE TABLE IF NOT EXISTS evolution_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    candidate_id TEXT NOT NULL,
    action TEXT NOT NULL CHECK(action IN ('auto_applied', 'drafted', 'pending', 'reverted', 'rejected')),
    title TEXT NOT NULL,
    confidence REAL NOT NULL,
    snapshot TEXT NOT NULL DEFAULT '{}',
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_evolution_log_candidate ON evolution_log(candidate_id);
CREATE INDEX IF NOT EXISTS idx_evolution_log_timestamp ON evolution_log(timestamp);

-- Patterns table
-- Recurring failure modes mined from observation narratives.
CREATE TABLE IF NOT EXISTS patterns (
    id TEXT PRIMARY KEY,
    pattern TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0 CHECK(confidence >= 0 AND confidence <= 100),
    active INTEGER NOT NULL DEFAULT 1,
    false_positive_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Pattern detections table
-- One row per sighting. session_id carries no foreign key: session pruning
-- must not erase recent detection history, which ages out on its own
-- 30-day schedule.
CREATE TABLE IF NOT EXISTS pattern_detections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern_id TEXT NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
    session_id TEXT NOT NULL,
    model_id TEXT NOT NULL DEFAULT '',
    detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_detections_pattern ON pattern_detections(pattern_id);
CREATE INDEX IF NOT EXISTS idx_detections_detected_at ON pattern_detections(detected_at);
CREATE INDEX IF NOT EXISTS idx_detections_model ON pattern_detections(model_id);

-- Engine meta table
-- Persisted counters: evolution/prune cadence and the views epoch. Counters
-- survive restarts and increment atomically with the event that bumps them.
CREATE TABLE IF NOT EXISTS engine_meta (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);
`
