package ledger

const schema = `
CREATE TABLE IF NOT EXISTS posts (
    id           TEXT PRIMARY KEY,
    published_at TEXT NOT NULL,
    text         TEXT NOT NULL DEFAULT '',
    media_folder TEXT NOT NULL DEFAULT '',
    video        TEXT NOT NULL DEFAULT '',
    recorded_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_recorded_at ON posts(recorded_at);
`
