package store

import "database/sql"

// Schema is the complete syndication schema.
const Schema = `
-- Content units served by the sync feed
CREATE TABLE IF NOT EXISTS posts (
    id              TEXT PRIMARY KEY,
    site_id         TEXT NOT NULL,
    title           TEXT NOT NULL,
    slug            TEXT NOT NULL,
    excerpt         TEXT NOT NULL DEFAULT '',
    body_markdown   TEXT NOT NULL DEFAULT '',
    body_html       TEXT NOT NULL DEFAULT '',
    tags_json       TEXT NOT NULL DEFAULT '[]',
    images_json     TEXT NOT NULL DEFAULT '[]',
    seo_title       TEXT NOT NULL DEFAULT '',
    seo_description TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'draft',
    published_at    INTEGER,
    content_hash    TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_site_slug ON posts(site_id, slug);
CREATE INDEX IF NOT EXISTS idx_posts_feed ON posts(site_id, updated_at DESC, id DESC);

-- Previous slugs, one row per slug change (append-only)
CREATE TABLE IF NOT EXISTS slug_history (
    id         TEXT PRIMARY KEY,
    site_id    TEXT NOT NULL,
    post_id    TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    slug       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_slug_history_post ON slug_history(post_id);
CREATE INDEX IF NOT EXISTS idx_slug_history_site ON slug_history(site_id, slug);

-- Generated articles awaiting publication to the live post set
CREATE TABLE IF NOT EXISTS articles (
    id              TEXT PRIMARY KEY,
    site_id         TEXT NOT NULL,
    title           TEXT NOT NULL,
    body_markdown   TEXT NOT NULL DEFAULT '',
    body_html       TEXT NOT NULL DEFAULT '',
    excerpt         TEXT NOT NULL DEFAULT '',
    tags_json       TEXT NOT NULL DEFAULT '[]',
    seo_title       TEXT NOT NULL DEFAULT '',
    seo_description TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'draft',
    scheduled_for   INTEGER,
    post_id         TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_site ON articles(site_id, status);

-- Webhook subscriber registrations (site-scoped)
CREATE TABLE IF NOT EXISTS webhook_subscriptions (
    id         TEXT PRIMARY KEY,
    site_id    TEXT NOT NULL,
    target_url TEXT NOT NULL,
    secret     TEXT NOT NULL,
    active     INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_site ON webhook_subscriptions(site_id, active);

-- Delivery attempt audit trail (append-only, never mutated)
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    post_id         TEXT NOT NULL DEFAULT '',
    event           TEXT NOT NULL,
    attempt         INTEGER NOT NULL,
    status_code     INTEGER,
    error_message   TEXT NOT NULL DEFAULT '',
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    delivered_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_sub ON webhook_deliveries(subscription_id, delivered_at DESC);

-- Deferred work units; completion is marked, rows are never deleted
CREATE TABLE IF NOT EXISTS scheduled_jobs (
    id            TEXT PRIMARY KEY,
    job_type      TEXT NOT NULL,
    payload       TEXT NOT NULL DEFAULT '{}',
    scheduled_for INTEGER NOT NULL,
    attempts      INTEGER NOT NULL DEFAULT 0,
    max_attempts  INTEGER NOT NULL DEFAULT 5,
    last_error    TEXT NOT NULL DEFAULT '',
    completed_at  INTEGER,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_due ON scheduled_jobs(job_type, completed_at, scheduled_for);

-- Site API credentials (bcrypt hashes; plaintext is shown once at creation)
CREATE TABLE IF NOT EXISTS site_credentials (
    id         TEXT PRIMARY KEY,
    site_id    TEXT NOT NULL,
    key_hash   TEXT NOT NULL,
    key_prefix TEXT NOT NULL DEFAULT '',
    active     INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credentials_site ON site_credentials(site_id, active);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
