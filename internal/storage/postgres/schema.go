package postgres

// Schema is applied in order by Migrate. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		queue         TEXT NOT NULL,
		job_type      TEXT NOT NULL,
		payload       JSONB NOT NULL,
		attempts_made INT NOT NULL DEFAULT 0,
		max_attempts  INT NOT NULL,
		backoff_type  TEXT NOT NULL,
		backoff_delay BIGINT NOT NULL,
		state         TEXT NOT NULL,
		worker_id     TEXT NOT NULL DEFAULT '',
		last_error    TEXT NOT NULL DEFAULT '',
		run_at        TIMESTAMPTZ NOT NULL,
		enqueued_at   TIMESTAMPTZ NOT NULL,
		started_at    TIMESTAMPTZ,
		heartbeat_at  TIMESTAMPTZ,
		finished_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (queue, state, run_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_list ON jobs (enqueued_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS webhooks (
		id         TEXT PRIMARY KEY,
		tenant_id  TEXT NOT NULL,
		url        TEXT NOT NULL,
		secret     TEXT NOT NULL,
		events     TEXT[] NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhooks_tenant ON webhooks (tenant_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id           TEXT PRIMARY KEY,
		webhook_id   TEXT NOT NULL REFERENCES webhooks (id) ON DELETE CASCADE,
		event        TEXT NOT NULL,
		payload      JSONB NOT NULL,
		status_code  INT,
		response     TEXT,
		success      BOOLEAN NOT NULL,
		attempts     INT NOT NULL,
		delivered_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_webhook ON webhook_deliveries (webhook_id, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		data       JSONB NOT NULL DEFAULT '{}',
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, is_read, created_at DESC)`,
}
