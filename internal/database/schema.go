package database

// schemaDDL creates the meta schema used by pkg/session, pkg/catalog, and
// pkg/telemetry. Table and schema naming (meta.sessions, meta.functions)
// matches the controller this was ported from.
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS meta;

CREATE TABLE IF NOT EXISTS meta.sessions (
	request_id        TEXT PRIMARY KEY,
	language_title     TEXT NOT NULL,
	user_id            TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at         TIMESTAMPTZ NOT NULL,
	last_executed_at   TIMESTAMPTZ,
	execution_count    INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'active',
	context            JSONB NOT NULL DEFAULT '{}'::jsonb,
	script_content     TEXT,
	script_hash        TEXT,
	compiled_artifact  BYTEA,
	compile_options    JSONB,
	compile_status     TEXT,
	compile_error      TEXT,
	metadata           JSONB
);

CREATE OR REPLACE FUNCTION meta.sessions_set_script_hash() RETURNS trigger AS $$
BEGIN
	IF NEW.script_content IS NULL THEN
		NEW.script_hash := NULL;
	ELSE
		NEW.script_hash := encode(digest(NEW.script_content, 'sha256'), 'hex');
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS sessions_script_hash ON meta.sessions;
CREATE TRIGGER sessions_script_hash
	BEFORE INSERT OR UPDATE OF script_content ON meta.sessions
	FOR EACH ROW EXECUTE FUNCTION meta.sessions_set_script_hash();

CREATE OR REPLACE FUNCTION meta.cleanup_expired_sessions() RETURNS bigint AS $$
DECLARE
	affected bigint;
BEGIN
	UPDATE meta.sessions SET status = 'expired' WHERE expires_at < now() AND status = 'active';
	WITH deleted AS (
		DELETE FROM meta.sessions WHERE expires_at < now() RETURNING request_id
	)
	SELECT count(*) INTO affected FROM deleted;
	RETURN affected;
END;
$$ LANGUAGE plpgsql;

CREATE TABLE IF NOT EXISTS meta.functions (
	id                 UUID PRIMARY KEY,
	language           TEXT NOT NULL,
	title              TEXT NOT NULL,
	language_title     TEXT NOT NULL UNIQUE,
	description        TEXT,
	schema_definition  JSONB,
	examples           JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_by         TEXT,
	is_active          BOOLEAN NOT NULL DEFAULT true,
	version            TEXT NOT NULL DEFAULT '1.0.0',
	tags               TEXT[]
);

CREATE TABLE IF NOT EXISTS meta.scripts (
	function_id  UUID NOT NULL REFERENCES meta.functions(id),
	content      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meta.request_logs (
	id                  BIGSERIAL PRIMARY KEY,
	request_id          TEXT NOT NULL,
	language_title      TEXT NOT NULL,
	status              TEXT NOT NULL,
	execution_time_ms   BIGINT,
	memory_usage_bytes  BIGINT,
	duration_ms         BIGINT NOT NULL DEFAULT 0,
	cached              BOOLEAN NOT NULL DEFAULT false,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meta.error_logs (
	id           BIGSERIAL PRIMARY KEY,
	request_id   TEXT,
	kind         TEXT NOT NULL,
	message      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
