package postgres

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. The ledger_seq singleton row is
// the monotonic sequence source; it is seeded once and never reset.
const schema = `
CREATE TABLE IF NOT EXISTS players (
    uuid        UUID PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    balance     BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    seen_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_players_name ON players (name);

CREATE TABLE IF NOT EXISTS idempotency_requests (
    scope        TEXT NOT NULL,
    key_hash     TEXT NOT NULL,
    payload_hash TEXT NOT NULL,
    result_blob  JSONB NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (scope, key_hash)
);

CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_requests (expires_at);

CREATE TABLE IF NOT EXISTS ledger (
    seq           BIGINT PRIMARY KEY,
    ts            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    module_id     TEXT NOT NULL,
    op            TEXT NOT NULL,
    from_uuid     UUID,
    to_uuid       UUID,
    amount        BIGINT NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    ok            BOOLEAN NOT NULL,
    code          TEXT,
    idem_scope    TEXT,
    idem_key_hash TEXT,
    old_units     BIGINT,
    new_units     BIGINT,
    server_node   TEXT NOT NULL DEFAULT '',
    extra_json    JSONB
);

CREATE INDEX IF NOT EXISTS idx_ledger_from ON ledger (from_uuid);
CREATE INDEX IF NOT EXISTS idx_ledger_to ON ledger (to_uuid);
CREATE INDEX IF NOT EXISTS idx_ledger_module ON ledger (module_id);

CREATE TABLE IF NOT EXISTS ledger_seq (
    id    INT PRIMARY KEY CHECK (id = 1),
    value BIGINT NOT NULL
);

INSERT INTO ledger_seq (id, value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS modules (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    secret_key_hash TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
