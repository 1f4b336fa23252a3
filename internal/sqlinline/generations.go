package sqlinline

// Postgres statements for the generations table. Every constant starts with
// a marker line so the runner can log it and sqllint can check it.

const QGenerationsCreateTable = `--sql a6fcd35a-6807-4173-afdf-3bb4ca00180a
CREATE TABLE IF NOT EXISTS generations (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    post_type   TEXT NOT NULL DEFAULT '',
    prompt      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    storage_key TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const QGenerationsCreateIndex = `--sql 2aed4e27-66e4-4ae7-af44-0547b22a1b70
CREATE INDEX IF NOT EXISTS generations_created_at_idx ON generations (created_at DESC)`

const QGenerationInsert = `--sql 1579165a-d1f9-4678-8d99-867bc7a1dffe
INSERT INTO generations (id, kind, post_type, prompt, status, error, storage_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const QGenerationFinish = `--sql 385305eb-7793-47c5-b2f7-4386b69572e8
UPDATE generations
SET status = $2,
    error = $3,
    storage_key = $4,
    updated_at = NOW()
WHERE id = $1`

const QGenerationGet = `--sql b857affa-d241-4d10-b6d0-12ec5d42bdca
SELECT id::text, kind, post_type, prompt, status, error, storage_key, created_at, updated_at
FROM generations
WHERE id = $1`

const QGenerationList = `--sql d29de78b-45ea-4042-af7d-a75065043230
SELECT id::text, kind, post_type, prompt, status, error, storage_key, created_at, updated_at
FROM generations
ORDER BY created_at DESC
LIMIT $1`

// SQLite statements. Timestamps are stored as unix nanoseconds.

const QLiteGenerationsCreateTable = `--sql c191c645-3228-47c0-87af-a38c464182a5
CREATE TABLE IF NOT EXISTS generations (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    post_type   TEXT NOT NULL DEFAULT '',
    prompt      TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    storage_key TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
)`

const QLiteGenerationsCreateIndex = `--sql ab92551c-f874-4344-b995-f03873ed2ecb
CREATE INDEX IF NOT EXISTS generations_created_at_idx ON generations (created_at DESC)`

const QLiteGenerationInsert = `--sql 34431dc5-2db9-427d-8182-9fd3967c3186
INSERT INTO generations (id, kind, post_type, prompt, status, error, storage_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const QLiteGenerationFinish = `--sql 10e39002-4953-4411-802b-2c033e374d22
UPDATE generations
SET status = ?, error = ?, storage_key = ?, updated_at = ?
WHERE id = ?`

const QLiteGenerationGet = `--sql 828d97b5-cf94-4081-93fb-b0811f508b7c
SELECT id, kind, post_type, prompt, status, error, storage_key, created_at, updated_at
FROM generations
WHERE id = ?`

const QLiteGenerationList = `--sql 6b2e3112-f8c2-494e-942b-f65fa92846f6
SELECT id, kind, post_type, prompt, status, error, storage_key, created_at, updated_at
FROM generations
ORDER BY created_at DESC
LIMIT ?`
