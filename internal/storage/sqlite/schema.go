package sqlite

// The store is a single uniform table of logical buckets selected by the
// pillar column: run.wf (workflows), run.status (job statuses),
// run.event.{JOB|DATA|REMOTE} (triggers), repo.meta (metasheets),
// run.log.{LEVEL} (log records). The data column holds the JSON-serialized
// payload; key holds the bucket's lookup key.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS lwfm_store (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	site TEXT NOT NULL DEFAULT '',
	pillar TEXT NOT NULL,
	key TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_store_pillar_key_ts ON lwfm_store(pillar, key, ts DESC);
CREATE INDEX IF NOT EXISTS idx_store_pillar_ts ON lwfm_store(pillar, ts DESC);
`
