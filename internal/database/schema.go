package database

const storeSchema = `
CREATE TABLE kv_store (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_kv_updated_at ON kv_store(updated_at);
`

// storeMigrations contains incremental schema changes
// Each migration is applied in order based on the current user_version
// storeMigrations[0] is empty because version 0 uses the base schema
var storeMigrations = []string{
	"",
}
