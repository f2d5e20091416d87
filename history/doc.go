// Package history archives incoming feed records in SQL and replays time ranges.
//
// The archive is independent of the playback engine: a recorder appends every
// record it sees, and a Replay source later feeds a stored range back through
// any ingest.Sink. SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are
// supported; the schema is applied with golang-migrate from embedded files.
package history
