// Package journal appends accepted control messages to PostgreSQL.
//
// The journal is write-only diagnostics: rows are never read back, so a
// restarted marquee always begins from its boot text. Rows are batched and
// written with pgx.Batch either when the batch fills or on a flush ticker.
package journal
