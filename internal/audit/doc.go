// Package audit records one event per order mutation attempt.
//
// The primary store is an append-only JSON Lines file. Each event is written
// with a single write(2) on a file opened with O_APPEND, so a crashing or
// concurrent writer can at worst leave a torn final line; earlier lines are
// never touched. Readers skip anything they cannot parse.
//
// An optional Postgres mirror (PGStore) receives the same events on a
// best-effort basis through Tee.
package audit
