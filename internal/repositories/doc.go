// Package repositories implements SQLite persistence for sort history.
//
// [SortRunRepository] stores one row per sort attempt with its status and batch counts. Rows are soft
// deleted through deleted_at and hidden from queries afterwards.
//
// Each row also gets a sequence number (run #42) from a per-table counter, advanced in the same
// transaction as the insert.
package repositories
