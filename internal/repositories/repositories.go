package repositories

import (
	"database/sql"
	"fmt"
)

// withSequence bumps the "{table}_sequence" counter and runs insert with the new value in the same
// transaction. A failed insert rolls the counter back, so sequences stay gapless.
//
// table must be a trusted identifier; it is not escaped.
func withSequence(db *sql.DB, table string, insert func(tx *sql.Tx, sequence int) error) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sequence int
	err = tx.QueryRow(fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}

	if err := insert(tx, sequence); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s insert: %w", table, err)
	}
	return sequence, nil
}
