package database

import (
	"context"
	"fmt"

	"github.com/imstrack/imstrack/internal/database/models"
)

// callUsageRepo implements CallUsageRepository.
type callUsageRepo struct {
	db *DB
}

// NewCallUsageRepository creates a new CallUsageRepository.
func NewCallUsageRepository(db *DB) CallUsageRepository {
	return &callUsageRepo{db: db}
}

// Record inserts one usage sample.
func (r *callUsageRepo) Record(ctx context.Context, u *models.CallUsage) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO call_usage (uid, rx_bytes, tx_bytes) VALUES (?, ?, ?)`,
		u.UID, u.RxBytes, u.TxBytes,
	)
	if err != nil {
		return fmt.Errorf("inserting usage sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	u.ID = id
	return nil
}

// TotalsByUID aggregates all samples per UID.
func (r *callUsageRepo) TotalsByUID(ctx context.Context) (map[int]models.CallUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uid, SUM(rx_bytes), SUM(tx_bytes) FROM call_usage GROUP BY uid`)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage: %w", err)
	}
	defer rows.Close()

	totals := make(map[int]models.CallUsage)
	for rows.Next() {
		var u models.CallUsage
		if err := rows.Scan(&u.UID, &u.RxBytes, &u.TxBytes); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		totals[u.UID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage rows: %w", err)
	}
	return totals, nil
}
