package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imstrack/imstrack/internal/database/models"
)

// cdrRepo implements CDRRepository.
type cdrRepo struct {
	db *DB
}

// NewCDRRepository creates a new CDRRepository.
func NewCDRRepository(db *DB) CDRRepository {
	return &cdrRepo{db: db}
}

// Create inserts a new call detail record.
func (r *cdrRepo) Create(ctx context.Context, cdr *models.CDR) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO cdrs (call_id, address, direction, video, start_time,
		 connect_time, end_time, duration, cause, precise_cause, usage_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cdr.CallID, cdr.Address, cdr.Direction, cdr.Video, cdr.StartTime,
		cdr.ConnectTime, cdr.EndTime, cdr.Duration, cdr.Cause,
		cdr.PreciseCause, cdr.UsageBytes,
	)
	if err != nil {
		return fmt.Errorf("inserting cdr: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	cdr.ID = id
	return nil
}

// GetByID returns a CDR by ID.
func (r *cdrRepo) GetByID(ctx context.Context, id int64) (*models.CDR, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, call_id, address, direction, video, start_time,
		 connect_time, end_time, duration, cause, precise_cause, usage_bytes, created_at
		 FROM cdrs WHERE id = ?`, id,
	))
}

// GetByCallID returns a CDR by the tracker's call ID.
func (r *cdrRepo) GetByCallID(ctx context.Context, callID string) (*models.CDR, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, call_id, address, direction, video, start_time,
		 connect_time, end_time, duration, cause, precise_cause, usage_bytes, created_at
		 FROM cdrs WHERE call_id = ?`, callID,
	))
}

// List returns CDRs matching the filter, along with the total count.
func (r *cdrRepo) List(ctx context.Context, filter CDRListFilter) ([]models.CDR, int, error) {
	where := "1=1"
	args := []any{}

	if filter.Direction != "" {
		where += " AND direction = ?"
		args = append(args, filter.Direction)
	}
	if filter.Cause != "" {
		where += " AND cause = ?"
		args = append(args, filter.Cause)
	}
	if filter.Search != "" {
		where += " AND (address LIKE ? OR call_id LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s)
	}
	if filter.StartDate != "" {
		where += " AND start_time >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where += " AND start_time <= ?"
		args = append(args, filter.EndDate)
	}

	// Count total matching rows.
	var total int
	countQuery := "SELECT COUNT(*) FROM cdrs WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting cdrs: %w", err)
	}

	// Fetch the page of results.
	query := `SELECT id, call_id, address, direction, video, start_time,
		 connect_time, end_time, duration, cause, precise_cause, usage_bytes, created_at
		 FROM cdrs WHERE ` + where + ` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing cdrs: %w", err)
	}
	defer rows.Close()

	cdrs, err := r.scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return cdrs, total, nil
}

// ListRecent returns the most recent CDRs up to the given limit.
func (r *cdrRepo) ListRecent(ctx context.Context, limit int) ([]models.CDR, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, address, direction, video, start_time,
		 connect_time, end_time, duration, cause, precise_cause, usage_bytes, created_at
		 FROM cdrs ORDER BY start_time DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent cdrs: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// DeleteOlderThan removes CDRs whose start_time is older than the given
// number of days. Returns the number of removed rows.
func (r *cdrRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cdrs WHERE start_time < datetime('now', '-' || ? || ' days')`, days)
	if err != nil {
		return 0, fmt.Errorf("deleting expired cdrs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted cdrs: %w", err)
	}
	return n, nil
}

func (r *cdrRepo) scanRows(rows *sql.Rows) ([]models.CDR, error) {
	var cdrs []models.CDR
	for rows.Next() {
		var c models.CDR
		if err := rows.Scan(&c.ID, &c.CallID, &c.Address, &c.Direction, &c.Video,
			&c.StartTime, &c.ConnectTime, &c.EndTime, &c.Duration,
			&c.Cause, &c.PreciseCause, &c.UsageBytes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning cdr row: %w", err)
		}
		cdrs = append(cdrs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cdr rows: %w", err)
	}
	return cdrs, nil
}

func (r *cdrRepo) scanOne(row *sql.Row) (*models.CDR, error) {
	var c models.CDR
	err := row.Scan(&c.ID, &c.CallID, &c.Address, &c.Direction, &c.Video,
		&c.StartTime, &c.ConnectTime, &c.EndTime, &c.Duration,
		&c.Cause, &c.PreciseCause, &c.UsageBytes, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning cdr: %w", err)
	}
	return &c, nil
}
