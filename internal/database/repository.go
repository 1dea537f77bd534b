package database

import (
	"context"

	"github.com/imstrack/imstrack/internal/database/models"
)

// CDRListFilter specifies filtering and pagination for CDR list queries.
type CDRListFilter struct {
	Limit     int
	Offset    int
	Search    string // matches address or call_id
	Direction string // "incoming", "outgoing", or "" for all
	Cause     string // disconnect cause name, or "" for all
	StartDate string // RFC3339 or YYYY-MM-DD
	EndDate   string // RFC3339 or YYYY-MM-DD
}

// CDRRepository manages call detail records.
type CDRRepository interface {
	Create(ctx context.Context, cdr *models.CDR) error
	GetByID(ctx context.Context, id int64) (*models.CDR, error)
	GetByCallID(ctx context.Context, callID string) (*models.CDR, error)
	List(ctx context.Context, filter CDRListFilter) ([]models.CDR, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.CDR, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// CallUsageRepository manages per-UID usage samples.
type CallUsageRepository interface {
	Record(ctx context.Context, u *models.CallUsage) error
	TotalsByUID(ctx context.Context) (map[int]models.CallUsage, error)
}
