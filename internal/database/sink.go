package database

import (
	"context"
	"time"

	"github.com/imstrack/imstrack/internal/database/models"
	"github.com/imstrack/imstrack/internal/tracker"
)

// CDRSink adapts the CDR repository to the tracker's sink interface.
type CDRSink struct {
	repo    CDRRepository
	timeout time.Duration
}

// NewCDRSink wraps repo for use as a tracker.CDRSink. Writes run on the
// tracker's event loop, so each one gets a short timeout.
func NewCDRSink(repo CDRRepository) *CDRSink {
	return &CDRSink{repo: repo, timeout: 5 * time.Second}
}

// RecordCDR persists one finished call leg.
func (s *CDRSink) RecordCDR(cdr tracker.CDR) error {
	direction := "outgoing"
	if cdr.Incoming {
		direction = "incoming"
	}

	rec := &models.CDR{
		CallID:       cdr.ID,
		Address:      cdr.Address,
		Direction:    direction,
		Video:        cdr.Video,
		StartTime:    cdr.StartTime,
		EndTime:      cdr.EndTime,
		Cause:        cdr.Cause.String(),
		PreciseCause: int(cdr.PreciseCause),
		UsageBytes:   int64(cdr.UsageBytes),
	}
	if !cdr.ConnectTime.IsZero() {
		ct := cdr.ConnectTime
		rec.ConnectTime = &ct
		rec.Duration = int64(cdr.EndTime.Sub(ct) / time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Create(ctx, rec)
}
