// Package models holds the persisted record types.
package models

import "time"

// CDR is one finished call leg.
type CDR struct {
	ID           int64      `json:"id"`
	CallID       string     `json:"call_id"`
	Address      string     `json:"address"`
	Direction    string     `json:"direction"` // "incoming" | "outgoing"
	Video        bool       `json:"video"`
	StartTime    time.Time  `json:"start_time"`
	ConnectTime  *time.Time `json:"connect_time,omitempty"` // nil when the call never connected
	EndTime      time.Time  `json:"end_time"`
	Duration     int64      `json:"duration"` // seconds, from connect to end
	Cause        string     `json:"cause"`
	PreciseCause int        `json:"precise_cause"`
	UsageBytes   int64      `json:"usage_bytes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CallUsage is one per-UID video telephony usage sample.
type CallUsage struct {
	ID         int64     `json:"id"`
	UID        int       `json:"uid"`
	RxBytes    int64     `json:"rx_bytes"`
	TxBytes    int64     `json:"tx_bytes"`
	RecordedAt time.Time `json:"recorded_at"`
}
