package model

import "time"

// SyncCursor is the singleton time-window cursor of the incremental poller.
// LastSyncEndTimestamp advances only after a fully successful cycle.
type SyncCursor struct {
	LastSyncEndTimestamp int64  `json:"lastSyncEndTimestamp"`
	LastSyncTime         string `json:"lastSyncTime"`
	TotalSynced          int    `json:"totalSynced"`
	SuccessfulSyncs      int    `json:"successfulSyncs"`
	FailedSyncs          int    `json:"failedSyncs"`
}

// NewSyncCursor creates a cursor at the configured baseline timestamp
func NewSyncCursor(baseline int64) *SyncCursor {
	return &SyncCursor{LastSyncEndTimestamp: baseline}
}

// Advance moves the cursor after a successful cycle
func (c *SyncCursor) Advance(end int64, synced int, now time.Time) {
	c.LastSyncEndTimestamp = end
	c.LastSyncTime = now.Format(time.RFC3339)
	c.TotalSynced += synced
	c.SuccessfulSyncs++
}

// RecordFailure bumps the failure counter without moving the cursor
func (c *SyncCursor) RecordFailure() {
	c.FailedSyncs++
}
