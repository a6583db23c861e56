// Package model contains domain models passed between layers.
package model

import "time"

// Scan is one physical read of a tag by a device.
type Scan struct {
	UID      string  `json:"uid"`
	URL      string  `json:"url"`
	DeviceID string  `json:"deviceId"`
	ScanType string  `json:"scanType"`
	Location *string `json:"location,omitempty"`
}

// ScanEntry is an immutable history item of a tag.
type ScanEntry struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"deviceId"`
	ScanType  string    `json:"scanType"`
	Location  *string   `json:"location"`
}

// TagRecord is the stored state of a tag. ScanCount always equals
// len(History) and LastSeen equals the last entry's timestamp.
type TagRecord struct {
	UID          string      `json:"uid"`
	AccessedURL  string      `json:"accessedUrl"`
	ScanCount    int64       `json:"scanCount"`
	FirstSeen    time.Time   `json:"firstSeen"`
	LastSeen     time.Time   `json:"lastSeen"`
	History      []ScanEntry `json:"history"`
	LastDevice   string      `json:"lastDevice"`
	LastScanType string      `json:"lastScanType"`
	LastLocation *string     `json:"lastLocation"`
}

// TagSummary is the compact counter view of a tag.
type TagSummary struct {
	UID      string    `json:"uid"`
	Token    int64     `json:"token"`
	LastSeen time.Time `json:"lastSeen"`
}

// Summary projects a tag record onto its summary.
func (t *TagRecord) Summary() TagSummary {
	return TagSummary{UID: t.UID, Token: t.ScanCount, LastSeen: t.LastSeen}
}

// SaveResult is returned by a successful scan save. Duplicate marks a scan
// suppressed by the recent-scan window; nothing was written for it.
type SaveResult struct {
	UID       string `json:"uid"`
	Created   bool   `json:"created"`
	ScanCount int64  `json:"scanCount,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Document collections.
const (
	CollectionTags   = "tags"
	CollectionEvents = "events"
	CollectionStats  = "stats"
)
