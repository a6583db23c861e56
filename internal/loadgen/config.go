// Package loadgen drives a running tagtrail server with concurrent scans and
// event batches and verifies that the counters match what was sent.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Tags          int           // Distinct tags to scan
	ScansPerTag   int           // Scans submitted for each tag
	Users         int           // Distinct event subjects
	EventsPerUser int           // Events generated for each subject
	BatchSize     int           // Events per POST /events
	Workers       int           // Concurrent requests
	Timeout       time.Duration // HTTP request timeout
	Verbose       bool          // Log every failed request
}

// Report summarizes a run.
type Report struct {
	ScansSent      int
	ScansFailed    int
	BatchesSent    int
	BatchesFailed  int
	EventsInserted int
	Mismatches     []string
	Duration       time.Duration
}

// OK reports whether every request succeeded and every counter matched.
func (r *Report) OK() bool {
	return r.ScansFailed == 0 && r.BatchesFailed == 0 && len(r.Mismatches) == 0
}
