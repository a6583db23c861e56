package loadgen

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Fraction of generated events that are page views; the rest are clicks.
const pageViewEvery = 3

type event struct {
	ID        string            `json:"id"`
	UID       string            `json:"uid"`
	EventType string            `json:"eventType"`
	Timestamp int64             `json:"timestamp"`
	Page      string            `json:"page,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
}

type scan struct {
	UID      string `json:"uid"`
	URL      string `json:"url"`
	DeviceID string `json:"deviceId"`
	ScanType string `json:"scanType"`
}

// expectation is what a subject's stats must show after the run.
type expectation struct {
	pageViews   int64
	totalClicks int64
}

type plan struct {
	tags    []string
	scans   []scan
	batches [][]event
	expect  map[string]expectation
}

// newTagUID returns a random 16 character hex uid.
func newTagUID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func buildPlan(cfg *Config, now time.Time) *plan {
	p := &plan{expect: make(map[string]expectation, cfg.Users)}

	for i := 0; i < cfg.Tags; i++ {
		uid := newTagUID()
		p.tags = append(p.tags, uid)
		for j := 0; j < cfg.ScansPerTag; j++ {
			p.scans = append(p.scans, scan{
				UID:      uid,
				URL:      "https://tagtrail.test/t/" + uid,
				DeviceID: uuid.NewString(),
				ScanType: "nfc",
			})
		}
	}

	var all []event
	for u := 0; u < cfg.Users; u++ {
		user := uuid.NewString()
		session := uuid.NewString()
		var exp expectation
		for i := 0; i < cfg.EventsPerUser; i++ {
			e := event{
				ID:        uuid.NewString(),
				UID:       user,
				Timestamp: now.Add(time.Duration(i) * time.Millisecond).UnixMilli(),
				Metadata:  map[string]string{"platform": "loadgen"},
				SessionID: session,
			}
			if i%pageViewEvery == 0 {
				e.EventType = "pageView"
				e.Page = "/p/" + user
				exp.pageViews++
			} else {
				e.EventType = "buttonClick"
				exp.totalClicks++
			}
			all = append(all, e)
		}
		p.expect[user] = exp
	}

	size := cfg.BatchSize
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(all); start += size {
		end := min(start+size, len(all))
		p.batches = append(p.batches, all[start:end])
	}
	return p
}
