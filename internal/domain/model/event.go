package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Known event types. Any other value is stored but counts nothing.
const (
	EventPageView    = "pageView"
	EventButtonClick = "buttonClick"
)

// Stats field defaults.
const (
	DefaultPlatform = "unknown"
	DefaultSource   = "NFC"
)

// Event is an application event as submitted by clients. Fields not modelled
// here are kept in Raw and persisted untouched.
type Event struct {
	ID        string         `json:"id"`
	UID       string         `json:"uid"`
	EventType string         `json:"eventType"`
	Timestamp any            `json:"timestamp"`
	Page      string         `json:"page,omitempty"`
	URL       string         `json:"url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Source    string         `json:"source,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known fields leniently and keeps the full object.
// Wrongly typed known fields are left empty rather than failing the batch.
func (e *Event) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*e = Event{
		ID:        str(raw["id"]),
		UID:       str(raw["uid"]),
		EventType: str(raw["eventType"]),
		Timestamp: raw["timestamp"],
		Page:      str(raw["page"]),
		URL:       str(raw["url"]),
		Source:    str(raw["source"]),
		SessionID: str(raw["sessionId"]),
		Raw:       raw,
	}
	if md, ok := raw["metadata"].(map[string]any); ok {
		e.Metadata = md
	}
	return nil
}

// Document returns the persisted shape of the event.
func (e *Event) Document() map[string]any {
	out := make(map[string]any, len(e.Raw)+8)
	for k, v := range e.Raw {
		out[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("id", e.ID)
	set("uid", e.UID)
	set("eventType", e.EventType)
	set("page", e.Page)
	set("url", e.URL)
	set("source", e.Source)
	set("sessionId", e.SessionID)
	if e.Timestamp != nil {
		out["timestamp"] = e.Timestamp
	}
	if e.Metadata != nil {
		out["metadata"] = e.Metadata
	}
	return out
}

// Time parses the event timestamp.
func (e *Event) Time() (time.Time, error) {
	return ParseTimestamp(e.Timestamp)
}

// LastPage is page, then url, then nil.
func (e *Event) LastPage() *string {
	switch {
	case e.Page != "":
		return &e.Page
	case e.URL != "":
		return &e.URL
	default:
		return nil
	}
}

// Platform is metadata.platform or DefaultPlatform.
func (e *Event) Platform() string {
	if p := str(e.Metadata["platform"]); p != "" {
		return p
	}
	return DefaultPlatform
}

// SourceOrDefault is source or DefaultSource.
func (e *Event) SourceOrDefault() string {
	if e.Source != "" {
		return e.Source
	}
	return DefaultSource
}

// LastSessionID is sessionId or nil.
func (e *Event) LastSessionID() *string {
	if e.SessionID == "" {
		return nil
	}
	return &e.SessionID
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// StatsRecord is the rolling engagement aggregate of a subject.
type StatsRecord struct {
	UID           string      `json:"uid"`
	LastSeen      time.Time   `json:"lastSeen"`
	LastPage      *string     `json:"lastPage"`
	Platform      string      `json:"platform"`
	Source        string      `json:"source"`
	LastSessionID *string     `json:"lastSessionId"`
	History       []time.Time `json:"history"`
	PageViews     int64       `json:"pageViews"`
	TotalClicks   int64       `json:"totalClicks"`
}
