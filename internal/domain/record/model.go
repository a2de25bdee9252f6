package record

import (
	"encoding/json"
	"time"
)

// Index holds the equality-filterable fields extracted from a payload.
type Index struct {
	SiteID string `json:"siteId,omitempty"`
	UserID string `json:"userId,omitempty"`
	Status string `json:"status,omitempty"`
}

// Record is the local envelope around a domain payload.
type Record struct {
	LocalID   string          `json:"localId"`
	ServerID  *string         `json:"serverId"`
	Domain    Domain          `json:"domain"`
	Payload   json.RawMessage `json:"payload"`
	Synced    bool            `json:"isSynced"`
	Version   int64           `json:"version"`
	Index     Index           `json:"index"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	SyncedAt  *time.Time      `json:"syncedAt,omitempty"`
}

// HasServerID reports whether the server has acknowledged the record.
func (r *Record) HasServerID() bool {
	return r.ServerID != nil && *r.ServerID != ""
}

// ServerIDValue returns the server id or an empty string.
func (r *Record) ServerIDValue() string {
	if r.ServerID == nil {
		return ""
	}
	return *r.ServerID
}

// Payload is implemented by every typed record body.
type Payload interface {
	Validate() error
	Index() Index
	// EventTimes returns the real-world timestamps carried by the payload, keyed by field name.
	// Once set they may not change.
	EventTimes() map[string]time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.ServerID != nil {
		id := *r.ServerID
		c.ServerID = &id
	}
	if r.SyncedAt != nil {
		at := *r.SyncedAt
		c.SyncedAt = &at
	}
	c.Payload = append(json.RawMessage(nil), r.Payload...)
	return &c
}
