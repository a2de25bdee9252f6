package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UpdateType discriminates the kind of change a PendingUpdate carries.
type UpdateType string

const (
	UpdateStatus  UpdateType = "status"
	UpdateDetail  UpdateType = "detail"
	UpdateComment UpdateType = "comment"
)

// Validate implements huma.Validatable.
func (t UpdateType) Validate() error {
	switch t {
	case UpdateStatus, UpdateDetail, UpdateComment:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownUpdate, string(t))
}

func (t UpdateType) String() string {
	return string(t)
}

var ticketStatuses = map[string]bool{
	"open":        true,
	"in_progress": true,
	"on_hold":     true,
	"resolved":    true,
	"closed":      true,
	"cancelled":   true,
}

// TicketStatusValid reports whether s is a known ticket status.
func TicketStatusValid(s string) bool {
	return ticketStatuses[s]
}

// UpdateData is one variant of the PendingUpdate union.
type UpdateData interface {
	Type() UpdateType
	Validate() error
}

// StatusTransition moves a ticket to a new status.
type StatusTransition struct {
	From    string `json:"from,omitempty"`
	Status  string `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}

func (StatusTransition) Type() UpdateType { return UpdateStatus }

func (s StatusTransition) Validate() error {
	if !TicketStatusValid(s.Status) {
		return fmt.Errorf("%w: unknown ticket status %q", ErrInvalidPayload, s.Status)
	}
	if s.From != "" && s.From == s.Status {
		return fmt.Errorf("%w: status transition from %q to itself", ErrInvalidPayload, s.Status)
	}
	if s.Status == "cancelled" && strings.TrimSpace(s.Remarks) == "" {
		return fmt.Errorf("%w: cancelling a ticket requires remarks", ErrInvalidPayload)
	}
	return nil
}

// DetailEdit changes descriptive ticket fields. Nil fields are left untouched.
type DetailEdit struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

func (DetailEdit) Type() UpdateType { return UpdateDetail }

func (d DetailEdit) Validate() error {
	if d.Title == nil && d.Description == nil && d.Category == nil && d.Priority == nil {
		return fmt.Errorf("%w: detail edit changes nothing", ErrInvalidPayload)
	}
	if d.Title != nil && strings.TrimSpace(*d.Title) == "" {
		return fmt.Errorf("%w: title cannot be blank", ErrInvalidPayload)
	}
	return nil
}

// Comment appends a note to a ticket.
type Comment struct {
	Comment  string `json:"comment"`
	AuthorID string `json:"authorId,omitempty"`
}

func (Comment) Type() UpdateType { return UpdateComment }

func (c Comment) Validate() error {
	if strings.TrimSpace(c.Comment) == "" {
		return fmt.Errorf("%w: comment is empty", ErrInvalidPayload)
	}
	return nil
}

// PendingUpdate is a queued mutation intent against a server-owned ticket.
type PendingUpdate struct {
	TargetLocalID string          `json:"targetLocalId"`
	UpdateType    UpdateType      `json:"updateType"`
	UpdateData    json.RawMessage `json:"updateData"`
	RequestedBy   string          `json:"requestedBy,omitempty"`
	RequestedAt   *time.Time      `json:"requestedAt,omitempty"`
}

// NewPendingUpdate validates data and wraps it for the ticket with the given local id.
func NewPendingUpdate(targetLocalID, requestedBy string, data UpdateData, at time.Time) (*PendingUpdate, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: update data is required", ErrInvalidPayload)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s update: %w", data.Type(), err)
	}
	u := &PendingUpdate{
		TargetLocalID: targetLocalID,
		UpdateType:    data.Type(),
		UpdateData:    raw,
		RequestedBy:   requestedBy,
		RequestedAt:   &at,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// ParseUpdateData decodes raw into the variant selected by t.
func ParseUpdateData(t UpdateType, raw []byte) (UpdateData, error) {
	var data UpdateData
	switch t {
	case UpdateStatus:
		var v StatusTransition
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		data = v
	case UpdateDetail:
		var v DetailEdit
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		data = v
	case UpdateComment:
		var v Comment
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		data = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpdate, string(t))
	}
	return data, data.Validate()
}

// Data decodes the typed variant.
func (u *PendingUpdate) Data() (UpdateData, error) {
	return ParseUpdateData(u.UpdateType, u.UpdateData)
}

func (u *PendingUpdate) Validate() error {
	if strings.TrimSpace(u.TargetLocalID) == "" {
		return fmt.Errorf("%w: targetLocalId is required", ErrInvalidPayload)
	}
	if err := u.UpdateType.Validate(); err != nil {
		return err
	}
	_, err := u.Data()
	return err
}

func (u *PendingUpdate) Index() Index {
	return Index{UserID: u.RequestedBy, Status: string(u.UpdateType)}
}

func (u *PendingUpdate) EventTimes() map[string]time.Time {
	return eventTimes(map[string]*time.Time{"requestedAt": u.RequestedAt})
}
