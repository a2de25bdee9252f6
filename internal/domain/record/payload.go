package record

import (
	"fmt"
	"strings"
	"time"
)

const (
	AttendanceCheckedIn  = "checked_in"
	AttendanceCheckedOut = "checked_out"
)

// Attendance is a punch-in / punch-out entry.
type Attendance struct {
	UserID     string     `json:"userId"`
	SiteID     string     `json:"siteId"`
	PunchInAt  *time.Time `json:"punchInAt"`
	PunchOutAt *time.Time `json:"punchOutAt,omitempty"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`
}

func (a *Attendance) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidPayload)
	}
	if strings.TrimSpace(a.SiteID) == "" {
		return fmt.Errorf("%w: siteId is required", ErrInvalidPayload)
	}
	if a.PunchInAt == nil || a.PunchInAt.IsZero() {
		return fmt.Errorf("%w: punchInAt is required", ErrInvalidPayload)
	}
	if a.PunchOutAt != nil && a.PunchOutAt.Before(*a.PunchInAt) {
		return fmt.Errorf("%w: punchOutAt is before punchInAt", ErrInvalidPayload)
	}
	return validateCoordinates(a.Latitude, a.Longitude)
}

func (a *Attendance) Index() Index {
	status := AttendanceCheckedIn
	if a.PunchOutAt != nil {
		status = AttendanceCheckedOut
	}
	return Index{SiteID: a.SiteID, UserID: a.UserID, Status: status}
}

func (a *Attendance) EventTimes() map[string]time.Time {
	return eventTimes(map[string]*time.Time{
		"punchInAt":  a.PunchInAt,
		"punchOutAt": a.PunchOutAt,
	})
}

// SiteLog is a site-inspection entry.
type SiteLog struct {
	UserID      string     `json:"userId"`
	SiteID      string     `json:"siteId"`
	AssetAreaID string     `json:"assetAreaId,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	LoggedAt    *time.Time `json:"loggedAt"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
}

var siteLogStatuses = map[string]bool{"ok": true, "attention": true, "critical": true}

func (s *SiteLog) Validate() error {
	if strings.TrimSpace(s.UserID) == "" || strings.TrimSpace(s.SiteID) == "" {
		return fmt.Errorf("%w: userId and siteId are required", ErrInvalidPayload)
	}
	if !siteLogStatuses[s.Status] {
		return fmt.Errorf("%w: status %q is not one of ok, attention, critical", ErrInvalidPayload, s.Status)
	}
	if s.LoggedAt == nil || s.LoggedAt.IsZero() {
		return fmt.Errorf("%w: loggedAt is required", ErrInvalidPayload)
	}
	return validateCoordinates(s.Latitude, s.Longitude)
}

func (s *SiteLog) Index() Index {
	return Index{SiteID: s.SiteID, UserID: s.UserID, Status: s.Status}
}

func (s *SiteLog) EventTimes() map[string]time.Time {
	return eventTimes(map[string]*time.Time{"loggedAt": s.LoggedAt})
}

// ChillerReading is a single chiller plant measurement.
type ChillerReading struct {
	UserID       string     `json:"userId"`
	SiteID       string     `json:"siteId"`
	ChillerID    string     `json:"chillerId"`
	InletTempC   *float64   `json:"inletTempC,omitempty"`
	OutletTempC  *float64   `json:"outletTempC,omitempty"`
	PressureKPa  *float64   `json:"pressureKPa,omitempty"`
	RunningHours *float64   `json:"runningHours,omitempty"`
	Status       string     `json:"status,omitempty"`
	ReadAt       *time.Time `json:"readAt"`
}

func (c *ChillerReading) Validate() error {
	if strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.SiteID) == "" {
		return fmt.Errorf("%w: userId and siteId are required", ErrInvalidPayload)
	}
	if strings.TrimSpace(c.ChillerID) == "" {
		return fmt.Errorf("%w: chillerId is required", ErrInvalidPayload)
	}
	if c.ReadAt == nil || c.ReadAt.IsZero() {
		return fmt.Errorf("%w: readAt is required", ErrInvalidPayload)
	}
	if c.InletTempC == nil && c.OutletTempC == nil && c.PressureKPa == nil {
		return fmt.Errorf("%w: at least one measurement is required", ErrInvalidPayload)
	}
	if c.PressureKPa != nil && *c.PressureKPa < 0 {
		return fmt.Errorf("%w: pressureKPa is negative", ErrInvalidPayload)
	}
	return nil
}

func (c *ChillerReading) Index() Index {
	status := c.Status
	if status == "" {
		status = "recorded"
	}
	return Index{SiteID: c.SiteID, UserID: c.UserID, Status: status}
}

func (c *ChillerReading) EventTimes() map[string]time.Time {
	return eventTimes(map[string]*time.Time{"readAt": c.ReadAt})
}

// Ticket is the read-only local copy of a server-owned ticket.
type Ticket struct {
	Title       string     `json:"title"`
	SiteID      string     `json:"siteId,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	Category    string     `json:"category,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	OpenedAt    *time.Time `json:"openedAt,omitempty"`
}

func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPayload)
	}
	if !TicketStatusValid(t.Status) {
		return fmt.Errorf("%w: unknown ticket status %q", ErrInvalidPayload, t.Status)
	}
	return nil
}

func (t *Ticket) Index() Index {
	return Index{SiteID: t.SiteID, UserID: t.AssigneeID, Status: t.Status}
}

func (t *Ticket) EventTimes() map[string]time.Time {
	return eventTimes(map[string]*time.Time{"openedAt": t.OpenedAt})
}

func validateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidPayload)
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidPayload)
	}
	return nil
}

func eventTimes(fields map[string]*time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(fields))
	for name, t := range fields {
		if t != nil && !t.IsZero() {
			out[name] = *t
		}
	}
	return out
}
