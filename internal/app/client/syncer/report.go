package syncer

import (
	"fmt"
	"time"

	"fieldsync/internal/domain/record"
)

// Reason names what caused a sync pass.
type Reason string

const (
	ReasonManual           Reason = "manual"
	ReasonNetworkReconnect Reason = "network_reconnect"
	ReasonForeground       Reason = "foreground"
	ReasonPeriodic         Reason = "periodic"
)

// Automatic reports whether the reason is subject to the cooldown.
func (r Reason) Automatic() bool {
	return r != ReasonManual
}

func (r Reason) String() string {
	return string(r)
}

func ParseReason(s string) (Reason, error) {
	switch r := Reason(s); r {
	case ReasonManual, ReasonNetworkReconnect, ReasonForeground, ReasonPeriodic:
		return r, nil
	}
	return "", fmt.Errorf("unknown sync reason %q", s)
}

// State is the orchestrator state machine.
type State int

const (
	StateIdle State = iota
	StateSyncing
)

func (s State) String() string {
	if s == StateSyncing {
		return "syncing"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RecordError describes a record left in the queue by a pass.
type RecordError struct {
	LocalID    string `json:"localId"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
}

// DomainReport summarises one domain's queue drain.
type DomainReport struct {
	Domain    record.Domain `json:"domain"`
	Attempted int           `json:"attempted"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	// Deferred records could not be sent yet, e.g. a ticket update whose ticket has no server id.
	Deferred int `json:"deferred"`
	// Changed records were edited while their upload was in flight and stay queued.
	Changed int           `json:"changed"`
	Skipped bool          `json:"skipped,omitempty"`
	Errors  []RecordError `json:"errors,omitempty"`
}

// Complete reports whether every queued record of the domain reached the server.
func (d *DomainReport) Complete() bool {
	return !d.Skipped && d.Failed == 0 && d.Deferred == 0 && d.Changed == 0
}

func (d *DomainReport) fail(localID, kind string, status int, msg string) {
	d.Failed++
	d.Errors = append(d.Errors, RecordError{LocalID: localID, Kind: kind, StatusCode: status, Message: msg})
}

// Report is the outcome of a sync pass.
type Report struct {
	Reason     Reason         `json:"reason"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Domains    []DomainReport `json:"domains"`
	// Requests counts HTTP attempts made by the pass, retries included.
	Requests int    `json:"requests"`
	Aborted  bool   `json:"aborted,omitempty"`
	Pruned   int64  `json:"pruned,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (r *Report) Synced() int {
	n := 0
	for _, d := range r.Domains {
		n += d.Synced
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, d := range r.Domains {
		n += d.Failed
	}
	return n
}

// Domain returns the report of d, or nil when the pass did not reach it.
func (r *Report) Domain(d record.Domain) *DomainReport {
	for i := range r.Domains {
		if r.Domains[i].Domain == d {
			return &r.Domains[i]
		}
	}
	return nil
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is a snapshot of the orchestrator for UI indicators.
type Status struct {
	State          State     `json:"state"`
	Reason         Reason    `json:"reason,omitempty"`
	LastAttempt    time.Time `json:"lastAttempt"`
	LastReport     *Report   `json:"lastReport,omitempty"`
	SessionInvalid bool      `json:"sessionInvalid"`
}
