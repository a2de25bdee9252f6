package record

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Domain identifies one durable record collection.
type Domain string

const (
	DomainAttendance      Domain = "attendance"
	DomainTicketUpdates   Domain = "ticket-updates"
	DomainSiteLogs        Domain = "site-logs"
	DomainChillerReadings Domain = "chiller-readings"
	// DomainTickets holds read-only copies of server-owned tickets. It is never uploaded.
	DomainTickets Domain = "tickets"
)

// SyncOrder is the fixed order in which pending queues are drained during a sync pass.
var SyncOrder = []Domain{
	DomainAttendance,
	DomainTicketUpdates,
	DomainSiteLogs,
	DomainChillerReadings,
}

// AllDomains returns every local collection, uploadable or not.
func AllDomains() []Domain {
	return []Domain{
		DomainAttendance,
		DomainTicketUpdates,
		DomainSiteLogs,
		DomainChillerReadings,
		DomainTickets,
	}
}

// ParseDomain converts user input into a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

func (Domain) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: "string",
		Enum: []any{
			string(DomainAttendance),
			string(DomainTicketUpdates),
			string(DomainSiteLogs),
			string(DomainChillerReadings),
			string(DomainTickets),
		},
		Description: "Local record collection",
		Examples:    []any{DomainAttendance},
	}
}

// Validate implements huma.Validatable.
func (d Domain) Validate() error {
	switch d {
	case DomainAttendance, DomainTicketUpdates, DomainSiteLogs, DomainChillerReadings, DomainTickets:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownDomain, string(d))
}

func (d Domain) String() string {
	return string(d)
}

// Uploadable reports whether records of this domain are pushed to the server.
func (d Domain) Uploadable() bool {
	return d != DomainTickets
}

// Table returns the SQLite table backing the domain.
func (d Domain) Table() string {
	switch d {
	case DomainAttendance:
		return "attendance"
	case DomainTicketUpdates:
		return "ticket_updates"
	case DomainSiteLogs:
		return "site_logs"
	case DomainChillerReadings:
		return "chiller_readings"
	case DomainTickets:
		return "tickets"
	default:
		return ""
	}
}

// Resource returns the server resource path segment for the domain.
// Ticket updates are applied to the tickets resource.
func (d Domain) Resource() string {
	switch d {
	case DomainTicketUpdates, DomainTickets:
		return "tickets"
	default:
		return string(d)
	}
}

// DisplayName returns a human readable collection name.
func (d Domain) DisplayName() string {
	switch d {
	case DomainAttendance:
		return "Attendance"
	case DomainTicketUpdates:
		return "Ticket updates"
	case DomainSiteLogs:
		return "Site logs"
	case DomainChillerReadings:
		return "Chiller readings"
	case DomainTickets:
		return "Tickets"
	default:
		return "Unknown"
	}
}
