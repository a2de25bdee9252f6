package record

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Factory builds typed payloads for a domain.
type Factory struct{}

// NewFactory creates a new payload factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns an empty payload for the domain.
func (f *Factory) Create(d Domain) (Payload, error) {
	switch d {
	case DomainAttendance:
		return &Attendance{}, nil
	case DomainTicketUpdates:
		return &PendingUpdate{}, nil
	case DomainSiteLogs:
		return &SiteLog{}, nil
	case DomainChillerReadings:
		return &ChillerReading{}, nil
	case DomainTickets:
		return &Ticket{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, string(d))
	}
}

// Parse decodes raw JSON into the domain's payload and validates it.
func (f *Factory) Parse(d Domain, raw []byte) (Payload, error) {
	p, err := f.Create(d)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: parse %s payload: %v", ErrInvalidPayload, d, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode validates p and returns its wire form and index.
func (f *Factory) Encode(p Payload) (json.RawMessage, Index, error) {
	if err := p.Validate(); err != nil {
		return nil, Index{}, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, Index{}, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, p.Index(), nil
}

// CheckImmutable rejects a change to any event timestamp already set on prev.
func CheckImmutable(prev, next Payload) error {
	before := prev.EventTimes()
	after := next.EventTimes()

	names := make([]string, 0, len(before))
	for name := range before {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if t, ok := after[name]; !ok || !t.Equal(before[name]) {
			return fmt.Errorf("%w: %s", ErrImmutableField, name)
		}
	}
	return nil
}
