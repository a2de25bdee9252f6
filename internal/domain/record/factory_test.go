package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Parse(t *testing.T) {
	tests := []struct {
		name    string
		domain  Domain
		raw     string
		wantErr error
		index   Index
	}{
		{
			name:   "attendance punch-in",
			domain: DomainAttendance,
			raw:    `{"userId":"u1","siteId":"s1","punchInAt":"2024-05-01T08:00:00Z","latitude":1.3,"longitude":103.8}`,
			index:  Index{SiteID: "s1", UserID: "u1", Status: AttendanceCheckedIn},
		},
		{
			name:   "attendance punch-out",
			domain: DomainAttendance,
			raw:    `{"userId":"u1","siteId":"s1","punchInAt":"2024-05-01T08:00:00Z","punchOutAt":"2024-05-01T17:00:00Z"}`,
			index:  Index{SiteID: "s1", UserID: "u1", Status: AttendanceCheckedOut},
		},
		{
			name:    "attendance punch-out before punch-in",
			domain:  DomainAttendance,
			raw:     `{"userId":"u1","siteId":"s1","punchInAt":"2024-05-01T08:00:00Z","punchOutAt":"2024-05-01T07:00:00Z"}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "attendance with half coordinates",
			domain:  DomainAttendance,
			raw:     `{"userId":"u1","siteId":"s1","punchInAt":"2024-05-01T08:00:00Z","latitude":1.3}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:   "site log",
			domain: DomainSiteLogs,
			raw:    `{"userId":"u1","siteId":"s2","status":"attention","loggedAt":"2024-05-01T09:00:00Z"}`,
			index:  Index{SiteID: "s2", UserID: "u1", Status: "attention"},
		},
		{
			name:    "site log with unknown status",
			domain:  DomainSiteLogs,
			raw:     `{"userId":"u1","siteId":"s2","status":"fine","loggedAt":"2024-05-01T09:00:00Z"}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:   "chiller reading",
			domain: DomainChillerReadings,
			raw:    `{"userId":"u1","siteId":"s3","chillerId":"ch-1","inletTempC":12.5,"readAt":"2024-05-01T10:00:00Z"}`,
			index:  Index{SiteID: "s3", UserID: "u1", Status: "recorded"},
		},
		{
			name:    "chiller reading without measurements",
			domain:  DomainChillerReadings,
			raw:     `{"userId":"u1","siteId":"s3","chillerId":"ch-1","readAt":"2024-05-01T10:00:00Z"}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:   "ticket update",
			domain: DomainTicketUpdates,
			raw:    `{"targetLocalId":"t-1","updateType":"comment","updateData":{"comment":"on site"}}`,
			index:  Index{Status: "comment"},
		},
		{
			name:    "ticket update with mismatched data",
			domain:  DomainTicketUpdates,
			raw:     `{"targetLocalId":"t-1","updateType":"status","updateData":{"comment":"on site"}}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown domain",
			domain:  Domain("invoices"),
			raw:     `{}`,
			wantErr: ErrUnknownDomain,
		},
		{
			name:    "malformed json",
			domain:  DomainAttendance,
			raw:     `{"userId":`,
			wantErr: ErrInvalidPayload,
		},
	}

	f := NewFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.Parse(tt.domain, []byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, p.Index())
		})
	}
}

func TestFactory_Encode(t *testing.T) {
	in := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &in}

	raw, idx, err := NewFactory().Encode(p)
	require.NoError(t, err)
	assert.Equal(t, "s1", idx.SiteID)

	var back Attendance
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.PunchInAt.Equal(in))

	_, _, err = NewFactory().Encode(&Attendance{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCheckImmutable(t *testing.T) {
	in := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	out := in.Add(9 * time.Hour)
	moved := in.Add(time.Minute)

	prev := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &in}

	t.Run("setting a new event time is allowed", func(t *testing.T) {
		next := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &in, PunchOutAt: &out}
		assert.NoError(t, CheckImmutable(prev, next))
	})

	t.Run("moving an existing event time is rejected", func(t *testing.T) {
		next := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &moved}
		err := CheckImmutable(prev, next)
		assert.ErrorIs(t, err, ErrImmutableField)
		assert.Contains(t, err.Error(), "punchInAt")
	})

	t.Run("clearing an existing event time is rejected", func(t *testing.T) {
		withOut := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &in, PunchOutAt: &out}
		next := &Attendance{UserID: "u1", SiteID: "s1", PunchInAt: &in}
		assert.ErrorIs(t, CheckImmutable(withOut, next), ErrImmutableField)
	})
}

func TestDomain(t *testing.T) {
	d, err := ParseDomain("site-logs")
	require.NoError(t, err)
	assert.Equal(t, "site_logs", d.Table())
	assert.Equal(t, "site-logs", d.Resource())
	assert.True(t, d.Uploadable())

	assert.Equal(t, "tickets", DomainTicketUpdates.Resource())
	assert.False(t, DomainTickets.Uploadable())

	_, err = ParseDomain("payroll")
	assert.ErrorIs(t, err, ErrUnknownDomain)

	assert.Equal(t, []Domain{DomainAttendance, DomainTicketUpdates, DomainSiteLogs, DomainChillerReadings}, SyncOrder)
}
