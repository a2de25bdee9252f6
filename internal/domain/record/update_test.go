package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingUpdate(t *testing.T) {
	at := time.Date(2024, 5, 2, 11, 0, 0, 0, time.UTC)
	title := "Leaking valve"
	blank := "  "

	tests := []struct {
		name    string
		target  string
		data    UpdateData
		wantErr error
	}{
		{name: "status transition", target: "t-1", data: StatusTransition{From: "open", Status: "in_progress"}},
		{name: "detail edit", target: "t-1", data: DetailEdit{Title: &title}},
		{name: "comment", target: "t-1", data: Comment{Comment: "parts ordered"}},
		{name: "missing target", target: "", data: Comment{Comment: "x"}, wantErr: ErrInvalidPayload},
		{name: "unknown status", target: "t-1", data: StatusTransition{Status: "done"}, wantErr: ErrInvalidPayload},
		{name: "transition to same status", target: "t-1", data: StatusTransition{From: "open", Status: "open"}, wantErr: ErrInvalidPayload},
		{name: "cancel without remarks", target: "t-1", data: StatusTransition{Status: "cancelled"}, wantErr: ErrInvalidPayload},
		{name: "empty detail edit", target: "t-1", data: DetailEdit{}, wantErr: ErrInvalidPayload},
		{name: "blank title", target: "t-1", data: DetailEdit{Title: &blank}, wantErr: ErrInvalidPayload},
		{name: "empty comment", target: "t-1", data: Comment{}, wantErr: ErrInvalidPayload},
		{name: "nil data", target: "t-1", data: nil, wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewPendingUpdate(tt.target, "u1", tt.data, at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.data.Type(), u.UpdateType)

			data, err := u.Data()
			require.NoError(t, err)
			assert.Equal(t, tt.data, data)
		})
	}
}

func TestParseUpdateData_UnknownType(t *testing.T) {
	_, err := ParseUpdateData(UpdateType("reassign"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownUpdate)
}

func TestPendingUpdate_UpdateDataIsVerbatim(t *testing.T) {
	u, err := NewPendingUpdate("t-1", "u1", StatusTransition{Status: "resolved", Remarks: "replaced seal"}, time.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"resolved","remarks":"replaced seal"}`, string(u.UpdateData))
	assert.Equal(t, Index{UserID: "u1", Status: "status"}, u.Index())
}
