package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fieldsync/internal/domain/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, item *Item, key string) (*Item, bool, error) {
	args := m.Called(ctx, item, key)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*Item), args.Bool(1), args.Error(2)
}

func (m *MockRepository) Get(ctx context.Context, d record.Domain, id string) (*Item, error) {
	args := m.Called(ctx, d, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Item), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, item *Item, key string) (*Item, bool, error) {
	args := m.Called(ctx, item, key)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*Item), args.Bool(1), args.Error(2)
}

func (m *MockRepository) ListSince(ctx context.Context, d record.Domain, since time.Time) ([]*Item, error) {
	args := m.Called(ctx, d, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Item), args.Error(1)
}

func (m *MockRepository) Reference(ctx context.Context, key string) (json.RawMessage, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockRepository) PutReference(ctx context.Context, key string, value json.RawMessage) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func newService(repo Repository) *Service {
	return NewService(repo, slog.Default(), WithClock(func() time.Time { return now }))
}

const attendance = `{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T07:30:00Z"}`

func TestService_Submit(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	stored := &Item{ID: "srv-1", Domain: record.DomainAttendance}
	repo.On("Create", ctx, mock.MatchedBy(func(it *Item) bool {
		return it.Domain == record.DomainAttendance && it.ID != "" && it.CreatedAt.Equal(now)
	}), "local-1").Return(stored, true, nil).Once()

	item, err := svc.Submit(ctx, record.DomainAttendance, json.RawMessage(attendance), "local-1")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", item.ID)

	repo.AssertExpectations(t)
}

func TestService_Submit_Rejects(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.Submit(ctx, record.DomainTickets, json.RawMessage(`{}`), "")
	assert.ErrorIs(t, err, ErrNotWritable)

	_, err = svc.Submit(ctx, record.DomainTicketUpdates, json.RawMessage(`{}`), "")
	assert.ErrorIs(t, err, ErrNotWritable)

	_, err = svc.Submit(ctx, record.DomainAttendance, json.RawMessage(`{"userId":"u-1"}`), "")
	assert.ErrorIs(t, err, record.ErrInvalidPayload)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Replace(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	cur := &Item{ID: "srv-1", Domain: record.DomainAttendance, Payload: json.RawMessage(attendance)}
	repo.On("Get", ctx, record.DomainAttendance, "srv-1").Return(cur, nil)

	checkout := `{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T07:30:00Z","punchOutAt":"2024-05-20T16:00:00Z"}`
	repo.On("Update", ctx, mock.MatchedBy(func(it *Item) bool {
		return it.ID == "srv-1" && string(it.Payload) == checkout && it.UpdatedAt.Equal(now)
	}), "local-1.2").Return(cur, true, nil).Once()

	_, err := svc.Replace(ctx, record.DomainAttendance, "srv-1", json.RawMessage(checkout), "local-1.2")
	require.NoError(t, err)

	moved := `{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T08:00:00Z"}`
	_, err = svc.Replace(ctx, record.DomainAttendance, "srv-1", json.RawMessage(moved), "local-1.3")
	assert.ErrorIs(t, err, ErrConflict)

	repo.AssertExpectations(t)
}

func TestService_Replace_NotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, record.DomainAttendance, "missing").Return(nil, ErrNotFound)

	_, err := svc.Replace(ctx, record.DomainAttendance, "missing", json.RawMessage(attendance), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateTicket(t *testing.T) {
	ticket := json.RawMessage(`{"title":"Leak","status":"open","assetTag":"CH-2"}`)

	tests := []struct {
		name    string
		typ     record.UpdateType
		data    string
		want    map[string]any
		wantErr error
	}{
		{
			name: "status",
			typ:  record.UpdateStatus,
			data: `{"from":"open","status":"in_progress"}`,
			want: map[string]any{"status": "in_progress", "title": "Leak", "assetTag": "CH-2"},
		},
		{
			name: "status already applied",
			typ:  record.UpdateStatus,
			data: `{"from":"on_hold","status":"open"}`,
			want: map[string]any{"status": "open"},
		},
		{
			name:    "stale status",
			typ:     record.UpdateStatus,
			data:    `{"from":"on_hold","status":"resolved"}`,
			wantErr: ErrConflict,
		},
		{
			name: "detail",
			typ:  record.UpdateDetail,
			data: `{"title":"Big leak","priority":"high"}`,
			want: map[string]any{"title": "Big leak", "priority": "high", "status": "open"},
		},
		{
			name:    "invalid data",
			typ:     record.UpdateComment,
			data:    `{"comment":" "}`,
			wantErr: record.ErrInvalidPayload,
		},
		{
			name:    "unknown type",
			typ:     record.UpdateType("reassign"),
			data:    `{}`,
			wantErr: record.ErrUnknownUpdate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := newService(repo)
			ctx := context.Background()

			repo.On("Get", ctx, record.DomainTickets, "T-9").
				Return(&Item{ID: "T-9", Domain: record.DomainTickets, Payload: ticket}, nil).Maybe()

			var saved *Item
			repo.On("Update", ctx, mock.AnythingOfType("*ingest.Item"), "upd-1").
				Run(func(args mock.Arguments) { saved = args.Get(1).(*Item) }).
				Return(&Item{ID: "T-9"}, true, nil).Maybe()

			_, err := svc.UpdateTicket(ctx, "T-9", tt.typ, json.RawMessage(tt.data), "upd-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, saved)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, saved)

			var doc map[string]any
			require.NoError(t, json.Unmarshal(saved.Payload, &doc))
			for k, v := range tt.want {
				assert.Equal(t, v, doc[k], k)
			}
		})
	}
}

func TestService_UpdateTicket_Comment(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, record.DomainTickets, "T-9").
		Return(&Item{ID: "T-9", Payload: json.RawMessage(`{"title":"Leak","status":"open"}`)}, nil)

	var saved *Item
	repo.On("Update", ctx, mock.AnythingOfType("*ingest.Item"), "").
		Run(func(args mock.Arguments) { saved = args.Get(1).(*Item) }).
		Return(&Item{ID: "T-9"}, true, nil)

	_, err := svc.UpdateTicket(ctx, "T-9", record.UpdateComment, json.RawMessage(`{"comment":"valve replaced","authorId":"u-1"}`), "")
	require.NoError(t, err)

	var doc struct {
		Comments []struct {
			Comment  string    `json:"comment"`
			AuthorID string    `json:"authorId"`
			At       time.Time `json:"at"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(saved.Payload, &doc))
	require.Len(t, doc.Comments, 1)
	assert.Equal(t, "valve replaced", doc.Comments[0].Comment)
	assert.True(t, doc.Comments[0].At.Equal(now))
}

func TestService_List(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	repo.On("ListSince", ctx, record.DomainSiteLogs, from).Return([]*Item{{ID: "a"}}, nil)

	items, err := svc.List(ctx, record.DomainSiteLogs, from)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.List(ctx, record.DomainTicketUpdates, from)
	assert.ErrorIs(t, err, record.ErrUnknownDomain)
}

func TestService_Reference(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	repo.On("Reference", ctx, RefSites).Return(json.RawMessage(`[{"id":"site-1"}]`), nil)

	v, err := svc.Reference(ctx, RefSites)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"site-1"}]`, string(v))

	_, err = svc.Reference(ctx, "users")
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestService_SeedTicket(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(it *Item) bool {
		return it.Domain == record.DomainTickets
	}), "").Return(&Item{ID: "T-1"}, true, nil)

	tk := &record.Ticket{Title: "Leak", Status: "open"}
	item, err := svc.SeedTicket(ctx, tk)
	require.NoError(t, err)
	assert.Equal(t, "T-1", item.ID)
	require.NotNil(t, tk.OpenedAt)
	assert.True(t, tk.OpenedAt.Equal(now))

	_, err = svc.SeedTicket(ctx, &record.Ticket{Status: "open"})
	assert.ErrorIs(t, err, record.ErrInvalidPayload)
}

func TestItem_Document(t *testing.T) {
	item := &Item{
		ID:        "srv-1",
		Domain:    record.DomainAttendance,
		Payload:   json.RawMessage(attendance),
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc, err := item.Document()
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u-1","siteId":"site-1","punchInAt":"2024-05-20T07:30:00Z",
		"id":"srv-1","createdAt":"2024-05-20T09:00:00Z","updatedAt":"2024-05-20T09:00:00Z"}`, string(doc))
}
