package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldsync/internal/domain/record"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// ErrEmptyServerID is returned when a server id is required but blank.
var ErrEmptyServerID = errors.New("server id is empty")

const recordColumns = `local_id, server_id, payload, synced, version, site_id, user_id, status,
	created_at, updated_at, synced_at`

// Mutation tells Update whether a change re-queues the record.
type Mutation int

const (
	// UserMutation is a new user-intended change; the record re-enters the pending queue.
	UserMutation Mutation = iota
	// Bookkeeping changes the payload without touching the sync state.
	Bookkeeping
)

// Mutator edits a copy of the record. Store-owned fields (ids, sync state, timestamps) are
// restored after it returns.
type Mutator func(rec *record.Record) error

// Filter selects records in Query. Zero fields are ignored.
type Filter struct {
	SiteID   string
	UserID   string
	Status   string
	Unsynced bool
	Limit    int
	Offset   int
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.SiteID != "" {
		conds = append(conds, "site_id = ?")
		args = append(args, f.SiteID)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Unsynced {
		conds = append(conds, "synced = 0")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(d record.Domain, row scanner) (*record.Record, error) {
	var (
		r         record.Record
		serverID  sql.NullString
		payload   string
		synced    int
		createdAt int64
		updatedAt int64
		syncedAt  sql.NullInt64
	)
	err := row.Scan(&r.LocalID, &serverID, &payload, &synced, &r.Version,
		&r.Index.SiteID, &r.Index.UserID, &r.Index.Status, &createdAt, &updatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}

	r.Domain = d
	r.Payload = json.RawMessage(payload)
	r.Synced = synced == 1
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if serverID.Valid {
		id := serverID.String
		r.ServerID = &id
	}
	if syncedAt.Valid {
		at := time.Unix(0, syncedAt.Int64).UTC()
		r.SyncedAt = &at
	}
	return &r, nil
}

func scanRecords(d record.Domain, rows *sql.Rows) ([]*record.Record, error) {
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		r, err := scanRecord(d, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", d, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", d, err)
	}
	return out, nil
}

// Create persists a new unsynced record and returns it.
func (s *SQLiteStorage) Create(ctx context.Context, d record.Domain, payload json.RawMessage, idx record.Index) (*record.Record, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", record.ErrInvalidPayload)
	}

	now := s.stamp()
	rec := &record.Record{
		LocalID:   uuid.NewString(),
		Domain:    d,
		Payload:   payload,
		Version:   1,
		Index:     idx,
		CreatedAt: time.Unix(0, now).UTC(),
		UpdatedAt: time.Unix(0, now).UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (local_id, payload, synced, version, site_id, user_id, status, created_at, updated_at)
		VALUES (?, ?, 0, 1, ?, ?, ?, ?, ?)`,
		rec.LocalID, string(payload), idx.SiteID, idx.UserID, idx.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert %s record: %w", d, err)
	}

	s.log.Debug("record created", slog.String("domain", d.String()), slog.String("local_id", rec.LocalID))
	return rec, nil
}

// Get returns one record by local id.
func (s *SQLiteStorage) Get(ctx context.Context, d record.Domain, localID string) (*record.Record, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM "+table+" WHERE local_id = ?", localID)
	rec, err := scanRecord(d, row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get %s record %s", d, localID))
	}
	return rec, nil
}

// Query returns matching records, most recent first.
func (s *SQLiteStorage) Query(ctx context.Context, d record.Domain, f Filter) ([]*record.Record, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}

	where, args := f.where()
	q := "SELECT " + recordColumns + " FROM " + table + where + " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", d, err)
	}
	return scanRecords(d, rows)
}

// Pending is the sync queue view: unsynced records in creation order. limit <= 0 means all.
func (s *SQLiteStorage) Pending(ctx context.Context, d record.Domain, limit int) ([]*record.Record, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + " FROM " + table + " WHERE synced = 0 ORDER BY created_at ASC, rowid ASC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending %s records: %w", d, err)
	}
	return scanRecords(d, rows)
}

// PendingCount returns the size of the domain's sync queue.
func (s *SQLiteStorage) PendingCount(ctx context.Context, d record.Domain) (int, error) {
	table, err := tableFor(d)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE synced = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending %s records: %w", d, err)
	}
	return n, nil
}

// MarkSynced flags the record as synced and attaches serverID. Repeating the call is a no-op.
func (s *SQLiteStorage) MarkSynced(ctx context.Context, d record.Domain, localID, serverID string) error {
	_, err := s.markSynced(ctx, d, localID, serverID, 0)
	return err
}

// MarkUploaded is MarkSynced for the sync loop. The record is flipped to synced only if its
// version still equals the uploaded version; otherwise it was changed during the upload, keeps
// only the server id and stays queued. It reports whether the record is now synced by this call.
func (s *SQLiteStorage) MarkUploaded(ctx context.Context, d record.Domain, localID, serverID string, version int64) (bool, error) {
	return s.markSynced(ctx, d, localID, serverID, version)
}

func (s *SQLiteStorage) markSynced(ctx context.Context, d record.Domain, localID, serverID string, version int64) (bool, error) {
	table, err := tableFor(d)
	if err != nil {
		return false, err
	}
	if serverID == "" {
		return false, ErrEmptyServerID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin mark synced: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRecord(d, tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM "+table+" WHERE local_id = ?", localID))
	if err != nil {
		return false, notFound(err, fmt.Sprintf("mark %s record %s synced", d, localID))
	}

	if cur.HasServerID() && cur.ServerIDValue() != serverID {
		return false, fmt.Errorf("%w: %s record %s has %q, got %q",
			record.ErrServerIDConflict, d, localID, cur.ServerIDValue(), serverID)
	}
	if cur.Synced {
		return false, nil
	}

	if version > 0 && cur.Version != version {
		if !cur.HasServerID() {
			if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET server_id = ? WHERE local_id = ?", serverID, localID); err != nil {
				return false, fmt.Errorf("attach server id: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit mark synced: %w", err)
		}
		s.log.Info("record changed during upload, kept in queue",
			slog.String("domain", d.String()), slog.String("local_id", localID))
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET synced = 1, server_id = ?, synced_at = ? WHERE local_id = ?",
		serverID, s.stamp(), localID); err != nil {
		return false, fmt.Errorf("mark %s record %s synced: %w", d, localID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit mark synced: %w", err)
	}
	return true, nil
}

// Update applies fn to the record. A UserMutation re-queues the record and bumps its version.
func (s *SQLiteStorage) Update(ctx context.Context, d record.Domain, localID string, m Mutation, fn Mutator) (*record.Record, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRecord(d, tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM "+table+" WHERE local_id = ?", localID))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("update %s record %s", d, localID))
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if !json.Valid(next.Payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", record.ErrInvalidPayload)
	}

	next.LocalID = cur.LocalID
	next.Domain = cur.Domain
	next.ServerID = cur.Clone().ServerID
	next.Synced = cur.Synced
	next.Version = cur.Version
	next.CreatedAt = cur.CreatedAt
	next.SyncedAt = cur.Clone().SyncedAt

	now := s.stamp()
	next.UpdatedAt = time.Unix(0, now).UTC()
	if m == UserMutation {
		next.Synced = false
		next.Version++
	}

	synced := 0
	if next.Synced {
		synced = 1
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE `+table+`
		SET payload = ?, site_id = ?, user_id = ?, status = ?, synced = ?, version = ?, updated_at = ?
		WHERE local_id = ?`,
		string(next.Payload), next.Index.SiteID, next.Index.UserID, next.Index.Status,
		synced, next.Version, now, localID)
	if err != nil {
		return nil, fmt.Errorf("update %s record %s: %w", d, localID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	if m == UserMutation && cur.Synced {
		s.log.Debug("record re-queued", slog.String("domain", d.String()), slog.String("local_id", localID))
	}
	return next, nil
}

// ImportSynced stores a record pulled from the server. A record already linked to serverID is
// refreshed unless it has unsynced local changes. It reports whether a new row was inserted.
func (s *SQLiteStorage) ImportSynced(ctx context.Context, d record.Domain, serverID string, payload json.RawMessage, idx record.Index, createdAt time.Time) (*record.Record, bool, error) {
	table, err := tableFor(d)
	if err != nil {
		return nil, false, err
	}
	if serverID == "" {
		return nil, false, ErrEmptyServerID
	}
	if !json.Valid(payload) {
		return nil, false, fmt.Errorf("%w: payload is not valid JSON", record.ErrInvalidPayload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.stamp()
	cur, err := scanRecord(d, tx.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM "+table+" WHERE server_id = ? ORDER BY created_at ASC LIMIT 1", serverID))
	switch {
	case err == nil:
		if !cur.Synced {
			return cur, false, nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE `+table+` SET payload = ?, site_id = ?, user_id = ?, status = ?, updated_at = ?, synced_at = ?
			WHERE local_id = ?`,
			string(payload), idx.SiteID, idx.UserID, idx.Status, now, now, cur.LocalID)
		if err != nil {
			return nil, false, fmt.Errorf("refresh %s record %s: %w", d, cur.LocalID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit import: %w", err)
		}
		cur.Payload = payload
		cur.Index = idx
		refreshedAt := time.Unix(0, now).UTC()
		cur.UpdatedAt = refreshedAt
		cur.SyncedAt = &refreshedAt
		return cur, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("lookup %s record by server id: %w", d, err)
	}

	if createdAt.IsZero() {
		createdAt = time.Unix(0, now)
	}
	id := serverID
	syncedAt := time.Unix(0, now).UTC()
	rec := &record.Record{
		LocalID:   uuid.NewString(),
		ServerID:  &id,
		Domain:    d,
		Payload:   payload,
		Synced:    true,
		Version:   1,
		Index:     idx,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: syncedAt,
		SyncedAt:  &syncedAt,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+table+` (local_id, server_id, payload, synced, version, site_id, user_id, status,
			created_at, updated_at, synced_at)
		VALUES (?, ?, ?, 1, 1, ?, ?, ?, ?, ?, ?)`,
		rec.LocalID, serverID, string(payload), idx.SiteID, idx.UserID, idx.Status,
		createdAt.UnixNano(), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert imported %s record: %w", d, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit import: %w", err)
	}
	return rec, true, nil
}

// keepTargetedTickets spares tickets that a queued ticket update still points at.
const keepTargetedTickets = ` AND local_id NOT IN (
	SELECT json_extract(payload, '$.targetLocalId') FROM ticket_updates
	WHERE synced = 0 AND json_extract(payload, '$.targetLocalId') IS NOT NULL)`

// Prune deletes synced records whose sync happened before the cutoff. Unsynced records are never
// pruned, nor are tickets targeted by unsynced ticket updates.
func (s *SQLiteStorage) Prune(ctx context.Context, d record.Domain, before time.Time) (int64, error) {
	table, err := tableFor(d)
	if err != nil {
		return 0, err
	}
	q := "DELETE FROM " + table + " WHERE synced = 1 AND synced_at IS NOT NULL AND synced_at < ?"
	if d == record.DomainTickets {
		q += keepTargetedTickets
	}
	res, err := s.db.ExecContext(ctx, q, before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune %s records: %w", d, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune %s records: %w", d, err)
	}
	if n > 0 {
		s.log.Info("pruned synced records", slog.String("domain", d.String()), slog.Int64("count", n))
	}
	return n, nil
}
