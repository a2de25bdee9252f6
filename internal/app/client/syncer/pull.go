package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fieldsync/internal/app/client/transport"
	"fieldsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

const fromDateLayout = "2006-01-02"

// PullReport summarises a bulk pull.
type PullReport struct {
	Domain   record.Domain `json:"domain"`
	Received int           `json:"received"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
}

// Pull fetches the server's records of d created since from and stores them as synced
// records. Local records with unsynced changes are left alone. Pull does not take the sync
// lock; it never touches the pending queue.
func (o *Orchestrator) Pull(ctx context.Context, d record.Domain, from time.Time) (*PullReport, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d == record.DomainTicketUpdates {
		return nil, fmt.Errorf("%w: %s", ErrNotPullable, d)
	}

	token, err := o.tokens.Token(ctx)
	if err != nil || token == "" {
		return nil, ErrNoToken
	}

	p := &pass{o: o, token: token, report: &Report{Reason: ReasonManual}}
	res := p.send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/" + d.Resource(),
		Query:  url.Values{"fromDate": []string{from.UTC().Format(fromDateLayout)}},
	})
	if p.aborted {
		return nil, ErrSessionInvalid
	}
	if !res.OK() {
		return nil, fmt.Errorf("pull %s: %w", d, res.Err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(res.Data, &items); err != nil {
		return nil, fmt.Errorf("pull %s: %w: %v", d, transport.ErrMalformed, err)
	}

	report := &PullReport{Domain: d, Received: len(items)}
	factory := record.NewFactory()
	log := o.log.With(slog.String("domain", d.String()))

	for _, item := range items {
		serverID, err := transport.ServerID(item)
		if err != nil || serverID == "" {
			report.Skipped++
			continue
		}

		payload, err := factory.Create(d)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(item, payload); err != nil {
			log.Warn("skip undecodable server record", slog.String("server_id", serverID), slog.String("error", err.Error()))
			report.Skipped++
			continue
		}

		var meta struct {
			CreatedAt time.Time `json:"createdAt"`
		}
		_ = json.Unmarshal(item, &meta)

		rec, created, err := o.store.ImportSynced(ctx, d, serverID, item, payload.Index(), meta.CreatedAt)
		if err != nil {
			return report, fmt.Errorf("import %s record %s: %w", d, serverID, err)
		}
		switch {
		case created:
			report.Inserted++
		case rec.Synced:
			report.Updated++
		default:
			report.Skipped++
		}
	}

	log.Info("pull finished",
		slog.Int("received", report.Received),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
	)
	return report, nil
}
