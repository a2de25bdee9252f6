package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"fieldsync/internal/app/client/transport"
	"fieldsync/internal/domain/record"

	"golang.org/x/exp/slog"
)

// pass holds the state of one sync pass. It is used by a single goroutine.
type pass struct {
	o       *Orchestrator
	token   string
	report  *Report
	aborted bool
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeFailed
	outcomeDeferred
	outcomeChanged
	outcomeAlreadySynced
	outcomeGone
)

// errDeferred marks a record that cannot be sent yet but is not broken.
var errDeferred = errors.New("upload deferred")

func (p *pass) drain(ctx context.Context, d record.Domain) DomainReport {
	dr := DomainReport{Domain: d}
	log := p.o.log.With(slog.String("domain", d.String()))

	queue, err := p.o.store.Pending(ctx, d, p.o.cfg.BatchSize)
	if err != nil {
		log.Error("read pending queue", slog.String("error", err.Error()))
		dr.fail("", "store", 0, err.Error())
		return dr
	}

	for _, rec := range queue {
		if ctx.Err() != nil || p.aborted {
			break
		}

		out := p.upload(ctx, rec, &dr)
		if out == outcomeGone {
			continue
		}
		dr.Attempted++
		switch out {
		case outcomeSynced, outcomeAlreadySynced:
			dr.Synced++
		case outcomeDeferred:
			dr.Deferred++
		case outcomeChanged:
			dr.Changed++
		}
	}
	return dr
}

// upload sends one record. Failures are recorded on dr and never propagate.
func (p *pass) upload(ctx context.Context, queued *record.Record, dr *DomainReport) outcome {
	d := queued.Domain
	log := p.o.log.With(slog.String("domain", d.String()), slog.String("local_id", queued.LocalID))

	// Another pass or a user edit may have touched the record since the queue was read.
	rec, err := p.o.store.Get(ctx, d, queued.LocalID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return outcomeGone
		}
		dr.fail(queued.LocalID, "store", 0, err.Error())
		return outcomeFailed
	}
	if rec.Synced {
		return outcomeAlreadySynced
	}

	req, fallbackID, err := p.buildRequest(ctx, rec)
	switch {
	case errors.Is(err, errDeferred):
		log.Info("upload deferred", slog.String("cause", err.Error()))
		return outcomeDeferred
	case errors.Is(err, record.ErrInvalidPayload), errors.Is(err, record.ErrUnknownUpdate):
		log.Error("queued record is invalid", slog.String("error", err.Error()))
		dr.fail(rec.LocalID, "invalid", 0, err.Error())
		return outcomeFailed
	case err != nil:
		dr.fail(rec.LocalID, "store", 0, err.Error())
		return outcomeFailed
	}

	res := p.send(ctx, req)
	if !res.OK() {
		log.Warn("upload failed, record stays queued",
			slog.String("kind", res.Kind.String()),
			slog.Int("status", res.StatusCode),
			slog.String("error", errString(res.Err)),
		)
		dr.fail(rec.LocalID, res.Kind.String(), res.StatusCode, errString(res.Err))
		return outcomeFailed
	}

	serverID, err := res.ServerID()
	if err != nil || serverID == "" {
		serverID = fallbackID
	}
	if serverID == "" {
		log.Warn("server response has no id, record stays queued")
		dr.fail(rec.LocalID, "malformed", res.StatusCode, "response has no id")
		return outcomeFailed
	}

	synced, err := p.o.store.MarkUploaded(ctx, d, rec.LocalID, serverID, rec.Version)
	if err != nil {
		log.Error("mark record synced", slog.String("error", err.Error()))
		dr.fail(rec.LocalID, "store", 0, err.Error())
		return outcomeFailed
	}
	if !synced {
		return outcomeChanged
	}

	log.Debug("record synced", slog.String("server_id", serverID))
	return outcomeSynced
}

// buildRequest maps a record to its API call. fallbackID is the server id to record when the
// response does not carry one.
func (p *pass) buildRequest(ctx context.Context, rec *record.Record) (req transport.Request, fallbackID string, err error) {
	resource := rec.Domain.Resource()

	if rec.Domain != record.DomainTicketUpdates {
		req = transport.Request{
			Method:         http.MethodPost,
			Path:           "/" + resource,
			Body:           rec.Payload,
			IdempotencyKey: rec.LocalID,
		}
		if rec.HasServerID() {
			req.Method = http.MethodPut
			req.Path = "/" + resource + "/" + rec.ServerIDValue()
			req.IdempotencyKey = fmt.Sprintf("%s.%d", rec.LocalID, rec.Version)
			fallbackID = rec.ServerIDValue()
		}
		return req, fallbackID, nil
	}

	var upd record.PendingUpdate
	if err := json.Unmarshal(rec.Payload, &upd); err != nil {
		return req, "", fmt.Errorf("%w: %v", record.ErrInvalidPayload, err)
	}
	if err := upd.Validate(); err != nil {
		return req, "", err
	}

	ticket, err := p.o.store.Get(ctx, record.DomainTickets, upd.TargetLocalID)
	switch {
	case errors.Is(err, record.ErrNotFound):
		return req, "", fmt.Errorf("%w: ticket %s is not stored locally", errDeferred, upd.TargetLocalID)
	case err != nil:
		return req, "", err
	case !ticket.HasServerID():
		return req, "", fmt.Errorf("%w: ticket %s has no server id yet", errDeferred, upd.TargetLocalID)
	}

	req = transport.Request{
		Method:         http.MethodPut,
		Path:           "/" + resource + "/" + ticket.ServerIDValue(),
		Body:           upd.UpdateData,
		IdempotencyKey: rec.LocalID,
		Header:         http.Header{"X-Update-Type": []string{upd.UpdateType.String()}},
	}
	return req, ticket.ServerIDValue(), nil
}

// send performs the call with the pass token. A 401 gets exactly one refresh and one retry;
// a second 401 aborts the pass.
func (p *pass) send(ctx context.Context, req transport.Request) transport.Result {
	req.Token = p.token
	res := p.o.transport.Do(ctx, req)
	p.report.Requests += res.Attempts

	if res.Kind == transport.KindUnauthorized {
		token, err := p.o.tokens.Refresh(ctx)
		if err != nil || token == "" {
			p.o.log.Warn("token refresh failed", slog.String("error", errString(err)))
			p.abort()
			return res
		}
		p.token = token
		req.Token = token
		res = p.o.transport.Do(ctx, req)
		p.report.Requests += res.Attempts

		if res.Kind == transport.KindUnauthorized {
			p.abort()
			return res
		}
	}

	if res.OK() {
		p.o.sessionInvalid.Store(false)
	}
	return res
}

func (p *pass) abort() {
	p.aborted = true
	p.o.signalSessionInvalid()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
