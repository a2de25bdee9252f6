package record

import (
	"fieldsync/internal/app/server/api/http/envelope"
)

type submitInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"Client local id; replays return the first result"`
	RawBody        []byte
}

type replaceInput struct {
	ID             string `path:"id" doc:"Server id of the item"`
	IdempotencyKey string `header:"Idempotency-Key" doc:"Client local id and version"`
	RawBody        []byte
}

type ticketUpdateInput struct {
	ID             string `path:"id" doc:"Server id of the ticket"`
	UpdateType     string `header:"X-Update-Type" required:"true" enum:"status,detail,comment" doc:"Kind of ticket update"`
	IdempotencyKey string `header:"Idempotency-Key" doc:"Client local id of the queued update"`
	RawBody        []byte
}

type output struct {
	Body envelope.Envelope
}
