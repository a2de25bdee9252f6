package sync

import "fieldsync/internal/app/server/api/http/envelope"

type listInput struct {
	FromDate string `query:"fromDate" example:"2024-05-01" doc:"Only items changed on or after this date (YYYY-MM-DD or RFC 3339)"`
}

type referenceInput struct{}

type output struct {
	Body envelope.Envelope
}
