package health

import (
	"time"

	"fieldsync/internal/app/server/api/http/envelope"
)

type Input struct{}

type Output struct {
	Body envelope.Envelope
}

// Status is what a field device sees when it checks whether the sync server is reachable.
type Status struct {
	Status     string    `json:"status" example:"OK" doc:"OK while uploads are accepted"`
	Storage    string    `json:"storage" example:"postgres" doc:"Backend holding synced records"`
	ServerTime time.Time `json:"serverTime" doc:"Server clock, lets devices spot clock skew before stamping records"`
	Domains    []string  `json:"domains" example:"attendance" doc:"Record domains the server accepts uploads for, in drain order"`
}
