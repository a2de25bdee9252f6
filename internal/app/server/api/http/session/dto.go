package session

import "fieldsync/internal/app/server/api/http/envelope"

type createInput struct {
	Body createRequest
}

type createRequest struct {
	DeviceID string `json:"deviceId" minLength:"1" maxLength:"128" doc:"Device the token is issued to"`
}

type createResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}

type output struct {
	Body envelope.Envelope
}
