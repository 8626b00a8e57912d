package transport

import (
	"encoding/json"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

// Response is the JSON envelope of every reply.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// RemoteError is returned by Client when the server replied with success=false.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Code + ": " + e.Message
}

func successResponse(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Data: raw}
}

func errorResponse(err error) Response {
	code := kerrors.Code(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	return Response{Success: false, Error: msg, Code: code}
}
