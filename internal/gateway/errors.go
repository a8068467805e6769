package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

// Refresh failure modes. Both force the session to the logged-out state.
var (
	ErrMissingRefreshCredential = errors.New("no refresh credential held")
	ErrRefreshRejected          = errors.New("refresh credential rejected")
)

// errorFromResponse maps a non-2xx backend response to a typed error. The
// backend reports failures as {"detail": "..."} or as per-field message lists.
func errorFromResponse(status int, body []byte) *pkgerrors.Error {
	code := pkgerrors.CodeForStatus(status)
	message := http.StatusText(status)

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return pkgerrors.New(code, message)
	}

	if detail, ok := payload["detail"].(string); ok && detail != "" {
		return pkgerrors.New(code, detail)
	}

	// Per-field validation errors: keep the payload as details and surface
	// the first message.
	if code == pkgerrors.CodeValidation {
		if first := firstFieldMessage(payload); first != "" {
			message = first
		}
		return pkgerrors.New(code, message).WithDetails(payload)
	}

	return pkgerrors.New(code, message).WithDetails(payload)
}

func firstFieldMessage(payload map[string]any) string {
	for _, field := range []string{"username", "name", "email", "password", "items", "total"} {
		if messages, ok := payload[field].([]any); ok && len(messages) > 0 {
			if msg, ok := messages[0].(string); ok {
				return msg
			}
		}
	}
	return ""
}

// authMessage extracts the backend's own message from the original 401 body.
func authMessage(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return "authorization failed"
}

// IsAuthFailure reports whether err is an authorization failure.
func IsAuthFailure(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized)
}
