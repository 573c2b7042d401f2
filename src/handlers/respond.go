package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ledger-server/src/ledger"
	"ledger-server/src/logger"
	"ledger-server/src/middleware"
	"ledger-server/src/models"
	"net/http"
	"strconv"
	"time"
)

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *ledger.ValidationError
		ne *ledger.NotFoundError
		ae *ledger.AuthError
		ce *ledger.ConsistencyError
		te *ledger.TransientStoreError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and replies with its status. Internal errors are
// reported as msg so store details never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	event := log.Warn()
	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		event = log.Error()
	}
	event.Err(err).Int("status", status).Msg(msg)

	if status == http.StatusInternalServerError {
		middleware.WriteError(w, status, msg)
		return
	}
	middleware.WriteError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ledger.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD value; empty yields the zero time.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", value)}
	}
	return d, nil
}

func parseDatePtr(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func requireDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: "is required"}
	}
	return parseDate(field, value)
}

func parseInt(field, value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, &ledger.ValidationError{Field: field, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateFormat)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}
