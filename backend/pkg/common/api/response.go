package api

import (
	"encoding/json"
	"net/http"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, code, message, traceID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		TraceID: traceID,
	})
}

// WriteSuccess writes data as JSON. A nil data writes the status only.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// StatusFor maps the kind of err to an HTTP status: configuration faults are
// server errors, identity faults are authentication failures and connection
// faults mean the ledger is unavailable. A configuration fault anywhere in
// the chain wins over the outer kind.
func StatusFor(err error) (int, string) {
	var kind apperr.Kind
	if f := fault(err); f != nil {
		kind = f.Kind
	}
	switch kind {
	case apperr.Configuration:
		return http.StatusInternalServerError, "configuration_error"
	case apperr.Identity:
		return http.StatusUnauthorized, "identity_error"
	case apperr.Connection:
		return http.StatusServiceUnavailable, "connection_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteFault writes err with the status its kind maps to. Causes of
// classified errors are not echoed to the caller.
func WriteFault(w http.ResponseWriter, err error, traceID string) {
	status, code := StatusFor(err)
	message := "Internal Server Error"
	if f := fault(err); f != nil {
		message = f.Summary()
	}
	WriteError(w, status, code, message, traceID)
}

// fault returns the classified error err is reported as: the first
// configuration fault in the chain, else the outermost *apperr.Error.
func fault(err error) *apperr.Error {
	if !errors.Is(err, apperr.Configuration) {
		var e *apperr.Error
		if errors.As(err, &e) {
			return e
		}
		return nil
	}
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*apperr.Error); ok && e.Kind == apperr.Configuration {
			return e
		}
	}
	return nil
}
