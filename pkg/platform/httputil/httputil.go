package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and error responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		code := DomainCodeToHTTPCode(domainErr.Code)
		response := map[string]string{
			"error": code,
		}
		// Internal failures keep their detail in the logs, not on the wire.
		if domainErr.Message != "" && status < http.StatusInternalServerError {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeIdentityNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeDecisionConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case dErrors.CodeInternal, dErrors.CodeSigningFailed, dErrors.CodeEncryptionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RequireAccessToken extracts the caller's access token placed on the context by the
// credential middleware. A missing token is an authentication failure.
func RequireAccessToken(ctx context.Context, logger *slog.Logger, requestID string) (string, error) {
	token := requestcontext.AccessToken(ctx)
	if token == "" {
		if logger != nil {
			logger.WarnContext(ctx, "request carried no access token",
				"request_id", requestID)
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing access token")
	}
	return token, nil
}

// DomainCodeToHTTPCode translates domain error codes to HTTP error codes (for JSON response).
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeIdentityNotFound:
		return "identity_not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeDecisionConflict:
		return "decision_conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeUnavailable:
		return "identity_unavailable"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeTooLarge:
		return "payload_too_large"
	case dErrors.CodeSigningFailed:
		return "signing_failed"
	case dErrors.CodeEncryptionFailed:
		return "encryption_failed"
	case dErrors.CodeInternal:
		return "internal_error"
	default:
		return "internal_error"
	}
}
