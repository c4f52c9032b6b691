package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"medisense/internal/pipeline"
	"medisense/internal/vein"
)

// ErrorCode is the JSON body written for every failed request.
type ErrorCode struct {
	HTTPCode int    `json:"-"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (e ErrorCode) Error() string {
	return e.Code + ": " + e.Message
}

// DecodeErrorCode maps pipeline and transport errors onto HTTP statuses.
func DecodeErrorCode(err error) ErrorCode {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return ErrorCode{http.StatusBadRequest, "invalid_request", err.Error()}
	case errors.Is(err, vein.ErrDecode):
		return ErrorCode{http.StatusBadRequest, "decode_failed", err.Error()}
	case errors.Is(err, vein.ErrNoRegionFound):
		return ErrorCode{http.StatusUnprocessableEntity, "no_region", err.Error()}
	case errors.Is(err, pipeline.ErrTooLarge), errors.As(err, &tooLarge):
		return ErrorCode{http.StatusRequestEntityTooLarge, "too_large", err.Error()}
	case errors.Is(err, pipeline.ErrMemoryLimit):
		return ErrorCode{http.StatusServiceUnavailable, "memory_limit", err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCode{http.StatusGatewayTimeout, "timeout", "processing did not finish in time"}
	default:
		return ErrorCode{http.StatusInternalServerError, "internal", "internal error"}
	}
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	errorCode := DecodeErrorCode(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(errorCode.HTTPCode)
	_ = json.NewEncoder(w).Encode(errorCode)
}
