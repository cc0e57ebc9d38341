package services

import (
	"errors"
	"net/http"

	"github.com/Lllllllleong/documentpreview/internal/documents"
	"github.com/Lllllllleong/documentpreview/internal/pipeline"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusCode maps a Process error to the HTTP status the functions respond with. Pipeline
// failures are mapped by kind before anything they wrap is looked at.
func StatusCode(err error) int {
	var perr *pipeline.Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return pipelineStatus(perr.Kind)
	case errors.Is(err, documents.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func pipelineStatus(k pipeline.Kind) int {
	switch k {
	case pipeline.KindInvalid:
		return http.StatusBadRequest
	case pipeline.KindInFlight:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
