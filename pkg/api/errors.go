package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pcbmesh/pkg/errors"
)

var (
	errNotFound         = errors.New(errors.ErrCodeFileNotFound, "no such route")
	errMethodNotAllowed = errors.New(errors.ErrCodeUnsupported, "method not allowed")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Layer     string `json:"layer,omitempty"`
	Line      int    `json:"line,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps an error to its HTTP status. Input problems are 400,
// Gerber content the pipeline cannot build a board from is 422.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == errMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	switch code := errors.GetCode(err); code {
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeEmptyMesh:
		return http.StatusUnprocessableEntity
	default:
		switch code.Category() {
		case errors.CategoryParse, errors.CategoryAssembly, errors.CategoryComposition:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	d := errorDetail{
		Code:      string(errors.GetCode(err)),
		Message:   errors.UserMessage(err),
		RequestID: middleware.GetReqID(r.Context()),
	}
	if e, ok := errors.As(err); ok {
		d.Category = string(e.Category())
		d.Layer = e.Layer
		d.Line = e.Line
	}
	switch status {
	case http.StatusRequestEntityTooLarge:
		d.Code, d.Category = string(errors.ErrCodeInvalidInput), string(errors.CategoryInput)
		d.Message = "request body too large"
	case http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		d.Code, d.Category = string(errors.ErrCodeInternal), string(errors.CategoryInternal)
		d.Message = "conversion did not finish in time"
	case http.StatusInternalServerError:
		if d.Code == "" {
			d.Code, d.Category = string(errors.ErrCodeInternal), string(errors.CategoryInternal)
			d.Message = "internal error"
		}
	}
	writeJSON(w, status, errorBody{Error: d})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
