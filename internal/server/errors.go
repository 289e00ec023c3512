package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"sketchparty/internal/logging"
	"sketchparty/internal/scores"
	"sketchparty/internal/words"
)

// ValidationError is malformed client input. It is reported as 400 with a
// machine-readable reason and never mutates state.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// validation wraps the sentinel input errors of the domain packages. Other
// errors are returned unchanged.
func validation(err error) error {
	switch {
	case errors.Is(err, words.ErrNotArray),
		errors.Is(err, words.ErrNotStrings),
		errors.Is(err, scores.ErrMalformed),
		errors.Is(err, scores.ErrInvalidScore):
		return &ValidationError{Reason: err.Error(), Err: err}
	}
	return err
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, r, http.StatusBadRequest, messageResponse{Message: verr.Reason})
		return
	}
	logging.FromContext(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	writeJSON(w, r, http.StatusInternalServerError, messageResponse{Message: "internal error"})
}
