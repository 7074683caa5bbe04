package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/V4T54L/barber-pos/internal/domain"
)

const maxBodySize = 1 << 20

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes the {"error","code"} body clients map back onto
// domain errors. Internal failures never echo their cause.
func respondWithError(w http.ResponseWriter, err error) {
	status, code := domain.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	respondWithJSON(w, status, domain.ErrorResponse{Error: msg, Code: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("exceeds %d bytes", maxBodySize)}
		}
		return &domain.ValidationError{Field: "body", Reason: "is not valid JSON"}
	}
	return nil
}
