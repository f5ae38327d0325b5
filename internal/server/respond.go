package server

import (
	"encoding/json"
	"net/http"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorBody is the uniform {"detail": "..."} shape every error response
// carries, regardless of kind.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeError maps an apperr.Kind to its HTTP status code in exactly one
// place and writes the uniform error body. Unauthorised never leaks which
// check rejected the request.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	detail := apperr.DetailOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.PreconditionFailed:
		status = http.StatusConflict
	case apperr.UpstreamFailure:
		status = http.StatusBadGateway
	case apperr.Timeout:
		status = http.StatusGatewayTimeout
	case apperr.InputValidation:
		status = http.StatusBadRequest
	case apperr.FeatureDisabled:
		status = http.StatusServiceUnavailable
	case apperr.Unauthorised:
		status = http.StatusUnauthorized
		detail = "unauthorised"
	case apperr.Internal:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, errorBody{Detail: detail})
}

func decodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperr.Wrap(apperr.InputValidation, "invalid request body", err)
	}
	return nil
}
