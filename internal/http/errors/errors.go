package errors

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// errorResponse es lo único que se serializa al cliente.
type errorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	Detail            string `json:"detail,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

// WriteError escribe la respuesta HTTP para err.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}
	if appErr.Remaining >= 0 {
		n := appErr.Remaining
		resp.RemainingAttempts = &n
	}

	h := w.Header()
	if appErr.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	if appErr.HTTPStatus == http.StatusUnauthorized && h.Get("WWW-Authenticate") == "" {
		h.Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
	}
	h.Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
