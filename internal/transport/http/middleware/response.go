package middleware

import (
	"encoding/json"
	"net/http"
)

type errorEnvelope struct {
	Status  int         `json:"status"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Data    interface{} `json:"data"`
}

// writeJSONError writes an error in the same envelope the handlers use.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	RecordCode(r, code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Status:  status,
		Error:   http.StatusText(status),
		Message: msg,
		Code:    code,
	})
}
