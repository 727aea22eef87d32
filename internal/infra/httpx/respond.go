package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON пишет JSON-ответ с кодом статуса.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ErrorBody — общий вид ошибки для ответов, которые не несут своих полей.
type ErrorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// WriteError отвечает {"status":"error","error":msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Status: "error", Error: msg})
}
