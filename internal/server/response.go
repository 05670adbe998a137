package server

import (
	"encoding/json"
	"net/http"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the JSON body of every API response except 204.
type Envelope struct {
	Status  string `json:"status" example:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty" example:"Clip not found."`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope carrying data. A 204 status writes
// no body.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, Envelope{Status: StatusSuccess, Data: data})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Status: StatusError, Message: message})
}

// NotFound writes a 404 error envelope.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// BadRequest writes a 400 error envelope.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Forbidden writes a 403 error envelope.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// RateLimited writes a 429 error envelope.
func RateLimited(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

// InternalError writes a 500 error envelope. The message must not carry
// storage details.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
