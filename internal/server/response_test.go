package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, http.StatusCreated, map[string]int{"id": 7})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want %q", ct, "application/json")
	}

	var body struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != StatusSuccess {
		t.Errorf("status = %q, want %q", body.Status, StatusSuccess)
	}
	if body.Data["id"] != 7 {
		t.Errorf("data.id = %d, want 7", body.Data["id"])
	}
}

func TestWriteSuccess_EmptyListKeepsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, http.StatusOK, []string{})

	if got, want := w.Body.String(), "{\"status\":\"success\",\"data\":[]}\n"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestWriteSuccess_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, http.StatusNoContent, nil)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string)
		status int
	}{
		{"NotFound", NotFound, http.StatusNotFound},
		{"BadRequest", BadRequest, http.StatusBadRequest},
		{"Forbidden", Forbidden, http.StatusForbidden},
		{"RateLimited", RateLimited, http.StatusTooManyRequests},
		{"InternalError", InternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, "something went wrong")

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var env Envelope
			if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if env.Status != StatusError {
				t.Errorf("status = %q, want %q", env.Status, StatusError)
			}
			if env.Message != "something went wrong" {
				t.Errorf("message = %q, want %q", env.Message, "something went wrong")
			}
			if env.Data != nil {
				t.Errorf("data = %v, want nil", env.Data)
			}
		})
	}
}
