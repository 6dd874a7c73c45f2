package server

import (
	"net/http"

	"github.com/goccy/go-json"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)

	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if err := writeJSON(w, status, errorResponse{Error: msg}); err != nil {
		http.Error(w, msg, status)
	}
}
