package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func ReturnJSON(w http.ResponseWriter, resp any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(fmt.Errorf("error encoding response: %w", err))
	}
}

func ReturnErrorJSON(w http.ResponseWriter, msg string, statusCode int) {
	ReturnJSON(w, errorResponse{Error: msg}, statusCode)
}
