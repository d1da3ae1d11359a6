package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey string

const contextUserIDKey contextKey = "user_id"

// withUserID stores the verified session subject on the request context.
func withUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

func userIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextUserIDKey).(int)
	if !ok || userID < 1 {
		return 0, errors.New("missing subject")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// APIResponse is the envelope every endpoint responds with.
type APIResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
	User    any      `json:"user,omitempty"`
	Token   string   `json:"token,omitempty"`
	Count   *int     `json:"count,omitempty"`
	Item    any      `json:"item,omitempty"`
	Items   any      `json:"items,omitempty"`
	Warning string   `json:"warning,omitempty"`
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

func writeValidationErrors(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusBadRequest, APIResponse{
		Success: false,
		Message: "validation error",
		Errors:  errs,
	})
}
