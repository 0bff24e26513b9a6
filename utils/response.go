package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"paylink/services"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// StatusFor maps a core error kind onto an HTTP status.
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation, services.KindStateConflict:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindAccessDenied:
		return http.StatusForbidden
	case services.KindProcessor:
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// WriteError writes a core error with its machine-readable code. Anything
// that is not a core error is logged under op and reported as a 500.
func WriteError(w http.ResponseWriter, op string, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		log.Printf("[%s] error: %v", op, err)
		WriteJSON(w, http.StatusInternalServerError, APIResponse{Success: false, Message: "Internal server error"})
		return
	}
	resp := APIResponse{Success: false, Message: e.Message, Code: e.Code}
	if e.Field != "" {
		resp.Data = map[string]string{"field": e.Field}
	}
	WriteJSON(w, StatusFor(err), resp)
}

// GetStringValue returns the value of a nullable string pointer or empty string if nil
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
