package middleware

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"paylink/utils"
)

// ValidateJSON decodes a JSON payload into dst and runs utils.ValidateStruct.
// On failure the response is already written and the error is returned.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		utils.WriteJSON(w, http.StatusUnsupportedMediaType, utils.APIResponse{Success: false, Message: "Content-Type must be application/json"})
		return http.ErrNotSupported
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.APIResponse{Success: false, Message: "Request body too large"})
			return err
		}
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Code: "VALIDATION_FAILED", Message: "Invalid JSON body"})
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Code: "VALIDATION_FAILED", Message: err.Error()})
		return err
	}
	return nil
}
