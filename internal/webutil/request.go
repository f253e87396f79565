package webutil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

// DecodeJSONBody decodes the request body into dst. Unknown fields are
// rejected.
func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return model.ErrInvalidInput
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		slog.Debug("Error decoding JSON body", "error", err)
		return model.ErrInvalidInput
	}
	return nil
}
