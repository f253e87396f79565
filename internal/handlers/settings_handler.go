package handlers

import (
	"errors"
	"net/http"

	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/service"
	"github.com/IlyaZolotarev/wordcard/internal/webutil"

	"github.com/go-playground/validator/v10"
)

type langPrefsRequest struct {
	NativeLang string `json:"native_lang" validate:"required,len=2"`
	LearnLang  string `json:"learn_lang" validate:"required,len=2"`
}

type SettingsHandler struct {
	service *service.SettingsService
}

func NewSettingsHandler(s *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: s}
}

// GetLangPrefs returns the native/learning language pair.
func (h *SettingsHandler) GetLangPrefs(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	native, learn, err := h.service.LangPrefs(r.Context())
	if err != nil {
		logger.Error("Error reading language preferences", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"native_lang": native,
		"learn_lang":  learn,
	}, logger)
}

// PutLangPrefs stores the native/learning language pair.
func (h *SettingsHandler) PutLangPrefs(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	var req langPrefsRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", "error", err)
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "The request body is malformed.", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			logger.Warn("Validation failed", "errors", validationErrors.Error())
			webutil.HandleError(w, logger, webutil.NewValidationErrorResponse(validationErrors))
		} else {
			webutil.HandleError(w, logger, err)
		}
		return
	}

	if err := h.service.SaveLangPrefs(r.Context(), req.NativeLang, req.LearnLang); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"native_lang": req.NativeLang,
		"learn_lang":  req.LearnLang,
	}, logger)
}
