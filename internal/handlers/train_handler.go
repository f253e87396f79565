// internal/handlers/train_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/service"
	"github.com/IlyaZolotarev/wordcard/internal/webutil"

	"github.com/go-playground/validator/v10"
)

type TrainHandler struct {
	service *service.TrainService
	logger  *slog.Logger
}

func NewTrainHandler(s *service.TrainService, logger *slog.Logger) *TrainHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainHandler{
		service: s,
		logger:  logger,
	}
}

// StartSession begins a review session over one category.
func (h *TrainHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "StartSession"))

	var req model.StartTrainingRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "The request body is malformed.", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			logger.Warn("Validation failed", slog.Any("errors", validationErrors.Error()))
			webutil.HandleError(w, logger, webutil.NewValidationErrorResponse(validationErrors))
		} else {
			logger.Error("Unexpected error during validation", slog.Any("error", err))
			webutil.HandleError(w, logger, err)
		}
		return
	}

	tasks, err := h.service.StartSession(r.Context(), &req)
	if err != nil {
		logger.Error("Error starting training session", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Training session started", slog.Int("tasks", len(tasks)))
	webutil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":   tasks,
		"current": h.service.CurrentTask(),
	}, logger)
}

// GetCurrentTask returns the task the session points at, or 204 when the
// session is over.
func (h *TrainHandler) GetCurrentTask(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetCurrentTask"))

	task := h.service.CurrentTask()
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, task, logger)
}

// PostNextTask advances the session and returns the next task, or 204 when
// the session is over.
func (h *TrainHandler) PostNextTask(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostNextTask"))

	task := h.service.NextTask()
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, task, logger)
}

// PostAnswer locks in an option for a task and returns the outcome.
func (h *TrainHandler) PostAnswer(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostAnswer"))

	var req model.SelectAnswerRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "The request body is malformed.", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			webutil.HandleError(w, logger, webutil.NewValidationErrorResponse(validationErrors))
		} else {
			webutil.HandleError(w, logger, err)
		}
		return
	}

	result, err := h.service.SelectAnswer(r.Context(), &req)
	if err != nil {
		logger.Error("Error selecting answer", slog.Any("error", err), slog.String("task_id", req.TaskID))
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, result, logger)
}

// GetStats returns the summary of the answered tasks.
func (h *TrainHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetStats"))

	webutil.RespondWithJSON(w, http.StatusOK, h.service.Stats(), logger)
}
