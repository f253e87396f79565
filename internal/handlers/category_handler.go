// internal/handlers/category_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/service"
	"github.com/IlyaZolotarev/wordcard/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type CategoryHandler struct {
	gateway *service.Gateway
	logger  *slog.Logger
}

func NewCategoryHandler(gateway *service.Gateway, logger *slog.Logger) *CategoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// GetCategories reloads and returns the category list with its selection.
func (h *CategoryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetCategories"))

	snap, err := h.gateway.FetchCategories(r.Context())
	if err != nil {
		logger.Error("Error fetching categories", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Categories fetched", slog.Int("count", len(snap.Categories)))
	webutil.RespondWithJSON(w, http.StatusOK, snap, logger)
}

// PostCategory creates a category and selects it.
func (h *CategoryHandler) PostCategory(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostCategory"))

	var req model.CreateCategoryRequest
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

	category, err := h.gateway.CreateCategory(r.Context(), &req)
	if err != nil {
		logger.Error("Error creating category", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Category created", slog.String("category_id", category.ID))
	webutil.RespondWithJSON(w, http.StatusCreated, category, logger)
}

// SelectCategory switches the selection; the card list resets to the new
// category.
func (h *CategoryHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "SelectCategory"))

	categoryID := chi.URLParam(r, "categoryID")
	if err := h.gateway.SelectCategory(r.Context(), categoryID); err != nil {
		logger.Warn("Error selecting category", slog.Any("error", err), slog.String("category_id", categoryID))
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CategorySnapshot(), logger)
}

// PutCategory renames a category.
func (h *CategoryHandler) PutCategory(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PutCategory"))

	categoryID := chi.URLParam(r, "categoryID")

	var req model.UpdateCategoryRequest
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

	if err := h.gateway.UpdateCategory(r.Context(), categoryID, &req); err != nil {
		logger.Error("Error updating category", slog.Any("error", err), slog.String("category_id", categoryID))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Category updated", slog.String("category_id", categoryID))
	webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CategorySnapshot(), logger)
}

// DeleteCategory removes a category, its cards and their images.
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "DeleteCategory"))

	categoryID := chi.URLParam(r, "categoryID")
	if err := h.gateway.DeleteCategory(r.Context(), categoryID); err != nil {
		logger.Error("Error deleting category", slog.Any("error", err), slog.String("category_id", categoryID))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Category deleted", slog.String("category_id", categoryID))
	w.WriteHeader(http.StatusNoContent)
}
