// internal/handlers/card_handler.go
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/service"
	"github.com/IlyaZolotarev/wordcard/internal/webutil"

	"github.com/go-playground/validator/v10"
)

// maxImageSize caps uploaded card images at 10 MiB.
const maxImageSize = 10 << 20

type CardHandler struct {
	gateway *service.Gateway
	logger  *slog.Logger
}

func NewCardHandler(gateway *service.Gateway, logger *slog.Logger) *CardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// GetCards returns the current card list state without touching the
// backend. An optional min query parameter pads the list with grid
// placeholders.
func (h *CardHandler) GetCards(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetCards"))

	if minStr := r.URL.Query().Get("min"); minStr != "" {
		min, err := strconv.Atoi(minStr)
		if err != nil || min < 0 {
			appErr := model.NewAppError("INVALID_REQUEST", "The min parameter must be a non-negative integer.", "min", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CardEntries(min), logger)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CardSnapshot(), logger)
}

// PostCardsPage loads the next page of the selected category into the
// list and returns the new state.
func (h *CardHandler) PostCardsPage(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostCardsPage"))

	snap, err := h.gateway.FetchCardsPage(r.Context())
	if err != nil {
		logger.Error("Error fetching cards page", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Cards page fetched", slog.Int("count", len(snap.Cards)), slog.Bool("has_more", snap.HasMore))
	webutil.RespondWithJSON(w, http.StatusOK, snap, logger)
}

// SearchCards applies a search query to the card list. An empty q restores
// the unfiltered list.
func (h *CardHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "SearchCards"))

	query := r.URL.Query().Get("q")
	snap, err := h.gateway.SearchCards(r.Context(), query)
	if err != nil {
		logger.Error("Error searching cards", slog.Any("error", err), slog.String("query", query))
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, snap, logger)
}

// PostCard saves a card into the selected category. The request is either
// plain JSON, or multipart/form-data with the card fields and an optional
// image part that is uploaded to object storage in remote mode.
func (h *CardHandler) PostCard(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostCard"))

	var req model.CreateCardRequest
	var image []byte
	var imageContentType string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageSize); err != nil {
			logger.Warn("Failed to parse multipart form", slog.String("error", err.Error()))
			appErr := model.NewAppError("INVALID_REQUEST_BODY", "The multipart form is malformed.", "", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		req.Word = r.FormValue("word")
		req.WordLangCode = r.FormValue("word_lang_code")
		req.TransWord = r.FormValue("trans_word")
		req.TransWordLangCode = r.FormValue("trans_word_lang_code")
		req.ImageURL = r.FormValue("image_url")

		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
			if err != nil {
				logger.Error("Failed to read image part", slog.Any("error", err))
				webutil.HandleError(w, logger, model.ErrInternalServer)
				return
			}
			image = data
			imageContentType = header.Header.Get("Content-Type")
			if imageContentType == "" {
				imageContentType = "image/jpeg"
			}
		}
	} else {
		if err := webutil.DecodeJSONBody(r, &req); err != nil {
			logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
			appErr := model.NewAppError("INVALID_REQUEST_BODY", "The request body is malformed.", "", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
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

	card, err := h.gateway.CreateCard(r.Context(), &req, image, imageContentType)
	if err != nil {
		logger.Error("Error creating card", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Card created", slog.String("card_id", card.ID))
	webutil.RespondWithJSON(w, http.StatusCreated, card, logger)
}

// DeleteCards removes the selected cards and returns the refreshed list.
func (h *CardHandler) DeleteCards(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "DeleteCards"))

	var req model.DeleteCardsRequest
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

	if err := h.gateway.DeleteCards(r.Context(), req.IDs); err != nil {
		logger.Error("Error deleting cards", slog.Any("error", err), slog.Int("count", len(req.IDs)))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Cards deleted", slog.Int("count", len(req.IDs)))
	webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CardSnapshot(), logger)
}

// ResetCards clears the paged card list; the next page fetch starts over.
func (h *CardHandler) ResetCards(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "ResetCards"))

	h.gateway.ResetCardList()
	webutil.RespondWithJSON(w, http.StatusOK, h.gateway.CardSnapshot(), logger)
}
