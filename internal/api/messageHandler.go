package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cronchat/internal/messaging"
	"cronchat/internal/models"
	"cronchat/internal/store"
	"cronchat/internal/types"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 16 * 1024

func SendMessageHandler(svc *messaging.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload types.SendMessagePayload

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logger.Debug().Err(err).Msg("send-message decode error")
			Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		m, err := svc.Submit(r.Context(), payload.Sender, payload.Body())
		switch {
		case errors.Is(err, messaging.ErrEmptyText):
			Error(w, http.StatusBadRequest, "Message text is required")
			return
		case errors.Is(err, messaging.ErrTextTooLong):
			Error(w, http.StatusBadRequest, "Message text is too long")
			return
		case err != nil:
			logger.Error().Err(err).Msg("error sending message")
			Error(w, http.StatusInternalServerError, "Failed to send message")
			return
		}

		JSON(w, http.StatusOK, types.SendMessageResponse{
			Success: true,
			Message: "Message sent successfully",
			Data:    m,
		})
	}
}

// LatestMessageHandler serves the polling fallback.
func LatestMessageHandler(svc *messaging.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := svc.Latest(r.Context())
		if errors.Is(err, store.ErrNoMessage) {
			JSON(w, http.StatusOK, types.LatestMessageResponse{})
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("error reading latest message")
			Error(w, http.StatusInternalServerError, "Failed to read message")
			return
		}

		JSON(w, http.StatusOK, types.LatestMessageResponse{Message: &m.Text, Data: &m})
	}
}

func HistoryHandler(svc *messaging.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := messaging.DefaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				Error(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		msgs, err := svc.History(r.Context(), limit)
		if err != nil {
			logger.Error().Err(err).Msg("error reading history")
			Error(w, http.StatusInternalServerError, "Failed to read history")
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}

		JSON(w, http.StatusOK, types.HistoryResponse{Messages: msgs, Count: len(msgs)})
	}
}
