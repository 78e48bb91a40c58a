package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/chatbot"
)

func startChatHandler(chat ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartChatRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		reply, err := chat.Start(r.Context(), req.SessionID)
		if err != nil {
			writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, reply)
	}
}

func chatMessageHandler(chat ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reply, err := chat.HandleMessage(r.Context(), chi.URLParam(r, "id"), req.Message)
		if err != nil {
			writeChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatbot.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "This conversation has expired. Please start a new one.")
	case errors.Is(err, chatbot.ErrSignInRequired):
		writeError(w, http.StatusUnauthorized, "sign_in_required", "Please sign in to complete your booking.")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong on our side. Please try again.")
	}
}
