package handlers

import (
	"net/http"
	"strings"

	"ritasuite/internal/domain"
	"ritasuite/internal/providers/gemini"
)

const chatSystemPrompt = "You are Rita, a helpful and friendly AI assistant. " +
	"Answer concisely and in the language the user writes in."

type chatRequest struct {
	Message   string `json:"message"`
	SearchWeb bool   `json:"search_web"`
}

// ChatSend persists the user's message, asks the assistant with the full
// stored history and persists the reply. Chat is synchronous: the caller
// waits for the model instead of polling.
func (a *App) ChatSend(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req chatRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}
	message := strings.TrimSpace(req.Message)

	history, err := a.Chats.ListByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("chat history load failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load the conversation")
		return
	}

	turns := make([]gemini.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, gemini.Turn{Role: string(msg.Role), Content: msg.Content})
	}

	system := chatSystemPrompt
	if req.SearchWeb {
		system += " The user asked for up-to-date information; say clearly when your knowledge may be stale."
	}

	reply, err := a.Assistant.Chat(r.Context(), gemini.ChatRequest{
		System:  system,
		History: turns,
		Message: message,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("chat provider failed")
		a.error(w, http.StatusBadGateway, "upstream", "the assistant is unavailable right now")
		return
	}

	// The exchange is only persisted once the model has answered, so a
	// provider failure leaves the stored history unchanged.
	if _, err := a.Chats.Append(r.Context(), &domain.ChatMessage{
		UserID:  userID,
		Role:    domain.ChatRoleUser,
		Content: message,
	}); err != nil {
		a.Logger.Error().Err(err).Msg("chat user message persist failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not save the conversation")
		return
	}
	saved, err := a.Chats.Append(r.Context(), &domain.ChatMessage{
		UserID:  userID,
		Role:    domain.ChatRoleModel,
		Content: reply,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("chat reply persist failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not save the conversation")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"reply":      saved.Content,
		"created_at": saved.CreatedAt,
	})
}

// ChatHistory returns the caller's conversation, oldest first.
func (a *App) ChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	history, err := a.Chats.ListByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("chat history load failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not load the conversation")
		return
	}
	items := make([]map[string]any, 0, len(history))
	for _, msg := range history {
		items = append(items, map[string]any{
			"role":       string(msg.Role),
			"content":    msg.Content,
			"created_at": msg.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ChatClear wipes the caller's conversation.
func (a *App) ChatClear(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Chats.DeleteAllForUser(r.Context(), userID); err != nil {
		a.Logger.Error().Err(err).Msg("chat clear failed")
		a.error(w, http.StatusInternalServerError, "internal", "could not clear the conversation")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"cleared": true})
}
