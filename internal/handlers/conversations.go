package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devspinn/voiceapp/internal/api/middleware"
	"github.com/devspinn/voiceapp/internal/models"
)

// CreateConversationRequest represents the conversation creation body.
type CreateConversationRequest struct {
	OtherUserID uuid.UUID `json:"other_user_id"`
}

// CreateConversationResponse carries the conversation ID, existing or new.
type CreateConversationResponse struct {
	ID uuid.UUID `json:"id"`
}

// ConversationDetail is a conversation with the other participant resolved.
type ConversationDetail struct {
	models.Conversation
	OtherUser *models.PublicUser `json:"other_user"`
}

// CreateConversation finds or creates the two-party conversation between the
// requester and the named user.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OtherUserID == uuid.Nil {
		h.Error(w, http.StatusBadRequest, "other_user_id is required")
		return
	}
	if req.OtherUserID == user.ID {
		h.Error(w, http.StatusBadRequest, "cannot start a conversation with yourself")
		return
	}

	other, err := h.store.GetUserByID(r.Context(), req.OtherUserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if other == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	existing, err := h.store.FindConversationBetween(r.Context(), user.ID, req.OtherUserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.JSON(w, http.StatusOK, CreateConversationResponse{ID: existing.ID})
		return
	}

	conv, err := h.store.CreateConversation(r.Context(), user.ID, req.OtherUserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	h.JSON(w, http.StatusCreated, CreateConversationResponse{ID: conv.ID})
}

// ListConversations lists the requester's conversations, most recently
// active first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.store.ListConversations(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	h.JSON(w, http.StatusOK, summaries)
}

// GetConversation returns one conversation with the other participant.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := h.conversationForParticipant(w, r, user.ID)
	if err != nil {
		return // response already written
	}

	conv, err := h.store.GetConversation(r.Context(), convID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if conv == nil {
		h.Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	detail := ConversationDetail{Conversation: *conv}
	participants, err := h.store.GetParticipantIDs(r.Context(), convID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	for _, id := range participants {
		if id == user.ID {
			continue
		}
		if other, err := h.store.GetUserByID(r.Context(), id); err == nil && other != nil {
			pub := other.Public()
			detail.OtherUser = &pub
		}
	}

	h.JSON(w, http.StatusOK, detail)
}

var errNotParticipant = errors.New("not a participant")

// conversationForParticipant parses the conversation ID from the URL and
// verifies the user participates in it, writing the error response itself
// when either check fails.
func (h *Handler) conversationForParticipant(w http.ResponseWriter, r *http.Request, userID uuid.UUID) (uuid.UUID, error) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return uuid.Nil, err
	}

	ok, err := h.store.IsParticipant(r.Context(), convID, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return uuid.Nil, err
	}
	if !ok {
		h.Error(w, http.StatusForbidden, "not a participant")
		return uuid.Nil, errNotParticipant
	}
	return convID, nil
}
