package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/devspinn/voiceapp/internal/api/middleware"
	"github.com/devspinn/voiceapp/internal/metrics"
	"github.com/devspinn/voiceapp/internal/models"
	"github.com/devspinn/voiceapp/internal/ws"
)

const (
	maxTextLength   = 4000
	maxAudioBytes   = 10 << 20 // 10MB decoded
	defaultPageSize = 50
	maxPageSize     = 50
)

// SendTextRequest is the text message creation body.
type SendTextRequest struct {
	Text string `json:"text"`
}

// SendVoiceRequest carries a base64-encoded audio recording.
type SendVoiceRequest struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mime_type"`
}

// MessagePage is one page of a conversation's history, newest first.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor *string          `json:"next_cursor"`
}

// ListMessages returns a page of the conversation's messages, newest first.
// Pagination is cursor-based: pass the last message ID of a page as ?before=
// to fetch the next one.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := h.conversationForParticipant(w, r, user.ID)
	if err != nil {
		return
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			h.Error(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	before := r.URL.Query().Get("before")

	// Fetch one extra row to learn whether another page exists.
	msgs, err := h.store.ListMessages(r.Context(), convID, before, limit+1)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	page := MessagePage{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		cursor := page.Messages[limit-1].ID
		page.NextCursor = &cursor
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, page)
}

// SendText creates a text-origin message and schedules its speech synthesis.
// The response returns the pending row immediately; the audio arrives later
// via a message_updated event.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := h.conversationForParticipant(w, r, user.ID)
	if err != nil {
		return
	}

	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		h.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Text) > maxTextLength {
		h.Error(w, http.StatusBadRequest, "text exceeds maximum length")
		return
	}

	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: convID,
		SenderID:       user.ID,
		Text:           &req.Text,
		Origin:         models.OriginText,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	metrics.MessagesCreated.WithLabelValues(string(models.OriginText)).Inc()

	h.afterCreate(r, msg)
	h.pipeline.EnqueueSynthesis(msg.ID, convID, req.Text)

	h.JSON(w, http.StatusCreated, msg)
}

// SendVoice creates a voice-origin message from an uploaded recording and
// schedules its transcription. The audio is persisted before the row is
// inserted so a stored message never points at a missing file.
func (h *Handler) SendVoice(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := h.conversationForParticipant(w, r, user.ID)
	if err != nil {
		return
	}

	var req SendVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Audio == "" {
		h.Error(w, http.StatusBadRequest, "audio is required")
		return
	}

	ext, ok := audioExtension(req.MimeType)
	if !ok {
		h.Error(w, http.StatusBadRequest, "unsupported audio mime type")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "audio must be base64 encoded")
		return
	}
	if len(data) == 0 {
		h.Error(w, http.StatusBadRequest, "audio is empty")
		return
	}
	if len(data) > maxAudioBytes {
		h.Error(w, http.StatusRequestEntityTooLarge, "audio exceeds maximum size")
		return
	}

	id := ulid.Make().String()
	filename := id + ext
	audioURL, err := h.audio.SaveAudio(filename, data)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", filename).Msg("audio save failed")
		h.Error(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	msg := &models.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       user.ID,
		AudioURL:       &audioURL,
		Origin:         models.OriginVoice,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create message")
		return
	}
	metrics.MessagesCreated.WithLabelValues(string(models.OriginVoice)).Inc()

	h.afterCreate(r, msg)
	h.pipeline.EnqueueTranscription(msg.ID, convID, filename)

	h.JSON(w, http.StatusCreated, msg)
}

// GetMessage returns a single message, for polling a conversion outcome.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	convID, err := h.conversationForParticipant(w, r, user.ID)
	if err != nil {
		return
	}

	msgID := chi.URLParam(r, "messageID")
	msg, err := h.store.GetMessage(r.Context(), msgID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if msg == nil || msg.ConversationID != convID {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}

	h.JSON(w, http.StatusOK, msg)
}

// afterCreate bumps the conversation and fans the new_message event out to
// every participant's live connections. Both are best-effort relative to the
// already committed insert.
func (h *Handler) afterCreate(r *http.Request, msg *models.Message) {
	ctx := r.Context()
	if err := h.store.TouchConversation(ctx, msg.ConversationID); err != nil {
		h.logger.Warn().
			Err(err).
			Str("conversation_id", msg.ConversationID.String()).
			Msg("conversation touch failed")
	}

	participants, err := h.store.GetParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("conversation_id", msg.ConversationID.String()).
			Msg("participant lookup failed, new message event not sent")
		return
	}
	h.registry.NotifyMany(participants, ws.NewMessage(msg.ConversationID, msg.ID))
}

// audioExtension maps an upload mime type to its stored file extension.
func audioExtension(mimeType string) (string, bool) {
	// Codec parameters like ";codecs=opus" do not affect storage.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mimeType)) {
	case "audio/m4a", "audio/x-m4a", "audio/mp4":
		return ".m4a", true
	case "audio/webm", "video/webm":
		return ".webm", true
	case "audio/mpeg", "audio/mp3":
		return ".mp3", true
	case "audio/wav", "audio/x-wav":
		return ".wav", true
	default:
		return "", false
	}
}
