package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/analystai/internal/chatlog"
	"github.com/ashureev/analystai/internal/conversation"
	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/identity"
)

// Client frame types.
const (
	FrameAnswer   = "answer"
	FrameFinalize = "finalize"
	FramePing     = "ping"
)

// Server frame types.
const (
	FrameSession    = "session"
	FrameMessages   = "messages"
	FrameRejected   = "rejected"
	FrameFinalizing = "finalizing"
	FrameFinalized  = "finalized"
	FrameWarning    = "warning"
	FrameError      = "error"
	FramePong       = "pong"
)

const (
	msgGenerationFailed = "Failed to generate documents. Please try again."
	msgSaveFailed       = "Documents were generated but the conversation could not be saved."
	msgUnknownFrame     = "Unknown message type."

	writeTimeout = 10 * time.Second
	saveTimeout  = 15 * time.Second
)

// Archive saves finalized conversations and loads them back for read-only viewing.
type Archive interface {
	Save(ctx context.Context, userID string, rec history.Record) (string, error)
	Load(ctx context.Context, userID, id string) (*domain.Conversation, error)
}

// Config holds the origin policy of the chat endpoint.
type Config struct {
	AllowedOrigin string
	IsDev         bool
}

// Handler upgrades requests to a WebSocket and drives one conversation.Session per connection.
type Handler struct {
	script  *conversation.Script
	syn     conversation.Synthesizer
	archive Archive
	sm      *SessionManager
	events  chatlog.Logger
	logger  *slog.Logger
	cfg     Config
}

// NewHandler creates a chat handler. A nil events logger discards chat events.
func NewHandler(script *conversation.Script, syn conversation.Synthesizer, archive Archive, sm *SessionManager, events chatlog.Logger, cfg Config, logger *slog.Logger) *Handler {
	if events == nil {
		events = chatlog.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		script:  script,
		syn:     syn,
		archive: archive,
		sm:      sm,
		events:  events,
		logger:  logger,
		cfg:     cfg,
	}
}

type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type serverFrame struct {
	Type           string                 `json:"type"`
	State          string                 `json:"state,omitempty"`
	Cursor         *int                   `json:"cursor,omitempty"`
	Username       string                 `json:"username,omitempty"`
	Messages       []domain.Message       `json:"messages,omitempty"`
	Documents      *domain.DocumentBundle `json:"documents,omitempty"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// conn is the per-connection state. Only the read loop touches it.
type conn struct {
	ws             *websocket.Conn
	sess           *conversation.Session
	userID         string
	sessionID      string
	conversationID string
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.logger.Info("Chat connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	c := &conn{userID: userID, sessionID: sessionID}
	if id := r.URL.Query().Get("conversation_id"); id != "" {
		sess, status, err := h.restore(r.Context(), userID, id)
		if err != nil {
			h.logger.Warn("Chat restore failed", "user_id", userID, "conversation_id", id, "error", err)
			http.Error(w, err.Error(), status)
			return
		}
		c.sess = sess
		c.conversationID = id
	} else {
		c.sess = conversation.NewSession(h.script)
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	c.ws = ws

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)
	defer h.record(c, chatlog.Event{Direction: chatlog.DirectionOutbound, EventType: chatlog.EventSessionEnd})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.sendSession(ctx, c, identity.UsernameFromContext(r.Context())); err != nil {
		h.logger.Debug("Failed to send session frame", "error", err, "user_id", userID)
		return
	}

	h.readLoop(ctx, c)
	h.logger.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) restore(ctx context.Context, userID, id string) (*conversation.Session, int, error) {
	conv, err := h.archive.Load(ctx, userID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, http.StatusNotFound, errors.New("conversation not found")
	}
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to load conversation")
	}
	sess, err := conversation.Restore(h.script, conv)
	if err != nil {
		return nil, http.StatusConflict, err
	}
	return sess, http.StatusOK, nil
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, c *conn) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "user_id", c.userID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", c.userID)
			}
			return
		}

		var msg clientFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			h.record(c, chatlog.Event{Direction: chatlog.DirectionInbound, EventType: "malformed", ContentRaw: string(data)})
			if err := h.send(ctx, c, serverFrame{Type: FrameRejected, Error: msgUnknownFrame}); err != nil {
				return
			}
			continue
		}
		h.record(c, chatlog.Event{Direction: chatlog.DirectionInbound, EventType: msg.Type, ContentRaw: msg.Content})

		if err := h.dispatch(ctx, c, msg); err != nil {
			h.logger.Debug("Chat write failed", "error", err, "user_id", c.userID)
			return
		}
	}
}

// dispatch handles one client frame. A returned error means the connection is unusable.
func (h *Handler) dispatch(ctx context.Context, c *conn, msg clientFrame) error {
	switch msg.Type {
	case FrameAnswer:
		appended, err := c.sess.Answer(msg.Content)
		if err != nil {
			return h.send(ctx, c, serverFrame{Type: FrameRejected, Error: err.Error()})
		}
		return h.send(ctx, c, serverFrame{
			Type:     FrameMessages,
			State:    c.sess.State().String(),
			Cursor:   intPtr(c.sess.Cursor()),
			Messages: appended,
		})
	case FrameFinalize:
		return h.finalize(ctx, c)
	case FramePing:
		return h.send(ctx, c, serverFrame{Type: FramePong})
	default:
		return h.send(ctx, c, serverFrame{Type: FrameRejected, Error: msgUnknownFrame})
	}
}

func (h *Handler) finalize(ctx context.Context, c *conn) error {
	switch c.sess.State() {
	case conversation.StateFinalized:
		return h.send(ctx, c, serverFrame{Type: FrameRejected, Error: conversation.ErrFinalized.Error()})
	case conversation.StateReadyToFinalize:
	default:
		return h.send(ctx, c, serverFrame{Type: FrameRejected, Error: conversation.ErrNotReady.Error()})
	}

	if err := h.send(ctx, c, serverFrame{Type: FrameFinalizing}); err != nil {
		return err
	}

	start := time.Now()
	bundle, err := c.sess.Finalize(ctx, h.syn)
	if err != nil {
		h.logger.Warn("Document generation failed",
			"user_id", c.userID,
			"session_id", c.sessionID,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		message := msgGenerationFailed
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			message = verr.Message
		}
		return h.send(ctx, c, serverFrame{
			Type:  FrameError,
			State: c.sess.State().String(),
			Error: message,
		})
	}
	h.logger.Info("Documents generated",
		"user_id", c.userID,
		"session_id", c.sessionID,
		"duration_ms", time.Since(start).Milliseconds())

	title := c.sess.Title()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	id, saveErr := h.archive.Save(saveCtx, c.userID, history.Record{
		Title:     title,
		Messages:  c.sess.Messages(),
		Documents: bundle,
	})
	cancel()
	if saveErr != nil {
		h.logger.Warn("Conversation save failed", "user_id", c.userID, "error", saveErr)
	} else {
		c.conversationID = id
	}

	if err := h.send(ctx, c, serverFrame{
		Type:           FrameFinalized,
		State:          c.sess.State().String(),
		Documents:      bundle,
		ConversationID: id,
		Title:          title,
	}); err != nil {
		return err
	}
	if saveErr != nil {
		return h.send(ctx, c, serverFrame{Type: FrameWarning, Error: msgSaveFailed})
	}
	return nil
}

func (h *Handler) sendSession(ctx context.Context, c *conn, username string) error {
	frame := serverFrame{
		Type:           FrameSession,
		State:          c.sess.State().String(),
		Cursor:         intPtr(c.sess.Cursor()),
		Username:       username,
		Messages:       c.sess.Messages(),
		Documents:      c.sess.Documents(),
		ConversationID: c.conversationID,
	}
	if c.sess.State() == conversation.StateFinalized {
		frame.Title = c.sess.Title()
	}
	return h.send(ctx, c, frame)
}

func (h *Handler) send(ctx context.Context, c *conn, frame serverFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	var meta map[string]any
	if frame.State != "" {
		meta = map[string]any{"state": frame.State}
	}
	h.record(c, chatlog.Event{
		Direction: chatlog.DirectionOutbound,
		EventType: frame.Type,
		Content:   frameContent(frame),
		Meta:      meta,
	})

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(writeCtx, websocket.MessageText, data)
}

// record stamps event with the connection's identity and logs it. User input goes in
// ContentRaw; the activity log derives the readable Content from it.
func (h *Handler) record(c *conn, event chatlog.Event) {
	event.Timestamp = time.Now()
	event.UserID = c.userID
	event.SessionID = c.sessionID
	event.ConversationID = c.conversationID
	event.Channel = "chat"
	h.events.Log(event)
}

// frameContent is the human-readable part of a frame for the activity log.
func frameContent(frame serverFrame) string {
	switch {
	case frame.Error != "":
		return frame.Error
	case len(frame.Messages) > 0:
		return conversation.Transcript(frame.Messages)
	case frame.Title != "":
		return frame.Title
	default:
		return ""
	}
}

func intPtr(v int) *int {
	return &v
}
