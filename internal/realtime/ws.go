package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 16 * 1024
	postTimeout  = 10 * time.Second
)

// Client frame types.
const (
	FrameJoinThread  = "join-thread"
	FrameLeaveThread = "leave-thread"
	FrameSendMessage = "send-message"
	FramePing        = "ping"
)

// Server reply types. Fan-out frames use the Event types.
const (
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameAck    = "ack"
	FrameError  = "error"
	FramePong   = "pong"
)

type ClientFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
	Content   string `json:"content,omitempty"`
	ParentID  *int64 `json:"parentId,omitempty"`
}

type ReplyFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	ThreadID  string          `json:"threadId,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	Error     *FrameErr       `json:"error,omitempty"`
}

type FrameErr struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

// PostFunc submits a message on behalf of the session's user through the
// regular write path.
type PostFunc func(ctx context.Context, s *Session, threadID uuid.UUID, parentID *int64, content string) (*models.Message, error)

// Serve runs the connection until the client goes away or the session is
// dropped. It blocks; the writer runs on its own goroutine.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, s *Session, post PostFunc) {
	go h.writePump(conn, s)
	h.readPump(ctx, conn, s, post)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, s *Session, post PostFunc) {
	defer func() {
		h.Disconnect(s)
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", zap.Error(err), zap.String("session_id", s.ID.String()))
			}
			return
		}

		var f ClientFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.reply(s, errorFrame("", apperr.InvalidInput("malformed frame")))
			continue
		}
		h.handleFrame(ctx, s, f, post)

		if s.State() == StateDisconnected {
			return
		}
	}
}

func (h *Hub) handleFrame(ctx context.Context, s *Session, f ClientFrame, post PostFunc) {
	switch f.Type {
	case FramePing:
		h.reply(s, ReplyFrame{Type: FramePong, RequestID: f.RequestID})

	case FrameJoinThread:
		threadID, err := uuid.Parse(f.ThreadID)
		if err != nil {
			h.reply(s, errorFrame(f.RequestID, apperr.InvalidInput("invalid thread id")))
			return
		}
		if err := h.Join(s, threadID); err != nil {
			return
		}
		h.reply(s, ReplyFrame{Type: FrameJoined, RequestID: f.RequestID, ThreadID: threadID.String()})

	case FrameLeaveThread:
		threadID, err := uuid.Parse(f.ThreadID)
		if err != nil {
			h.reply(s, errorFrame(f.RequestID, apperr.InvalidInput("invalid thread id")))
			return
		}
		h.Leave(s, threadID)
		h.reply(s, ReplyFrame{Type: FrameLeft, RequestID: f.RequestID, ThreadID: threadID.String()})

	case FrameSendMessage:
		threadID, err := uuid.Parse(f.ThreadID)
		if err != nil {
			h.reply(s, errorFrame(f.RequestID, apperr.InvalidInput("invalid thread id")))
			return
		}
		postCtx, cancel := context.WithTimeout(ctx, postTimeout)
		defer cancel()
		msg, err := post(postCtx, s, threadID, f.ParentID, f.Content)
		if err != nil {
			if apperr.Is(err, apperr.KindInternal) {
				h.logger.Error("post message over websocket", zap.Error(err), zap.String("session_id", s.ID.String()))
			}
			h.reply(s, errorFrame(f.RequestID, err))
			return
		}
		h.reply(s, ReplyFrame{Type: FrameAck, RequestID: f.RequestID, ThreadID: threadID.String(), Message: msg})

	default:
		h.reply(s, errorFrame(f.RequestID, apperr.InvalidInput("unknown frame type")))
	}
}

// reply queues a direct frame, dropping the session if it cannot keep up.
func (h *Hub) reply(s *Session, frame ReplyFrame) {
	if s.Reply(frame) || s.State() == StateDisconnected {
		return
	}
	h.logger.Warn("dropping slow session", zap.String("session_id", s.ID.String()))
	h.Disconnect(s)
}

func errorFrame(requestID string, err error) ReplyFrame {
	kind, msg := apperr.Public(err)
	return ReplyFrame{Type: FrameError, RequestID: requestID, Error: &FrameErr{Code: kind, Message: msg}}
}

func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			var payload any = env.Reply
			if env.Event != nil {
				if !s.SubscribedTo(env.Event.ThreadID) {
					continue
				}
				payload = env.Event
			}
			if err := conn.WriteJSON(payload); err != nil {
				h.Disconnect(s)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Disconnect(s)
				return
			}
		}
	}
}
