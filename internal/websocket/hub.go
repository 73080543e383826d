package websocket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/collabkit/server/internal/auth"
	"github.com/collabkit/server/internal/collab"
	"github.com/collabkit/server/internal/protocol"
	"github.com/collabkit/server/internal/security"
	"go.uber.org/zap"
)

// Hub owns the set of live connections and dispatches decoded collaboration
// messages to the session gateway. It implements collab.Sender so the
// gateway can push events back to individual connections.
type Hub struct {
	jwtSecret string
	logger    *zap.Logger
	collab    *collab.Service

	connections map[string]*Connection
	mu          sync.RWMutex

	Register      chan *Connection
	Unregister    chan *Connection
	HandleMessage chan *MessageEvent
}

// MessageEvent represents a decoded message from a connection.
type MessageEvent struct {
	Connection *Connection
	Message    *protocol.Message
}

// NewHub creates a new Hub. Bind the collaboration service with SetCollab
// before running.
func NewHub(jwtSecret string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		jwtSecret:     jwtSecret,
		logger:        logger,
		connections:   make(map[string]*Connection),
		Register:      make(chan *Connection),
		Unregister:    make(chan *Connection),
		HandleMessage: make(chan *MessageEvent, 256),
	}
}

// SetCollab binds the session gateway the hub dispatches to.
func (h *Hub) SetCollab(s *collab.Service) {
	h.collab = s
}

// Send delivers one event to one connection. Part of collab.Sender.
func (h *Hub) Send(connectionID, event string, payload map[string]interface{}) {
	h.mu.RLock()
	conn := h.connections[connectionID]
	h.mu.RUnlock()

	if conn == nil {
		return
	}
	if err := conn.SendMessage(event, payload); err != nil && err != ErrConnectionClosed {
		h.logger.Warn("failed to deliver event",
			zap.String("connectionId", connectionID),
			zap.String("event", event),
			zap.Error(err))
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()

		case conn := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.connections[conn.ID]
			if ok {
				delete(h.connections, conn.ID)
			}
			h.mu.Unlock()
			if ok {
				conn.closeSend()
			}

			if h.collab != nil {
				h.collab.Disconnect(context.Background(), conn.ID)
			}

		case event := <-h.HandleMessage:
			h.handleMessage(event.Connection, event.Message)
		}
	}
}

func (h *Hub) handleMessage(conn *Connection, msg *protocol.Message) {
	ctx := context.Background()

	switch msg.Type {
	case protocol.TypePing:
		conn.SendMessage(protocol.TypePong, map[string]interface{}{
			"type":      protocol.TypePong,
			"id":        msg.ID,
			"timestamp": time.Now().UnixMilli(),
		})
		return

	case protocol.TypeAuth:
		h.handleAuth(conn, msg)
		return
	}

	if !conn.Authenticated {
		conn.SendError("Authentication required", "NOT_AUTHENTICATED")
		return
	}

	switch msg.Type {
	case protocol.TypeJoinWorkspace:
		workspaceID := stringField(msg.Payload, "workspaceId")
		documentID := stringField(msg.Payload, "documentId")
		if ok, reason := security.ValidateID(workspaceID); !ok {
			conn.SendError(reason, "INVALID_REQUEST")
			return
		}
		if ok, reason := security.ValidateID(documentID); !ok {
			conn.SendError(reason, "INVALID_REQUEST")
			return
		}
		if !auth.CanReadDocument(conn.TokenPayload, documentID) {
			conn.SendError("Read permission denied", "FORBIDDEN")
			return
		}

		info := collab.UserInfo{Name: conn.UserID}
		if raw, ok := msg.Payload["userInfo"].(map[string]interface{}); ok {
			if name := stringField(raw, "name"); name != "" {
				info.Name = name
			}
			info.Avatar = stringField(raw, "avatar")
		}

		if err := h.collab.Join(ctx, conn.ID, conn.UserID, workspaceID, documentID, info); err != nil {
			h.logger.Error("failed to join workspace",
				zap.String("workspaceId", workspaceID), zap.Error(err))
			conn.SendError("Failed to join workspace", "INTERNAL_ERROR")
		}

	case protocol.TypeLeaveWorkspace:
		workspaceID := stringField(msg.Payload, "workspaceId")
		if err := h.collab.Leave(ctx, conn.ID, workspaceID); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeCursorMove:
		workspaceID := stringField(msg.Payload, "workspaceId")
		x, _ := msg.Payload["x"].(float64)
		y, _ := msg.Payload["y"].(float64)
		if err := h.collab.MoveCursor(ctx, conn.ID, workspaceID, x, y, stringField(msg.Payload, "elementId")); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeSelectionChange:
		workspaceID := stringField(msg.Payload, "workspaceId")
		if err := h.collab.ChangeSelection(ctx, conn.ID, workspaceID, msg.Payload["selection"]); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeStatusChange:
		workspaceID := stringField(msg.Payload, "workspaceId")
		status := collab.Status(stringField(msg.Payload, "status"))
		if err := h.collab.SetStatus(ctx, conn.ID, workspaceID, status); err != nil {
			conn.SendError("Invalid status change", "INVALID_REQUEST")
		}

	case protocol.TypeOperation:
		documentID := stringField(msg.Payload, "documentId")
		if !auth.CanWriteDocument(conn.TokenPayload, documentID) {
			conn.SendError("Write permission denied", "FORBIDDEN")
			return
		}
		draft, ok := decodeDraft(msg.Payload["operation"])
		if !ok {
			conn.SendError("Invalid operation", "INVALID_REQUEST")
			return
		}
		if err := h.collab.SubmitOperation(ctx, conn.ID, documentID, draft); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeRequestLock:
		documentID := stringField(msg.Payload, "documentId")
		if !auth.CanWriteDocument(conn.TokenPayload, documentID) {
			conn.SendError("Write permission denied", "FORBIDDEN")
			return
		}
		lockType := collab.LockType(stringField(msg.Payload, "lockType"))
		if err := h.collab.RequestLock(ctx, conn.ID, documentID, stringField(msg.Payload, "elementId"), lockType); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeReleaseLock:
		documentID := stringField(msg.Payload, "documentId")
		if err := h.collab.ReleaseLock(ctx, conn.ID, documentID, stringField(msg.Payload, "elementId")); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeUndo:
		documentID := stringField(msg.Payload, "documentId")
		if !auth.CanWriteDocument(conn.TokenPayload, documentID) {
			conn.SendError("Write permission denied", "FORBIDDEN")
			return
		}
		if err := h.collab.Undo(ctx, conn.ID, documentID); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeRedo:
		documentID := stringField(msg.Payload, "documentId")
		if !auth.CanWriteDocument(conn.TokenPayload, documentID) {
			conn.SendError("Write permission denied", "FORBIDDEN")
			return
		}
		if err := h.collab.Redo(ctx, conn.ID, documentID); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	case protocol.TypeAddComment:
		documentID := stringField(msg.Payload, "documentId")
		raw, _ := msg.Payload["comment"].(map[string]interface{})
		text := stringField(raw, "text")
		if ok, reason := security.ValidateComment(text); !ok {
			conn.SendError(reason, "INVALID_REQUEST")
			return
		}
		var position interface{}
		if raw != nil {
			position = raw["position"]
		}
		if err := h.collab.AddComment(ctx, conn.ID, documentID, stringField(msg.Payload, "elementId"), text, position); err != nil {
			conn.SendError("Not joined to workspace", "NOT_JOINED")
		}

	default:
		conn.SendError("Unsupported message type: "+msg.Type, "INVALID_REQUEST")
	}
}

func (h *Hub) handleAuth(conn *Connection, msg *protocol.Message) {
	token := stringField(msg.Payload, "token")

	if token != "" {
		decoded, err := auth.VerifyToken(token, h.jwtSecret)
		if err != nil {
			conn.SendMessage(protocol.TypeAuthError, map[string]interface{}{
				"type":      protocol.TypeAuthError,
				"id":        msg.ID,
				"timestamp": time.Now().UnixMilli(),
				"error":     "Invalid or expired token",
				"code":      "INVALID_TOKEN",
			})
			return
		}
		conn.Authenticated = true
		conn.UserID = decoded.UserID
		conn.TokenPayload = decoded
	} else {
		// Anonymous connection, full read/write but no admin rights.
		conn.Authenticated = true
		if userID := stringField(msg.Payload, "userId"); userID != "" {
			conn.UserID = userID
		} else {
			conn.UserID = "guest-" + generateID()[:8]
		}
		conn.TokenPayload = &auth.TokenPayload{
			UserID:      conn.UserID,
			Permissions: auth.GuestPermissions(),
		}
	}

	conn.SendMessage(protocol.TypeAuthSuccess, map[string]interface{}{
		"type":      protocol.TypeAuthSuccess,
		"id":        msg.ID,
		"timestamp": time.Now().UnixMilli(),
		"userId":    conn.UserID,
		"color":     collab.ColorForUser(conn.UserID),
		"permissions": map[string]interface{}{
			"canRead":  conn.TokenPayload.Permissions.CanRead,
			"canWrite": conn.TokenPayload.Permissions.CanWrite,
			"isAdmin":  conn.TokenPayload.Permissions.IsAdmin,
		},
	})
}

// decodeDraft converts the wire form of an operation into a draft.
func decodeDraft(raw interface{}) (*collab.OperationDraft, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, false
	}

	opType := collab.OperationType(stringField(m, "type"))
	switch opType {
	case collab.OpInsert, collab.OpDelete, collab.OpUpdate, collab.OpMove:
	default:
		return nil, false
	}

	rawPath, ok := m["path"].([]interface{})
	if !ok {
		return nil, false
	}
	path := make([]string, 0, len(rawPath))
	for _, seg := range rawPath {
		s, ok := seg.(string)
		if !ok {
			return nil, false
		}
		path = append(path, s)
	}

	return &collab.OperationDraft{
		Type:     opType,
		Path:     path,
		Value:    m["value"],
		OldValue: m["oldValue"],
	}, true
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
