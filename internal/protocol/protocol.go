// Package protocol defines the collaboration channel message envelope.
// Messages travel as [type:1 byte][timestamp:8 bytes][payload_len:4 bytes][payload:JSON],
// with a plain JSON text form accepted for browser clients.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MessageTypeCode is the binary wire code for a message type.
type MessageTypeCode byte

const (
	AUTH         MessageTypeCode = 0x01
	AUTH_SUCCESS MessageTypeCode = 0x02
	AUTH_ERROR   MessageTypeCode = 0x03

	JOIN_WORKSPACE  MessageTypeCode = 0x10
	LEAVE_WORKSPACE MessageTypeCode = 0x11
	WORKSPACE_STATE MessageTypeCode = 0x12
	USER_JOINED     MessageTypeCode = 0x13
	USER_LEFT       MessageTypeCode = 0x14

	CURSOR_MOVE        MessageTypeCode = 0x20
	CURSOR_UPDATE      MessageTypeCode = 0x21
	SELECTION_CHANGE   MessageTypeCode = 0x22
	SELECTION_UPDATE   MessageTypeCode = 0x23
	STATUS_CHANGE      MessageTypeCode = 0x24
	USER_STATUS_CHANGE MessageTypeCode = 0x25

	OPERATION          MessageTypeCode = 0x30
	OPERATION_APPLIED  MessageTypeCode = 0x31
	OPERATION_REJECTED MessageTypeCode = 0x32
	OPERATION_FAILED   MessageTypeCode = 0x33
	UNDO               MessageTypeCode = 0x34
	REDO               MessageTypeCode = 0x35

	REQUEST_LOCK     MessageTypeCode = 0x40
	RELEASE_LOCK     MessageTypeCode = 0x41
	LOCK_GRANTED     MessageTypeCode = 0x42
	LOCK_DENIED      MessageTypeCode = 0x43
	ELEMENT_LOCKED   MessageTypeCode = 0x44
	ELEMENT_UNLOCKED MessageTypeCode = 0x45

	ADD_COMMENT   MessageTypeCode = 0x50
	COMMENT_ADDED MessageTypeCode = 0x51

	PING  MessageTypeCode = 0x60
	PONG  MessageTypeCode = 0x61
	ERROR MessageTypeCode = 0xFF
)

// String message type names, matching the event names on the wire.
const (
	TypeAuth        = "auth"
	TypeAuthSuccess = "auth_success"
	TypeAuthError   = "auth_error"

	TypeJoinWorkspace  = "join-workspace"
	TypeLeaveWorkspace = "leave-workspace"
	TypeWorkspaceState = "workspace-state"
	TypeUserJoined     = "user-joined"
	TypeUserLeft       = "user-left"

	TypeCursorMove       = "cursor-move"
	TypeCursorUpdate     = "cursor-update"
	TypeSelectionChange  = "selection-change"
	TypeSelectionUpdate  = "selection-update"
	TypeStatusChange     = "status-change"
	TypeUserStatusChange = "user-status-change"

	TypeOperation         = "operation"
	TypeOperationApplied  = "operation-applied"
	TypeOperationRejected = "operation-rejected"
	TypeOperationFailed   = "operation-failed"
	TypeUndo              = "undo"
	TypeRedo              = "redo"

	TypeRequestLock     = "request-lock"
	TypeReleaseLock     = "release-lock"
	TypeLockGranted     = "lock-granted"
	TypeLockDenied      = "lock-denied"
	TypeElementLocked   = "element-locked"
	TypeElementUnlocked = "element-unlocked"

	TypeAddComment   = "add-comment"
	TypeCommentAdded = "comment-added"

	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"
)

var typeCodeToName = map[MessageTypeCode]string{
	AUTH:         TypeAuth,
	AUTH_SUCCESS: TypeAuthSuccess,
	AUTH_ERROR:   TypeAuthError,

	JOIN_WORKSPACE:  TypeJoinWorkspace,
	LEAVE_WORKSPACE: TypeLeaveWorkspace,
	WORKSPACE_STATE: TypeWorkspaceState,
	USER_JOINED:     TypeUserJoined,
	USER_LEFT:       TypeUserLeft,

	CURSOR_MOVE:        TypeCursorMove,
	CURSOR_UPDATE:      TypeCursorUpdate,
	SELECTION_CHANGE:   TypeSelectionChange,
	SELECTION_UPDATE:   TypeSelectionUpdate,
	STATUS_CHANGE:      TypeStatusChange,
	USER_STATUS_CHANGE: TypeUserStatusChange,

	OPERATION:          TypeOperation,
	OPERATION_APPLIED:  TypeOperationApplied,
	OPERATION_REJECTED: TypeOperationRejected,
	OPERATION_FAILED:   TypeOperationFailed,
	UNDO:               TypeUndo,
	REDO:               TypeRedo,

	REQUEST_LOCK:     TypeRequestLock,
	RELEASE_LOCK:     TypeReleaseLock,
	LOCK_GRANTED:     TypeLockGranted,
	LOCK_DENIED:      TypeLockDenied,
	ELEMENT_LOCKED:   TypeElementLocked,
	ELEMENT_UNLOCKED: TypeElementUnlocked,

	ADD_COMMENT:   TypeAddComment,
	COMMENT_ADDED: TypeCommentAdded,

	PING:  TypePing,
	PONG:  TypePong,
	ERROR: TypeError,
}

var typeNameToCode = func() map[string]MessageTypeCode {
	m := make(map[string]MessageTypeCode, len(typeCodeToName))
	for code, name := range typeCodeToName {
		m[name] = code
	}
	return m
}()

// KnownType reports whether name is a registered message type.
func KnownType(name string) bool {
	_, ok := typeNameToCode[name]
	return ok
}

// Message represents a decoded collaboration channel message.
type Message struct {
	Type      string                 `json:"type"`
	ID        string                 `json:"id"`
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"-"`
}

// EncodeMessage encodes a message to the binary wire format.
func EncodeMessage(messageType string, payload map[string]interface{}, timestamp int64) ([]byte, error) {
	typeCode, ok := typeNameToCode[messageType]
	if !ok {
		typeCode = ERROR
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	payloadLen := uint32(len(payloadJSON))

	// 1 (type) + 8 (timestamp) + 4 (length) + payload
	buf := make([]byte, 13+payloadLen)
	buf[0] = byte(typeCode)
	binary.BigEndian.PutUint64(buf[1:9], uint64(timestamp))
	binary.BigEndian.PutUint32(buf[9:13], payloadLen)
	copy(buf[13:], payloadJSON)

	return buf, nil
}

// DecodeMessage decodes a binary or JSON message.
func DecodeMessage(data []byte) (*Message, error) {
	// JSON text form (starts with '{' or '[')
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}

		message := &Message{Payload: msg}

		if t, ok := msg["type"].(string); ok {
			message.Type = t
		}
		if id, ok := msg["id"].(string); ok {
			message.ID = id
		}
		if ts, ok := msg["timestamp"].(float64); ok {
			message.Timestamp = int64(ts)
		}

		return message, nil
	}

	if len(data) < 13 {
		return nil, fmt.Errorf("message too short: %d bytes", len(data))
	}

	typeCode := MessageTypeCode(data[0])
	timestamp := int64(binary.BigEndian.Uint64(data[1:9]))
	payloadLen := binary.BigEndian.Uint32(data[9:13])

	if uint32(len(data)) < 13+payloadLen {
		return nil, fmt.Errorf("incomplete message: expected %d bytes, got %d", 13+payloadLen, len(data))
	}

	payloadBytes := data[13 : 13+payloadLen]
	var payload map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	typeName, ok := typeCodeToName[typeCode]
	if !ok {
		typeName = TypeError
	}

	message := &Message{
		Type:      typeName,
		Timestamp: timestamp,
		Payload:   payload,
	}

	if id, ok := payload["id"].(string); ok {
		message.ID = id
	}

	return message, nil
}
