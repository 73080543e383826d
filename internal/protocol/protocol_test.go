package protocol

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"
)

func TestMessageTypeCodes(t *testing.T) {
	tests := []struct {
		code MessageTypeCode
		want byte
	}{
		{AUTH, 0x01},
		{AUTH_SUCCESS, 0x02},
		{AUTH_ERROR, 0x03},
		{JOIN_WORKSPACE, 0x10},
		{LEAVE_WORKSPACE, 0x11},
		{WORKSPACE_STATE, 0x12},
		{USER_JOINED, 0x13},
		{USER_LEFT, 0x14},
		{CURSOR_MOVE, 0x20},
		{SELECTION_CHANGE, 0x22},
		{OPERATION, 0x30},
		{OPERATION_APPLIED, 0x31},
		{OPERATION_REJECTED, 0x32},
		{UNDO, 0x34},
		{REQUEST_LOCK, 0x40},
		{LOCK_DENIED, 0x43},
		{ELEMENT_UNLOCKED, 0x45},
		{ADD_COMMENT, 0x50},
		{COMMENT_ADDED, 0x51},
		{PING, 0x60},
		{ERROR, 0xFF},
	}

	for _, tt := range tests {
		if byte(tt.code) != tt.want {
			t.Errorf("MessageTypeCode %v = %#x, want %#x", tt.code, byte(tt.code), tt.want)
		}
	}
}

func TestBidirectionalMapping(t *testing.T) {
	for code, name := range typeCodeToName {
		gotCode, ok := typeNameToCode[name]
		if !ok {
			t.Errorf("type name %q not found in typeNameToCode", name)
			continue
		}
		if gotCode != code {
			t.Errorf("typeNameToCode[%q] = %#x, want %#x", name, gotCode, code)
		}
	}
}

func TestKnownType(t *testing.T) {
	if !KnownType(TypeOperation) {
		t.Errorf("KnownType(%q) = false, want true", TypeOperation)
	}
	if KnownType("made-up-event") {
		t.Error(`KnownType("made-up-event") = true, want false`)
	}
}

func TestEncodeMessage(t *testing.T) {
	tests := []struct {
		name        string
		messageType string
		payload     map[string]interface{}
		timestamp   int64
		wantCode    MessageTypeCode
	}{
		{
			name:        "ping message",
			messageType: TypePing,
			payload:     map[string]interface{}{"type": "ping", "id": "test-123"},
			timestamp:   1234567890000,
			wantCode:    PING,
		},
		{
			name:        "operation message",
			messageType: TypeOperation,
			payload: map[string]interface{}{
				"type":       "operation",
				"id":         "op-456",
				"documentId": "doc-1",
				"operation": map[string]interface{}{
					"type":  "insert",
					"path":  []interface{}{"items"},
					"value": map[string]interface{}{"index": float64(0), "item": "x"},
				},
			},
			timestamp: 1234567890000,
			wantCode:  OPERATION,
		},
		{
			name:        "cursor move",
			messageType: TypeCursorMove,
			payload:     map[string]interface{}{"type": "cursor-move", "workspaceId": "ws-1", "x": 10.5, "y": 20.0},
			timestamp:   1234567890000,
			wantCode:    CURSOR_MOVE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EncodeMessage(tt.messageType, tt.payload, tt.timestamp)
			if err != nil {
				t.Fatalf("EncodeMessage() error = %v", err)
			}

			if len(result) < 13 {
				t.Fatalf("EncodeMessage() result length = %d, want >= 13", len(result))
			}

			typeCode := MessageTypeCode(result[0])
			if typeCode != tt.wantCode {
				t.Errorf("EncodeMessage() type code = %#x, want %#x", typeCode, tt.wantCode)
			}

			ts := int64(binary.BigEndian.Uint64(result[1:9]))
			if ts != tt.timestamp {
				t.Errorf("EncodeMessage() timestamp = %d, want %d", ts, tt.timestamp)
			}

			payloadLen := binary.BigEndian.Uint32(result[9:13])
			if int(payloadLen) != len(result)-13 {
				t.Errorf("EncodeMessage() payload length = %d, want %d", payloadLen, len(result)-13)
			}

			var decodedPayload map[string]interface{}
			if err := json.Unmarshal(result[13:], &decodedPayload); err != nil {
				t.Errorf("EncodeMessage() payload is not valid JSON: %v", err)
			}
		})
	}
}

func TestDecodeMessage_Binary(t *testing.T) {
	payload := map[string]interface{}{"id": "test-123", "workspaceId": "ws-1"}
	payloadBytes, _ := json.Marshal(payload)
	timestamp := int64(1234567890000)

	header := make([]byte, 13)
	header[0] = byte(JOIN_WORKSPACE)
	binary.BigEndian.PutUint64(header[1:9], uint64(timestamp))
	binary.BigEndian.PutUint32(header[9:13], uint32(len(payloadBytes)))

	message := append(header, payloadBytes...)

	result, err := DecodeMessage(message)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}

	if result.Type != TypeJoinWorkspace {
		t.Errorf("DecodeMessage() type = %q, want %q", result.Type, TypeJoinWorkspace)
	}
	if result.Timestamp != timestamp {
		t.Errorf("DecodeMessage() timestamp = %d, want %d", result.Timestamp, timestamp)
	}
	if result.ID != "test-123" {
		t.Errorf("DecodeMessage() ID = %q, want %q", result.ID, "test-123")
	}
}

func TestDecodeMessage_JSON(t *testing.T) {
	message := []byte(`{"type":"request-lock","id":"test-123","timestamp":1234567890000,"documentId":"doc-1","elementId":"items"}`)

	result, err := DecodeMessage(message)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}

	if result.Type != TypeRequestLock {
		t.Errorf("DecodeMessage() type = %q, want %q", result.Type, TypeRequestLock)
	}
	if result.ID != "test-123" {
		t.Errorf("DecodeMessage() ID = %q, want %q", result.ID, "test-123")
	}
	if result.Payload["documentId"] != "doc-1" {
		t.Errorf("DecodeMessage() documentId = %v, want %q", result.Payload["documentId"], "doc-1")
	}
}

func TestDecodeMessage_RejectsShortMessage(t *testing.T) {
	shortMessage := []byte{0x30, 0x00, 0x00}

	_, err := DecodeMessage(shortMessage)
	if err == nil {
		t.Error("DecodeMessage() expected error for short message, got nil")
	}
}

func TestDecodeMessage_RejectsTruncatedPayload(t *testing.T) {
	// Header says payload is 100 bytes but we only provide 5
	header := make([]byte, 13)
	header[0] = byte(PING)
	binary.BigEndian.PutUint64(header[1:9], 1000)
	binary.BigEndian.PutUint32(header[9:13], 100)

	message := append(header, []byte("short")...)

	_, err := DecodeMessage(message)
	if err == nil {
		t.Error("DecodeMessage() expected error for truncated payload, got nil")
	}
}

func TestRoundTrip_AllMessageTypes(t *testing.T) {
	for code, name := range typeCodeToName {
		code, name := code, name
		t.Run(name, func(t *testing.T) {
			payload := map[string]interface{}{"type": name, "id": "test"}
			timestamp := time.Now().UnixMilli()

			encoded, err := EncodeMessage(name, payload, timestamp)
			if err != nil {
				t.Fatalf("EncodeMessage(%q) error = %v", name, err)
			}

			if MessageTypeCode(encoded[0]) != code {
				t.Errorf("encoded type code = %#x, want %#x", encoded[0], code)
			}

			decoded, err := DecodeMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeMessage(%q) error = %v", name, err)
			}

			if decoded.Type != name {
				t.Errorf("round trip for %q: got type %q", name, decoded.Type)
			}
			if decoded.Timestamp != timestamp {
				t.Errorf("round trip timestamp = %d, want %d", decoded.Timestamp, timestamp)
			}
		})
	}
}

func TestEncodeMessage_PreservesPayloadData(t *testing.T) {
	payload := map[string]interface{}{
		"type": "operation-applied",
		"id":   "test",
		"document": map[string]interface{}{
			"content": map[string]interface{}{
				"items": []interface{}{"x"},
			},
			"version": float64(2),
		},
	}

	result, err := EncodeMessage(TypeOperationApplied, payload, 1000)
	if err != nil {
		t.Fatalf("EncodeMessage() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(result[13:], &decoded); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	doc, ok := decoded["document"].(map[string]interface{})
	if !ok {
		t.Fatal(`decoded["document"] is not a map`)
	}
	if doc["version"] != float64(2) {
		t.Errorf("document.version = %v, want 2", doc["version"])
	}
}
