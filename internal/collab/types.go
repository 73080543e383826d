package collab

import (
	"time"
)

// Status is a collaborator's activity level inside a workspace.
type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusAway   Status = "away"
)

// ValidStatus reports whether s is one of the recognized activity levels.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusIdle, StatusAway:
		return true
	}
	return false
}

// Cursor is a collaborator's pointer position within the shared canvas.
type Cursor struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ElementID string  `json:"elementId,omitempty"`
}

// UserInfo carries the identity fields a client supplies when joining.
type UserInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Collaborator is one user's ephemeral presence inside a workspace.
type Collaborator struct {
	UserID       string      `json:"userId"`
	ConnectionID string      `json:"-"`
	DisplayName  string      `json:"displayName"`
	Avatar       string      `json:"avatar,omitempty"`
	Color        string      `json:"color"`
	Cursor       *Cursor     `json:"cursor,omitempty"`
	Selection    interface{} `json:"selection,omitempty"`
	Status       Status      `json:"status"`
	LastActivity time.Time   `json:"lastActivity"`
}

// LockType distinguishes shared from exclusive element locks.
type LockType string

const (
	LockRead  LockType = "read"
	LockWrite LockType = "write"
)

// DocumentLock is an exclusivity claim on one element path of a document.
type DocumentLock struct {
	UserID      string    `json:"userId"`
	ElementPath string    `json:"elementPath"`
	Type        LockType  `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
}

// OperationType enumerates the path-addressed mutations a client can submit.
type OperationType string

const (
	OpInsert OperationType = "insert"
	OpDelete OperationType = "delete"
	OpUpdate OperationType = "update"
	OpMove   OperationType = "move"
)

// Operation is an atomic mutation to a document's content tree. Immutable
// once applied; Version is the document version the operation produced.
type Operation struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Type      OperationType `json:"type"`
	Path      []string      `json:"path"`
	Value     interface{}   `json:"value,omitempty"`
	OldValue  interface{}   `json:"oldValue,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Version   int64         `json:"version"`
}

// OperationDraft is the client-supplied portion of an operation, before the
// server assigns identity, authorship and a version.
type OperationDraft struct {
	Type     OperationType `json:"type"`
	Path     []string      `json:"path"`
	Value    interface{}   `json:"value,omitempty"`
	OldValue interface{}   `json:"oldValue,omitempty"`
}

// Comment is an annotation pinned to a document element. Append-only and
// independent of document versioning.
type Comment struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"documentId"`
	ElementPath string      `json:"elementPath"`
	UserID      string      `json:"userId"`
	Text        string      `json:"text"`
	Position    interface{} `json:"position,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Outbound event names on the collaboration channel.
const (
	EventWorkspaceState    = "workspace-state"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventCursorUpdate      = "cursor-update"
	EventSelectionUpdate   = "selection-update"
	EventUserStatusChange  = "user-status-change"
	EventOperationApplied  = "operation-applied"
	EventOperationRejected = "operation-rejected"
	EventOperationFailed   = "operation-failed"
	EventLockGranted       = "lock-granted"
	EventLockDenied        = "lock-denied"
	EventElementLocked     = "element-locked"
	EventElementUnlocked   = "element-unlocked"
	EventCommentAdded      = "comment-added"
)
