package auth

import (
	"testing"
	"time"
)

const testSecret = "this-is-a-test-secret-that-is-at-least-32-chars"

func adminPerms() DocumentPermissions {
	return DocumentPermissions{CanRead: []string{"*"}, CanWrite: []string{"*"}, IsAdmin: true}
}

func TestVerifyToken_ValidToken(t *testing.T) {
	token, err := GenerateToken("user-1", "Alice", adminPerms(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	payload, err := VerifyToken(token, testSecret)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if payload.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", payload.UserID, "user-1")
	}
	if payload.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want %q", payload.DisplayName, "Alice")
	}
	if !payload.Permissions.IsAdmin {
		t.Error("expected IsAdmin to be true")
	}
}

func TestVerifyToken_InvalidSignature(t *testing.T) {
	token, err := GenerateToken("user-1", "Alice", adminPerms(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	wrongSecret := "a-different-secret-that-is-also-at-least-32-chars"
	if _, err = VerifyToken(token, wrongSecret); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyToken_ExpiredToken(t *testing.T) {
	token, err := GenerateToken("user-1", "", adminPerms(), testSecret, -time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err = VerifyToken(token, testSecret); err != ErrExpiredToken {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyToken_ShortSecret(t *testing.T) {
	if _, err := VerifyToken("some.token.here", "short"); err != ErrShortSecret {
		t.Errorf("expected ErrShortSecret, got %v", err)
	}
}

func TestVerifyToken_MalformedToken(t *testing.T) {
	if _, err := VerifyToken("not-a-jwt", testSecret); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateToken_ShortSecret(t *testing.T) {
	if _, err := GenerateToken("user-1", "", adminPerms(), "short", time.Hour); err != ErrShortSecret {
		t.Errorf("expected ErrShortSecret, got %v", err)
	}
}

func TestCanReadDocument(t *testing.T) {
	tests := []struct {
		name    string
		payload *TokenPayload
		docID   string
		want    bool
	}{
		{"admin reads anything", &TokenPayload{Permissions: adminPerms()}, "any-doc", true},
		{"listed doc", &TokenPayload{Permissions: ScopedPermissions([]string{"doc-1", "doc-2"}, nil)}, "doc-1", true},
		{"unlisted doc", &TokenPayload{Permissions: ScopedPermissions([]string{"doc-1"}, nil)}, "doc-3", false},
		{"wildcard", &TokenPayload{Permissions: ScopedPermissions([]string{"*"}, nil)}, "any-doc", true},
		{"nil payload", nil, "doc-1", false},
	}

	for _, tt := range tests {
		if got := CanReadDocument(tt.payload, tt.docID); got != tt.want {
			t.Errorf("%s: CanReadDocument = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanWriteDocument(t *testing.T) {
	tests := []struct {
		name    string
		payload *TokenPayload
		docID   string
		want    bool
	}{
		{"admin writes anything", &TokenPayload{Permissions: adminPerms()}, "any-doc", true},
		{"listed doc", &TokenPayload{Permissions: ScopedPermissions(nil, []string{"doc-1"})}, "doc-1", true},
		{"unlisted doc", &TokenPayload{Permissions: ScopedPermissions(nil, []string{"doc-1"})}, "doc-2", false},
		{"read-only token", &TokenPayload{Permissions: ScopedPermissions([]string{"doc-1"}, nil)}, "doc-1", false},
		{"nil payload", nil, "doc-1", false},
	}

	for _, tt := range tests {
		if got := CanWriteDocument(tt.payload, tt.docID); got != tt.want {
			t.Errorf("%s: CanWriteDocument = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGuestPermissions(t *testing.T) {
	perms := GuestPermissions()
	if perms.IsAdmin {
		t.Error("guest permissions must not be admin")
	}
	payload := &TokenPayload{Permissions: perms}
	if !CanReadDocument(payload, "doc-1") || !CanWriteDocument(payload, "doc-1") {
		t.Error("guest should have wildcard read/write")
	}
}
