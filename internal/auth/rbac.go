package auth

// CanReadDocument checks if the principal may load or join a document.
func CanReadDocument(payload *TokenPayload, documentID string) bool {
	if payload == nil {
		return false
	}
	if payload.Permissions.IsAdmin {
		return true
	}
	for _, id := range payload.Permissions.CanRead {
		if id == "*" || id == documentID {
			return true
		}
	}
	return false
}

// CanWriteDocument checks if the principal may mutate a document.
func CanWriteDocument(payload *TokenPayload, documentID string) bool {
	if payload == nil {
		return false
	}
	if payload.Permissions.IsAdmin {
		return true
	}
	for _, id := range payload.Permissions.CanWrite {
		if id == "*" || id == documentID {
			return true
		}
	}
	return false
}

// GuestPermissions are granted to unauthenticated connections: full
// collaboration access, no admin rights.
func GuestPermissions() DocumentPermissions {
	return DocumentPermissions{
		CanRead:  []string{"*"},
		CanWrite: []string{"*"},
		IsAdmin:  false,
	}
}

// ScopedPermissions grants read/write on explicit document id lists.
func ScopedPermissions(canRead, canWrite []string) DocumentPermissions {
	return DocumentPermissions{
		CanRead:  canRead,
		CanWrite: canWrite,
	}
}
