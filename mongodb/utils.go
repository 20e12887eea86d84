package mongodb

import "github.com/google/uuid"

// NewDocumentID generates a new document id. UUIDs are used instead of
// ObjectIDs because profile ids double as JWT subjects and identity ids.
func NewDocumentID() string {
	return uuid.NewString()
}
