package domain

import "time"

// ChatRole identifies the author of a chat turn.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one persisted turn of a user's conversation with the
// assistant.
type ChatMessage struct {
	ID        int64
	UserID    string
	Role      ChatRole
	Content   string
	CreatedAt time.Time
}
