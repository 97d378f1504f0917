package storage

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `bson:"role"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

type Session struct {
	UserId    int64     `bson:"user_id"`
	Topic     string    `bson:"topic"`
	Turns     []Turn    `bson:"turns"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SessionStore keeps one conversation session per user. Implementations must
// be safe for concurrent use, and a slow operation for one user must not
// block operations for another. GetSession returns a copy owned by the
// caller, or nil if the user has no session yet.
type SessionStore interface {
	GetSession(userId int64) (*Session, error)
	AppendTurn(userId int64, role Role, text string) error
	SetTopic(userId int64, topic string) error
	ClearSession(userId int64) error
	Close() error
}
