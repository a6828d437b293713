package models

import (
	"eswa/src/types"
	"time"

	"github.com/google/uuid"
)

// Session is the durable record of an issued bearer token. Expiry is
// decided by the cache entry alone; this row exists for audit and history.
type Session struct {
	ID        uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    uint                `gorm:"->;<-:create" json:"user_id"`
	Token     string              `gorm:"->;<-:create;uniqueIndex" json:"-"`
	Platform  string              `gorm:"->;<-:create" json:"platform,omitempty"`
	Status    types.SessionStatus `gorm:"default:'active'" json:"status,omitempty"`
	ExpiresAt time.Time           `json:"expires_at"`

	User User `json:"-"`

	types.Timestamps
}
