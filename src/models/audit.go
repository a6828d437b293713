package models

import (
	"eswa/src/types"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID       uuid.UUID       `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	ActorID  uint            `gorm:"->;<-:create" json:"actor_id"`
	Action   string          `gorm:"->;<-:create" json:"action"`
	Entity   string          `gorm:"->;<-:create" json:"entity"`
	EntityID string          `gorm:"->;<-:create" json:"entity_id"`
	Metadata *types.Metadata `gorm:"->;<-:create;type:jsonb" json:"metadata,omitempty"`

	types.Timestamps
}
