package models

import (
	"eswa/src/types"
	"time"
)

type User struct {
	ID           uint               `gorm:"primarykey" json:"id"`
	Name         string             `json:"name,omitempty"`
	Email        *string            `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone        *string            `gorm:"uniqueIndex" json:"phone,omitempty"`
	PasswordHash string             `json:"-"`
	Role         types.Role         `gorm:"default:'ATTENDEE'" json:"role,omitempty"`
	SignupMethod types.SignupMethod `gorm:"default:'password'" json:"signup_method,omitempty"`
	LastActive   *time.Time         `json:"last_active,omitempty"`
	DeviceToken  *string            `json:"-"`
	Metadata     *types.Metadata    `gorm:"type:jsonb" json:"-"`

	Tickets  []Ticket  `gorm:"foreignKey:OwnerID" json:"tickets,omitempty"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	types.Timestamps
}
