package models

import "eswa/src/types"

type Venue struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Capacity uint   `json:"capacity,omitempty"`
	OwnerID  uint   `json:"owner_id,omitempty"`

	Owner  User    `gorm:"foreignKey:OwnerID" json:"-"`
	Events []Event `json:"events,omitempty"`

	types.Timestamps
}
