package models

import (
	"eswa/src/types"
)

// Ticket is one unit of inventory. TicketNumber is the externally scanned
// value: a generated UUID, rendered into the QR code handed to the buyer.
// Status is only ever written through the conditional transitions in the
// handlers; nothing else touches the column.
type Ticket struct {
	ID            uint               `gorm:"primarykey" json:"id"`
	TicketNumber  string             `gorm:"uniqueIndex" json:"ticket_number,omitempty"`
	Status        types.TicketStatus `gorm:"default:'PENDING'" json:"status,omitempty"`
	Price         float64            `json:"price"`
	OriginalPrice float64            `json:"original_price"`
	Currency      string             `json:"currency,omitempty"`
	EventID       uint               `json:"event_id,omitempty"`
	TicketTypeID  uint               `json:"ticket_type_id,omitempty"`
	OwnerID       *uint              `json:"owner_id,omitempty"`
	CodeAssetKey  *string            `json:"-"`
	Metadata      *types.Metadata    `gorm:"type:jsonb" json:"metadata,omitempty"`

	Event      Event            `json:"event,omitempty"`
	TicketType TicketTypeConfig `gorm:"foreignKey:TicketTypeID" json:"ticket_type,omitempty"`
	Owner      *User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	types.Timestamps
}
