package models

import (
	"eswa/src/types"

	"github.com/google/uuid"
)

type Payment struct {
	ID          uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Amount      float64             `json:"amount"`
	Currency    string              `json:"currency,omitempty"`
	Status      types.PaymentStatus `gorm:"default:'pending'" json:"status,omitempty"`
	ProviderRef *string             `gorm:"uniqueIndex" json:"-"`
	PayerID     uint                `json:"payer_id,omitempty"`
	Metadata    *types.Metadata     `gorm:"type:jsonb" json:"-"`

	Payer   User     `gorm:"foreignKey:PayerID" json:"-"`
	Tickets []Ticket `gorm:"many2many:payment_tickets;" json:"tickets,omitempty"`

	types.Timestamps
}
