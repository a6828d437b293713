package models

import (
	"eswa/src/types"
	"time"
)

type TicketTypeConfig struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	EventID    uint       `json:"event_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Price      float64    `json:"price"`
	Currency   string     `json:"currency,omitempty"`
	Quantity   uint       `json:"quantity,omitempty"`
	SalesStart *time.Time `json:"sales_start,omitempty"`
	SalesEnd   *time.Time `json:"sales_end,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
