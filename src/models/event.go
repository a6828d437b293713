package models

import (
	"eswa/src/lib"
	"eswa/src/types"
	"log"
	"time"
)

type Event struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	Title       string            `json:"title,omitempty"`
	Slug        string            `gorm:"uniqueIndex" json:"slug,omitempty"`
	About       *string           `json:"about,omitempty"`
	VenueID     uint              `json:"venue_id,omitempty"`
	OrganizerID uint              `json:"organizer,omitempty"`
	StartsAt    *time.Time        `json:"starts_at,omitempty"`
	EndsAt      *time.Time        `json:"ends_at,omitempty"`
	Status      types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`

	Organizer   User               `gorm:"foreignKey:OrganizerID" json:"-"`
	Venue       Venue              `json:"venue,omitempty"`
	Tickets     []Ticket           `json:"tickets,omitempty"`
	TicketTypes []TicketTypeConfig `gorm:"foreignKey:EventID" json:"ticket_types,omitempty"`

	types.Timestamps
}

// TicketPurchasedProducer and TicketValidatedProducer publish ticket
// lifecycle messages to the analytics topics.
func TicketPurchasedProducer(payload types.JSONB) error {
	err := lib.KafkaProduceMessage("tickets_purchased_producer", "tickets-purchased", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}

func TicketValidatedProducer(payload types.JSONB) error {
	err := lib.KafkaProduceMessage("tickets_validated_producer", "tickets-validated", payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
