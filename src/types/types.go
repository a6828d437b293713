package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

func (a Metadata) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *Metadata) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Role string

const (
	ROLE_ATTENDEE      Role = "ATTENDEE"
	ROLE_ORGANIZER     Role = "ORGANIZER"
	ROLE_VENDOR        Role = "VENDOR"
	ROLE_GATE_OPERATOR Role = "GATE_OPERATOR"
	ROLE_VENUE_MANAGER Role = "VENUE_MANAGER"
	ROLE_SUPER_ADMIN   Role = "SUPER_ADMIN"
)

type TicketStatus string

const (
	TICKET_PENDING     TicketStatus = "PENDING"
	TICKET_VALID       TicketStatus = "VALID"
	TICKET_SCANNED     TicketStatus = "SCANNED"
	TICKET_REFUNDED    TicketStatus = "REFUNDED"
	TICKET_TRANSFERRED TicketStatus = "TRANSFERRED"
	TICKET_CANCELLED   TicketStatus = "CANCELLED"
	TICKET_EXPIRED     TicketStatus = "EXPIRED"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_CANCELED  EventStatus = "canceled"
)

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
)

type SessionStatus string

const (
	SESSION_ACTIVE  SessionStatus = "active"
	SESSION_REVOKED SessionStatus = "revoked"
	SESSION_EXPIRED SessionStatus = "expired"
)

type SignupMethod string

const (
	SIGNUP_PASSWORD SignupMethod = "password"
	SIGNUP_GOOGLE   SignupMethod = "google"
)

type RegisterRequestBody struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email,omitempty" binding:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"password" binding:"required,min=8"`
	LandingPage string `json:"landing_page,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

type LoginRequestBody struct {
	Email       string `json:"email,omitempty" binding:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"password" binding:"required"`
	Platform    string `json:"platform,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
}

type CreateEventRequestBody struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description,omitempty"`
	VenueID     uint   `json:"venue" binding:"required"`
	StartsAt    string `json:"starts_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndsAt      string `json:"ends_at" binding:"required,bookabledate,gtdate=StartsAt" time_format:"2006-01-02 15:04:05 -07:00"`
	Publish     bool   `json:"publish,omitempty"`
}

type CreateVenueRequestBody struct {
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city,omitempty"`
	Capacity uint   `json:"capacity" binding:"required"`
}

type CreateTicketTypeRequestBody struct {
	EventID    uint    `json:"event" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	Price      float64 `json:"price" binding:"required"`
	Currency   string  `json:"currency" binding:"required"`
	Quantity   uint    `json:"quantity" binding:"required"`
	SalesStart *string `json:"sales_start,omitempty" binding:"omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	SalesEnd   *string `json:"sales_end,omitempty" binding:"omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
}

type CreateTicketsRequestBody struct {
	TicketTypeID uint `json:"ticket_type" binding:"required"`
	Quantity     uint `json:"quantity" binding:"required,min=1,max=500"`
}

type ValidateTicketRequestBody struct {
	TicketNumber string `json:"ticket_number" binding:"required"`
}

type TransferTicketRequestBody struct {
	NewOwnerID uint `json:"new_owner" binding:"required"`
}

type CreatePaymentRequestBody struct {
	TicketIDs []uint `json:"tickets" binding:"required,min=1"`
}

type UpdateUserRequestBody struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

// TicketEventPayload is the body of both broadcast events and the Kafka
// lifecycle messages: ticketPurchased and ticketValidated carry the same
// three identifiers.
type TicketEventPayload struct {
	EventID      uint   `json:"eventId"`
	TicketID     uint   `json:"ticketId"`
	TicketNumber string `json:"ticketNumber"`
}
