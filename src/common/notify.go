package common

import (
	"context"
	"fmt"
	"log"

	"eswa/src/config"
	"eswa/src/lib"
	"eswa/src/lib/mailer"
	"eswa/src/models"
	"eswa/src/types"

	"firebase.google.com/go/v4/messaging"
)

// NotifyTicketPurchased fans a purchase out to the interested realtime
// channels. The buyer and the event organizer rooms both receive the
// ticketPurchased event; the broker keeps a durable copy.
func NotifyTicketPurchased(eventID, ticketID uint, ticketNumber string, ownerID, organizerID uint, deviceToken *string) {
	payload := types.TicketEventPayload{
		EventID:      eventID,
		TicketID:     ticketID,
		TicketNumber: ticketNumber,
	}
	lib.SocketEmitToRoom(fmt.Sprintf("user:%d", ownerID), "ticketPurchased", payload)
	lib.SocketEmitToRoom(fmt.Sprintf("user:%d", organizerID), "ticketPurchased", payload)
	lib.SocketEmitToRoom(fmt.Sprintf("event:%d", eventID), "ticketPurchased", payload)
	if err := models.TicketPurchasedProducer(types.JSONB{
		"eventId":      eventID,
		"ticketId":     ticketID,
		"ticketNumber": ticketNumber,
		"ownerId":      ownerID,
	}); err != nil {
		log.Printf("Could not produce message to broker: %s\n", err.Error())
	}
	if deviceToken != nil && config.FCMEnabled() {
		go sendPushNotification(*deviceToken, "Ticket confirmed", fmt.Sprintf("Your ticket %s is ready", ticketNumber))
	}
}

// NotifyTicketValidated announces a successful gate scan to the event
// room and the ticket owner.
func NotifyTicketValidated(eventID, ticketID uint, ticketNumber string, ownerID uint) {
	payload := types.TicketEventPayload{
		EventID:      eventID,
		TicketID:     ticketID,
		TicketNumber: ticketNumber,
	}
	lib.SocketEmitToRoom(fmt.Sprintf("event:%d", eventID), "ticketValidated", payload)
	lib.SocketEmitToRoom(fmt.Sprintf("user:%d", ownerID), "ticketValidated", payload)
	lib.SocketEmitToRoom(fmt.Sprintf("role:%s", types.ROLE_GATE_OPERATOR), "ticketValidated", payload)
	if err := models.TicketValidatedProducer(types.JSONB{
		"eventId":      eventID,
		"ticketId":     ticketID,
		"ticketNumber": ticketNumber,
	}); err != nil {
		log.Printf("Could not produce message to broker: %s\n", err.Error())
	}
}

// SendPurchaseConfirmation queues the confirmation email for a claimed
// ticket.
func SendPurchaseConfirmation(email, eventTitle, ticketNumber string) {
	if email == "" {
		return
	}
	if err := mailer.NewMailerMessage(&lib.SendMailInput{
		From:     config.SmtpFrom(),
		FromName: "Eswa Tickets",
		To:       []string{email},
		Subject:  fmt.Sprintf("Your ticket for %s", eventTitle),
		Body:     fmt.Sprintf("Your ticket %s is confirmed. Present the attached code at the gate.", ticketNumber),
	}); err != nil {
		log.Printf("Could not queue confirmation email: %s\n", err.Error())
	}
}

func sendPushNotification(token, title, body string) {
	client, err := lib.GetFirebaseMessaging()
	if err != nil {
		log.Printf("Could not initialize messaging client: %s\n", err.Error())
		return
	}
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	if _, err := client.Send(context.Background(), msg); err != nil {
		log.Printf("Could not send push notification: %s\n", err.Error())
	}
}
