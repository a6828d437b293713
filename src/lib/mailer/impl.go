package mailer

import (
	"eswa/src/lib"
	"eswa/src/types"
	"fmt"
	"os"
)

// NewMailerMessage hands the message to the email queue; outside local
// development the queue consumer is the only SMTP writer.
func NewMailerMessage(input *lib.SendMailInput) error {
	apiEnv := os.Getenv("API_ENV")
	emailBody := types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"bcc":       input.Bcc,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
	if apiEnv == "local" {
		return lib.SendMail(input)
	}
	if err := lib.KafkaProduceMessage("emails", "emails", emailBody); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}
