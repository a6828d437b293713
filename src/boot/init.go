package boot

import (
	"encoding/json"
	"log"
	"time"

	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Venue{},
		&models.Event{},
		&models.TicketTypeConfig{},
		&models.Ticket{},
		&models.Payment{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler installs the recurring maintenance jobs: unsold tickets
// for finished events get expired, finished events get completed and
// stale session rows are marked off.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if _, err := lib.CreateCronJob(ExpireStaleTickets, 10*time.Minute); err != nil {
		log.Printf("Error scheduling ticket expiry job: %s\n", err.Error())
	}
	if _, err := lib.CreateCronJob(CompleteFinishedEvents, 30*time.Minute); err != nil {
		log.Printf("Error scheduling event completion job: %s\n", err.Error())
	}
	if _, err := lib.CreateCronJob(ExpireStaleSessions, time.Hour); err != nil {
		log.Printf("Error scheduling session expiry job: %s\n", err.Error())
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
	}
}

// ExpireStaleTickets closes out inventory nobody bought: a ticket still
// PENDING after its event has ended can never be claimed again.
func ExpireStaleTickets() {
	conn := db.GetDb()
	res := conn.
		Model(&models.Ticket{}).
		Where("status = ?", types.TICKET_PENDING).
		Where("event_id IN (?)", conn.
			Model(&models.Event{}).
			Select("id").
			Where("ends_at < ?", time.Now()),
		).
		Update("status", types.TICKET_EXPIRED)
	if res.Error != nil {
		log.Printf("Error expiring stale tickets: %s\n", res.Error.Error())
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Expired %d stale tickets\n", res.RowsAffected)
	}
}

func CompleteFinishedEvents() {
	conn := db.GetDb()
	res := conn.
		Model(&models.Event{}).
		Where("status = ?", types.EVENT_PUBLISHED).
		Where("ends_at < ?", time.Now()).
		Update("status", types.EVENT_COMPLETED)
	if res.Error != nil {
		log.Printf("Error completing events: %s\n", res.Error.Error())
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Completed %d events\n", res.RowsAffected)
	}
}

// ExpireStaleSessions reconciles the durable session rows with reality.
// The cache already stopped honoring these tokens; this keeps the
// history table honest.
func ExpireStaleSessions() {
	conn := db.GetDb()
	res := conn.
		Model(&models.Session{}).
		Where("status = ?", types.SESSION_ACTIVE).
		Where("expires_at < ?", time.Now()).
		Update("status", types.SESSION_EXPIRED)
	if res.Error != nil {
		log.Printf("Error expiring stale sessions: %s\n", res.Error.Error())
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Expired %d stale sessions\n", res.RowsAffected)
	}
}

func InitBroker() {
	go func() {
		if _, err := lib.KafkaCreateTopics("tickets-purchased", "tickets-validated", "emails"); err != nil {
			log.Printf("Error creating topics: %s\n", err.Error())
		}
	}()
	go EmailsConsumer()
}

// EmailsConsumer drains the email queue. Messages are produced by
// mailer.NewMailerMessage everywhere outside local development.
func EmailsConsumer() {
	lib.KafkaConsumer("emails", []string{"emails"}, func(msg *kafka.Message) {
		raw := string(msg.Value)
		input := lib.SendMailInput{
			From:     gjson.Get(raw, "from").String(),
			FromName: gjson.Get(raw, "from-name").String(),
			Subject:  gjson.Get(raw, "subject").String(),
			Body:     gjson.Get(raw, "body").String(),
			Html:     gjson.Get(raw, "html").Bool(),
		}
		var to []string
		if err := json.Unmarshal([]byte(gjson.Get(raw, "to").Raw), &to); err != nil {
			log.Printf("Error reading recipients: %s\n", err.Error())
			return
		}
		input.To = to
		if err := lib.SendMail(&input); err != nil {
			log.Printf("Error sending email: %s\n", err.Error())
		}
	})
}
