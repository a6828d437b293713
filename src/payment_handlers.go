package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"

	"eswa/src/common"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"
	"eswa/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments", func(ctx *gin.Context) {
			var body types.CreatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			conn := db.GetDb()
			var payment models.Payment
			var clientSecret string
			if err := conn.Transaction(func(tx *gorm.DB) error {
				var tickets []models.Ticket
				if err := tx.
					Model(&models.Ticket{}).
					Where("id IN ?", body.TicketIDs).
					Where("status = ? AND owner_id IS NULL", types.TICKET_PENDING).
					Find(&tickets).Error; err != nil {
					return err
				}
				if len(tickets) != len(body.TicketIDs) {
					return common.E(common.KindConflict, "one or more tickets are no longer available")
				}
				amount := 0.0
				currency := tickets[0].Currency
				for _, t := range tickets {
					if t.Currency != currency {
						return common.E(common.KindConflict, "tickets must share a currency")
					}
					amount += t.Price
				}
				payment = models.Payment{
					Amount:   amount,
					Currency: currency,
					Status:   types.PAYMENT_PENDING,
					PayerID:  userId,
					Tickets:  tickets,
				}
				if err := tx.Create(&payment).Error; err != nil {
					return err
				}
				pi, err := lib.CreatePaymentIntent(int64(math.Round(amount*100)), currency, map[string]string{
					"payment_id": payment.ID.String(),
					"user_id":    fmt.Sprint(userId),
				})
				if err != nil {
					return err
				}
				clientSecret = pi.ClientSecret
				return tx.
					Model(&models.Payment{}).
					Where("id = ?", payment.ID).
					Update("provider_ref", pi.ID).
					Error
			}); err != nil {
				log.Printf("Error creating payment: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			utils.AppendAuditLog(userId, "payment_open", "payment", payment.ID.String(), types.JSONB{"tickets": body.TicketIDs})
			ctx.JSON(http.StatusCreated, gin.H{
				"data": gin.H{
					"payment":       payment.ID,
					"client_secret": clientSecret,
				},
			})
		}).
		GET("/payments", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var payments []models.Payment
			conn := db.GetDb()
			if err := conn.
				Model(&models.Payment{}).
				Where("payer_id = ?", userId).
				Order("created_at desc").
				Find(&payments).Error; err != nil {
				log.Printf("Error retrieving payments: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payments})
		}).
		GET("/payments/:id", func(ctx *gin.Context) {
			id := ctx.Param("id")
			userId := ctx.GetUint("id")
			var payment models.Payment
			conn := db.GetDb()
			if err := conn.
				Model(&models.Payment{}).
				Where("id = ? AND payer_id = ?", id, userId).
				Preload("Tickets").
				First(&payment).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": payment})
		})
	return g
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			if err := settlePayment(pi.Metadata["payment_id"]); err != nil {
				log.Printf("Error settling payment: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
		case "payment_intent.payment_failed", "payment_intent.canceled":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			conn := db.GetDb()
			if err := conn.
				Model(&models.Payment{}).
				Where("id = ? AND status = ?", pi.Metadata["payment_id"], types.PAYMENT_PENDING).
				Update("status", types.PAYMENT_FAILED).
				Error; err != nil {
				log.Printf("Error marking payment failed: %s\n", err.Error())
			}
		default:
			log.Printf("Unhandled event type: %s\n", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}

// settlePayment flips a pending payment to completed and claims its
// tickets for the payer. The payment status update is conditional so a
// replayed webhook settles nothing twice.
func settlePayment(paymentID string) error {
	conn := db.GetDb()
	var payment models.Payment
	if err := conn.
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Preload("Tickets").
		First(&payment).Error; err != nil {
		return err
	}
	res := conn.
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, types.PAYMENT_PENDING).
		Update("status", types.PAYMENT_COMPLETED)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("Payment [%s] already settled\n", paymentID)
		return nil
	}
	var payer models.User
	if err := conn.Model(&models.User{}).Where("id = ?", payment.PayerID).First(&payer).Error; err != nil {
		log.Printf("Could not load payer [%d]: %s\n", payment.PayerID, err.Error())
	}
	for _, t := range payment.Tickets {
		ticket, err := utils.ClaimTicket(t.ID, payment.PayerID)
		if err != nil {
			log.Printf("Error claiming ticket [%d] for payment [%s]: %s\n", t.ID, paymentID, err.Error())
			continue
		}
		go common.NotifyTicketPurchased(ticket.EventID, ticket.ID, ticket.TicketNumber, payment.PayerID, ticket.Event.OrganizerID, payer.DeviceToken)
		if payer.Email != nil {
			go common.SendPurchaseConfirmation(*payer.Email, ticket.Event.Title, ticket.TicketNumber)
		}
	}
	utils.AppendAuditLog(payment.PayerID, "payment_settled", "payment", payment.ID.String(), nil)
	return nil
}
