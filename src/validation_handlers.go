package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"eswa/src/common"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"
	"eswa/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// notifyTicketValidated fans a successful redemption out to the
// realtime and broker channels. Swappable so tests can observe the
// call without real transports.
var notifyTicketValidated = common.NotifyTicketValidated

// validationHandlers carries the gate scanning flow. Redemption is a
// single conditional update on the ticket row: whichever scan flips the
// status from VALID to SCANNED is the winner, every other scan of the
// same code loses regardless of timing. The cache is consulted first so
// a code that is already known bad never reaches the database.
func validationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/tickets/validate", func(ctx *gin.Context) {
			var body types.ValidateTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			operatorId := ctx.GetUint("id")

			rd := lib.GetRedisClient()
			cached, err := rd.Get(context.Background(), fmt.Sprintf("ticket:%s", body.TicketNumber)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("Could not read ticket cache: %s\n", err.Error())
			}
			if cached != "" && cached != string(types.TICKET_VALID) {
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error":  "Ticket invalid or already scanned",
					"status": cached,
				})
				return
			}

			conn := db.GetDb()
			res := conn.
				Model(&models.Ticket{}).
				Where("ticket_number = ? AND status = ?", body.TicketNumber, types.TICKET_VALID).
				Update("status", types.TICKET_SCANNED)
			if res.Error != nil {
				log.Printf("Error redeeming ticket [%s]: %s\n", body.TicketNumber, res.Error.Error())
				common.Respond(ctx, res.Error)
				return
			}
			if res.RowsAffected == 0 {
				var ticket models.Ticket
				if err := conn.
					Model(&models.Ticket{}).
					Where("ticket_number = ?", body.TicketNumber).
					First(&ticket).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
						return
					}
					common.Respond(ctx, err)
					return
				}
				// refresh the cache so the next scan of this code stops at
				// the fast path
				utils.CacheTicketStatus(ticket.TicketNumber, ticket.Status)
				ctx.JSON(http.StatusBadRequest, gin.H{
					"error":  "Ticket invalid or already scanned",
					"status": ticket.Status,
				})
				return
			}

			var ticket models.Ticket
			if err := conn.
				Model(&models.Ticket{}).
				Where("ticket_number = ?", body.TicketNumber).
				Preload("Event").
				Preload("Owner").
				First(&ticket).Error; err != nil {
				log.Printf("Error retrieving redeemed ticket [%s]: %s\n", body.TicketNumber, err.Error())
				common.Respond(ctx, err)
				return
			}
			utils.CacheTicketStatus(ticket.TicketNumber, types.TICKET_SCANNED)
			ownerId := uint(0)
			if ticket.OwnerID != nil {
				ownerId = *ticket.OwnerID
			}
			utils.AppendAuditLog(operatorId, "redeem", "ticket", fmt.Sprint(ticket.ID), types.JSONB{
				"ticketNumber": ticket.TicketNumber,
				"eventId":      ticket.EventID,
			})
			go notifyTicketValidated(ticket.EventID, ticket.ID, ticket.TicketNumber, ownerId)
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		GET("/tickets/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var ticket models.Ticket
			conn := db.GetDb()
			if err := conn.
				Model(&models.Ticket{}).
				Select("id", "ticket_number", "status", "event_id").
				Where("id = ?", params.ID).
				First(&ticket).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"id": ticket.ID, "status": ticket.Status}})
		})
	return g
}
