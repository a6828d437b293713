package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"eswa/src/common"
	"eswa/src/db"
	awslib "eswa/src/lib/aws"
	"eswa/src/models"
	"eswa/src/types"
	"eswa/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets/mine", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var tickets []models.Ticket
			db := db.GetDb()
			if err := db.
				Model(&models.Ticket{}).
				Where("owner_id = ?", userId).
				Preload("Event").
				Preload("TicketType").
				Order("created_at desc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving tickets: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var ticket models.Ticket
			db := db.GetDb()
			if err := db.
				Model(&models.Ticket{}).
				Where("id = ? AND owner_id = ?", params.ID, userId).
				Preload("Event").
				Preload("TicketType").
				First(&ticket).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		GET("/tickets/:id/code", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			var ticket models.Ticket
			db := db.GetDb()
			if err := db.
				Model(&models.Ticket{}).
				Where("id = ? AND owner_id = ?", params.ID, userId).
				First(&ticket).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			if ticket.Status != types.TICKET_VALID {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Ticket is not valid for entry"})
				return
			}
			filename := fmt.Sprintf("ticket-%s", ticket.TicketNumber)
			if ticket.CodeAssetKey != nil && os.Getenv("S3_ASSETS_BUCKET") != "" {
				if err := awslib.S3DownloadAsset(*ticket.CodeAssetKey); err != nil {
					log.Printf("Error fetching asset [%s]: %s\n", *ticket.CodeAssetKey, err.Error())
				}
			}
			if _, err := os.Stat(localAssetPath(filename)); err != nil {
				if _, err := utils.GenerateTicketAsset(&ticket); err != nil {
					log.Printf("Error generating asset for ticket [%s]: %s\n", ticket.TicketNumber, err.Error())
					common.Respond(ctx, common.Wrap(common.KindInternal, "", err))
					return
				}
			}
			ctx.FileAttachment(localAssetPath(filename), "eticket.jpeg")
		})
	return g
}

func attendeeTicketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/tickets/:id/purchase", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			ticket, err := utils.ClaimTicket(params.ID, userId)
			if err != nil {
				log.Printf("Error claiming ticket [%d]: %s\n", params.ID, err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Ticket not available"})
				return
			}
			utils.AppendAuditLog(userId, "purchase", "ticket", fmt.Sprint(ticket.ID), types.JSONB{"ticketNumber": ticket.TicketNumber})
			var buyer models.User
			if err := db.GetDb().
				Select("id", "device_token").
				Where("id = ?", userId).
				First(&buyer).Error; err != nil {
				log.Printf("Could not load buyer [%d]: %s\n", userId, err.Error())
			}
			email := ctx.GetString("email")
			go func() {
				common.NotifyTicketPurchased(ticket.EventID, ticket.ID, ticket.TicketNumber, userId, ticket.Event.OrganizerID, buyer.DeviceToken)
				common.SendPurchaseConfirmation(email, ticket.Event.Title, ticket.TicketNumber)
			}()
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		POST("/tickets/:id/transfer", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			var body types.TransferTicketRequestBody
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var ticket models.Ticket
			var replacement models.Ticket
			if err := db.Transaction(func(tx *gorm.DB) error {
				var newOwner models.User
				if err := tx.
					Model(&models.User{}).
					Where("id = ?", body.NewOwnerID).
					First(&newOwner).Error; err != nil {
					return err
				}
				if err := tx.
					Model(&models.Ticket{}).
					Where("id = ? AND owner_id = ?", params.ID, userId).
					First(&ticket).Error; err != nil {
					return err
				}
				res := tx.
					Model(&models.Ticket{}).
					Where("id = ? AND status = ? AND owner_id = ?", params.ID, types.TICKET_VALID, userId).
					Update("status", types.TICKET_TRANSFERRED)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return common.E(common.KindConflict, "Ticket cannot be transferred")
				}
				// the receiver gets a fresh number so the old code dies with
				// the transfer
				replacement = models.Ticket{
					TicketNumber:  uuid.NewString(),
					Status:        types.TICKET_VALID,
					Price:         ticket.Price,
					OriginalPrice: ticket.OriginalPrice,
					Currency:      ticket.Currency,
					EventID:       ticket.EventID,
					TicketTypeID:  ticket.TicketTypeID,
					OwnerID:       &body.NewOwnerID,
				}
				return tx.Create(&replacement).Error
			}); err != nil {
				log.Printf("Error transferring ticket [%d]: %s\n", params.ID, err.Error())
				common.Respond(ctx, err)
				return
			}
			// cache writes happen only once the transaction has committed
			utils.CacheTicketStatus(ticket.TicketNumber, types.TICKET_TRANSFERRED)
			utils.CacheTicketStatus(replacement.TicketNumber, types.TICKET_VALID)
			utils.AppendAuditLog(userId, "transfer", "ticket", fmt.Sprint(params.ID), types.JSONB{"newOwner": body.NewOwnerID, "replacement": replacement.ID})
			ctx.JSON(http.StatusOK, gin.H{"data": replacement})
		}).
		POST("/tickets/:id/refund", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var ticket models.Ticket
			if err := db.
				Model(&models.Ticket{}).
				Where("id = ? AND owner_id = ?", params.ID, userId).
				Preload("Event").
				First(&ticket).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			if ticket.Event.StartsAt != nil && time.Now().After(*ticket.Event.StartsAt) {
				common.Respond(ctx, common.E(common.KindConflict, "Event has already started"))
				return
			}
			res := db.
				Model(&models.Ticket{}).
				Where("id = ? AND status = ? AND owner_id = ?", params.ID, types.TICKET_VALID, userId).
				Update("status", types.TICKET_REFUNDED)
			if res.Error != nil {
				log.Printf("Error refunding ticket [%d]: %s\n", params.ID, res.Error.Error())
				common.Respond(ctx, res.Error)
				return
			}
			if res.RowsAffected == 0 {
				common.Respond(ctx, common.E(common.KindConflict, "Ticket cannot be refunded"))
				return
			}
			utils.CacheTicketStatus(ticket.TicketNumber, types.TICKET_REFUNDED)
			utils.AppendAuditLog(userId, "refund", "ticket", fmt.Sprint(ticket.ID), types.JSONB{"ticketNumber": ticket.TicketNumber})
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func organizerTicketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/tickets", func(ctx *gin.Context) {
			var body types.CreateTicketsRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var ticketType models.TicketTypeConfig
			if err := db.
				Model(&models.TicketTypeConfig{}).
				Where("id = ?", body.TicketTypeID).
				Preload("Event").
				First(&ticketType).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Ticket type not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			if ticketType.Event.OrganizerID != userId {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
				return
			}
			tickets, err := utils.CreateTicketBatch(ticketType.EventID, ticketType.ID, int(body.Quantity))
			if err != nil {
				log.Printf("Error minting tickets: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			utils.AppendAuditLog(userId, "mint", "ticket_type", fmt.Sprint(ticketType.ID), types.JSONB{"quantity": body.Quantity})
			ctx.JSON(http.StatusCreated, gin.H{"data": tickets})
		}).
		GET("/tickets", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			conn := db.GetDb()
			var tickets []models.Ticket
			if err := conn.
				Model(&models.Ticket{}).
				Where("event_id IN (?)", conn.Model(&models.Event{}).Select("id").Where("organizer_id = ?", userId)).
				Preload("Event").
				Preload("TicketType").
				Order("created_at desc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error listing inventory: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		})
	return g
}

func localAssetPath(filename string) string {
	wd, _ := os.Getwd()
	tempdir := os.Getenv("TEMP_DIR")
	return path.Join(wd, tempdir, fmt.Sprintf("%s.jpeg", filename))
}
