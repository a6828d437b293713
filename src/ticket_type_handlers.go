package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"eswa/src/common"
	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ticketTypeHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/ticket-types", func(ctx *gin.Context) {
			var body types.CreateTicketTypeRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			ticketType := models.TicketTypeConfig{
				EventID:  body.EventID,
				Name:     body.Name,
				Price:    body.Price,
				Currency: body.Currency,
				Quantity: body.Quantity,
			}
			if body.SalesStart != nil {
				t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.SalesStart)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ticketType.SalesStart = &t
			}
			if body.SalesEnd != nil {
				t, err := time.Parse(config.TIME_PARSE_FORMAT, *body.SalesEnd)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ticketType.SalesEnd = &t
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var event models.Event
				if err := tx.
					Model(&models.Event{}).
					Where(&models.Event{ID: body.EventID, OrganizerID: userId}).
					Preload("Venue").
					First(&event).Error; err != nil {
					return err
				}
				var reserved int64
				if err := tx.
					Model(&models.TicketTypeConfig{}).
					Select("coalesce(sum(quantity), 0)").
					Where("event_id = ?", body.EventID).
					Scan(&reserved).Error; err != nil {
					return err
				}
				if event.Venue.Capacity > 0 && reserved+int64(body.Quantity) > int64(event.Venue.Capacity) {
					return common.E(common.KindConflict, "quantity exceeds venue capacity")
				}
				return tx.Create(&ticketType).Error
			}); err != nil {
				log.Printf("Error creating ticket type: %s\n", err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": ticketType})
		}).
		GET("/events/:id/ticket-types", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var ticketTypes []models.TicketTypeConfig
			db := db.GetDb()
			if err := db.
				Model(&models.TicketTypeConfig{}).
				Where("event_id = ?", params.ID).
				Find(&ticketTypes).Error; err != nil {
				log.Printf("Error retrieving ticket types: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticketTypes})
		})
	return g
}
