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
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			startsAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartsAt)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			endsAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.EndsAt)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			status := types.EVENT_DRAFT
			if body.Publish {
				status = types.EVENT_PUBLISHED
			}
			event := models.Event{
				Title:       body.Title,
				Slug:        slug.Make(body.Title),
				VenueID:     body.VenueID,
				OrganizerID: userId,
				StartsAt:    &startsAt,
				EndsAt:      &endsAt,
				Status:      status,
			}
			if body.Description != "" {
				event.About = &body.Description
			}
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var venue models.Venue
				if err := tx.
					Model(&models.Venue{}).
					Where(&models.Venue{ID: body.VenueID}).
					First(&venue).Error; err != nil {
					return err
				}
				var clash int64
				if err := tx.
					Model(&models.Event{}).
					Where("venue_id = ?", body.VenueID).
					Where("status = ?", types.EVENT_PUBLISHED).
					Where("starts_at < ? AND ends_at > ?", endsAt, startsAt).
					Count(&clash).Error; err != nil {
					return err
				}
				if clash > 0 {
					return common.E(common.KindConflict, "venue is already booked for that time")
				}
				return tx.Create(&event).Error
			}); err != nil {
				log.Printf("Error creating event: %s\n", err.Error())
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Venue not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": event})
		}).
		GET("/events/mine", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var events []models.Event
			db := db.GetDb()
			if err := db.
				Model(&models.Event{}).
				Where(&models.Event{OrganizerID: userId}).
				Preload("TicketTypes").
				Order("starts_at asc").
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving events: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id/tickets", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var event models.Event
			if err := db.
				Model(&models.Event{}).
				Where(&models.Event{ID: params.ID, OrganizerID: userId}).
				First(&event).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			var tickets []models.Ticket
			if err := db.
				Model(&models.Ticket{}).
				Where("event_id = ?", params.ID).
				Order("id asc").
				Find(&tickets).Error; err != nil {
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		PATCH("/events/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			var body struct {
				NewStatus *types.EventStatus `json:"new_status" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var event models.Event
				if err := tx.
					Model(&models.Event{}).
					Where(&models.Event{ID: params.ID, OrganizerID: userId}).
					First(&event).Error; err != nil {
					return err
				}
				return tx.
					Model(&models.Event{}).
					Where("id = ?", event.ID).
					Update("status", *body.NewStatus).
					Error
			}); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func publicEventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			db := db.GetDb()
			if err := db.
				Model(&models.Event{}).
				Where("status = ?", types.EVENT_PUBLISHED).
				Where("ends_at > ?", time.Now()).
				Preload("Venue").
				Preload("TicketTypes").
				Order("starts_at asc").
				Limit(50).
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving events: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var event models.Event
			db := db.GetDb()
			if err := db.
				Model(&models.Event{}).
				Where("id = ?", params.ID).
				Where("status = ?", types.EVENT_PUBLISHED).
				Preload("Venue").
				Preload("TicketTypes").
				First(&event).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		})
	return g
}
