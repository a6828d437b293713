package main

import (
	"errors"
	"log"
	"net/http"

	"eswa/src/common"
	"eswa/src/db"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func venueHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/venues", func(ctx *gin.Context) {
			var body types.CreateVenueRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				log.Printf("Error in validating request: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			venue := models.Venue{
				Name:     body.Name,
				Address:  body.Address,
				City:     body.City,
				Capacity: body.Capacity,
				OwnerID:  userId,
			}
			db := db.GetDb()
			if err := db.Create(&venue).Error; err != nil {
				log.Printf("Error creating venue: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": venue})
		}).
		GET("/venues", func(ctx *gin.Context) {
			var venues []models.Venue
			db := db.GetDb()
			if err := db.
				Model(&models.Venue{}).
				Order("name asc").
				Find(&venues).Error; err != nil {
				log.Printf("Error retrieving venues: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": venues})
		}).
		GET("/venues/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var venue models.Venue
			db := db.GetDb()
			if err := db.
				Model(&models.Venue{}).
				Where("id = ?", params.ID).
				Preload("Events", "status = ?", types.EVENT_PUBLISHED).
				First(&venue).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "Venue not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": venue})
		})
	return g
}
