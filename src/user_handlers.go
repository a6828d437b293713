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

func userHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/users/me", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var user models.User
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where("id = ?", userId).
				First(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
					return
				}
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": user})
		}).
		PATCH("/users/me", func(ctx *gin.Context) {
			var body types.UpdateUserRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			updates := map[string]any{}
			if body.Name != nil {
				updates["name"] = *body.Name
			}
			if body.Phone != nil {
				updates["phone"] = *body.Phone
			}
			if len(updates) == 0 {
				ctx.Status(http.StatusNoContent)
				return
			}
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where("id = ?", userId).
				Updates(updates).Error; err != nil {
				log.Printf("Error updating user [%d]: %s\n", userId, err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/users/me/sessions", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var sessions []models.Session
			db := db.GetDb()
			if err := db.
				Model(&models.Session{}).
				Where(&models.Session{UserID: userId}).
				Order("created_at desc").
				Limit(20).
				Find(&sessions).Error; err != nil {
				log.Printf("Error retrieving sessions: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": sessions})
		})
	return g
}
