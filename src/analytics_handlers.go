package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"eswa/src/common"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type statusCount struct {
	Status types.TicketStatus `json:"status"`
	Count  int64              `json:"count"`
}

func analyticsHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events/:id/analytics", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			conn := db.GetDb()
			var event models.Event
			if err := conn.
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
			// the computed payload sits in the cache for one minute
			rd := lib.GetRedisClient()
			cacheKey := fmt.Sprintf("analytics:event:%d", params.ID)
			if cached := rd.Get(context.Background(), cacheKey).Val(); cached != "" {
				ctx.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
				return
			}
			var counts []statusCount
			if err := conn.
				Model(&models.Ticket{}).
				Select("status, count(*) as count").
				Where("event_id = ?", params.ID).
				Group("status").
				Scan(&counts).Error; err != nil {
				log.Printf("Error aggregating ticket counts: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			// a transfer leaves an equal-priced VALID replacement behind, so
			// TRANSFERRED rows carry no revenue of their own
			var revenue float64
			if err := conn.
				Model(&models.Ticket{}).
				Select("coalesce(sum(price), 0)").
				Where("event_id = ?", params.ID).
				Where("status IN ?", []types.TicketStatus{types.TICKET_VALID, types.TICKET_SCANNED}).
				Scan(&revenue).Error; err != nil {
				log.Printf("Error aggregating revenue: %s\n", err.Error())
				common.Respond(ctx, err)
				return
			}
			total := int64(0)
			scanned := int64(0)
			for _, c := range counts {
				total += c.Count
				if c.Status == types.TICKET_SCANNED {
					scanned = c.Count
				}
			}
			resp := gin.H{
				"data": gin.H{
					"event":    event.ID,
					"tickets":  counts,
					"total":    total,
					"scanned":  scanned,
					"revenue":  revenue,
					"currency": firstCurrency(conn, params.ID),
				},
			}
			if raw, err := json.Marshal(resp); err == nil {
				if err := rd.SetEx(context.Background(), cacheKey, raw, time.Minute).Err(); err != nil {
					log.Printf("Could not cache analytics for event [%d]: %s\n", params.ID, err.Error())
				}
			}
			ctx.JSON(http.StatusOK, resp)
		})
	return g
}

func firstCurrency(conn *gorm.DB, eventID uint) string {
	var currency string
	conn.
		Model(&models.TicketTypeConfig{}).
		Select("currency").
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(&currency)
	return currency
}
