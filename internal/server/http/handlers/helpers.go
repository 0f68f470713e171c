package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vinocellar/vinocellar/internal/domain/model"
	"github.com/vinocellar/vinocellar/internal/server/http/dto"
	"github.com/vinocellar/vinocellar/internal/server/http/middleware"
)

// Health handles GET /api/health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CurrentUserID extracts authenticated user identifier from context.
func CurrentUserID(c *gin.Context) int64 {
	val, ok := c.Get(middleware.UserIDContextKey)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	resp := dto.OrderResponse{
		ID:               order.ID,
		Number:           order.Number,
		State:            string(order.State),
		ScheduledFor:     order.ScheduledFor,
		StateChangedAt:   order.StateChangedAt,
		TimedOut:         order.TimedOut,
		ExceptionMessage: order.ExceptionMessage,
		CreatedAt:        order.CreatedAt,
	}
	if order.Action != nil {
		action := string(*order.Action)
		resp.Action = &action
	}
	return resp
}

func toHistoryResponse(entries []model.OrderHistory) []dto.HistoryEntryResponse {
	response := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, dto.HistoryEntryResponse{
			ID:               entry.ID,
			State:            string(entry.State),
			ParentID:         entry.ParentID,
			ExceptionMessage: entry.ExceptionMessage,
			CreatedAt:        entry.CreatedAt,
		})
	}
	return response
}
