package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/state"
	"github.com/vinocellar/vinocellar/internal/server/http/dto"
)

var (
	proposedStates = stateSet(state.ProposedStates())
	upcomingStates = stateSet(state.UpcomingStates())
	historyStates  = stateSet(state.HistoryStates())
)

func stateSet(states []state.State) map[state.State]struct{} {
	set := make(map[state.State]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

// OrderHandler manages the subscriber-facing order endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Create handles POST /api/user/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	userID := CurrentUserID(c)

	order, err := h.facade.CreateOrder(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusUnprocessableEntity)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(*order))
}

// List handles GET /api/user/orders.
func (h *OrderHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	orders, err := h.facade.Orders(c.Request.Context(), userID)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	var response dto.OrderListResponse
	response.Proposed = []dto.OrderResponse{}
	response.Upcoming = []dto.OrderResponse{}
	response.History = []dto.OrderResponse{}
	for _, o := range orders {
		item := toOrderResponse(o)
		switch {
		case inSet(proposedStates, o.State):
			response.Proposed = append(response.Proposed, item)
		case inSet(upcomingStates, o.State):
			response.Upcoming = append(response.Upcoming, item)
		case inSet(historyStates, o.State):
			response.History = append(response.History, item)
		default:
			response.Other = append(response.Other, item)
		}
	}
	c.JSON(http.StatusOK, response)
}

func inSet(set map[state.State]struct{}, s state.State) bool {
	_, ok := set[s]
	return ok
}

// Get handles GET /api/user/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	userID := CurrentUserID(c)
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.facade.Order(c.Request.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// History handles GET /api/user/orders/:id/history.
func (h *OrderHandler) History(c *gin.Context) {
	userID := CurrentUserID(c)
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	// Ownership check before exposing the ledger.
	if _, err := h.facade.Order(c.Request.Context(), userID, orderID); err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	entries, err := h.facade.OrderHistory(c.Request.Context(), orderID)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, toHistoryResponse(entries))
}

// Accept handles POST /api/user/orders/:id/accept.
func (h *OrderHandler) Accept(c *gin.Context) {
	userID := CurrentUserID(c)
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req dto.AcceptOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OfferID == 0 {
		c.Status(http.StatusBadRequest)
		return
	}

	completed, err := h.facade.AcceptOffer(c.Request.Context(), userID, orderID, req.OfferID)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		case errors.Is(err, domainErrors.ErrInvalidTransition):
			c.Status(http.StatusConflict)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}
	status := http.StatusOK
	if !completed {
		status = http.StatusAccepted
	}
	c.JSON(status, dto.RunActionResponse{Completed: completed})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.Status(http.StatusBadRequest)
		return 0, false
	}
	return orderID, true
}
