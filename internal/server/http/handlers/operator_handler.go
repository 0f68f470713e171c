package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/vinocellar/vinocellar/internal/domain/errors"
	"github.com/vinocellar/vinocellar/internal/domain/state"
	"github.com/vinocellar/vinocellar/internal/server/http/dto"
)

// OperatorHandler exposes the operator console endpoints: inspecting any
// order and triggering manual actions.
type OperatorHandler struct {
	facade OperatorFacade
}

// NewOperatorHandler constructs OperatorHandler.
func NewOperatorHandler(facade OperatorFacade) *OperatorHandler {
	return &OperatorHandler{facade: facade}
}

// Get handles GET /api/operator/orders/:id.
func (h *OperatorHandler) Get(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := h.facade.OrderForOperator(c.Request.Context(), orderID)
	if err != nil {
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

	manual := state.ManualActions(order.State)
	actions := make([]string, 0, len(manual))
	for _, action := range manual {
		actions = append(actions, string(action))
	}
	c.JSON(http.StatusOK, dto.OperatorOrderResponse{
		Order:         toOrderResponse(*order),
		History:       toHistoryResponse(entries),
		ManualActions: actions,
	})
}

// RunAction handles POST /api/operator/orders/:id/actions.
//
// Only actions from the manual allow-list for the order's current state are
// accepted; the orchestrator itself validates against the wider registry, so
// this is the boundary that keeps automatic continuations out of operator
// hands.
func (h *OperatorHandler) RunAction(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req dto.RunActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	action, err := state.ParseAction(req.Action)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	order, err := h.facade.OrderForOperator(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}
	if !state.IsManualAction(order.State, action) {
		c.Status(http.StatusConflict)
		return
	}

	completed, err := h.facade.RunActionBounded(c.Request.Context(), orderID, &action)
	if err != nil {
		switch {
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

// RunDispatch handles POST /api/operator/triggers/dispatch. Due orders are
// handed to the worker pool, so success means accepted, not done.
func (h *OperatorHandler) RunDispatch(c *gin.Context) {
	if err := h.facade.RunScheduledOrders(c.Request.Context()); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusAccepted)
}

// RunSweep handles POST /api/operator/triggers/sweep.
func (h *OperatorHandler) RunSweep(c *gin.Context) {
	if err := h.facade.NotifyTimedOutOrders(c.Request.Context()); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
