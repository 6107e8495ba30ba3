package handlers

import (
	"github.com/gin-gonic/gin"

	"txscope/internal/core/apperror"
	"txscope/internal/core/id"
	"txscope/internal/core/types"
	"txscope/internal/domain/order"
	"txscope/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles order endpoints.
type OrderHandler struct {
	*BaseHandler
	svc *order.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, svc *order.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, svc: svc}
}

// Place places an order. An order that could not be paid is saved with
// status "waiting" and reported as NOT_ENOUGH_MONEY.
// POST /v1/orders
func (h *OrderHandler) Place(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	amount := types.Zero()
	if req.Amount != "" {
		var err error
		if amount, err = types.NewMoneyFromString(req.Amount); err != nil {
			h.Error(c, apperror.NewValidation("invalid amount").
				WithDetail("field", "amount").
				WithDetail("value", req.Amount))
			return
		}
	}

	o, err := h.svc.Place(c.Request.Context(), req.Username, amount)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, o.ID.String())
}

// Get returns an order by id.
// GET /v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid order id").WithDetail("id", c.Param("id")))
		return
	}

	o, err := h.svc.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}
