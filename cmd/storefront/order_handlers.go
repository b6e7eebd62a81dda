package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taller7/muebleria-api/internal/audit"
	"github.com/taller7/muebleria-api/internal/catalog"
	"github.com/taller7/muebleria-api/internal/httpx"
	"github.com/taller7/muebleria-api/internal/order"
)

// placementStatus maps a placement failure to its status class. Everything
// the client can fix is a 400; the rest is on us.
func placementStatus(err error) int {
	var ve *order.ValidationError
	var pnf *order.ProductNotFoundError
	var ise *catalog.InsufficientStockError
	if errors.As(err, &ve) || errors.As(err, &pnf) || errors.As(err, &ise) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func placeOrderHandler(eng *order.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		var req order.PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		o, err := eng.PlaceOrder(c.Request.Context(), id.UserID, req)
		if err != nil {
			c.JSON(placementStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func myOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		out, err := repo.ListByOwner(c.Request.Context(), id.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if out == nil {
			out = []order.Order{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid := c.Param("id")
		if _, err := uuid.Parse(oid); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		id, ok := httpx.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		o, err := repo.GetByID(c.Request.Context(), oid)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !order.CanView(o, id) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized to view this order"})
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func adminListOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := repo.ListAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if out == nil {
			out = []order.AdminOrder{}
		}
		c.JSON(http.StatusOK, out)
	}
}

func deliverOrderHandler(eng *order.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid := c.Param("id")
		if _, err := uuid.Parse(oid); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		o, err := eng.MarkDelivered(c.Request.Context(), oid)
		if err != nil {
			switch {
			case errors.Is(err, order.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			case errors.Is(err, order.ErrAlreadyDelivered):
				c.JSON(http.StatusBadRequest, gin.H{"error": "order already delivered"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func orderAuditHandler(trail *audit.Trail) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid := c.Param("id")
		if _, err := uuid.Parse(oid); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		entries, err := trail.Recent(c.Request.Context(), oid, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
