package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
	"github.com/mprlab/storefront/internal/commerce"
)

// OrderHandlers serves order history for shoppers and fulfilment updates for
// admins.
type OrderHandlers struct {
	orders commerce.OrderStore
	logger *zap.Logger
}

// NewOrderHandlers wires the order endpoints.
func NewOrderHandlers(orders commerce.OrderStore, logger *zap.Logger) *OrderHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandlers{orders: orders, logger: logger}
}

// Mount registers shopper endpoints on router and admin endpoints on admin.
func (handlers *OrderHandlers) Mount(router gin.IRouter, admin gin.IRouter) {
	router.GET("/orders", handlers.handleListOwn)
	router.GET("/orders/:id", handlers.handleGet)
	admin.GET("/orders", handlers.handleListAll)
	admin.PATCH("/orders/:id/status", handlers.handleUpdateStatus)
}

func (handlers *OrderHandlers) handleListOwn(contextGin *gin.Context) {
	user := currentUser(contextGin)
	orders, listErr := handlers.orders.ListByUser(contextGin, user.ID)
	if listErr != nil {
		handlers.logger.Error("order list failed",
			zap.String("code", "httpapi.orders.list_failed"),
			zap.Error(listErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not load orders")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"orders": orders})
}

// handleGet returns one order. Shoppers only see their own; admins see any.
func (handlers *OrderHandlers) handleGet(contextGin *gin.Context) {
	user := currentUser(contextGin)
	order, findErr := handlers.orders.FindByID(contextGin, contextGin.Param("id"))
	if findErr != nil {
		respondError(contextGin, http.StatusNotFound, "Order not found")
		return
	}
	if order.UserID != user.ID && user.Role != authkit.RoleAdmin {
		respondError(contextGin, http.StatusNotFound, "Order not found")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"order": order})
}

func (handlers *OrderHandlers) handleListAll(contextGin *gin.Context) {
	orders, listErr := handlers.orders.ListAll(contextGin)
	if listErr != nil {
		handlers.logger.Error("admin order list failed",
			zap.String("code", "httpapi.orders.admin_list_failed"),
			zap.Error(listErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not load orders")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"orders": orders})
}

func (handlers *OrderHandlers) handleUpdateStatus(contextGin *gin.Context) {
	var inbound struct {
		Status commerce.OrderStatus `json:"status"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !commerce.ValidOrderStatus(inbound.Status) {
		respondError(contextGin, http.StatusBadRequest, "Unknown order status")
		return
	}

	order, findErr := handlers.orders.FindByID(contextGin, contextGin.Param("id"))
	if findErr != nil {
		if errors.Is(findErr, commerce.ErrOrderNotFound) {
			respondError(contextGin, http.StatusNotFound, "Order not found")
			return
		}
		respondError(contextGin, http.StatusInternalServerError, "Could not load order")
		return
	}

	order.Status = inbound.Status
	if saveErr := handlers.orders.Save(contextGin, order); saveErr != nil {
		handlers.logger.Error("order status update failed",
			zap.String("code", "httpapi.orders.status_update_failed"),
			zap.Error(saveErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not update order")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"order": order})
}
