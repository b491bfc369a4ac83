package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/commerce"
)

// CartHandlers serves the signed-in user's cart.
type CartHandlers struct {
	carts  *commerce.CartService
	logger *zap.Logger
}

// NewCartHandlers wires the cart endpoints.
func NewCartHandlers(carts *commerce.CartService, logger *zap.Logger) *CartHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandlers{carts: carts, logger: logger}
}

// Mount registers the endpoints on an authenticated group.
func (handlers *CartHandlers) Mount(router gin.IRouter) {
	router.GET("/cart", handlers.handleGet)
	router.POST("/cart/items", handlers.handleAddItem)
	router.PUT("/cart/items/:productId", handlers.handleUpdateItem)
	router.DELETE("/cart/items/:productId", handlers.handleRemoveItem)
	router.DELETE("/cart", handlers.handleClear)
}

func (handlers *CartHandlers) handleGet(contextGin *gin.Context) {
	user := currentUser(contextGin)
	cart, getErr := handlers.carts.Get(contextGin, user.ID)
	if getErr != nil {
		handlers.logger.Error("cart load failed",
			zap.String("code", "httpapi.cart.get_failed"),
			zap.Error(getErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not load cart")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"cart": cart})
}

func (handlers *CartHandlers) handleAddItem(contextGin *gin.Context) {
	var inbound struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := currentUser(contextGin)
	cart, addErr := handlers.carts.AddItem(contextGin, user.ID, inbound.ProductID, inbound.Quantity)
	if addErr != nil {
		handlers.respondCartError(contextGin, addErr, "Could not add item")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"cart": cart})
}

func (handlers *CartHandlers) handleUpdateItem(contextGin *gin.Context) {
	var inbound struct {
		Quantity int `json:"quantity"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := currentUser(contextGin)
	cart, updateErr := handlers.carts.UpdateItem(contextGin, user.ID, contextGin.Param("productId"), inbound.Quantity)
	if updateErr != nil {
		handlers.respondCartError(contextGin, updateErr, "Could not update item")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"cart": cart})
}

func (handlers *CartHandlers) handleRemoveItem(contextGin *gin.Context) {
	user := currentUser(contextGin)
	cart, removeErr := handlers.carts.RemoveItem(contextGin, user.ID, contextGin.Param("productId"))
	if removeErr != nil {
		handlers.respondCartError(contextGin, removeErr, "Could not remove item")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"cart": cart})
}

func (handlers *CartHandlers) handleClear(contextGin *gin.Context) {
	user := currentUser(contextGin)
	if clearErr := handlers.carts.Clear(contextGin, user.ID); clearErr != nil {
		handlers.respondCartError(contextGin, clearErr, "Could not clear cart")
		return
	}
	respondMessage(contextGin, http.StatusOK, nil, "Cart cleared")
}

func (handlers *CartHandlers) respondCartError(contextGin *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, commerce.ErrProductUnavailable):
		respondError(contextGin, http.StatusNotFound, "Product not available")
	case errors.Is(err, commerce.ErrInsufficientStock):
		respondError(contextGin, http.StatusBadRequest, "Not enough stock available")
	case errors.Is(err, commerce.ErrItemNotFound), errors.Is(err, commerce.ErrCartNotFound):
		respondError(contextGin, http.StatusNotFound, "Item not in cart")
	case errors.Is(err, commerce.ErrEmptySelection):
		respondError(contextGin, http.StatusBadRequest, "Quantity must be positive")
	default:
		handlers.logger.Error("cart operation failed",
			zap.String("code", "httpapi.cart.operation_failed"),
			zap.Error(err))
		respondError(contextGin, http.StatusInternalServerError, fallback)
	}
}
