package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/authkit"
	"github.com/mprlab/storefront/internal/commerce"
	"github.com/mprlab/storefront/internal/store"
)

// CatalogHandlers serves the product catalog. Reads are public; mutations
// are admin-only and gated by the middleware mounted around them.
type CatalogHandlers struct {
	products commerce.ProductStore
	logger   *zap.Logger
}

// NewCatalogHandlers wires the catalog endpoints.
func NewCatalogHandlers(products commerce.ProductStore, logger *zap.Logger) *CatalogHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandlers{products: products, logger: logger}
}

// Mount registers public reads on router and mutations on admin. The
// optionalAuth middleware lets the list handler recognize admins.
func (handlers *CatalogHandlers) Mount(router gin.IRouter, admin gin.IRouter, optionalAuth gin.HandlerFunc) {
	router.GET("/products", optionalAuth, handlers.handleList)
	router.GET("/products/:id", handlers.handleGet)
	admin.POST("/products", handlers.handleCreate)
	admin.PUT("/products/:id", handlers.handleUpdate)
	admin.DELETE("/products/:id", handlers.handleDelete)
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
	Active      *bool  `json:"isActive"`
	ImageURL    string `json:"imageUrl"`
}

func (handlers *CatalogHandlers) handleList(contextGin *gin.Context) {
	// Admins see inactive products too.
	activeOnly := true
	if user := currentUser(contextGin); user != nil && user.Role == authkit.RoleAdmin {
		activeOnly = false
	}
	products, listErr := handlers.products.List(contextGin, activeOnly)
	if listErr != nil {
		handlers.logger.Error("product list failed",
			zap.String("code", "httpapi.catalog.list_failed"),
			zap.Error(listErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not load products")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"products": products})
}

func (handlers *CatalogHandlers) handleGet(contextGin *gin.Context) {
	product, findErr := handlers.products.FindByID(contextGin, contextGin.Param("id"))
	if findErr != nil {
		respondError(contextGin, http.StatusNotFound, "Product not found")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"product": product})
}

func (handlers *CatalogHandlers) handleCreate(contextGin *gin.Context) {
	var inbound productRequest
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validateProduct(inbound); len(fieldErrors) > 0 {
		respondErrorDetails(contextGin, http.StatusBadRequest, "Validation failed", fieldErrors)
		return
	}

	product := productFromRequest(inbound)
	if createErr := handlers.products.Create(contextGin, product); createErr != nil {
		if errors.Is(createErr, store.ErrDuplicateProductName) {
			respondError(contextGin, http.StatusConflict, "A product with this name already exists")
			return
		}
		handlers.logger.Error("product create failed",
			zap.String("code", "httpapi.catalog.create_failed"),
			zap.Error(createErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not create product")
		return
	}
	respondSuccess(contextGin, http.StatusCreated, gin.H{"product": product})
}

func (handlers *CatalogHandlers) handleUpdate(contextGin *gin.Context) {
	var inbound productRequest
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}
	if fieldErrors := validateProduct(inbound); len(fieldErrors) > 0 {
		respondErrorDetails(contextGin, http.StatusBadRequest, "Validation failed", fieldErrors)
		return
	}

	product := productFromRequest(inbound)
	product.ID = contextGin.Param("id")
	if saveErr := handlers.products.Save(contextGin, product); saveErr != nil {
		if errors.Is(saveErr, store.ErrProductNotFound) {
			respondError(contextGin, http.StatusNotFound, "Product not found")
			return
		}
		handlers.logger.Error("product update failed",
			zap.String("code", "httpapi.catalog.update_failed"),
			zap.Error(saveErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not update product")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"product": product})
}

func (handlers *CatalogHandlers) handleDelete(contextGin *gin.Context) {
	if deleteErr := handlers.products.Delete(contextGin, contextGin.Param("id")); deleteErr != nil {
		if errors.Is(deleteErr, store.ErrProductNotFound) {
			respondError(contextGin, http.StatusNotFound, "Product not found")
			return
		}
		handlers.logger.Error("product delete failed",
			zap.String("code", "httpapi.catalog.delete_failed"),
			zap.Error(deleteErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not delete product")
		return
	}
	respondMessage(contextGin, http.StatusOK, nil, "Product deleted")
}

func validateProduct(inbound productRequest) map[string]string {
	fieldErrors := make(map[string]string)
	if strings.TrimSpace(inbound.Name) == "" {
		fieldErrors["name"] = "Name is required"
	}
	if inbound.PriceCents <= 0 {
		fieldErrors["priceCents"] = "Price must be positive"
	}
	if inbound.Stock < 0 {
		fieldErrors["stock"] = "Stock cannot be negative"
	}
	return fieldErrors
}

func productFromRequest(inbound productRequest) *commerce.Product {
	currency := strings.ToUpper(strings.TrimSpace(inbound.Currency))
	if currency == "" {
		currency = "USD"
	}
	active := true
	if inbound.Active != nil {
		active = *inbound.Active
	}
	return &commerce.Product{
		Name:        strings.TrimSpace(inbound.Name),
		Description: inbound.Description,
		PriceCents:  inbound.PriceCents,
		Currency:    currency,
		Stock:       inbound.Stock,
		Active:      active,
		ImageURL:    inbound.ImageURL,
	}
}
