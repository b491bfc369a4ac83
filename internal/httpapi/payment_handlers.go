package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/commerce"
	"github.com/mprlab/storefront/internal/payments"
)

// WebhookVerifier checks a provider notification's signature.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*payments.Event, error)
}

// PaymentHandlers serves intent creation for shoppers and the provider
// webhook.
type PaymentHandlers struct {
	checkout *commerce.CheckoutService
	verifier WebhookVerifier
	logger   *zap.Logger
}

// NewPaymentHandlers wires the payment endpoints.
func NewPaymentHandlers(checkout *commerce.CheckoutService, verifier WebhookVerifier, logger *zap.Logger) *PaymentHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandlers{checkout: checkout, verifier: verifier, logger: logger}
}

// Mount registers intent creation on the authenticated group and the webhook
// on the public group.
func (handlers *PaymentHandlers) Mount(authenticated gin.IRouter, public gin.IRouter) {
	authenticated.POST("/payments/intent", handlers.handleCreateIntent)
	public.POST("/payments/webhook", handlers.handleWebhook)
}

func (handlers *PaymentHandlers) handleCreateIntent(contextGin *gin.Context) {
	var inbound struct {
		Items []commerce.ItemSelection `json:"items"`
	}
	if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := currentUser(contextGin)
	result, intentErr := handlers.checkout.CreateIntent(contextGin, user.ID, inbound.Items)
	if intentErr != nil {
		switch {
		case errors.Is(intentErr, commerce.ErrEmptySelection), errors.Is(intentErr, commerce.ErrZeroTotal):
			respondError(contextGin, http.StatusBadRequest, "No purchasable items selected")
		case errors.Is(intentErr, commerce.ErrProductUnavailable):
			respondError(contextGin, http.StatusNotFound, "Product not available")
		case errors.Is(intentErr, commerce.ErrInsufficientStock):
			respondError(contextGin, http.StatusBadRequest, "Not enough stock available")
		case errors.Is(intentErr, payments.ErrIntentFailed):
			handlers.logger.Error("provider rejected payment intent",
				zap.String("code", "httpapi.payments.intent_rejected"),
				zap.Error(intentErr))
			respondError(contextGin, http.StatusBadGateway, "Payment provider unavailable")
		default:
			handlers.logger.Error("payment intent creation failed",
				zap.String("code", "httpapi.payments.intent_failed"),
				zap.Error(intentErr))
			respondError(contextGin, http.StatusInternalServerError, "Could not create payment intent")
		}
		return
	}
	respondSuccess(contextGin, http.StatusCreated, result)
}

// handleWebhook verifies the provider signature over the raw body before any
// decoding. Unverifiable notifications are rejected without processing.
func (handlers *PaymentHandlers) handleWebhook(contextGin *gin.Context) {
	payload, readErr := io.ReadAll(io.LimitReader(contextGin.Request.Body, 1<<20))
	if readErr != nil {
		respondError(contextGin, http.StatusBadRequest, "Unreadable payload")
		return
	}

	event, verifyErr := handlers.verifier.VerifyWebhook(payload, contextGin.GetHeader("Stripe-Signature"))
	if verifyErr != nil {
		handlers.logger.Warn("webhook signature rejected",
			zap.String("code", "httpapi.payments.webhook_rejected"),
			zap.Error(verifyErr))
		respondError(contextGin, http.StatusBadRequest, "Invalid signature")
		return
	}

	if handleErr := handlers.checkout.HandleEvent(contextGin, event); handleErr != nil {
		handlers.logger.Error("webhook processing failed",
			zap.String("code", "httpapi.payments.webhook_failed"),
			zap.String("event_type", event.Type),
			zap.Error(handleErr))
		respondError(contextGin, http.StatusInternalServerError, "Could not process event")
		return
	}
	respondSuccess(contextGin, http.StatusOK, gin.H{"received": true})
}
