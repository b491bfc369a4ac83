package commerce

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mprlab/storefront/internal/payments"
)

// ItemSelection names a product and quantity submitted for checkout.
type ItemSelection struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutResult carries what the frontend needs to confirm a payment.
type CheckoutResult struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
}

// CheckoutService builds orders and attaches provider payment intents.
type CheckoutService struct {
	products ProductStore
	orders   OrderStore
	carts    *CartService
	provider payments.Provider
	logger   *zap.Logger
}

// NewCheckoutService wires the checkout flow.
func NewCheckoutService(products ProductStore, orders OrderStore, carts *CartService, provider payments.Provider, logger *zap.Logger) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		products: products,
		orders:   orders,
		carts:    carts,
		provider: provider,
		logger:   logger,
	}
}

// CreateIntent validates the selection, persists a pending order, requests a
// provider intent, and flips the order to processing once the intent id is
// attached.
func (service *CheckoutService) CreateIntent(ctx context.Context, userID string, selections []ItemSelection) (*CheckoutResult, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("commerce.checkout.create_intent: %w", ErrEmptySelection)
	}

	items := make([]OrderItem, 0, len(selections))
	var totalCents int64
	currency := "USD"
	for _, selection := range selections {
		if selection.Quantity <= 0 {
			return nil, fmt.Errorf("commerce.checkout.create_intent: %w", ErrEmptySelection)
		}
		product, productErr := service.products.FindByID(ctx, selection.ProductID)
		if productErr != nil || !product.Active {
			return nil, fmt.Errorf("commerce.checkout.create_intent: %w", ErrProductUnavailable)
		}
		if selection.Quantity > product.Stock {
			return nil, fmt.Errorf("commerce.checkout.create_intent: %q: %w", product.Name, ErrInsufficientStock)
		}
		items = append(items, OrderItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Currency:   product.Currency,
			Quantity:   selection.Quantity,
		})
		totalCents += product.PriceCents * int64(selection.Quantity)
		currency = product.Currency
	}
	if totalCents <= 0 {
		return nil, fmt.Errorf("commerce.checkout.create_intent: %w", ErrZeroTotal)
	}

	order := &Order{
		UserID:     userID,
		Items:      items,
		TotalCents: totalCents,
		Currency:   currency,
		Status:     OrderPending,
	}
	if createErr := service.orders.Create(ctx, order); createErr != nil {
		return nil, fmt.Errorf("commerce.checkout.create_intent: %w", createErr)
	}

	intent, intentErr := service.provider.CreateIntent(ctx, totalCents, currency, map[string]string{
		"orderId": order.ID,
		"userId":  userID,
	})
	if intentErr != nil {
		return nil, fmt.Errorf("commerce.checkout.create_intent: %w", intentErr)
	}

	order.PaymentIntentID = intent.ID
	order.Status = OrderProcessing
	if saveErr := service.orders.Save(ctx, order); saveErr != nil {
		return nil, fmt.Errorf("commerce.checkout.create_intent: %w", saveErr)
	}

	service.logger.Info("payment intent created",
		zap.String("code", "commerce.checkout.intent_created"),
		zap.String("order_id", order.ID),
		zap.String("payment_intent_id", intent.ID))

	return &CheckoutResult{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// HandleEvent applies a verified webhook notification: a succeeded intent
// marks the order paid and clears the buyer's cart; a failed intent cancels
// the order. Unknown event types are ignored.
func (service *CheckoutService) HandleEvent(ctx context.Context, event *payments.Event) error {
	switch event.Type {
	case payments.EventIntentSucceeded:
		order, findErr := service.orders.FindByPaymentIntent(ctx, event.PaymentIntentID)
		if findErr != nil {
			return fmt.Errorf("commerce.checkout.handle_event: %w", findErr)
		}
		order.Status = OrderPaid
		if saveErr := service.orders.Save(ctx, order); saveErr != nil {
			return fmt.Errorf("commerce.checkout.handle_event: %w", saveErr)
		}
		if event.UserID != "" {
			if clearErr := service.carts.Clear(ctx, event.UserID); clearErr != nil {
				return fmt.Errorf("commerce.checkout.handle_event: %w", clearErr)
			}
		}
		service.logger.Info("order paid",
			zap.String("code", "commerce.checkout.order_paid"),
			zap.String("payment_intent_id", event.PaymentIntentID))
		return nil
	case payments.EventIntentFailed:
		order, findErr := service.orders.FindByPaymentIntent(ctx, event.PaymentIntentID)
		if findErr != nil {
			return fmt.Errorf("commerce.checkout.handle_event: %w", findErr)
		}
		order.Status = OrderCancelled
		if saveErr := service.orders.Save(ctx, order); saveErr != nil {
			return fmt.Errorf("commerce.checkout.handle_event: %w", saveErr)
		}
		service.logger.Warn("payment failed",
			zap.String("code", "commerce.checkout.payment_failed"),
			zap.String("payment_intent_id", event.PaymentIntentID))
		return nil
	default:
		service.logger.Debug("unhandled provider event",
			zap.String("code", "commerce.checkout.unhandled_event"),
			zap.String("event_type", event.Type))
		return nil
	}
}
