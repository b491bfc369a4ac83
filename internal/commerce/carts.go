package commerce

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// CartService applies stock rules to one-cart-per-user state.
type CartService struct {
	products ProductStore
	carts    CartStore
	logger   *zap.Logger
}

// NewCartService wires the cart rules over the stores.
func NewCartService(products ProductStore, carts CartStore, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{products: products, carts: carts, logger: logger}
}

// Get returns the user's cart, or an empty one if none exists yet.
func (service *CartService) Get(ctx context.Context, userID string) (*Cart, error) {
	cart, err := service.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return &Cart{UserID: userID, Items: []CartItem{}}, nil
		}
		return nil, fmt.Errorf("commerce.carts.get: %w", err)
	}
	return cart, nil
}

// AddItem puts quantity units of a product into the cart. The product must
// exist, be active, and have stock covering the requested quantity plus
// whatever the cart already holds. Unit price is re-snapshotted on every
// touch so a stale cart picks up price changes.
func (service *CartService) AddItem(ctx context.Context, userID string, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("commerce.carts.add: quantity must be positive: %w", ErrEmptySelection)
	}
	product, productErr := service.loadSellableProduct(ctx, productID)
	if productErr != nil {
		return nil, fmt.Errorf("commerce.carts.add: %w", productErr)
	}

	cart, cartErr := service.Get(ctx, userID)
	if cartErr != nil {
		return nil, cartErr
	}

	existingIndex := findItem(cart.Items, productID)
	requested := quantity
	if existingIndex >= 0 {
		requested += cart.Items[existingIndex].Quantity
	}
	if requested > product.Stock {
		return nil, fmt.Errorf("commerce.carts.add: %d of %q requested, %d in stock: %w", requested, product.Name, product.Stock, ErrInsufficientStock)
	}

	if existingIndex >= 0 {
		cart.Items[existingIndex].Quantity = requested
		cart.Items[existingIndex].PriceCents = product.PriceCents
	} else {
		cart.Items = append(cart.Items, CartItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Currency:   product.Currency,
			Quantity:   quantity,
			ImageURL:   product.ImageURL,
		})
	}

	if saveErr := service.carts.Save(ctx, cart); saveErr != nil {
		return nil, fmt.Errorf("commerce.carts.add: %w", saveErr)
	}
	service.logger.Debug("cart item added",
		zap.String("code", "commerce.carts.item_added"),
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity))
	return cart, nil
}

// UpdateItem sets the quantity of an existing cart line.
func (service *CartService) UpdateItem(ctx context.Context, userID string, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("commerce.carts.update: quantity must be positive: %w", ErrEmptySelection)
	}
	cart, cartErr := service.carts.FindByUser(ctx, userID)
	if cartErr != nil {
		return nil, fmt.Errorf("commerce.carts.update: %w", cartErr)
	}
	index := findItem(cart.Items, productID)
	if index < 0 {
		return nil, fmt.Errorf("commerce.carts.update: %w", ErrItemNotFound)
	}

	product, productErr := service.loadSellableProduct(ctx, productID)
	if productErr != nil {
		return nil, fmt.Errorf("commerce.carts.update: %w", productErr)
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("commerce.carts.update: %d of %q requested, %d in stock: %w", quantity, product.Name, product.Stock, ErrInsufficientStock)
	}

	cart.Items[index].Quantity = quantity
	cart.Items[index].PriceCents = product.PriceCents
	if saveErr := service.carts.Save(ctx, cart); saveErr != nil {
		return nil, fmt.Errorf("commerce.carts.update: %w", saveErr)
	}
	return cart, nil
}

// RemoveItem deletes a line from the cart.
func (service *CartService) RemoveItem(ctx context.Context, userID string, productID string) (*Cart, error) {
	cart, cartErr := service.carts.FindByUser(ctx, userID)
	if cartErr != nil {
		return nil, fmt.Errorf("commerce.carts.remove: %w", cartErr)
	}
	filtered := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			filtered = append(filtered, item)
		}
	}
	cart.Items = filtered
	if saveErr := service.carts.Save(ctx, cart); saveErr != nil {
		return nil, fmt.Errorf("commerce.carts.remove: %w", saveErr)
	}
	return cart, nil
}

// Clear empties the cart. Clearing an absent cart is a no-op.
func (service *CartService) Clear(ctx context.Context, userID string) error {
	cart, cartErr := service.carts.FindByUser(ctx, userID)
	if cartErr != nil {
		if errors.Is(cartErr, ErrCartNotFound) {
			return nil
		}
		return fmt.Errorf("commerce.carts.clear: %w", cartErr)
	}
	cart.Items = []CartItem{}
	if saveErr := service.carts.Save(ctx, cart); saveErr != nil {
		return fmt.Errorf("commerce.carts.clear: %w", saveErr)
	}
	service.logger.Debug("cart cleared",
		zap.String("code", "commerce.carts.cleared"),
		zap.String("user_id", userID))
	return nil
}

func (service *CartService) loadSellableProduct(ctx context.Context, productID string) (*Product, error) {
	product, err := service.products.FindByID(ctx, productID)
	if err != nil {
		return nil, ErrProductUnavailable
	}
	if !product.Active {
		return nil, ErrProductUnavailable
	}
	return product, nil
}

func findItem(items []CartItem, productID string) int {
	for index := range items {
		if items[index].ProductID == productID {
			return index
		}
	}
	return -1
}
