package httpapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/mprlab/storefront/internal/commerce"
	"github.com/mprlab/storefront/internal/payments"
	"github.com/mprlab/storefront/internal/store"
)

type productStoreStub struct {
	mutex    sync.Mutex
	byID     map[string]*commerce.Product
	sequence int
}

func newProductStoreStub() *productStoreStub {
	return &productStoreStub{byID: make(map[string]*commerce.Product)}
}

func (stub *productStoreStub) Create(ctx context.Context, product *commerce.Product) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	for _, existing := range stub.byID {
		if existing.Name == product.Name {
			return store.ErrDuplicateProductName
		}
	}
	if product.ID == "" {
		stub.sequence++
		product.ID = fmt.Sprintf("product-%d", stub.sequence)
	}
	clone := *product
	stub.byID[product.ID] = &clone
	return nil
}

func (stub *productStoreStub) List(ctx context.Context, activeOnly bool) ([]commerce.Product, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	products := make([]commerce.Product, 0, len(stub.byID))
	for _, product := range stub.byID {
		if activeOnly && !product.Active {
			continue
		}
		products = append(products, *product)
	}
	return products, nil
}

func (stub *productStoreStub) FindByID(ctx context.Context, productID string) (*commerce.Product, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	product, ok := stub.byID[productID]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (stub *productStoreStub) Save(ctx context.Context, product *commerce.Product) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if _, ok := stub.byID[product.ID]; !ok {
		return store.ErrProductNotFound
	}
	clone := *product
	stub.byID[product.ID] = &clone
	return nil
}

func (stub *productStoreStub) Delete(ctx context.Context, productID string) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if _, ok := stub.byID[productID]; !ok {
		return store.ErrProductNotFound
	}
	delete(stub.byID, productID)
	return nil
}

type cartStoreStub struct {
	mutex  sync.Mutex
	byUser map[string]*commerce.Cart
}

func newCartStoreStub() *cartStoreStub {
	return &cartStoreStub{byUser: make(map[string]*commerce.Cart)}
}

func (stub *cartStoreStub) FindByUser(ctx context.Context, userID string) (*commerce.Cart, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	cart, ok := stub.byUser[userID]
	if !ok {
		return nil, commerce.ErrCartNotFound
	}
	clone := *cart
	clone.Items = append([]commerce.CartItem(nil), cart.Items...)
	return &clone, nil
}

func (stub *cartStoreStub) Save(ctx context.Context, cart *commerce.Cart) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if cart.ID == "" {
		cart.ID = "cart-" + cart.UserID
	}
	clone := *cart
	clone.Items = append([]commerce.CartItem(nil), cart.Items...)
	stub.byUser[cart.UserID] = &clone
	return nil
}

type orderStoreStub struct {
	mutex    sync.Mutex
	byID     map[string]*commerce.Order
	sequence int
}

func newOrderStoreStub() *orderStoreStub {
	return &orderStoreStub{byID: make(map[string]*commerce.Order)}
}

func (stub *orderStoreStub) Create(ctx context.Context, order *commerce.Order) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if order.ID == "" {
		stub.sequence++
		order.ID = fmt.Sprintf("order-%d", stub.sequence)
	}
	clone := *order
	stub.byID[order.ID] = &clone
	return nil
}

func (stub *orderStoreStub) FindByID(ctx context.Context, orderID string) (*commerce.Order, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	order, ok := stub.byID[orderID]
	if !ok {
		return nil, commerce.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (stub *orderStoreStub) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*commerce.Order, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	for _, order := range stub.byID {
		if order.PaymentIntentID == paymentIntentID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, commerce.ErrOrderNotFound
}

func (stub *orderStoreStub) ListByUser(ctx context.Context, userID string) ([]commerce.Order, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	var orders []commerce.Order
	for _, order := range stub.byID {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (stub *orderStoreStub) ListAll(ctx context.Context) ([]commerce.Order, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	var orders []commerce.Order
	for _, order := range stub.byID {
		orders = append(orders, *order)
	}
	return orders, nil
}

func (stub *orderStoreStub) Save(ctx context.Context, order *commerce.Order) error {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if _, ok := stub.byID[order.ID]; !ok {
		return commerce.ErrOrderNotFound
	}
	clone := *order
	stub.byID[order.ID] = &clone
	return nil
}

type providerStub struct {
	mutex sync.Mutex
	calls int
}

func (stub *providerStub) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.calls++
	return &payments.Intent{
		ID:           fmt.Sprintf("pi_test_%d", stub.calls),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", stub.calls),
		AmountCents:  amountCents,
		Currency:     currency,
	}, nil
}
