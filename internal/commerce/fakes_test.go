package commerce

import (
	"context"
	"fmt"
	"sync"

	"github.com/mprlab/storefront/internal/payments"
)

type fakeProductStore struct {
	mutex    sync.Mutex
	byID     map[string]*Product
	sequence int
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{byID: make(map[string]*Product)}
}

func (store *fakeProductStore) Create(ctx context.Context, product *Product) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if product.ID == "" {
		store.sequence++
		product.ID = fmt.Sprintf("product-%d", store.sequence)
	}
	clone := *product
	store.byID[product.ID] = &clone
	return nil
}

func (store *fakeProductStore) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var products []Product
	for _, product := range store.byID {
		if activeOnly && !product.Active {
			continue
		}
		products = append(products, *product)
	}
	return products, nil
}

func (store *fakeProductStore) FindByID(ctx context.Context, productID string) (*Product, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	product, ok := store.byID[productID]
	if !ok {
		return nil, ErrProductUnavailable
	}
	clone := *product
	return &clone, nil
}

func (store *fakeProductStore) Save(ctx context.Context, product *Product) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	clone := *product
	store.byID[product.ID] = &clone
	return nil
}

func (store *fakeProductStore) Delete(ctx context.Context, productID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.byID, productID)
	return nil
}

type fakeCartStore struct {
	mutex  sync.Mutex
	byUser map[string]*Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{byUser: make(map[string]*Cart)}
}

func (store *fakeCartStore) FindByUser(ctx context.Context, userID string) (*Cart, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	cart, ok := store.byUser[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	clone := *cart
	clone.Items = append([]CartItem(nil), cart.Items...)
	return &clone, nil
}

func (store *fakeCartStore) Save(ctx context.Context, cart *Cart) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if cart.ID == "" {
		cart.ID = "cart-" + cart.UserID
	}
	clone := *cart
	clone.Items = append([]CartItem(nil), cart.Items...)
	store.byUser[cart.UserID] = &clone
	return nil
}

type fakeOrderStore struct {
	mutex    sync.Mutex
	byID     map[string]*Order
	sequence int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{byID: make(map[string]*Order)}
}

func (store *fakeOrderStore) Create(ctx context.Context, order *Order) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if order.ID == "" {
		store.sequence++
		order.ID = fmt.Sprintf("order-%d", store.sequence)
	}
	clone := *order
	store.byID[order.ID] = &clone
	return nil
}

func (store *fakeOrderStore) FindByID(ctx context.Context, orderID string) (*Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	order, ok := store.byID[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (store *fakeOrderStore) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, order := range store.byID {
		if order.PaymentIntentID == paymentIntentID {
			clone := *order
			return &clone, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (store *fakeOrderStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var orders []Order
	for _, order := range store.byID {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (store *fakeOrderStore) ListAll(ctx context.Context) ([]Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var orders []Order
	for _, order := range store.byID {
		orders = append(orders, *order)
	}
	return orders, nil
}

func (store *fakeOrderStore) Save(ctx context.Context, order *Order) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, ok := store.byID[order.ID]; !ok {
		return ErrOrderNotFound
	}
	clone := *order
	store.byID[order.ID] = &clone
	return nil
}

type fakeProvider struct {
	mutex    sync.Mutex
	calls    int
	failNext bool
}

func (provider *fakeProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.calls++
	if provider.failNext {
		provider.failNext = false
		return nil, payments.ErrIntentFailed
	}
	return &payments.Intent{
		ID:           fmt.Sprintf("pi_%d", provider.calls),
		ClientSecret: fmt.Sprintf("pi_%d_secret", provider.calls),
		AmountCents:  amountCents,
		Currency:     currency,
	}, nil
}
