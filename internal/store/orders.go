package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mprlab/storefront/internal/commerce"
)

type orderRecord struct {
	ID              string  `gorm:"column:id;primaryKey"`
	UserID          string  `gorm:"column:user_id;index;not null"`
	TotalCents      int64   `gorm:"column:total_cents;not null"`
	Currency        string  `gorm:"column:currency;not null"`
	Status          string  `gorm:"column:status;not null;default:'pending'"`
	PaymentIntentID *string `gorm:"column:payment_intent_id;uniqueIndex"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (orderRecord) TableName() string {
	return "orders"
}

type orderItemRecord struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    string `gorm:"column:order_id;index;not null"`
	ProductID  string `gorm:"column:product_id;not null"`
	Name       string `gorm:"column:name;not null"`
	PriceCents int64  `gorm:"column:price_cents;not null"`
	Currency   string `gorm:"column:currency;not null"`
	Quantity   int    `gorm:"column:quantity;not null"`
}

func (orderItemRecord) TableName() string {
	return "order_items"
}

// Orders is the GORM-backed order store.
type Orders struct {
	database *DB
}

// NewOrders constructs the order store.
func NewOrders(database *DB) *Orders {
	return &Orders{database: database}
}

var _ commerce.OrderStore = (*Orders)(nil)

// Create inserts an order with its line items.
func (store *Orders) Create(ctx context.Context, order *commerce.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	err := store.database.gorm.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		record := fromOrder(order)
		if createErr := transaction.Create(record).Error; createErr != nil {
			return createErr
		}
		for _, item := range order.Items {
			itemRecord := orderItemRecord{
				OrderID:    order.ID,
				ProductID:  item.ProductID,
				Name:       item.Name,
				PriceCents: item.PriceCents,
				Currency:   item.Currency,
				Quantity:   item.Quantity,
			}
			if createErr := transaction.Create(&itemRecord).Error; createErr != nil {
				return createErr
			}
		}
		order.CreatedAt = record.CreatedAt
		order.UpdatedAt = record.UpdatedAt
		return nil
	})
	if err != nil {
		return fmt.Errorf("store.orders.create: %w", err)
	}
	return nil
}

// FindByID loads an order with its items.
func (store *Orders) FindByID(ctx context.Context, orderID string) (*commerce.Order, error) {
	var record orderRecord
	err := store.database.gorm.WithContext(ctx).Where("id = ?", orderID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.orders.find: %w", commerce.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("store.orders.find: %w", err)
	}
	return store.hydrate(ctx, &record)
}

// FindByPaymentIntent loads the order attached to a provider intent.
func (store *Orders) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*commerce.Order, error) {
	if paymentIntentID == "" {
		return nil, fmt.Errorf("store.orders.find_by_intent: %w", commerce.ErrOrderNotFound)
	}
	var record orderRecord
	err := store.database.gorm.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.orders.find_by_intent: %w", commerce.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("store.orders.find_by_intent: %w", err)
	}
	return store.hydrate(ctx, &record)
}

// ListByUser returns the user's orders, newest first.
func (store *Orders) ListByUser(ctx context.Context, userID string) ([]commerce.Order, error) {
	var records []orderRecord
	err := store.database.gorm.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("store.orders.list_by_user: %w", err)
	}
	return store.hydrateAll(ctx, records)
}

// ListAll returns every order, newest first.
func (store *Orders) ListAll(ctx context.Context) ([]commerce.Order, error) {
	var records []orderRecord
	err := store.database.gorm.WithContext(ctx).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("store.orders.list_all: %w", err)
	}
	return store.hydrateAll(ctx, records)
}

// Save overwrites order status and payment-intent linkage.
func (store *Orders) Save(ctx context.Context, order *commerce.Order) error {
	record := fromOrder(order)
	result := store.database.gorm.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ?", order.ID).
		Select("status", "payment_intent_id", "total_cents", "currency").
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("store.orders.save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.orders.save: %w", commerce.ErrOrderNotFound)
	}
	return nil
}

func (store *Orders) hydrate(ctx context.Context, record *orderRecord) (*commerce.Order, error) {
	var itemRecords []orderItemRecord
	if err := store.database.gorm.WithContext(ctx).Where("order_id = ?", record.ID).Order("id").Find(&itemRecords).Error; err != nil {
		return nil, fmt.Errorf("store.orders.items: %w", err)
	}
	order := record.toOrder()
	order.Items = make([]commerce.OrderItem, 0, len(itemRecords))
	for _, itemRecord := range itemRecords {
		order.Items = append(order.Items, commerce.OrderItem{
			ProductID:  itemRecord.ProductID,
			Name:       itemRecord.Name,
			PriceCents: itemRecord.PriceCents,
			Currency:   itemRecord.Currency,
			Quantity:   itemRecord.Quantity,
		})
	}
	return order, nil
}

func (store *Orders) hydrateAll(ctx context.Context, records []orderRecord) ([]commerce.Order, error) {
	orders := make([]commerce.Order, 0, len(records))
	for index := range records {
		order, err := store.hydrate(ctx, &records[index])
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (record *orderRecord) toOrder() *commerce.Order {
	paymentIntentID := ""
	if record.PaymentIntentID != nil {
		paymentIntentID = *record.PaymentIntentID
	}
	return &commerce.Order{
		ID:              record.ID,
		UserID:          record.UserID,
		TotalCents:      record.TotalCents,
		Currency:        record.Currency,
		Status:          commerce.OrderStatus(record.Status),
		PaymentIntentID: paymentIntentID,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func fromOrder(order *commerce.Order) *orderRecord {
	var paymentIntentID *string
	if order.PaymentIntentID != "" {
		value := order.PaymentIntentID
		paymentIntentID = &value
	}
	return &orderRecord{
		ID:              order.ID,
		UserID:          order.UserID,
		TotalCents:      order.TotalCents,
		Currency:        order.Currency,
		Status:          string(order.Status),
		PaymentIntentID: paymentIntentID,
	}
}
