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

type cartRecord struct {
	ID        string `gorm:"column:id;primaryKey"`
	UserID    string `gorm:"column:user_id;uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (cartRecord) TableName() string {
	return "carts"
}

type cartItemRecord struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement"`
	CartID     string `gorm:"column:cart_id;index;not null"`
	ProductID  string `gorm:"column:product_id;not null"`
	Name       string `gorm:"column:name;not null"`
	PriceCents int64  `gorm:"column:price_cents;not null"`
	Currency   string `gorm:"column:currency;not null"`
	Quantity   int    `gorm:"column:quantity;not null"`
	ImageURL   string `gorm:"column:image_url;not null;default:''"`
}

func (cartItemRecord) TableName() string {
	return "cart_items"
}

// Carts is the GORM-backed cart store.
type Carts struct {
	database *DB
}

// NewCarts constructs the cart store.
func NewCarts(database *DB) *Carts {
	return &Carts{database: database}
}

var _ commerce.CartStore = (*Carts)(nil)

// FindByUser loads the user's cart with its items.
func (store *Carts) FindByUser(ctx context.Context, userID string) (*commerce.Cart, error) {
	var record cartRecord
	err := store.database.gorm.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.carts.find: %w", commerce.ErrCartNotFound)
		}
		return nil, fmt.Errorf("store.carts.find: %w", err)
	}
	var itemRecords []cartItemRecord
	if err := store.database.gorm.WithContext(ctx).Where("cart_id = ?", record.ID).Order("id").Find(&itemRecords).Error; err != nil {
		return nil, fmt.Errorf("store.carts.find: %w", err)
	}
	items := make([]commerce.CartItem, 0, len(itemRecords))
	for _, itemRecord := range itemRecords {
		items = append(items, commerce.CartItem{
			ProductID:  itemRecord.ProductID,
			Name:       itemRecord.Name,
			PriceCents: itemRecord.PriceCents,
			Currency:   itemRecord.Currency,
			Quantity:   itemRecord.Quantity,
			ImageURL:   itemRecord.ImageURL,
		})
	}
	return &commerce.Cart{
		ID:        record.ID,
		UserID:    record.UserID,
		Items:     items,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Save upserts the cart and replaces its item rows in one transaction.
func (store *Carts) Save(ctx context.Context, cart *commerce.Cart) error {
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	err := store.database.gorm.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		record := cartRecord{ID: cart.ID, UserID: cart.UserID}
		if saveErr := transaction.Save(&record).Error; saveErr != nil {
			return saveErr
		}
		if deleteErr := transaction.Where("cart_id = ?", cart.ID).Delete(&cartItemRecord{}).Error; deleteErr != nil {
			return deleteErr
		}
		for _, item := range cart.Items {
			itemRecord := cartItemRecord{
				CartID:     cart.ID,
				ProductID:  item.ProductID,
				Name:       item.Name,
				PriceCents: item.PriceCents,
				Currency:   item.Currency,
				Quantity:   item.Quantity,
				ImageURL:   item.ImageURL,
			}
			if createErr := transaction.Create(&itemRecord).Error; createErr != nil {
				return createErr
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store.carts.save: %w", err)
	}
	return nil
}
