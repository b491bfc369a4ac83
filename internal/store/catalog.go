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

var (
	// ErrProductNotFound indicates no product matched the identifier.
	ErrProductNotFound = errors.New("store.catalog.product_not_found")
	// ErrDuplicateProductName indicates a product with the same name exists.
	ErrDuplicateProductName = errors.New("store.catalog.duplicate_name")
)

type productRecord struct {
	ID          string `gorm:"column:id;primaryKey"`
	Name        string `gorm:"column:name;uniqueIndex;not null"`
	Description string `gorm:"column:description;not null;default:''"`
	PriceCents  int64  `gorm:"column:price_cents;not null"`
	Currency    string `gorm:"column:currency;not null;default:'USD'"`
	Stock       int    `gorm:"column:stock;not null;default:0"`
	Active      bool   `gorm:"column:active;not null;default:true"`
	ImageURL    string `gorm:"column:image_url;not null;default:''"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (productRecord) TableName() string {
	return "products"
}

// Catalog is the GORM-backed product store.
type Catalog struct {
	database *DB
}

// NewCatalog constructs the product store.
func NewCatalog(database *DB) *Catalog {
	return &Catalog{database: database}
}

var _ commerce.ProductStore = (*Catalog)(nil)

// Create inserts a product.
func (catalog *Catalog) Create(ctx context.Context, product *commerce.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	record := fromProduct(product)
	if err := catalog.database.gorm.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("store.catalog.create: %w", ErrDuplicateProductName)
		}
		return fmt.Errorf("store.catalog.create: %w", err)
	}
	product.CreatedAt = record.CreatedAt
	product.UpdatedAt = record.UpdatedAt
	return nil
}

// List returns products, optionally restricted to active ones.
func (catalog *Catalog) List(ctx context.Context, activeOnly bool) ([]commerce.Product, error) {
	query := catalog.database.gorm.WithContext(ctx).Model(&productRecord{}).Order("name")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var records []productRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store.catalog.list: %w", err)
	}
	products := make([]commerce.Product, 0, len(records))
	for index := range records {
		products = append(products, *records[index].toProduct())
	}
	return products, nil
}

// FindByID returns a product by identifier.
func (catalog *Catalog) FindByID(ctx context.Context, productID string) (*commerce.Product, error) {
	var record productRecord
	err := catalog.database.gorm.WithContext(ctx).Where("id = ?", productID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.catalog.find: %w", ErrProductNotFound)
		}
		return nil, fmt.Errorf("store.catalog.find: %w", err)
	}
	return record.toProduct(), nil
}

// Save overwrites a product.
func (catalog *Catalog) Save(ctx context.Context, product *commerce.Product) error {
	record := fromProduct(product)
	result := catalog.database.gorm.WithContext(ctx).
		Model(&productRecord{}).
		Where("id = ?", product.ID).
		Select("name", "description", "price_cents", "currency", "stock", "active", "image_url").
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("store.catalog.save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.catalog.save: %w", ErrProductNotFound)
	}
	return nil
}

// Delete removes a product.
func (catalog *Catalog) Delete(ctx context.Context, productID string) error {
	result := catalog.database.gorm.WithContext(ctx).Where("id = ?", productID).Delete(&productRecord{})
	if result.Error != nil {
		return fmt.Errorf("store.catalog.delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.catalog.delete: %w", ErrProductNotFound)
	}
	return nil
}

func (record *productRecord) toProduct() *commerce.Product {
	return &commerce.Product{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		PriceCents:  record.PriceCents,
		Currency:    record.Currency,
		Stock:       record.Stock,
		Active:      record.Active,
		ImageURL:    record.ImageURL,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func fromProduct(product *commerce.Product) *productRecord {
	return &productRecord{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Currency:    product.Currency,
		Stock:       product.Stock,
		Active:      product.Active,
		ImageURL:    product.ImageURL,
	}
}
