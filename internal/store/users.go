package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mprlab/storefront/internal/authkit"
)

type userRecord struct {
	ID               string  `gorm:"column:id;primaryKey"`
	Email            string  `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash     string  `gorm:"column:password_hash;not null;default:''"`
	Role             string  `gorm:"column:role;not null;default:'user'"`
	Provider         string  `gorm:"column:provider;not null;default:'local'"`
	GoogleID         *string `gorm:"column:google_id;uniqueIndex"`
	RefreshTokenHash string  `gorm:"column:refresh_token_hash;not null;default:''"`
	EmailVerified    bool    `gorm:"column:email_verified;not null;default:false"`
	DisplayName      string  `gorm:"column:display_name;not null;default:''"`
	AvatarURL        string  `gorm:"column:avatar_url;not null;default:''"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (userRecord) TableName() string {
	return "users"
}

// Users is the GORM-backed credential store.
type Users struct {
	database *DB
}

// NewUsers constructs the credential store over an open database.
func NewUsers(database *DB) *Users {
	return &Users{database: database}
}

var _ authkit.CredentialStore = (*Users)(nil)

// FindByEmail looks a user up by normalized email.
func (store *Users) FindByEmail(ctx context.Context, email string) (*authkit.User, error) {
	var record userRecord
	err := store.database.gorm.WithContext(ctx).
		Where("email = ?", authkit.NormalizeEmail(email)).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.users.find_by_email: %w", authkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("store.users.find_by_email: %w", err)
	}
	return record.toUser(), nil
}

// FindByExternalID looks a user up by linked Google subject.
func (store *Users) FindByExternalID(ctx context.Context, googleID string) (*authkit.User, error) {
	if googleID == "" {
		return nil, fmt.Errorf("store.users.find_by_external_id: %w", authkit.ErrUserNotFound)
	}
	var record userRecord
	err := store.database.gorm.WithContext(ctx).
		Where("google_id = ?", googleID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.users.find_by_external_id: %w", authkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("store.users.find_by_external_id: %w", err)
	}
	return record.toUser(), nil
}

// FindByID looks a user up by identifier.
func (store *Users) FindByID(ctx context.Context, userID string) (*authkit.User, error) {
	var record userRecord
	err := store.database.gorm.WithContext(ctx).
		Where("id = ?", userID).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store.users.find_by_id: %w", authkit.ErrUserNotFound)
		}
		return nil, fmt.Errorf("store.users.find_by_id: %w", err)
	}
	return record.toUser(), nil
}

// Create inserts a new user, assigning an identifier when absent.
func (store *Users) Create(ctx context.Context, user *authkit.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = authkit.NormalizeEmail(user.Email)
	record := fromUser(user)
	if err := store.database.gorm.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("store.users.create: %w", authkit.ErrDuplicateEmail)
		}
		return fmt.Errorf("store.users.create: %w", err)
	}
	user.CreatedAt = record.CreatedAt
	user.UpdatedAt = record.UpdatedAt
	return nil
}

// Save overwrites the full user record. This is the single mutation point
// for session state, so it must not do partial updates.
func (store *Users) Save(ctx context.Context, user *authkit.User) error {
	record := fromUser(user)
	result := store.database.gorm.WithContext(ctx).
		Model(&userRecord{}).
		Where("id = ?", user.ID).
		Select("email", "password_hash", "role", "provider", "google_id",
			"refresh_token_hash", "email_verified", "display_name", "avatar_url").
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("store.users.save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store.users.save: %w", authkit.ErrUserNotFound)
	}
	return nil
}

func (record *userRecord) toUser() *authkit.User {
	googleID := ""
	if record.GoogleID != nil {
		googleID = *record.GoogleID
	}
	return &authkit.User{
		ID:               record.ID,
		Email:            record.Email,
		PasswordHash:     record.PasswordHash,
		Role:             authkit.Role(record.Role),
		Provider:         authkit.Provider(record.Provider),
		GoogleID:         googleID,
		RefreshTokenHash: record.RefreshTokenHash,
		EmailVerified:    record.EmailVerified,
		DisplayName:      record.DisplayName,
		AvatarURL:        record.AvatarURL,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func fromUser(user *authkit.User) *userRecord {
	var googleID *string
	if user.GoogleID != "" {
		value := user.GoogleID
		googleID = &value
	}
	return &userRecord{
		ID:               user.ID,
		Email:            user.Email,
		PasswordHash:     user.PasswordHash,
		Role:             string(user.Role),
		Provider:         string(user.Provider),
		GoogleID:         googleID,
		RefreshTokenHash: user.RefreshTokenHash,
		EmailVerified:    user.EmailVerified,
		DisplayName:      user.DisplayName,
		AvatarURL:        user.AvatarURL,
	}
}
