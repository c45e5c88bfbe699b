// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User
// model, keyed primarily by the Telegram chat identifier.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

// EnsureUser returns the user bound to chatID, creating a tenant record on
// first contact. A concurrent insert of the same chat is resolved by
// re-reading after a unique violation.
func EnsureUser(ctx context.Context, db *gorm.DB, chatID int64, name string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = domain.User{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      domain.RoleTenant,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			return GetUserByChatID(ctx, db, chatID)
		}
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by internal ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByChatID fetches a user by Telegram chat ID, or ErrNotFound.
func GetUserByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserPhone stores a contact number collected during a conversation
// flow. Returns ErrNotFound when the user does not exist.
func UpdateUserPhone(ctx context.Context, db *gorm.DB, id, phone string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("phone", phone)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
