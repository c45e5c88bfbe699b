// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Apartment
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/domain"
)

// CreateApartment inserts a new listing with a generated UUID primary key.
func CreateApartment(ctx context.Context, db *gorm.DB, a *domain.Apartment) (*domain.Apartment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetApartment fetches a listing by ID, or ErrNotFound.
func GetApartment(ctx context.Context, db *gorm.DB, id string) (*domain.Apartment, error) {
	var a domain.Apartment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAvailableByArea returns available listings, optionally filtered by
// area (case-insensitive exact match) and minimum guest capacity. Results
// are ordered by price ascending.
func ListAvailableByArea(ctx context.Context, db *gorm.DB, area string, guests, offset, limit int) ([]domain.Apartment, error) {
	q := db.WithContext(ctx).
		Where("available = ?", true).
		Order("price_per_night asc")
	if area != "" {
		q = q.Where("LOWER(area) = LOWER(?)", area)
	}
	if guests > 0 {
		q = q.Where("max_guests >= ?", guests)
	}
	var out []domain.Apartment
	err := q.Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// SetApartmentAvailability flips the bookable flag on a listing.
// Returns ErrNotFound when the listing does not exist.
func SetApartmentAvailability(ctx context.Context, db *gorm.DB, id string, available bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Apartment{}).
		Where("id = ?", id).
		Update("available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
