package repository

import (
	"context"
	"errors"
	"fmt"

	"flowtechs/internal/models"

	"gorm.io/gorm"
)

type DestinationRepository struct {
	db *gorm.DB
}

func NewDestinationRepository(db *gorm.DB) *DestinationRepository {
	return &DestinationRepository{db: db}
}

func (r *DestinationRepository) Create(ctx context.Context, destination *models.Destination) error {
	if err := r.db.WithContext(ctx).Create(destination).Error; err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	return nil
}

func (r *DestinationRepository) FindByID(ctx context.Context, userID, id string) (*models.Destination, error) {
	var destination models.Destination
	err := r.db.WithContext(ctx).First(&destination, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch destination: %w", err)
	}
	return &destination, nil
}

func (r *DestinationRepository) ListByUser(ctx context.Context, userID string) ([]models.Destination, error) {
	var destinations []models.Destination
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&destinations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	return destinations, nil
}

// Save writes every column of an existing destination.
func (r *DestinationRepository) Save(ctx context.Context, destination *models.Destination) error {
	if err := r.db.WithContext(ctx).Save(destination).Error; err != nil {
		return fmt.Errorf("failed to update destination: %w", err)
	}
	return nil
}

func (r *DestinationRepository) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Destination{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete destination: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
