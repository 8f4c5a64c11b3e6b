package repository

import (
	"context"
	"errors"
	"fmt"

	"flowtechs/internal/models"

	"gorm.io/gorm"
)

type TransformationRepository struct {
	db *gorm.DB
}

func NewTransformationRepository(db *gorm.DB) *TransformationRepository {
	return &TransformationRepository{db: db}
}

func (r *TransformationRepository) Create(ctx context.Context, transformation *models.Transformation) error {
	if err := r.db.WithContext(ctx).Create(transformation).Error; err != nil {
		return fmt.Errorf("failed to create transformation: %w", err)
	}
	return nil
}

func (r *TransformationRepository) FindByID(ctx context.Context, userID, id string) (*models.Transformation, error) {
	var transformation models.Transformation
	err := r.db.WithContext(ctx).First(&transformation, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch transformation: %w", err)
	}
	return &transformation, nil
}

func (r *TransformationRepository) ListByUser(ctx context.Context, userID string) ([]models.Transformation, error) {
	var transformations []models.Transformation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&transformations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transformations: %w", err)
	}
	return transformations, nil
}

func (r *TransformationRepository) Save(ctx context.Context, transformation *models.Transformation) error {
	if err := r.db.WithContext(ctx).Save(transformation).Error; err != nil {
		return fmt.Errorf("failed to update transformation: %w", err)
	}
	return nil
}

func (r *TransformationRepository) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Transformation{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete transformation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
