package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowtechs/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateShop = errors.New("a source for this shop already exists")
)

type SourceRepository struct {
	db *gorm.DB
}

func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a new source. A unique-index violation on
// (user_id, source_type, shop_domain) is returned as ErrDuplicateShop.
func (r *SourceRepository) Create(ctx context.Context, source *models.Source) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateShop
		}
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

// Update writes the named columns of values onto the user's source.
func (r *SourceRepository) Update(ctx context.Context, userID, id string, values *models.Source, columns ...string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Source{}).
		Where("id = ? AND user_id = ?", id, userID).
		Select(columns).
		Updates(values)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return ErrDuplicateShop
		}
		return fmt.Errorf("failed to update source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateByShop writes the named columns onto the source matching the owner key
// and returns the updated row.
func (r *SourceRepository) UpdateByShop(ctx context.Context, userID string, sourceType models.SourceType, shop string, values *models.Source, columns ...string) (*models.Source, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Source{}).
		Where("user_id = ? AND source_type = ? AND shop_domain = ?", userID, sourceType, shop).
		Select(columns).
		Updates(values)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByShop(ctx, userID, sourceType, shop)
}

func (r *SourceRepository) FindByID(ctx context.Context, userID, id string) (*models.Source, error) {
	var source models.Source
	err := r.db.WithContext(ctx).First(&source, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	return &source, nil
}

// FindByIDUnscoped loads a source regardless of owner. Only background jobs use it.
func (r *SourceRepository) FindByIDUnscoped(ctx context.Context, id string) (*models.Source, error) {
	var source models.Source
	err := r.db.WithContext(ctx).First(&source, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	return &source, nil
}

func (r *SourceRepository) FindByShop(ctx context.Context, userID string, sourceType models.SourceType, shop string) (*models.Source, error) {
	var source models.Source
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND source_type = ? AND shop_domain = ?", userID, sourceType, shop).
		First(&source).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	return &source, nil
}

// ListByUser returns the user's sources, newest first.
func (r *SourceRepository) ListByUser(ctx context.Context, userID string) ([]models.Source, error) {
	var sources []models.Source
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// SetStatus changes connection_status regardless of owner.
func (r *SourceRepository) SetStatus(ctx context.Context, id string, status models.ConnectionStatus, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"connection_status": string(status), "updated_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to update source status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Source{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsUniqueViolation recognises unique-constraint failures from both drivers,
// whether or not gorm translated them.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
