package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transformation maps a source onto a destination, optionally adding derived
// columns computed from the source's fields.
type Transformation struct {
	ID             string          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string          `json:"user_id" gorm:"not null;index"`
	Name           string          `json:"name" gorm:"not null"`
	SourceID       string          `json:"source_id" gorm:"not null;index"`
	DestinationID  string          `json:"destination_id" gorm:"not null;index"`
	SelectedFields []string        `json:"selected_fields" gorm:"type:text;serializer:json"`
	DerivedColumns []DerivedColumn `json:"derived_columns" gorm:"type:text;serializer:json"`
	LastRun        *time.Time      `json:"last_run"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DerivedColumn is a named expression over the fields of one source API.
type DerivedColumn struct {
	API        string `json:"api"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

func (Transformation) TableName() string {
	return "transformations"
}

func (t *Transformation) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}
