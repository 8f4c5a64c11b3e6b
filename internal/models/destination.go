package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Destination is an export target for transformed source data.
type Destination struct {
	ID              string                 `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string                 `json:"user_id" gorm:"not null;index"`
	Name            string                 `json:"name" gorm:"not null" binding:"required"`
	DestinationType DestinationType        `json:"destination_type" gorm:"not null" binding:"required"`
	Config          map[string]interface{} `json:"config" gorm:"type:text;serializer:json"`
	Status          DestinationStatus      `json:"status" gorm:"not null;default:inactive"`
	LastSync        *time.Time             `json:"last_sync"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type DestinationType string

const (
	DestinationTypePostgres  DestinationType = "postgres"
	DestinationTypeBigQuery  DestinationType = "bigquery"
	DestinationTypeSnowflake DestinationType = "snowflake"
	DestinationTypeS3        DestinationType = "s3"
)

func (t DestinationType) Valid() bool {
	switch t {
	case DestinationTypePostgres, DestinationTypeBigQuery, DestinationTypeSnowflake, DestinationTypeS3:
		return true
	}
	return false
}

type DestinationStatus string

const (
	DestinationStatusActive   DestinationStatus = "active"
	DestinationStatusInactive DestinationStatus = "inactive"
	DestinationStatusError    DestinationStatus = "error"
)

func (Destination) TableName() string {
	return "destinations"
}

func (d *Destination) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}
