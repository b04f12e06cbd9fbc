package models

import (
	"time"

	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/google/uuid"
)

// RunModel maps the etl_runs audit table
type RunModel struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Status             warehouse.RunStatus `gorm:"type:varchar(20);not null;index"`
	Source             string              `gorm:"type:varchar(100);not null"`
	RowsExtracted      int                 `gorm:"not null;default:0"`
	RowsStaged         int                 `gorm:"not null;default:0"`
	DimensionRows      int                 `gorm:"not null;default:0"`
	FactRows           int                 `gorm:"not null;default:0"`
	SchemaDrifts       int                 `gorm:"not null;default:0"`
	ParseWarnings      int                 `gorm:"not null;default:0"`
	IntegrityGaps      int                 `gorm:"not null;default:0"`
	GeolocationDropped int                 `gorm:"not null;default:0"`
	OrdersWithoutItems int                 `gorm:"not null;default:0"`
	DeliveryOutliers   int                 `gorm:"not null;default:0"`
	Error              string              `gorm:"type:text"`
	StartedAt          time.Time           `gorm:"not null;index"`
	CompletedAt        *time.Time
}

// TableName returns the table name for GORM
func (RunModel) TableName() string {
	return "etl_runs"
}

// ToDomain converts the persistence model to a domain Run
func (m *RunModel) ToDomain() *warehouse.Run {
	return &warehouse.Run{
		ID:     m.ID,
		Status: m.Status,
		Source: m.Source,
		Counts: warehouse.RunCounts{
			RowsExtracted:      m.RowsExtracted,
			RowsStaged:         m.RowsStaged,
			DimensionRows:      m.DimensionRows,
			FactRows:           m.FactRows,
			SchemaDrifts:       m.SchemaDrifts,
			ParseWarnings:      m.ParseWarnings,
			IntegrityGaps:      m.IntegrityGaps,
			GeolocationDropped: m.GeolocationDropped,
			OrdersWithoutItems: m.OrdersWithoutItems,
			DeliveryOutliers:   m.DeliveryOutliers,
		},
		Error:       m.Error,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain Run
func (m *RunModel) FromDomain(r *warehouse.Run) {
	m.ID = r.ID
	m.Status = r.Status
	m.Source = r.Source
	m.RowsExtracted = r.Counts.RowsExtracted
	m.RowsStaged = r.Counts.RowsStaged
	m.DimensionRows = r.Counts.DimensionRows
	m.FactRows = r.Counts.FactRows
	m.SchemaDrifts = r.Counts.SchemaDrifts
	m.ParseWarnings = r.Counts.ParseWarnings
	m.IntegrityGaps = r.Counts.IntegrityGaps
	m.GeolocationDropped = r.Counts.GeolocationDropped
	m.OrdersWithoutItems = r.Counts.OrdersWithoutItems
	m.DeliveryOutliers = r.Counts.DeliveryOutliers
	m.Error = r.Error
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
}

// RunModelFromDomain creates a new persistence model from a domain Run
func RunModelFromDomain(r *warehouse.Run) *RunModel {
	m := &RunModel{}
	m.FromDomain(r)
	return m
}
