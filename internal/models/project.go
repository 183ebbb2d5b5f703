package models

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	gorm.Model

	Name        string     `gorm:"not null"`
	Description string     `gorm:"not null"`
	StartDate   time.Time  `gorm:"type:date;not null;index"`
	EndDate     *time.Time `gorm:"type:date"`
	Status      string     `gorm:"not null;index"`

	// Relationships
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
