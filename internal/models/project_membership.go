package models

import "time"

// ProjectMembership is a hard-deleted join row. It deliberately does not
// embed gorm.Model: a soft-deleted row would still occupy the unique
// (project, user) index and block re-adding a removed member.
type ProjectMembership struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	ProjectID uint `gorm:"not null;uniqueIndex:idx_project_user"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_project_user"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
