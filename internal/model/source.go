package model

import "time"

// Source is a document of a project that selections are anchored to.
type Source struct {
	ID        string `gorm:"primaryKey;uuid;not null"`
	ProjectID string `gorm:"uuid;not null;index:idx_sources_project_id"`
	Name      string `gorm:"not null"`
	Content   string // plain text, offsets are counted in characters
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Source) TableName() string {
	return "sources"
}
