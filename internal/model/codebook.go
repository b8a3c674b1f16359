package model

import (
	"time"

	"github.com/emrgen/qda/internal/coding"
)

// Codebook is a named collection of codes owned by a project.
type Codebook struct {
	ID          string `gorm:"primaryKey;uuid;not null"`
	ProjectID   string `gorm:"uuid;not null;index:idx_codebooks_project_id"`
	Name        string `gorm:"not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Codebook) TableName() string {
	return "codebooks"
}

// IntoCodebook converts the row to the coding model. Codebooks start active.
func (c *Codebook) IntoCodebook() coding.Codebook {
	return coding.Codebook{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		Active:    true,
	}
}
