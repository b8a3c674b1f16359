package model

import (
	"time"

	"github.com/emrgen/qda/internal/coding"
)

// Code is a persisted coding category. ParentID is nil for root codes.
type Code struct {
	ID          string    `gorm:"primaryKey;uuid;not null"`
	CodebookID  string    `gorm:"uuid;not null;index:idx_codes_codebook_id"`
	Codebook    *Codebook `gorm:"foreignKey:CodebookID;references:ID"`
	ParentID    *string   `gorm:"uuid;index:idx_codes_parent_id"`
	Name        string    `gorm:"not null"`
	Color       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Code) TableName() string {
	return "codes"
}

// IntoCode converts the row to the coding model. The active flag is not
// persisted; loaded codes start active.
func (c *Code) IntoCode() coding.Code {
	code := coding.Code{
		ID:          c.ID,
		CodebookID:  c.CodebookID,
		Name:        c.Name,
		Color:       c.Color,
		Description: c.Description,
		Active:      true,
	}
	if c.ParentID != nil {
		code.ParentID = *c.ParentID
	}
	return code
}

// NewCode converts a coding model code to a row.
func NewCode(code coding.Code) *Code {
	row := &Code{
		ID:          code.ID,
		CodebookID:  code.CodebookID,
		Name:        code.Name,
		Color:       code.Color,
		Description: code.Description,
	}
	if code.ParentID != "" {
		parentID := code.ParentID
		row.ParentID = &parentID
	}
	return row
}
