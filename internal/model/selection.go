package model

import (
	"time"

	"github.com/emrgen/qda/internal/coding"
)

// Selection is a persisted character interval [Start, End] of a source.
type Selection struct {
	ID          string  `gorm:"primaryKey;uuid;not null"`
	SourceID    string  `gorm:"uuid;not null;index:idx_selections_source_id"`
	Source      *Source `gorm:"foreignKey:SourceID;references:ID"`
	CodeID      string  `gorm:"uuid;not null;index:idx_selections_code_id"`
	Code        *Code   `gorm:"foreignKey:CodeID;references:ID"`
	Start       int     `gorm:"column:start_offset;not null"`
	End         int     `gorm:"column:end_offset;not null"`
	Text        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Selection) TableName() string {
	return "selections"
}

func (s *Selection) IntoSelection() coding.Selection {
	return coding.Selection{
		ID:          s.ID,
		SourceID:    s.SourceID,
		CodeID:      s.CodeID,
		Start:       s.Start,
		End:         s.End,
		Text:        s.Text,
		Description: s.Description,
	}
}

func NewSelection(sel coding.Selection) *Selection {
	return &Selection{
		ID:          sel.ID,
		SourceID:    sel.SourceID,
		CodeID:      sel.CodeID,
		Start:       sel.Start,
		End:         sel.End,
		Text:        sel.Text,
		Description: sel.Description,
	}
}
