package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/emrgen/qda/internal/model"
)

type Store interface {
	SourceStore
	CodebookStore
	CodeStore
	SelectionStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type SourceStore interface {
	// CreateSource creates a new source document.
	CreateSource(ctx context.Context, source *model.Source) error
	// GetSource retrieves a source by ID.
	GetSource(ctx context.Context, id uuid.UUID) (*model.Source, error)
	// ListSources retrieves the sources of a project.
	ListSources(ctx context.Context, projectID uuid.UUID) ([]*model.Source, error)
}

type CodebookStore interface {
	// CreateCodebook creates a new codebook.
	CreateCodebook(ctx context.Context, codebook *model.Codebook) error
	// GetCodebook retrieves a codebook by ID.
	GetCodebook(ctx context.Context, id uuid.UUID) (*model.Codebook, error)
	// ListCodebooks retrieves the codebooks of a project.
	ListCodebooks(ctx context.Context, projectID uuid.UUID) ([]*model.Codebook, error)
}

type CodeStore interface {
	// CreateCode creates a new code.
	CreateCode(ctx context.Context, code *model.Code) error
	// GetCode retrieves a code by ID.
	GetCode(ctx context.Context, id uuid.UUID) (*model.Code, error)
	// ListCodes retrieves the codes of the given codebooks.
	ListCodes(ctx context.Context, codebookIDs []uuid.UUID) ([]*model.Code, error)
	// UpdateCode updates name, color and description of a code.
	UpdateCode(ctx context.Context, code *model.Code) error
	// UpdateCodeParent sets the parent of a code, nil makes it a root.
	UpdateCodeParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	// DeleteCodes deletes codes by ID.
	DeleteCodes(ctx context.Context, ids []uuid.UUID) error
}

type SelectionStore interface {
	// CreateSelection creates a new selection.
	CreateSelection(ctx context.Context, selection *model.Selection) error
	// GetSelection retrieves a selection by ID.
	GetSelection(ctx context.Context, id uuid.UUID) (*model.Selection, error)
	// ListSelections retrieves the selections of a source.
	ListSelections(ctx context.Context, sourceID uuid.UUID) ([]*model.Selection, error)
	// UpdateSelection updates the code and description of a selection.
	UpdateSelection(ctx context.Context, selection *model.Selection) error
	// DeleteSelections deletes selections by ID.
	DeleteSelections(ctx context.Context, ids []uuid.UUID) error
	// DeleteSelectionsByCodes deletes the selections of the given codes in every source.
	DeleteSelectionsByCodes(ctx context.Context, codeIDs []uuid.UUID) (int64, error)
	// ListOrphanSelections retrieves selections whose code no longer exists.
	ListOrphanSelections(ctx context.Context, limit int) ([]*model.Selection, error)
}
