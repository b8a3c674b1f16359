package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emrgen/qda/internal/model"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateSource(ctx context.Context, source *model.Source) error {
	err := g.db.WithContext(ctx).Create(source).Error
	return translate(err, "create source %s", source.ID)
}

func (g *GormStore) GetSource(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	var source model.Source
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&source).Error
	if err != nil {
		return nil, translate(err, "source %s", id)
	}
	return &source, nil
}

func (g *GormStore) ListSources(ctx context.Context, projectID uuid.UUID) ([]*model.Source, error) {
	var sources []*model.Source
	err := g.db.WithContext(ctx).Where("project_id = ?", projectID.String()).Order("created_at, id").Find(&sources).Error
	return sources, translate(err, "list sources of project %s", projectID)
}

func (g *GormStore) CreateCodebook(ctx context.Context, codebook *model.Codebook) error {
	err := g.db.WithContext(ctx).Create(codebook).Error
	return translate(err, "create codebook %s", codebook.ID)
}

func (g *GormStore) GetCodebook(ctx context.Context, id uuid.UUID) (*model.Codebook, error) {
	var codebook model.Codebook
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&codebook).Error
	if err != nil {
		return nil, translate(err, "codebook %s", id)
	}
	return &codebook, nil
}

func (g *GormStore) ListCodebooks(ctx context.Context, projectID uuid.UUID) ([]*model.Codebook, error) {
	var codebooks []*model.Codebook
	err := g.db.WithContext(ctx).Where("project_id = ?", projectID.String()).Order("name, id").Find(&codebooks).Error
	return codebooks, translate(err, "list codebooks of project %s", projectID)
}

func (g *GormStore) CreateCode(ctx context.Context, code *model.Code) error {
	err := g.db.WithContext(ctx).Create(code).Error
	return translate(err, "create code %s", code.ID)
}

func (g *GormStore) GetCode(ctx context.Context, id uuid.UUID) (*model.Code, error) {
	var code model.Code
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&code).Error
	if err != nil {
		return nil, translate(err, "code %s", id)
	}
	return &code, nil
}

func (g *GormStore) ListCodes(ctx context.Context, codebookIDs []uuid.UUID) ([]*model.Code, error) {
	codes := make([]*model.Code, 0)
	if len(codebookIDs) == 0 {
		return codes, nil
	}

	err := g.db.WithContext(ctx).Where("codebook_id IN ?", idStrings(codebookIDs)).Order("created_at, id").Find(&codes).Error
	return codes, translate(err, "list codes")
}

func (g *GormStore) UpdateCode(ctx context.Context, code *model.Code) error {
	res := g.db.WithContext(ctx).Model(&model.Code{}).Where("id = ?", code.ID).Updates(map[string]any{
		"name":        code.Name,
		"color":       code.Color,
		"description": code.Description,
	})
	return affected(res, "update code %s", code.ID)
}

func (g *GormStore) UpdateCodeParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	var parent *string
	if parentID != nil {
		value := parentID.String()
		parent = &value
	}

	res := g.db.WithContext(ctx).Model(&model.Code{}).Where("id = ?", id.String()).Update("parent_id", parent)
	return affected(res, "update parent of code %s", id)
}

func (g *GormStore) DeleteCodes(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	res := g.db.WithContext(ctx).Where("id IN ?", idStrings(ids)).Delete(&model.Code{})
	if res.Error != nil {
		return translate(res.Error, "delete codes")
	}
	if res.RowsAffected != int64(len(ids)) {
		logrus.Warnf("deleted %d of %d codes", res.RowsAffected, len(ids))
	}
	return nil
}

func (g *GormStore) CreateSelection(ctx context.Context, selection *model.Selection) error {
	err := g.db.WithContext(ctx).Create(selection).Error
	return translate(err, "create selection %s", selection.ID)
}

func (g *GormStore) GetSelection(ctx context.Context, id uuid.UUID) (*model.Selection, error) {
	var selection model.Selection
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&selection).Error
	if err != nil {
		return nil, translate(err, "selection %s", id)
	}
	return &selection, nil
}

func (g *GormStore) ListSelections(ctx context.Context, sourceID uuid.UUID) ([]*model.Selection, error) {
	var selections []*model.Selection
	err := g.db.WithContext(ctx).Where("source_id = ?", sourceID.String()).Find(&selections).Error
	return selections, translate(err, "list selections of source %s", sourceID)
}

func (g *GormStore) UpdateSelection(ctx context.Context, selection *model.Selection) error {
	res := g.db.WithContext(ctx).Model(&model.Selection{}).Where("id = ?", selection.ID).Updates(map[string]any{
		"code_id":     selection.CodeID,
		"description": selection.Description,
	})
	return affected(res, "update selection %s", selection.ID)
}

func (g *GormStore) DeleteSelections(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	res := g.db.WithContext(ctx).Where("id IN ?", idStrings(ids)).Delete(&model.Selection{})
	if res.Error != nil {
		return translate(res.Error, "delete selections")
	}
	if res.RowsAffected != int64(len(ids)) {
		return translate(gorm.ErrRecordNotFound, "deleted %d of %d selections", res.RowsAffected, len(ids))
	}
	return nil
}

func (g *GormStore) DeleteSelectionsByCodes(ctx context.Context, codeIDs []uuid.UUID) (int64, error) {
	if len(codeIDs) == 0 {
		return 0, nil
	}

	res := g.db.WithContext(ctx).Where("code_id IN ?", idStrings(codeIDs)).Delete(&model.Selection{})
	return res.RowsAffected, translate(res.Error, "delete selections of %d codes", len(codeIDs))
}

func (g *GormStore) ListOrphanSelections(ctx context.Context, limit int) ([]*model.Selection, error) {
	var selections []*model.Selection
	err := g.db.WithContext(ctx).
		Joins("LEFT JOIN codes ON codes.id = selections.code_id").
		Where("codes.id IS NULL").
		Limit(limit).
		Find(&selections).Error
	return selections, translate(err, "list orphan selections")
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
