package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/cache"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/model"
	"github.com/emrgen/qda/internal/store"
)

// NewCodingService creates a new CodingService. Observers receive the events
// of every committed change.
func NewCodingService(provider store.Provider, segments cache.SegmentCache, observers ...coding.Observer) *CodingService {
	if segments == nil {
		segments = cache.NopSegmentCache{}
	}

	return &CodingService{
		provider:  provider,
		cache:     segments,
		observers: observers,
		projects:  make(map[uuid.UUID]*sync.RWMutex),
		sessions:  make(map[sessionKey]*sessionEntry),
		now:       time.Now,
	}
}

// CodingService serves coding sessions, one per source of a project, and
// keeps them in step with the store.
type CodingService struct {
	provider  store.Provider
	cache     cache.SegmentCache
	observers []coding.Observer

	mu       sync.Mutex
	projects map[uuid.UUID]*sync.RWMutex
	sessions map[sessionKey]*sessionEntry
	now      func() time.Time
}

// CreateSource stores a new source document of a project.
func (c *CodingService) CreateSource(ctx context.Context, projectID uuid.UUID, name, content string) (*model.Source, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	st, err := c.provider.Provide(projectID)
	if err != nil {
		return nil, err
	}

	source := &model.Source{
		ID:        uuid.New().String(),
		ProjectID: projectID.String(),
		Name:      name,
		Content:   content,
	}
	if err := st.CreateSource(ctx, source); err != nil {
		return nil, err
	}

	logrus.Infof("created source %s in project %s", source.ID, projectID)

	return source, nil
}

// ListSources returns the sources of a project.
func (c *CodingService) ListSources(ctx context.Context, projectID uuid.UUID) ([]*model.Source, error) {
	st, err := c.provider.Provide(projectID)
	if err != nil {
		return nil, err
	}
	return st.ListSources(ctx, projectID)
}

// CreateCodebook stores a new codebook. Open sessions of the project reload
// to pick it up.
func (c *CodingService) CreateCodebook(ctx context.Context, projectID uuid.UUID, name, description string) (coding.Codebook, error) {
	if strings.TrimSpace(name) == "" {
		return coding.Codebook{}, ErrEmptyName
	}

	st, err := c.provider.Provide(projectID)
	if err != nil {
		return coding.Codebook{}, err
	}

	row := &model.Codebook{
		ID:          uuid.New().String(),
		ProjectID:   projectID.String(),
		Name:        name,
		Description: description,
	}
	release := c.lockProject(projectID, true)
	defer release()

	if err := st.CreateCodebook(ctx, row); err != nil {
		return coding.Codebook{}, err
	}

	c.evictProject(ctx, st, projectID, sessionKey{})

	return row.IntoCodebook(), nil
}

// ListCodebooks returns the persisted codebooks of a project.
func (c *CodingService) ListCodebooks(ctx context.Context, projectID uuid.UUID) ([]coding.Codebook, error) {
	st, err := c.provider.Provide(projectID)
	if err != nil {
		return nil, err
	}

	rows, err := st.ListCodebooks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	codebooks := make([]coding.Codebook, len(rows))
	for i, row := range rows {
		codebooks[i] = row.IntoCodebook()
	}
	return codebooks, nil
}

// CreateCodeRequest describes a new code. A nil ParentID creates a root.
type CreateCodeRequest struct {
	CodebookID  uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	Color       string
	Description string
}

// CreateCode adds a code to the hierarchy.
func (c *CodingService) CreateCode(ctx context.Context, projectID, sourceID uuid.UUID, req CreateCodeRequest) (coding.Code, error) {
	if strings.TrimSpace(req.Name) == "" {
		return coding.Code{}, ErrEmptyName
	}

	code := coding.Code{
		ID:          uuid.New().String(),
		CodebookID:  req.CodebookID.String(),
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
		Active:      true,
	}
	if req.ParentID != nil {
		code.ParentID = req.ParentID.String()
	}

	var created coding.Code
	err := c.mutate(ctx, projectID, sourceID, true, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		created, err = session.AddCode(code)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx store.Store) error {
			return tx.CreateCode(ctx, model.NewCode(created))
		}, nil
	})

	return created, err
}

// ReparentCode moves a code below parentID, or to the roots when parentID is nil.
func (c *CodingService) ReparentCode(ctx context.Context, projectID, sourceID, codeID uuid.UUID, parentID *uuid.UUID) (coding.Code, error) {
	parent := ""
	if parentID != nil {
		parent = parentID.String()
	}

	return c.moveCode(ctx, projectID, sourceID, func(session *coding.Session) (coding.Code, error) {
		return session.ReparentCode(codeID.String(), parent)
	})
}

// RemoveCodeParent makes a code a root.
func (c *CodingService) RemoveCodeParent(ctx context.Context, projectID, sourceID, codeID uuid.UUID) (coding.Code, error) {
	return c.moveCode(ctx, projectID, sourceID, func(session *coding.Session) (coding.Code, error) {
		return session.RemoveCodeParent(codeID.String())
	})
}

// MoveCodeUp reparents a code to its grandparent.
func (c *CodingService) MoveCodeUp(ctx context.Context, projectID, sourceID, codeID uuid.UUID) (coding.Code, error) {
	return c.moveCode(ctx, projectID, sourceID, func(session *coding.Session) (coding.Code, error) {
		return session.MoveCodeUp(codeID.String())
	})
}

func (c *CodingService) moveCode(ctx context.Context, projectID, sourceID uuid.UUID, move func(*coding.Session) (coding.Code, error)) (coding.Code, error) {
	var moved coding.Code
	err := c.mutate(ctx, projectID, sourceID, true, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		moved, err = move(session)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx store.Store) error {
			return persistParent(ctx, tx, moved)
		}, nil
	})

	return moved, err
}

func persistParent(ctx context.Context, tx store.Store, code coding.Code) error {
	id, err := uuid.Parse(code.ID)
	if err != nil {
		return fmt.Errorf("%w: code id %q", coding.ErrInvalidOperation, code.ID)
	}
	parent, err := parentRef(code.ParentID)
	if err != nil {
		return err
	}
	if parent != nil {
		if err := checkAncestors(ctx, tx, id, *parent); err != nil {
			return err
		}
	}
	return tx.UpdateCodeParent(ctx, id, parent)
}

// checkAncestors walks the persisted ancestors of parentID and fails when id
// is among them. Sessions of other processes may have moved codes since this
// session was loaded.
func checkAncestors(ctx context.Context, tx store.Store, id, parentID uuid.UUID) error {
	seen := mapset.NewThreadUnsafeSet[uuid.UUID]()
	for cur := parentID; ; {
		if cur == id {
			return fmt.Errorf("%w: code %s is an ancestor of %s", coding.ErrInvalidOperation, id, parentID)
		}
		if !seen.Add(cur) {
			return fmt.Errorf("%w: ancestors of code %s form a cycle", coding.ErrConstraintViolation, parentID)
		}

		row, err := tx.GetCode(ctx, cur)
		if err != nil {
			return err
		}
		if row.ParentID == nil {
			return nil
		}
		next, err := uuid.Parse(*row.ParentID)
		if err != nil {
			return fmt.Errorf("%w: parent id %q of code %s", coding.ErrConstraintViolation, *row.ParentID, cur)
		}
		cur = next
	}
}

// DeleteCode removes a code with the selections it owns in every source of
// the project. Its descendants are removed too unless keepChildren is set,
// in which case they move up to the deleted code's parent.
func (c *CodingService) DeleteCode(ctx context.Context, projectID, sourceID, codeID uuid.UUID, keepChildren bool) (coding.Cascade, error) {
	var cascade coding.Cascade
	err := c.mutate(ctx, projectID, sourceID, true, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		if keepChildren {
			cascade, err = session.DeleteCodeKeepChildren(codeID.String())
		} else {
			cascade, err = session.DeleteCode(codeID.String())
		}
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context, tx store.Store) error {
			codeIDs, err := parseIDs(cascade.CodeIDs())
			if err != nil {
				return err
			}
			for _, child := range cascade.Promoted {
				if err := persistParent(ctx, tx, child); err != nil {
					return err
				}
			}
			removed, err := tx.DeleteSelectionsByCodes(ctx, codeIDs)
			if err != nil {
				return err
			}
			logrus.Debugf("deleting %d codes removed %d selections", len(codeIDs), removed)
			return tx.DeleteCodes(ctx, codeIDs)
		}, nil
	})

	return cascade, err
}

// SetCodeActive shows or hides a code and its descendants in this session.
func (c *CodingService) SetCodeActive(ctx context.Context, projectID, sourceID, codeID uuid.UUID, active bool) ([]coding.Code, error) {
	var changed []coding.Code
	err := c.mutate(ctx, projectID, sourceID, false, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		changed, err = session.SetCodeActive(codeID.String(), active)
		return nil, err
	})
	return changed, err
}

// SetCodebookActive shows or hides every code of a codebook in this session.
func (c *CodingService) SetCodebookActive(ctx context.Context, projectID, sourceID, codebookID uuid.UUID, active bool) ([]coding.Code, error) {
	var changed []coding.Code
	err := c.mutate(ctx, projectID, sourceID, false, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		changed, err = session.SetCodebookActive(codebookID.String(), active)
		return nil, err
	})
	return changed, err
}

// AddSelectionRequest describes a new selection of the inclusive range [Start, End].
type AddSelectionRequest struct {
	CodeID      uuid.UUID
	Start       int
	End         int
	Description string
}

// AddSelection tags a range of the source with a code.
func (c *CodingService) AddSelection(ctx context.Context, projectID, sourceID uuid.UUID, req AddSelectionRequest) (coding.Selection, error) {
	sel, err := coding.NewSelection(uuid.New().String(), sourceID.String(), req.CodeID.String(), req.Start, req.End, "")
	if err != nil {
		return coding.Selection{}, err
	}
	sel.Description = req.Description

	var added coding.Selection
	err = c.mutate(ctx, projectID, sourceID, false, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		added, err = session.AddSelection(sel)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx store.Store) error {
			return tx.CreateSelection(ctx, model.NewSelection(added))
		}, nil
	})

	return added, err
}

// ReassignSelection moves a selection to another code.
func (c *CodingService) ReassignSelection(ctx context.Context, projectID, sourceID, selectionID, codeID uuid.UUID) (coding.Selection, error) {
	return c.updateSelection(ctx, projectID, sourceID, func(session *coding.Session) (coding.Selection, error) {
		return session.ReassignSelection(selectionID.String(), codeID.String())
	})
}

// DescribeSelection replaces the annotation of a selection.
func (c *CodingService) DescribeSelection(ctx context.Context, projectID, sourceID, selectionID uuid.UUID, description string) (coding.Selection, error) {
	return c.updateSelection(ctx, projectID, sourceID, func(session *coding.Session) (coding.Selection, error) {
		return session.DescribeSelection(selectionID.String(), description)
	})
}

func (c *CodingService) updateSelection(ctx context.Context, projectID, sourceID uuid.UUID, update func(*coding.Session) (coding.Selection, error)) (coding.Selection, error) {
	var updated coding.Selection
	err := c.mutate(ctx, projectID, sourceID, false, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		updated, err = update(session)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx store.Store) error {
			return tx.UpdateSelection(ctx, model.NewSelection(updated))
		}, nil
	})

	return updated, err
}

// RemoveSelections deletes every listed selection, or none of them.
func (c *CodingService) RemoveSelections(ctx context.Context, projectID, sourceID uuid.UUID, selectionIDs ...uuid.UUID) ([]coding.Selection, error) {
	ids := make([]string, len(selectionIDs))
	for i, id := range selectionIDs {
		ids[i] = id.String()
	}

	var removed []coding.Selection
	err := c.mutate(ctx, projectID, sourceID, false, func(session *coding.Session) (func(context.Context, store.Store) error, error) {
		var err error
		removed, err = session.RemoveSelections(ids...)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx store.Store) error {
			removedIDs, err := parseIDs(coding.Cascade{Selections: removed}.SelectionIDs())
			if err != nil {
				return err
			}
			return tx.DeleteSelections(ctx, removedIDs)
		}, nil
	})

	return removed, err
}

// CodeNode is a code with its depth in the hierarchy.
type CodeNode struct {
	coding.Code
	Depth int
}

// CodeTree returns every code depth first, parents before children.
func (c *CodingService) CodeTree(ctx context.Context, projectID, sourceID uuid.UUID) ([]CodeNode, error) {
	var nodes []CodeNode
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		session.WalkCodes(func(code coding.Code, depth int) {
			nodes = append(nodes, CodeNode{Code: code, Depth: depth})
		})
		return nil
	})
	return nodes, err
}

// CodePath returns the codes from the root down to codeID.
func (c *CodingService) CodePath(ctx context.Context, projectID, sourceID, codeID uuid.UUID) ([]coding.Code, error) {
	var path []coding.Code
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		var err error
		path, err = session.CodePath(codeID.String())
		return err
	})
	return path, err
}

// Selections returns every selection of the source in render order.
func (c *CodingService) Selections(ctx context.Context, projectID, sourceID uuid.UUID) ([]coding.Selection, error) {
	var selections []coding.Selection
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		selections = session.Selections()
		return nil
	})
	return selections, err
}

// Segments partitions the source by the selections of active codes. With
// gaps the result covers the whole text. Segments of sessions without hidden
// codes are cached.
func (c *CodingService) Segments(ctx context.Context, projectID, sourceID uuid.UUID, withGaps bool) ([]coding.Segment, error) {
	var segments []coding.Segment
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		// only the unfiltered partition is shared through the cache
		if session.Filtered() {
			segments = session.Segments()
			if withGaps {
				segments = coding.FillGaps(segments, session.TextLength())
			}
			return nil
		}

		cached, ok, err := c.cache.GetSegments(ctx, sourceID)
		if err != nil {
			logrus.Warnf("failed to read cached segments of source %s: %v", sourceID, err)
		}

		if ok {
			segments = cached
		} else {
			segments = session.Segments()
			if err := c.cache.SetSegments(ctx, sourceID, segments); err != nil {
				logrus.Warnf("failed to cache segments of source %s: %v", sourceID, err)
			}
		}

		if withGaps {
			segments = coding.FillGaps(segments, session.TextLength())
		}
		return nil
	})
	return segments, err
}

// Excerpt returns the source text of the inclusive range [start, end].
func (c *CodingService) Excerpt(ctx context.Context, projectID, sourceID uuid.UUID, start, end int) (string, error) {
	var text string
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		var err error
		text, err = session.Excerpt(start, end)
		return err
	})
	return text, err
}

// Intersections returns the overlap graph of the active selections.
func (c *CodingService) Intersections(ctx context.Context, projectID, sourceID uuid.UUID) (*coding.IntersectionGraph, error) {
	segments, err := c.Segments(ctx, projectID, sourceID, false)
	if err != nil {
		return nil, err
	}
	return coding.NewIntersectionGraph(segments), nil
}

// CodesAt returns the active codes applying at offset, innermost first.
func (c *CodingService) CodesAt(ctx context.Context, projectID, sourceID uuid.UUID, offset int) ([]coding.Code, error) {
	var codes []coding.Code
	err := c.read(ctx, projectID, sourceID, func(session *coding.Session) error {
		if offset < 0 || offset >= session.TextLength() {
			return fmt.Errorf("%w: offset %d is outside the source", coding.ErrInvalidOperation, offset)
		}
		codes = session.CodesAt(offset)
		return nil
	})
	return codes, err
}
