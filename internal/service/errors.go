package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/emrgen/qda/internal/coding"
)

var (
	// ErrSourceOutsideProject is returned when a source is addressed through a project it does not belong to.
	ErrSourceOutsideProject = fmt.Errorf("%w: source is not part of the project", coding.ErrNotFound)
	// ErrEmptyName is returned when a source, codebook or code is created without a name.
	ErrEmptyName = fmt.Errorf("%w: name is empty", coding.ErrInvalidOperation)
)

func parseIDs(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q: %v", coding.ErrInvalidOperation, id, err)
		}
		out[i] = parsed
	}
	return out, nil
}

func parentRef(parentID string) (*uuid.UUID, error) {
	if parentID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: parent id %q: %v", coding.ErrInvalidOperation, parentID, err)
	}
	return &id, nil
}

// IsNotFound reports whether err means an entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, coding.ErrNotFound)
}
