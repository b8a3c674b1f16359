package coding

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Selection is an inclusive character interval [Start, End] of a source,
// tagged with exactly one code.
type Selection struct {
	ID          string
	SourceID    string
	CodeID      string
	Start       int
	End         int
	Text        string
	Description string
}

// NewSelection validates the interval and returns the selection.
func NewSelection(id, sourceID, codeID string, start, end int, text string) (Selection, error) {
	sel := Selection{
		ID:       id,
		SourceID: sourceID,
		CodeID:   codeID,
		Start:    start,
		End:      end,
		Text:     text,
	}
	if err := sel.validate(); err != nil {
		return Selection{}, err
	}
	return sel, nil
}

func (s Selection) validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: selection id is empty", ErrInvalidOperation)
	case s.CodeID == "":
		return fmt.Errorf("%w: selection %s has no code", ErrInvalidOperation, s.ID)
	case s.Start < 0:
		return fmt.Errorf("%w: selection %s starts before 0", ErrInvalidOperation, s.ID)
	case s.End < s.Start:
		return fmt.Errorf("%w: selection %s ends before it starts", ErrInvalidOperation, s.ID)
	case s.End == math.MaxInt:
		// segment cuts sit at End+1
		return fmt.Errorf("%w: selection %s ends at the largest offset", ErrInvalidOperation, s.ID)
	}
	return nil
}

// Len is End - Start.
func (s Selection) Len() int {
	return s.End - s.Start
}

// Covers reports whether index lies inside the selection.
func (s Selection) Covers(index int) bool {
	return s.Start <= index && index <= s.End
}

// Overlaps reports whether the two intervals share at least one offset.
func (s Selection) Overlaps(o Selection) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// compareRender orders shorter selections first, then by start. The id
// keeps the order total.
func compareRender(a, b Selection) int {
	return cmp.Or(
		cmp.Compare(a.Len(), b.Len()),
		cmp.Compare(a.Start, b.Start),
		strings.Compare(a.ID, b.ID),
	)
}

// SortForRender sorts selections in render order in place.
func SortForRender(selections []Selection) {
	slices.SortFunc(selections, compareRender)
}

// CodeLookup answers whether a code exists. *Hierarchy implements it.
type CodeLookup interface {
	Has(id string) bool
}

// SelectionStore holds the selections of one source.
type SelectionStore struct {
	codes      CodeLookup
	selections map[string]*Selection
}

// NewSelectionStore creates an empty store. Selections may only reference
// codes known to codes.
func NewSelectionStore(codes CodeLookup) *SelectionStore {
	return &SelectionStore{
		codes:      codes,
		selections: make(map[string]*Selection),
	}
}

// Len returns the number of selections.
func (s *SelectionStore) Len() int {
	return len(s.selections)
}

// Add inserts a selection.
func (s *SelectionStore) Add(sel Selection) error {
	if err := sel.validate(); err != nil {
		return err
	}
	if _, ok := s.selections[sel.ID]; ok {
		return fmt.Errorf("%w: selection %s", ErrDuplicateID, sel.ID)
	}
	if !s.codes.Has(sel.CodeID) {
		return fmt.Errorf("%w: code %s", ErrNotFound, sel.CodeID)
	}

	s.selections[sel.ID] = &sel

	return nil
}

// Get returns a copy of the selection.
func (s *SelectionStore) Get(id string) (Selection, error) {
	sel, ok := s.selections[id]
	if !ok {
		return Selection{}, fmt.Errorf("%w: selection %s", ErrNotFound, id)
	}
	return *sel, nil
}

// Remove deletes one selection.
func (s *SelectionStore) Remove(id string) (Selection, error) {
	removed, err := s.RemoveAll([]string{id})
	if err != nil {
		return Selection{}, err
	}
	return removed[0], nil
}

// RemoveAll deletes every listed selection, or none of them when any id is missing.
func (s *SelectionStore) RemoveAll(ids []string) ([]Selection, error) {
	for _, id := range ids {
		if _, ok := s.selections[id]; !ok {
			return nil, fmt.Errorf("%w: selection %s", ErrNotFound, id)
		}
	}

	removed := make([]Selection, 0, len(ids))
	for _, id := range ids {
		sel, ok := s.selections[id]
		if !ok {
			// listed twice
			continue
		}
		removed = append(removed, *sel)
		delete(s.selections, id)
	}

	return removed, nil
}

// ReassignCode moves a selection to another code. The interval and text are kept.
func (s *SelectionStore) ReassignCode(id, codeID string) (Selection, error) {
	sel, ok := s.selections[id]
	if !ok {
		return Selection{}, fmt.Errorf("%w: selection %s", ErrNotFound, id)
	}
	if !s.codes.Has(codeID) {
		return Selection{}, fmt.Errorf("%w: code %s", ErrNotFound, codeID)
	}

	sel.CodeID = codeID

	return *sel, nil
}

// Describe replaces the annotation of a selection.
func (s *SelectionStore) Describe(id, description string) (Selection, error) {
	sel, ok := s.selections[id]
	if !ok {
		return Selection{}, fmt.Errorf("%w: selection %s", ErrNotFound, id)
	}

	sel.Description = description

	return *sel, nil
}

// AllSortedForRender returns every selection, shortest first, then by start.
// Renderers keep nested selections on top of the ones enclosing them.
func (s *SelectionStore) AllSortedForRender() []Selection {
	return s.filter(func(Selection) bool { return true })
}

// CoveringOffset returns the selections containing index in render order.
func (s *SelectionStore) CoveringOffset(index int) []Selection {
	return s.filter(func(sel Selection) bool { return sel.Covers(index) })
}

// ByCodes returns the selections owned by any of the given codes.
func (s *SelectionStore) ByCodes(codeIDs ...string) []Selection {
	owners := mapset.NewThreadUnsafeSet(codeIDs...)
	return s.filter(func(sel Selection) bool {
		return owners.Contains(sel.CodeID)
	})
}

func (s *SelectionStore) filter(keep func(Selection) bool) []Selection {
	out := make([]Selection, 0, len(s.selections))
	for _, sel := range s.selections {
		if keep(*sel) {
			out = append(out, *sel)
		}
	}
	SortForRender(out)
	return out
}
