package coding

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Hierarchy is the forest of codes of one project.
//
// The parent relation is kept acyclic: every mutation that changes a parent
// goes through checkReparent, which searches the subtree of the moved code.
type Hierarchy struct {
	codes map[string]*Code
	// children of every parent in insertion order, roots are kept under ""
	children map[string][]string
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		codes:    make(map[string]*Code),
		children: make(map[string][]string),
	}
}

// LoadHierarchy builds a hierarchy from persisted codes. Codes may be given in
// any order; a dangling parent reference or a cycle fails the whole load.
func LoadHierarchy(codes []Code) (*Hierarchy, error) {
	h := NewHierarchy()
	for i := range codes {
		code := codes[i]
		if err := code.validate(); err != nil {
			return nil, err
		}
		if _, ok := h.codes[code.ID]; ok {
			return nil, fmt.Errorf("%w: code %s", ErrDuplicateID, code.ID)
		}
		h.codes[code.ID] = &code
	}

	for _, code := range codes {
		if code.ParentID == "" {
			continue
		}
		if _, ok := h.codes[code.ParentID]; !ok {
			return nil, fmt.Errorf("%w: code %s references missing parent %s", ErrConstraintViolation, code.ID, code.ParentID)
		}
	}

	for _, code := range codes {
		if h.hasCycleFrom(code.ID) {
			return nil, fmt.Errorf("%w: code %s is its own ancestor", ErrInvalidOperation, code.ID)
		}
	}

	for _, code := range codes {
		h.children[code.ParentID] = append(h.children[code.ParentID], code.ID)
	}

	return h, nil
}

func (h *Hierarchy) hasCycleFrom(id string) bool {
	seen := mapset.NewThreadUnsafeSet[string]()
	for cur := id; cur != ""; cur = h.codes[cur].ParentID {
		if !seen.Add(cur) {
			return true
		}
	}
	return false
}

// Len returns the number of codes.
func (h *Hierarchy) Len() int {
	return len(h.codes)
}

// Has reports whether the code exists.
func (h *Hierarchy) Has(id string) bool {
	_, ok := h.codes[id]
	return ok
}

// Get returns a copy of the code.
func (h *Hierarchy) Get(id string) (Code, error) {
	code, ok := h.codes[id]
	if !ok {
		return Code{}, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	return *code, nil
}

// Roots returns the codes without a parent.
func (h *Hierarchy) Roots() []Code {
	return h.collect(h.children[""])
}

// Children returns the immediate children of a code.
func (h *Hierarchy) Children(id string) ([]Code, error) {
	if !h.Has(id) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	return h.collect(h.children[id]), nil
}

// Descendants returns every code below id in breadth-first order, id excluded.
func (h *Hierarchy) Descendants(id string) ([]Code, error) {
	if !h.Has(id) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	ids := h.subtree(id)
	return h.collect(ids[1:]), nil
}

// Path returns the chain of codes from the root down to id.
func (h *Hierarchy) Path(id string) ([]Code, error) {
	if !h.Has(id) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}

	var path []Code
	for cur := id; cur != ""; cur = h.codes[cur].ParentID {
		path = append(path, *h.codes[cur])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, nil
}

// Walk visits every code depth first, parents before children.
func (h *Hierarchy) Walk(fn func(code Code, depth int)) {
	var visit func(ids []string, depth int)
	visit = func(ids []string, depth int) {
		for _, id := range ids {
			fn(*h.codes[id], depth)
			visit(h.children[id], depth+1)
		}
	}
	visit(h.children[""], 0)
}

// All returns every code in Walk order.
func (h *Hierarchy) All() []Code {
	codes := make([]Code, 0, len(h.codes))
	h.Walk(func(code Code, _ int) {
		codes = append(codes, code)
	})
	return codes
}

// Add inserts a new code under its ParentID.
func (h *Hierarchy) Add(code Code) error {
	if err := code.validate(); err != nil {
		return err
	}
	if h.Has(code.ID) {
		return fmt.Errorf("%w: code %s", ErrDuplicateID, code.ID)
	}
	if code.ParentID != "" {
		parent, ok := h.codes[code.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent code %s", ErrNotFound, code.ParentID)
		}
		if parent.CodebookID != code.CodebookID {
			return fmt.Errorf("%w: parent %s belongs to another codebook", ErrInvalidOperation, parent.ID)
		}
	}

	h.codes[code.ID] = &code
	h.children[code.ParentID] = append(h.children[code.ParentID], code.ID)

	return nil
}

// CanReparent reports whether parentID may become the parent of id.
// An empty parentID proposes making the code a root.
func (h *Hierarchy) CanReparent(id, parentID string) bool {
	return h.checkReparent(id, parentID) == nil
}

func (h *Hierarchy) checkReparent(id, parentID string) error {
	code, ok := h.codes[id]
	if !ok {
		return fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	if id == parentID {
		return fmt.Errorf("%w: code %s cannot be its own parent", ErrInvalidOperation, id)
	}
	if code.ParentID == parentID {
		return fmt.Errorf("%w: code %s already has this parent", ErrInvalidOperation, id)
	}
	if parentID == "" {
		return nil
	}

	parent, ok := h.codes[parentID]
	if !ok {
		return fmt.Errorf("%w: parent code %s", ErrNotFound, parentID)
	}
	if parent.CodebookID != code.CodebookID {
		return fmt.Errorf("%w: parent %s belongs to another codebook", ErrInvalidOperation, parentID)
	}
	if h.subtreeContains(id, parentID) {
		return fmt.Errorf("%w: code %s is a descendant of %s", ErrInvalidOperation, parentID, id)
	}

	return nil
}

// Reparent moves id below parentID, or to the roots when parentID is empty.
func (h *Hierarchy) Reparent(id, parentID string) error {
	if err := h.checkReparent(id, parentID); err != nil {
		return err
	}

	code := h.codes[id]
	h.detach(code)
	h.attach(code, parentID)

	return nil
}

// RemoveParent promotes id to a root. A root code is left untouched.
func (h *Hierarchy) RemoveParent(id string) error {
	code, ok := h.codes[id]
	if !ok {
		return fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	if code.IsRoot() {
		return nil
	}

	h.detach(code)
	h.attach(code, "")

	return nil
}

// MoveUp reparents id to its grandparent, or makes it a root when its parent is a root.
func (h *Hierarchy) MoveUp(id string) error {
	code, ok := h.codes[id]
	if !ok {
		return fmt.Errorf("%w: code %s", ErrNotFound, id)
	}
	if code.IsRoot() {
		return fmt.Errorf("%w: code %s has no parent to move up from", ErrNotFound, id)
	}

	grandparent := h.codes[code.ParentID].ParentID
	h.detach(code)
	h.attach(code, grandparent)

	return nil
}

// SetActive sets the active flag on id and all of its descendants and returns
// the affected codes, id first.
func (h *Hierarchy) SetActive(id string, active bool) ([]Code, error) {
	if !h.Has(id) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}

	ids := h.subtree(id)
	for _, cur := range ids {
		h.codes[cur].Active = active
	}

	return h.collect(ids), nil
}

// SetCodebookActive sets the active flag on every code of a codebook.
func (h *Hierarchy) SetCodebookActive(codebookID string, active bool) []Code {
	var changed []Code
	h.Walk(func(code Code, _ int) {
		if code.CodebookID == codebookID {
			h.codes[code.ID].Active = active
			code.Active = active
			changed = append(changed, code)
		}
	})
	return changed
}

// Delete removes id and its whole subtree. The removed codes are returned
// children first, so no returned code outlives its parent.
func (h *Hierarchy) Delete(id string) ([]Code, error) {
	if !h.Has(id) {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}

	ids := h.subtree(id)
	removed := make([]Code, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		code := h.codes[ids[i]]
		h.detach(code)
		delete(h.children, code.ID)
		delete(h.codes, code.ID)
		removed = append(removed, *code)
	}

	return removed, nil
}

// DeleteAndPromote removes only id; its children move to id's parent.
// It returns the promoted children.
func (h *Hierarchy) DeleteAndPromote(id string) ([]Code, error) {
	code, ok := h.codes[id]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}

	childIDs := append([]string(nil), h.children[id]...)
	for _, childID := range childIDs {
		child := h.codes[childID]
		h.detach(child)
		h.attach(child, code.ParentID)
	}

	h.detach(code)
	delete(h.children, id)
	delete(h.codes, id)

	return h.collect(childIDs), nil
}

// subtree returns id followed by its descendants in breadth-first order.
func (h *Hierarchy) subtree(id string) []string {
	ids := []string{id}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, h.children[ids[i]]...)
	}
	return ids
}

func (h *Hierarchy) subtreeContains(root, target string) bool {
	stack := append([]string(nil), h.children[root]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		stack = append(stack, h.children[cur]...)
	}
	return false
}

func (h *Hierarchy) detach(code *Code) {
	siblings := h.children[code.ParentID]
	for i, id := range siblings {
		if id == code.ID {
			siblings = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(h.children, code.ParentID)
		return
	}
	h.children[code.ParentID] = siblings
}

func (h *Hierarchy) attach(code *Code, parentID string) {
	code.ParentID = parentID
	h.children[parentID] = append(h.children[parentID], code.ID)
}

func (h *Hierarchy) collect(ids []string) []Code {
	codes := make([]Code, 0, len(ids))
	for _, id := range ids {
		codes = append(codes, *h.codes[id])
	}
	return codes
}
