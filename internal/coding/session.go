package coding

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Cascade lists everything a code deletion touched.
type Cascade struct {
	Codes      []Code      // removed codes, children first
	Promoted   []Code      // children moved up by DeleteCodeKeepChildren
	Selections []Selection // removed selections
}

// CodeIDs returns the ids of the removed codes.
func (c Cascade) CodeIDs() []string {
	ids := make([]string, len(c.Codes))
	for i, code := range c.Codes {
		ids[i] = code.ID
	}
	return ids
}

// SelectionIDs returns the ids of the removed selections.
func (c Cascade) SelectionIDs() []string {
	return selectionIDs(c.Selections)
}

// SessionConfig is the state a Session starts from.
type SessionConfig struct {
	ProjectID  string
	SourceID   string
	Text       string
	Codebooks  []Codebook
	Codes      []Code
	Selections []Selection
}

// Session is the coding facade for one source of one project. It is not
// safe for concurrent use; callers guard it with one mutex per session.
type Session struct {
	projectID  string
	sourceID   string
	text       []rune
	codebooks  map[string]*Codebook
	hierarchy  *Hierarchy
	selections *SelectionStore

	observers    map[int]Observer
	nextObserver int
}

// NewSession validates the loaded state and builds a session.
func NewSession(cfg SessionConfig) (*Session, error) {
	s := &Session{
		projectID: cfg.ProjectID,
		sourceID:  cfg.SourceID,
		text:      []rune(cfg.Text),
		codebooks: make(map[string]*Codebook),
		observers: make(map[int]Observer),
	}

	for i := range cfg.Codebooks {
		cb := cfg.Codebooks[i]
		if _, ok := s.codebooks[cb.ID]; ok {
			return nil, fmt.Errorf("%w: codebook %s", ErrDuplicateID, cb.ID)
		}
		s.codebooks[cb.ID] = &cb
	}

	for _, code := range cfg.Codes {
		if _, ok := s.codebooks[code.CodebookID]; !ok {
			return nil, fmt.Errorf("%w: code %s references missing codebook %s", ErrConstraintViolation, code.ID, code.CodebookID)
		}
	}

	hierarchy, err := LoadHierarchy(cfg.Codes)
	if err != nil {
		return nil, err
	}
	s.hierarchy = hierarchy
	s.selections = NewSelectionStore(hierarchy)

	for _, sel := range cfg.Selections {
		if sel.SourceID != "" && sel.SourceID != s.sourceID {
			return nil, fmt.Errorf("%w: selection %s belongs to source %s", ErrConstraintViolation, sel.ID, sel.SourceID)
		}
		sel.SourceID = s.sourceID
		if err := s.selections.Add(sel); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Session) ProjectID() string {
	return s.projectID
}

func (s *Session) SourceID() string {
	return s.sourceID
}

// TextLength returns the source length in characters.
func (s *Session) TextLength() int {
	return len(s.text)
}

// Excerpt returns the source text of the inclusive range [start, end].
func (s *Session) Excerpt(start, end int) (string, error) {
	if start < 0 || end < start || end >= len(s.text) {
		return "", fmt.Errorf("%w: range [%d, %d] is outside the source", ErrInvalidOperation, start, end)
	}
	return string(s.text[start : end+1]), nil
}

// Subscribe registers an observer and returns the function removing it.
func (s *Session) Subscribe(o Observer) func() {
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o
	return func() {
		delete(s.observers, id)
	}
}

func (s *Session) emit(kind EventKind, codes []Code, selections []Selection) {
	event := Event{
		Kind:       kind,
		ProjectID:  s.projectID,
		SourceID:   s.sourceID,
		Codes:      codes,
		Selections: selections,
	}
	if event.Empty() {
		return
	}

	keys := make([]int, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.observers[k].Notify(event)
	}
}

// Codebooks returns the codebooks of the session ordered by name.
func (s *Session) Codebooks() []Codebook {
	out := make([]Codebook, 0, len(s.codebooks))
	for _, cb := range s.codebooks {
		out = append(out, *cb)
	}
	slices.SortFunc(out, func(a, b Codebook) int {
		return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.ID, b.ID))
	})
	return out
}

// AddCodebook registers a codebook with the session.
func (s *Session) AddCodebook(cb Codebook) error {
	if _, ok := s.codebooks[cb.ID]; ok {
		return fmt.Errorf("%w: codebook %s", ErrDuplicateID, cb.ID)
	}
	s.codebooks[cb.ID] = &cb
	return nil
}

// Code returns one code.
func (s *Session) Code(id string) (Code, error) {
	return s.hierarchy.Get(id)
}

// Codes returns all codes, parents before children.
func (s *Session) Codes() []Code {
	return s.hierarchy.All()
}

// WalkCodes visits the code forest depth first.
func (s *Session) WalkCodes(fn func(code Code, depth int)) {
	s.hierarchy.Walk(fn)
}

// CodePath returns the codes from the root down to id.
func (s *Session) CodePath(id string) ([]Code, error) {
	return s.hierarchy.Path(id)
}

// AddCode inserts a code into an existing codebook.
func (s *Session) AddCode(code Code) (Code, error) {
	if _, ok := s.codebooks[code.CodebookID]; !ok {
		return Code{}, fmt.Errorf("%w: codebook %s", ErrNotFound, code.CodebookID)
	}
	if err := s.hierarchy.Add(code); err != nil {
		return Code{}, err
	}

	s.emit(EventAdded, []Code{code}, nil)

	return code, nil
}

// CanReparent reports whether parentID may become the parent of id.
func (s *Session) CanReparent(id, parentID string) bool {
	return s.hierarchy.CanReparent(id, parentID)
}

// ReparentCode moves a code below parentID, or to the roots when parentID is empty.
func (s *Session) ReparentCode(id, parentID string) (Code, error) {
	if err := s.hierarchy.Reparent(id, parentID); err != nil {
		return Code{}, err
	}
	return s.emitCodeUpdate(id)
}

// RemoveCodeParent makes a code a root.
func (s *Session) RemoveCodeParent(id string) (Code, error) {
	if err := s.hierarchy.RemoveParent(id); err != nil {
		return Code{}, err
	}
	return s.emitCodeUpdate(id)
}

// MoveCodeUp reparents a code to its grandparent.
func (s *Session) MoveCodeUp(id string) (Code, error) {
	if err := s.hierarchy.MoveUp(id); err != nil {
		return Code{}, err
	}
	return s.emitCodeUpdate(id)
}

func (s *Session) emitCodeUpdate(id string) (Code, error) {
	code, err := s.hierarchy.Get(id)
	if err != nil {
		return Code{}, err
	}
	s.emit(EventUpdated, []Code{code}, nil)
	return code, nil
}

// DeleteCode removes a code, its descendants and every selection they own.
func (s *Session) DeleteCode(id string) (Cascade, error) {
	if !s.hierarchy.Has(id) {
		return Cascade{}, fmt.Errorf("%w: code %s", ErrNotFound, id)
	}

	descendants, err := s.hierarchy.Descendants(id)
	if err != nil {
		return Cascade{}, err
	}
	owners := []string{id}
	for _, code := range descendants {
		owners = append(owners, code.ID)
	}

	owned := s.selections.ByCodes(owners...)
	removed, err := s.selections.RemoveAll(selectionIDs(owned))
	if err != nil {
		return Cascade{}, err
	}
	codes, err := s.hierarchy.Delete(id)
	if err != nil {
		return Cascade{}, err
	}

	cascade := Cascade{Codes: codes, Selections: removed}
	s.emit(EventRemoved, cascade.Codes, cascade.Selections)

	return cascade, nil
}

// DeleteCodeKeepChildren removes a code and its selections; its children
// move to the deleted code's parent.
func (s *Session) DeleteCodeKeepChildren(id string) (Cascade, error) {
	code, err := s.hierarchy.Get(id)
	if err != nil {
		return Cascade{}, err
	}

	removed, err := s.selections.RemoveAll(selectionIDs(s.selections.ByCodes(id)))
	if err != nil {
		return Cascade{}, err
	}
	promoted, err := s.hierarchy.DeleteAndPromote(id)
	if err != nil {
		return Cascade{}, err
	}

	cascade := Cascade{Codes: []Code{code}, Promoted: promoted, Selections: removed}
	s.emit(EventRemoved, cascade.Codes, cascade.Selections)
	s.emit(EventUpdated, cascade.Promoted, nil)

	return cascade, nil
}

// SetCodeActive toggles a code and its descendants. Observers receive the
// changed codes together with the selections they own.
func (s *Session) SetCodeActive(id string, active bool) ([]Code, error) {
	codes, err := s.hierarchy.SetActive(id, active)
	if err != nil {
		return nil, err
	}
	s.emitActivation(codes)
	return codes, nil
}

// SetCodebookActive toggles a codebook and every code in it.
func (s *Session) SetCodebookActive(codebookID string, active bool) ([]Code, error) {
	cb, ok := s.codebooks[codebookID]
	if !ok {
		return nil, fmt.Errorf("%w: codebook %s", ErrNotFound, codebookID)
	}
	cb.Active = active

	codes := s.hierarchy.SetCodebookActive(codebookID, active)
	s.emitActivation(codes)

	return codes, nil
}

func (s *Session) emitActivation(codes []Code) {
	ids := make([]string, len(codes))
	for i, code := range codes {
		ids[i] = code.ID
	}
	s.emit(EventUpdated, codes, s.selections.ByCodes(ids...))
}

// AddSelection stores a new selection of this source. The interval must lie
// inside the source text and an empty Text is filled from it.
func (s *Session) AddSelection(sel Selection) (Selection, error) {
	if sel.SourceID != "" && sel.SourceID != s.sourceID {
		return Selection{}, fmt.Errorf("%w: selection %s belongs to source %s", ErrInvalidOperation, sel.ID, sel.SourceID)
	}
	sel.SourceID = s.sourceID

	excerpt, err := s.Excerpt(sel.Start, sel.End)
	if err != nil {
		return Selection{}, err
	}
	if sel.Text == "" {
		sel.Text = excerpt
	}

	if err := s.selections.Add(sel); err != nil {
		return Selection{}, err
	}

	s.emit(EventAdded, nil, []Selection{sel})

	return sel, nil
}

// Selection returns one selection.
func (s *Session) Selection(id string) (Selection, error) {
	return s.selections.Get(id)
}

// Selections returns every selection in render order.
func (s *Session) Selections() []Selection {
	return s.selections.AllSortedForRender()
}

// ReassignSelection moves a selection to another code.
func (s *Session) ReassignSelection(id, codeID string) (Selection, error) {
	sel, err := s.selections.ReassignCode(id, codeID)
	if err != nil {
		return Selection{}, err
	}
	s.emit(EventUpdated, nil, []Selection{sel})
	return sel, nil
}

// DescribeSelection replaces the annotation of a selection.
func (s *Session) DescribeSelection(id, description string) (Selection, error) {
	sel, err := s.selections.Describe(id, description)
	if err != nil {
		return Selection{}, err
	}
	s.emit(EventUpdated, nil, []Selection{sel})
	return sel, nil
}

// RemoveSelections deletes all listed selections or none.
func (s *Session) RemoveSelections(ids ...string) ([]Selection, error) {
	removed, err := s.selections.RemoveAll(ids)
	if err != nil {
		return nil, err
	}
	s.emit(EventRemoved, nil, removed)
	return removed, nil
}

// ActiveSelections returns the selections of active codes in render order.
func (s *Session) ActiveSelections() []Selection {
	all := s.selections.AllSortedForRender()
	out := all[:0]
	for _, sel := range all {
		if s.isActive(sel.CodeID) {
			out = append(out, sel)
		}
	}
	return out
}

// Filtered reports whether any code is hidden, so Segments covers only part
// of the selections.
func (s *Session) Filtered() bool {
	filtered := false
	s.hierarchy.Walk(func(code Code, _ int) {
		filtered = filtered || !code.Active
	})
	return filtered
}

func (s *Session) isActive(codeID string) bool {
	code, err := s.hierarchy.Get(codeID)
	return err == nil && code.Active
}

// Segments partitions the source by the selections of active codes.
func (s *Session) Segments(opts ...PartitionOption) []Segment {
	return Partition(s.ActiveSelections(), opts...)
}

// Intersections returns the overlap graph of the active selections.
func (s *Session) Intersections() *IntersectionGraph {
	return NewIntersectionGraph(s.Segments())
}

// SelectionsAt returns the active selections covering offset.
func (s *Session) SelectionsAt(offset int) []Selection {
	var out []Selection
	for _, sel := range s.selections.CoveringOffset(offset) {
		if s.isActive(sel.CodeID) {
			out = append(out, sel)
		}
	}
	return out
}

// CodesAt returns the distinct active codes applying at offset, innermost first.
func (s *Session) CodesAt(offset int) []Code {
	seen := mapset.NewThreadUnsafeSet[string]()
	var codes []Code
	for _, sel := range s.SelectionsAt(offset) {
		if !seen.Add(sel.CodeID) {
			continue
		}
		code, err := s.hierarchy.Get(sel.CodeID)
		if err == nil {
			codes = append(codes, code)
		}
	}
	return codes
}

func selectionIDs(selections []Selection) []string {
	ids := make([]string, len(selections))
	for i, sel := range selections {
		ids[i] = sel.ID
	}
	return ids
}
