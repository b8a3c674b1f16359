package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/qda/internal/cache"
	"github.com/emrgen/qda/internal/coding"
	"github.com/emrgen/qda/internal/compress"
	"github.com/emrgen/qda/internal/store"
	"github.com/emrgen/qda/internal/tester"
)

const sampleText = "abcdefghijklmnopqrstuvwxyz0123456789"

type recorder struct {
	events []coding.Event
}

func (r *recorder) Notify(event coding.Event) {
	r.events = append(r.events, event)
}

func (r *recorder) kinds() []coding.EventKind {
	kinds := make([]coding.EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

type fixture struct {
	service   *CodingService
	store     store.Store
	redis     *miniredis.Miniredis
	events    *recorder
	projectID uuid.UUID
	sourceID  uuid.UUID
	codebook  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	tester.Setup()
	t.Cleanup(tester.RemoveDBFile)

	client, server := tester.Redis(t)
	f := &fixture{
		store:     store.NewGormStore(tester.TestDB()),
		redis:     server,
		events:    &recorder{},
		projectID: uuid.New(),
	}
	segments := cache.NewRedisSegmentCache(client, compress.NewLZ4(), time.Minute)
	f.service = NewCodingService(store.NewDefaultProvider(f.store), segments, f.events)

	ctx := context.TODO()
	source, err := f.service.CreateSource(ctx, f.projectID, "interview-1", sampleText)
	require.NoError(t, err)
	f.sourceID = uuid.MustParse(source.ID)

	codebook, err := f.service.CreateCodebook(ctx, f.projectID, "main", "")
	require.NoError(t, err)
	f.codebook = uuid.MustParse(codebook.ID)

	return f
}

func (f *fixture) code(t *testing.T, name string, parent *coding.Code) coding.Code {
	t.Helper()
	req := CreateCodeRequest{CodebookID: f.codebook, Name: name}
	if parent != nil {
		id := uuid.MustParse(parent.ID)
		req.ParentID = &id
	}
	code, err := f.service.CreateCode(context.TODO(), f.projectID, f.sourceID, req)
	require.NoError(t, err)
	return code
}

func (f *fixture) selection(t *testing.T, code coding.Code, start, end int) coding.Selection {
	t.Helper()
	sel, err := f.service.AddSelection(context.TODO(), f.projectID, f.sourceID, AddSelectionRequest{
		CodeID: uuid.MustParse(code.ID),
		Start:  start,
		End:    end,
	})
	require.NoError(t, err)
	return sel
}

func bounds(segments []coding.Segment) [][2]int {
	out := make([][2]int, len(segments))
	for i, seg := range segments {
		out[i] = [2]int{seg.Start, seg.End}
	}
	return out
}

func TestCodingService_Segments(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	trust := f.code(t, "trust", nil)
	doubt := f.code(t, "doubt", nil)
	a := f.selection(t, trust, 0, 10)
	b := f.selection(t, doubt, 5, 15)
	c := f.selection(t, trust, 20, 30)
	assert.Equal(t, sampleText[0:11], a.Text)

	segments, err := f.service.Segments(ctx, f.projectID, f.sourceID, false)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 4}, {5, 10}, {11, 15}, {20, 30}}, bounds(segments))
	require.Len(t, segments[1].Selections, 2)
	assert.Equal(t, a.ID, segments[1].Selections[0].ID)
	assert.Equal(t, b.ID, segments[1].Selections[1].ID)
	assert.Equal(t, c.ID, segments[3].Selections[0].ID)
	assert.True(t, f.redis.Exists("coding:segments:"+f.sourceID.String()))

	// served from the cache
	segments, err = f.service.Segments(ctx, f.projectID, f.sourceID, true)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 4}, {5, 10}, {11, 15}, {16, 19}, {20, 30}, {31, 35}}, bounds(segments))
	assert.True(t, segments[3].IsGap())

	graph, err := f.service.Intersections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	assert.True(t, graph.Intersects(a.ID, b.ID))
	assert.False(t, graph.Intersects(a.ID, c.ID))

	codes, err := f.service.CodesAt(ctx, f.projectID, f.sourceID, 7)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, trust.ID, codes[0].ID)
	assert.Equal(t, doubt.ID, codes[1].ID)

	_, err = f.service.CodesAt(ctx, f.projectID, f.sourceID, len(sampleText))
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)
}

func TestCodingService_SetCodeActive(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	trust := f.code(t, "trust", nil)
	child := f.code(t, "team", &trust)
	f.selection(t, child, 0, 3)

	segments, err := f.service.Segments(ctx, f.projectID, f.sourceID, false)
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	changed, err := f.service.SetCodeActive(ctx, f.projectID, f.sourceID, uuid.MustParse(trust.ID), false)
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.False(t, f.redis.Exists("coding:segments:"+f.sourceID.String()))

	segments, err = f.service.Segments(ctx, f.projectID, f.sourceID, false)
	require.NoError(t, err)
	assert.Empty(t, segments)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, coding.EventUpdated, last.Kind)
	assert.Len(t, last.Selections, 1)

	_, err = f.service.SetCodebookActive(ctx, f.projectID, f.sourceID, f.codebook, true)
	require.NoError(t, err)
	segments, err = f.service.Segments(ctx, f.projectID, f.sourceID, false)
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestCodingService_Reload(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	root := f.code(t, "root", nil)
	child := f.code(t, "child", &root)
	sel := f.selection(t, child, 2, 8)
	_, err := f.service.DescribeSelection(ctx, f.projectID, f.sourceID, uuid.MustParse(sel.ID), "note")
	require.NoError(t, err)

	f.service.Evict(f.projectID, f.sourceID)
	assert.Zero(t, f.service.OpenSessions())

	selections, err := f.service.Selections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.Equal(t, "note", selections[0].Description)
	assert.Equal(t, sampleText[2:9], selections[0].Text)

	path, err := f.service.CodePath(ctx, f.projectID, f.sourceID, uuid.MustParse(child.ID))
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, root.ID, path[0].ID)
}

func TestCodingService_MoveCodes(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	a := f.code(t, "a", nil)
	b := f.code(t, "b", &a)
	c := f.code(t, "c", &b)
	aID, bID, cID := uuid.MustParse(a.ID), uuid.MustParse(b.ID), uuid.MustParse(c.ID)

	before := len(f.events.events)
	_, err := f.service.ReparentCode(ctx, f.projectID, f.sourceID, aID, &cID)
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)
	assert.Len(t, f.events.events, before)

	moved, err := f.service.MoveCodeUp(ctx, f.projectID, f.sourceID, cID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ParentID)

	_, err = f.service.RemoveCodeParent(ctx, f.projectID, f.sourceID, bID)
	require.NoError(t, err)

	_, err = f.service.ReparentCode(ctx, f.projectID, f.sourceID, aID, &bID)
	require.NoError(t, err)

	f.service.Evict(f.projectID, f.sourceID)
	tree, err := f.service.CodeTree(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, b.ID, tree[0].ID)
	assert.Equal(t, 0, tree[0].Depth)
	assert.Equal(t, a.ID, tree[1].ID)
	assert.Equal(t, 1, tree[1].Depth)
	assert.Equal(t, c.ID, tree[2].ID)
	assert.Equal(t, 2, tree[2].Depth)
}

func TestCodingService_DeleteCode(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	root := f.code(t, "root", nil)
	child := f.code(t, "child", &root)
	other := f.code(t, "other", nil)
	f.selection(t, root, 0, 5)
	f.selection(t, child, 3, 9)
	kept := f.selection(t, other, 10, 12)

	cascade, err := f.service.DeleteCode(ctx, f.projectID, f.sourceID, uuid.MustParse(root.ID), false)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID, root.ID}, cascade.CodeIDs())
	assert.Len(t, cascade.Selections, 2)
	assert.Equal(t, coding.EventRemoved, f.events.events[len(f.events.events)-1].Kind)

	rows, err := f.store.ListSelections(ctx, f.sourceID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, kept.ID, rows[0].ID)

	_, err = f.store.GetCode(ctx, uuid.MustParse(child.ID))
	assert.ErrorIs(t, err, coding.ErrNotFound)
}

func TestCodingService_DeleteCodeKeepChildren(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	root := f.code(t, "root", nil)
	child := f.code(t, "child", &root)
	f.selection(t, root, 0, 5)
	f.selection(t, child, 3, 9)

	cascade, err := f.service.DeleteCode(ctx, f.projectID, f.sourceID, uuid.MustParse(root.ID), true)
	require.NoError(t, err)
	require.Len(t, cascade.Promoted, 1)
	assert.Len(t, cascade.Selections, 1)

	got, err := f.store.GetCode(ctx, uuid.MustParse(child.ID))
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	n := len(f.events.events)
	assert.Equal(t, []coding.EventKind{coding.EventRemoved, coding.EventUpdated}, f.events.kinds()[n-2:])
}

func TestCodingService_RemoveSelections(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	code := f.code(t, "trust", nil)
	a := f.selection(t, code, 0, 1)
	b := f.selection(t, code, 2, 3)

	_, err := f.service.RemoveSelections(ctx, f.projectID, f.sourceID, uuid.MustParse(a.ID), uuid.New())
	assert.ErrorIs(t, err, coding.ErrNotFound)

	selections, err := f.service.Selections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	assert.Len(t, selections, 2)

	removed, err := f.service.RemoveSelections(ctx, f.projectID, f.sourceID, uuid.MustParse(a.ID), uuid.MustParse(b.ID))
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	rows, err := f.store.ListSelections(ctx, f.sourceID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCodingService_ReassignSelection(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	trust := f.code(t, "trust", nil)
	doubt := f.code(t, "doubt", nil)
	sel := f.selection(t, trust, 4, 6)

	_, err := f.service.ReassignSelection(ctx, f.projectID, f.sourceID, uuid.MustParse(sel.ID), uuid.New())
	assert.ErrorIs(t, err, coding.ErrNotFound)

	moved, err := f.service.ReassignSelection(ctx, f.projectID, f.sourceID, uuid.MustParse(sel.ID), uuid.MustParse(doubt.ID))
	require.NoError(t, err)
	assert.Equal(t, doubt.ID, moved.CodeID)
	assert.Equal(t, sel.Start, moved.Start)

	row, err := f.store.GetSelection(ctx, uuid.MustParse(sel.ID))
	require.NoError(t, err)
	assert.Equal(t, doubt.ID, row.CodeID)
}

func TestCodingService_AddSelectionOutOfBounds(t *testing.T) {
	f := setup(t)
	code := f.code(t, "trust", nil)

	_, err := f.service.AddSelection(context.TODO(), f.projectID, f.sourceID, AddSelectionRequest{
		CodeID: uuid.MustParse(code.ID),
		Start:  30,
		End:    len(sampleText),
	})
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)

	_, err = f.service.AddSelection(context.TODO(), f.projectID, f.sourceID, AddSelectionRequest{
		CodeID: uuid.MustParse(code.ID),
		Start:  5,
		End:    4,
	})
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)
}

func TestCodingService_SourceOutsideProject(t *testing.T) {
	f := setup(t)

	_, err := f.service.Selections(context.TODO(), uuid.New(), f.sourceID)
	assert.ErrorIs(t, err, coding.ErrNotFound)

	_, err = f.service.Selections(context.TODO(), f.projectID, uuid.New())
	assert.ErrorIs(t, err, coding.ErrNotFound)
}

func TestCodingService_StructuralChangeEvictsProject(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	second, err := f.service.CreateSource(ctx, f.projectID, "interview-2", "other text")
	require.NoError(t, err)
	secondID := uuid.MustParse(second.ID)

	_, err = f.service.Selections(ctx, f.projectID, secondID)
	require.NoError(t, err)
	_, err = f.service.Selections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.service.OpenSessions())

	code := f.code(t, "trust", nil)
	assert.Equal(t, 1, f.service.OpenSessions())

	sel, err := f.service.AddSelection(ctx, f.projectID, secondID, AddSelectionRequest{CodeID: uuid.MustParse(code.ID), Start: 0, End: 4})
	require.NoError(t, err)
	assert.Equal(t, "other", sel.Text)
}

type failingStore struct {
	store.Store
}

func (failingStore) Transaction(context.Context, func(tx store.Store) error) error {
	return errors.New("disk full")
}

func TestCodingService_PersistFailureReloads(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()
	code := f.code(t, "trust", nil)

	broken := NewCodingService(store.NewDefaultProvider(failingStore{Store: f.store}), nil, f.events)
	before := len(f.events.events)

	_, err := broken.AddSelection(ctx, f.projectID, f.sourceID, AddSelectionRequest{CodeID: uuid.MustParse(code.ID), Start: 0, End: 2})
	assert.EqualError(t, err, "disk full")
	assert.Len(t, f.events.events, before)

	selections, err := broken.Selections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)
	assert.Empty(t, selections)
}

func TestCodingService_EvictIdle(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	now := time.Now()
	f.service.now = func() time.Time { return now }

	_, err := f.service.Selections(ctx, f.projectID, f.sourceID)
	require.NoError(t, err)

	assert.Zero(t, f.service.EvictIdle(time.Minute))
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, f.service.EvictIdle(time.Minute))
	assert.Zero(t, f.service.OpenSessions())
}

func TestCodingService_EmptyNames(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	_, err := f.service.CreateSource(ctx, f.projectID, " ", "")
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)

	_, err = f.service.CreateCode(ctx, f.projectID, f.sourceID, CreateCodeRequest{CodebookID: f.codebook})
	assert.ErrorIs(t, err, coding.ErrInvalidOperation)

	codebooks, err := f.service.ListCodebooks(ctx, f.projectID)
	require.NoError(t, err)
	require.Len(t, codebooks, 1)
	assert.Equal(t, "main", codebooks[0].Name)

	sources, err := f.service.ListSources(ctx, f.projectID)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestCodingService_DeleteCodeAcrossSources(t *testing.T) {
	f := setup(t)
	ctx := context.TODO()

	second, err := f.service.CreateSource(ctx, f.projectID, "interview-2", "other text")
	require.NoError(t, err)
	secondID := uuid.MustParse(second.ID)

	code := f.code(t, "trust", nil)
	f.selection(t, code, 0, 3)
	_, err = f.service.AddSelection(ctx, f.projectID, secondID, AddSelectionRequest{CodeID: uuid.MustParse(code.ID), Start: 0, End: 4})
	require.NoError(t, err)

	segments, err := f.service.Segments(ctx, f.projectID, secondID, false)
	require.NoError(t, err)
	assert.Len(t, segments, 1)
	assert.True(t, f.redis.Exists("coding:segments:"+second.ID))

	_, err = f.service.DeleteCode(ctx, f.projectID, f.sourceID, uuid.MustParse(code.ID), false)
	require.NoError(t, err)
	assert.False(t, f.redis.Exists("coding:segments:"+second.ID))

	segments, err = f.service.Segments(ctx, f.projectID, secondID, false)
	require.NoError(t, err)
	assert.Empty(t, segments)

	rows, err := f.store.ListSelections(ctx, secondID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
