package coding

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tree builds:
//
//	root
//	├── a
//	│   ├── a1
//	│   │   └── a1x
//	│   └── a2
//	└── b
//	other
func tree(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := LoadHierarchy([]Code{
		{ID: "a1x", CodebookID: "cb", ParentID: "a1"},
		{ID: "root", CodebookID: "cb"},
		{ID: "a", CodebookID: "cb", ParentID: "root"},
		{ID: "a1", CodebookID: "cb", ParentID: "a"},
		{ID: "a2", CodebookID: "cb", ParentID: "a"},
		{ID: "b", CodebookID: "cb", ParentID: "root"},
		{ID: "other", CodebookID: "cb"},
	})
	require.NoError(t, err)
	return h
}

func ids(codes []Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = c.ID
	}
	return out
}

func TestLoadHierarchy(t *testing.T) {
	tests := []struct {
		name  string
		codes []Code
		err   error
	}{
		{
			name:  "duplicate id",
			codes: []Code{{ID: "a"}, {ID: "a"}},
			err:   ErrDuplicateID,
		},
		{
			name:  "missing parent",
			codes: []Code{{ID: "a", ParentID: "ghost"}},
			err:   ErrConstraintViolation,
		},
		{
			name:  "self parent",
			codes: []Code{{ID: "a", ParentID: "a"}},
			err:   ErrInvalidOperation,
		},
		{
			name:  "cycle",
			codes: []Code{{ID: "a", ParentID: "c"}, {ID: "b", ParentID: "a"}, {ID: "c", ParentID: "b"}},
			err:   ErrInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHierarchy(tt.codes)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	h := tree(t)
	assert.Equal(t, 7, h.Len())
	assert.Equal(t, []string{"root", "other"}, ids(h.Roots()))
	assert.Equal(t, []string{"root", "a", "a1", "a1x", "a2", "b", "other"}, ids(h.All()))
}

func TestHierarchy_CanReparent(t *testing.T) {
	h := tree(t)

	tests := []struct {
		code   string
		parent string
		want   bool
	}{
		{code: "a", parent: "a", want: false},
		{code: "a", parent: "root", want: false},
		{code: "a", parent: "a1", want: false},
		{code: "a", parent: "a1x", want: false},
		{code: "root", parent: "b", want: false},
		{code: "a", parent: "b", want: true},
		{code: "a", parent: "other", want: true},
		{code: "a1x", parent: "root", want: true},
		{code: "a", parent: "", want: true},
		{code: "root", parent: "", want: false},
		{code: "a", parent: "ghost", want: false},
		{code: "ghost", parent: "a", want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s under %q", tt.code, tt.parent), func(t *testing.T) {
			assert.Equal(t, tt.want, h.CanReparent(tt.code, tt.parent))
		})
	}
}

func TestHierarchy_CanReparentAcrossCodebooks(t *testing.T) {
	h := tree(t)
	require.NoError(t, h.Add(Code{ID: "foreign", CodebookID: "cb2"}))

	assert.False(t, h.CanReparent("a", "foreign"))
	assert.ErrorIs(t, h.Reparent("a", "foreign"), ErrInvalidOperation)
}

func TestHierarchy_Reparent(t *testing.T) {
	h := tree(t)

	require.NoError(t, h.Reparent("a", "other"))
	a, err := h.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "other", a.ParentID)

	children, err := h.Children("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(children))

	children, err = h.Children("other")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(children))

	assert.ErrorIs(t, h.Reparent("other", "a1x"), ErrInvalidOperation)
	assert.ErrorIs(t, h.Reparent("a", "a"), ErrInvalidOperation)
	assert.ErrorIs(t, h.Reparent("a", "ghost"), ErrNotFound)
	assert.ErrorIs(t, h.Reparent("ghost", "a"), ErrNotFound)

	require.NoError(t, h.Reparent("a", ""))
	assert.Equal(t, []string{"root", "other", "a"}, ids(h.Roots()))
}

func TestHierarchy_RandomReparentsStayAcyclic(t *testing.T) {
	var codes []Code
	for i := 0; i < 40; i++ {
		code := Code{ID: fmt.Sprintf("c%02d", i), CodebookID: "cb"}
		if i > 0 {
			code.ParentID = fmt.Sprintf("c%02d", i/2)
		}
		codes = append(codes, code)
	}
	h, err := LoadHierarchy(codes)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		code := codes[rng.Intn(len(codes))].ID
		parent := ""
		if rng.Intn(10) > 0 {
			parent = codes[rng.Intn(len(codes))].ID
		}
		_ = h.Reparent(code, parent)
	}

	for _, code := range codes {
		path, err := h.Path(code.ID)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, c := range path {
			assert.False(t, seen[c.ID], "code %s is its own ancestor", code.ID)
			seen[c.ID] = true
		}
	}
	assert.Len(t, h.All(), len(codes))
}

func TestHierarchy_RemoveParent(t *testing.T) {
	h := tree(t)

	require.NoError(t, h.RemoveParent("a1"))
	a1, _ := h.Get("a1")
	assert.True(t, a1.IsRoot())

	require.NoError(t, h.RemoveParent("a1"))
	assert.ErrorIs(t, h.RemoveParent("ghost"), ErrNotFound)
}

func TestHierarchy_MoveUp(t *testing.T) {
	h := tree(t)

	require.NoError(t, h.MoveUp("a1"))
	a1, _ := h.Get("a1")
	assert.Equal(t, "root", a1.ParentID)

	require.NoError(t, h.MoveUp("a1"))
	a1, _ = h.Get("a1")
	assert.True(t, a1.IsRoot())

	assert.ErrorIs(t, h.MoveUp("a1"), ErrNotFound)
	assert.ErrorIs(t, h.MoveUp("ghost"), ErrNotFound)

	// the subtree moves along
	a1x, _ := h.Get("a1x")
	assert.Equal(t, "a1", a1x.ParentID)
}

func TestHierarchy_SetActive(t *testing.T) {
	h := tree(t)

	changed, err := h.SetActive("a", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a1", "a2", "a1x"}, ids(changed))

	for _, code := range h.All() {
		want := code.ID == "a" || code.ID == "a1" || code.ID == "a2" || code.ID == "a1x"
		assert.Equal(t, want, code.Active, code.ID)
	}

	_, err = h.SetActive("ghost", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHierarchy_Delete(t *testing.T) {
	h := tree(t)

	removed, err := h.Delete("a")
	require.NoError(t, err)
	// three descendants plus the code itself
	assert.Len(t, removed, 4)
	assert.Equal(t, "a", removed[len(removed)-1].ID)
	assert.Equal(t, 3, h.Len())

	for _, id := range []string{"a", "a1", "a2", "a1x"} {
		assert.False(t, h.Has(id))
	}
	children, err := h.Children("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(children))

	removed, err = h.Delete("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "root"}, ids(removed))
	assert.Equal(t, []string{"other"}, ids(h.Roots()))

	_, err = h.Delete("root")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHierarchy_DeleteAndPromote(t *testing.T) {
	h := tree(t)

	promoted, err := h.DeleteAndPromote("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids(promoted))
	for _, c := range promoted {
		assert.Equal(t, "root", c.ParentID)
	}

	children, err := h.Children("root")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a1", "a2"}, ids(children))
	assert.False(t, h.Has("a"))
}

func TestHierarchy_Path(t *testing.T) {
	h := tree(t)

	path, err := h.Path("a1x")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "a1", "a1x"}, ids(path))
}
