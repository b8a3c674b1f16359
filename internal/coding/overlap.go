package coding

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Segment is a maximal inclusive range [Start, End] covered by the same set
// of selections. A gap segment has no selections.
type Segment struct {
	Start      int
	End        int
	Selections []Selection
}

// IsGap reports whether no selection covers the segment.
func (s Segment) IsGap() bool {
	return len(s.Selections) == 0
}

// Len returns the number of characters in the segment.
func (s Segment) Len() int {
	return s.End - s.Start + 1
}

type partitionConfig struct {
	gaps       bool
	textLength int
}

// PartitionOption configures Partition.
type PartitionOption func(*partitionConfig)

// WithGaps makes Partition emit gap segments so the result tiles
// [0, textLength-1] without holes.
func WithGaps(textLength int) PartitionOption {
	return func(c *partitionConfig) {
		c.gaps = true
		c.textLength = textLength
	}
}

// Intersects reports whether two selections share an offset.
func Intersects(a, b Selection) bool {
	return a.Overlaps(b)
}

// Partition cuts the text at every selection boundary and returns the
// segments in offset order. Selections inside a segment are in render order.
func Partition(selections []Selection, opts ...PartitionOption) []Segment {
	cfg := &partitionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	segments := partition(selections)
	if cfg.gaps {
		return FillGaps(segments, cfg.textLength)
	}
	return segments
}

func partition(selections []Selection) []Segment {
	if len(selections) == 0 {
		return nil
	}

	opening := make(map[int][]int)
	closing := make(map[int][]int)
	cuts := make([]int, 0, 2*len(selections))
	for i, sel := range selections {
		opening[sel.Start] = append(opening[sel.Start], i)
		closing[sel.End+1] = append(closing[sel.End+1], i)
		cuts = append(cuts, sel.Start, sel.End+1)
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	var segments []Segment
	active := mapset.NewThreadUnsafeSet[int]()
	for i := 0; i < len(cuts)-1; i++ {
		a, b := cuts[i], cuts[i+1]
		for _, idx := range closing[a] {
			active.Remove(idx)
		}
		for _, idx := range opening[a] {
			active.Add(idx)
		}
		if active.Cardinality() == 0 {
			continue
		}

		covering := make([]Selection, 0, active.Cardinality())
		active.Each(func(idx int) bool {
			covering = append(covering, selections[idx])
			return false
		})
		SortForRender(covering)
		segments = append(segments, Segment{Start: a, End: b - 1, Selections: covering})
	}

	return segments
}

// FillGaps inserts gap segments between the covered segments so the result
// tiles [0, textLength-1]. Segments must be ordered and disjoint.
func FillGaps(segments []Segment, textLength int) []Segment {
	out := make([]Segment, 0, 2*len(segments)+1)
	next := 0
	for _, seg := range segments {
		if seg.Start > next {
			out = append(out, Segment{Start: next, End: seg.Start - 1})
		}
		out = append(out, seg)
		next = seg.End + 1
	}
	if textLength > next {
		out = append(out, Segment{Start: next, End: textLength - 1})
	}
	return out
}

// IntersectionGraph is the symmetric intersects relation derived from one
// partition pass.
type IntersectionGraph struct {
	adjacent map[string]mapset.Set[string]
}

// NewIntersectionGraph links every pair of selections sharing a segment.
func NewIntersectionGraph(segments []Segment) *IntersectionGraph {
	g := &IntersectionGraph{adjacent: make(map[string]mapset.Set[string])}
	for _, seg := range segments {
		for i, a := range seg.Selections {
			g.node(a.ID)
			for _, b := range seg.Selections[i+1:] {
				g.node(a.ID).Add(b.ID)
				g.node(b.ID).Add(a.ID)
			}
		}
	}
	return g
}

func (g *IntersectionGraph) node(id string) mapset.Set[string] {
	set, ok := g.adjacent[id]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		g.adjacent[id] = set
	}
	return set
}

// Intersects reports whether selections a and b overlap.
func (g *IntersectionGraph) Intersects(a, b string) bool {
	set, ok := g.adjacent[a]
	return ok && set.Contains(b)
}

// Neighbors returns the ids of the selections overlapping id, sorted.
func (g *IntersectionGraph) Neighbors(id string) []string {
	set, ok := g.adjacent[id]
	if !ok {
		return nil
	}
	ids := set.ToSlice()
	slices.Sort(ids)
	return ids
}

// Groups returns the connected components of the graph. Each group is sorted
// and groups are ordered by their first id.
func (g *IntersectionGraph) Groups() [][]string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var groups [][]string

	ids := make([]string, 0, len(g.adjacent))
	for id := range g.adjacent {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if seen.Contains(id) {
			continue
		}
		var group []string
		stack := []string{id}
		seen.Add(id)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, cur)
			for _, next := range g.adjacent[cur].ToSlice() {
				if seen.Add(next) {
					stack = append(stack, next)
				}
			}
		}
		slices.Sort(group)
		groups = append(groups, group)
	}

	return groups
}
