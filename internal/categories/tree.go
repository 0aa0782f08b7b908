package categories

import (
	"github.com/google/uuid"
)

const (
	// MaxDepth is the deepest level allowed: gender -> type -> detail.
	MaxDepth = 3
	// maxWalk caps upward parent walks so a corrupted graph cannot spin.
	maxWalk = 10
)

// Node is a category with its children, as rendered in the tree view.
type Node struct {
	CategoryDTO
	Children []*Node `json:"children"`
}

// FlatNode is a depth-first entry annotated for indented display.
type FlatNode struct {
	CategoryDTO
	DisplayLevel int `json:"display_level"`
}

// LevelStats counts categories per stored level.
type LevelStats struct {
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
	Level3 int `json:"level3"`
	Total  int `json:"total"`
}

// Index maps categories by id.
func Index(flat []CategoryDTO) map[uuid.UUID]CategoryDTO {
	byID := make(map[uuid.UUID]CategoryDTO, len(flat))
	for _, c := range flat {
		byID[c.ID] = c
	}
	return byID
}

// Level counts parent hops up to a root. Roots are level 1. The walk stops at
// a missing parent and after maxWalk hops.
func Level(c CategoryDTO, byID map[uuid.UUID]CategoryDTO) int {
	level := 1
	current := c.ParentID
	for i := 0; current != nil && i < maxWalk; i++ {
		parent, ok := byID[*current]
		if !ok {
			break
		}
		level++
		current = parent.ParentID
	}
	return level
}

// isAncestor reports whether ancestor appears on the parent chain starting at
// id (inclusive).
func isAncestor(ancestor, id uuid.UUID, byID map[uuid.UUID]CategoryDTO) bool {
	current := &id
	for i := 0; current != nil && i <= maxWalk; i++ {
		if *current == ancestor {
			return true
		}
		node, ok := byID[*current]
		if !ok {
			return false
		}
		current = node.ParentID
	}
	return false
}

// BuildTree groups a flat list into a forest. Nodes whose parent is unknown,
// or whose parent chain loops back to themselves, become roots. Sibling order
// follows input order.
func BuildTree(flat []CategoryDTO) []*Node {
	byID := Index(flat)
	nodes := make(map[uuid.UUID]*Node, len(flat))
	for _, c := range flat {
		nodes[c.ID] = &Node{CategoryDTO: c, Children: []*Node{}}
	}

	roots := make([]*Node, 0)
	for _, c := range flat {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok || isAncestor(c.ID, *c.ParentID, byID) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Flatten walks the forest depth-first. Roots have display level 0.
func Flatten(forest []*Node) []FlatNode {
	out := make([]FlatNode, 0, len(forest))
	type frame struct {
		node  *Node
		depth int
	}
	stack := make([]frame, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: forest[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, FlatNode{CategoryDTO: top.node.CategoryDTO, DisplayLevel: top.depth})
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: top.node.Children[i], depth: top.depth + 1})
		}
	}
	return out
}

// Stats counts categories by their stored level.
func Stats(flat []CategoryDTO) LevelStats {
	stats := LevelStats{Total: len(flat)}
	for _, c := range flat {
		switch c.Level {
		case 1:
			stats.Level1++
		case 2:
			stats.Level2++
		case 3:
			stats.Level3++
		}
	}
	return stats
}

// Mismatched lists categories whose stored level disagrees with the parent walk.
func Mismatched(flat []CategoryDTO) []uuid.UUID {
	byID := Index(flat)
	var out []uuid.UUID
	for _, c := range flat {
		if Level(c, byID) != c.Level {
			out = append(out, c.ID)
		}
	}
	return out
}

// Descendants returns every id below root, breadth first.
func Descendants(root uuid.UUID, flat []CategoryDTO) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID, len(flat))
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	seen := map[uuid.UUID]bool{root: true}
	queue := []uuid.UUID{root}
	var out []uuid.UUID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// subtreeHeight is 1 for a leaf, 2 for a node with only leaf children, etc.
func subtreeHeight(root uuid.UUID, flat []CategoryDTO) int {
	children := make(map[uuid.UUID][]uuid.UUID, len(flat))
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	height := 0
	seen := map[uuid.UUID]bool{}
	level := []uuid.UUID{root}
	for len(level) > 0 && height <= maxWalk {
		height++
		var next []uuid.UUID
		for _, id := range level {
			if seen[id] {
				continue
			}
			seen[id] = true
			next = append(next, children[id]...)
		}
		level = next
	}
	return height
}
