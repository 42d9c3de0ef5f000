// Package tree builds and filters the page forest from the flat list the
// store returns. It never follows live back-references: the forest is
// reconstructed from an id-keyed index on every call, and a parent_id
// pointing at a page absent from the input makes that page a root.
package tree

import (
	"strings"

	"halaman/internal/page/model"
)

type Node struct {
	model.Page
	Children []*Node `json:"children"`
}

// Build indexes pages by id, then attaches each page to its parent's
// children list when the parent is present in the input. Sibling order
// follows the input order, which the store pre-sorts by (position,
// created_at).
func Build(pages []model.Page) []*Node {
	index := make(map[string]*Node, len(pages))
	for i := range pages {
		index[pages[i].ID] = &Node{Page: pages[i]}
	}

	roots := []*Node{}
	for i := range pages {
		node := index[pages[i].ID]
		if pid := pages[i].ParentID; pid != nil {
			if parent, ok := index[*pid]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// Filter keeps pages that match plus every ancestor of a match, and builds
// the pruned forest from that subset. A broken parent chain stops the
// ancestor walk silently.
func Filter(pages []model.Page, match func(model.Page) bool) []*Node {
	index := make(map[string]model.Page, len(pages))
	for _, p := range pages {
		index[p.ID] = p
	}

	keep := make(map[string]bool)
	for _, p := range pages {
		if !match(p) {
			continue
		}
		keep[p.ID] = true
		cur := p
		for cur.ParentID != nil {
			pid := *cur.ParentID
			if keep[pid] {
				break // chain above is already marked, also guards cycles
			}
			parent, ok := index[pid]
			if !ok {
				break
			}
			keep[pid] = true
			cur = parent
		}
	}

	kept := make([]model.Page, 0, len(keep))
	for _, p := range pages {
		if keep[p.ID] {
			kept = append(kept, p)
		}
	}
	return Build(kept)
}

// MatchTitle returns a case-insensitive substring predicate over the title.
func MatchTitle(query string) func(model.Page) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(p model.Page) bool {
		return strings.Contains(strings.ToLower(p.Title), q)
	}
}

// Trail returns the chain of pages from the root down to id, inclusive.
// Missing links truncate the trail at that point; a visited set keeps a
// corrupted parent graph from looping.
func Trail(pages []model.Page, id string) []model.Page {
	index := make(map[string]model.Page, len(pages))
	for _, p := range pages {
		index[p.ID] = p
	}

	var trail []model.Page
	visited := make(map[string]bool)
	cur, ok := index[id]
	for ok && !visited[cur.ID] {
		visited[cur.ID] = true
		trail = append(trail, cur)
		if cur.ParentID == nil {
			break
		}
		cur, ok = index[*cur.ParentID]
	}

	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail
}
