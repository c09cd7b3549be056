package mirror

import (
	"fmt"

	"github.com/dastanaron/bookmarktree/internal/models"
)

// Check verifies the shape invariants: every child id resolves, every
// non-root node is owned by exactly one folder that its back-reference names,
// every node is reachable from the root, and nodes satisfy their variant.
func (m *Mirror) Check() error {
	root, ok := m.nodes[m.root]
	if !ok {
		return fmt.Errorf("root %d missing", m.root)
	}
	if !root.IsFolder() {
		return fmt.Errorf("root %d is not a folder", m.root)
	}

	owners := make(map[models.ID]models.ID, len(m.nodes))
	for id, n := range m.nodes {
		if n.ID != id {
			return fmt.Errorf("node indexed as %d carries id %d", id, n.ID)
		}
		if err := n.Validate(); err != nil {
			return err
		}
		for _, cid := range n.Children {
			c, ok := m.nodes[cid]
			if !ok {
				return fmt.Errorf("dangling child %d under %d", cid, id)
			}
			if prev, dup := owners[cid]; dup {
				return fmt.Errorf("node %d owned by both %d and %d", cid, prev, id)
			}
			owners[cid] = id
			if c.ParentID != id {
				return fmt.Errorf("node %d points at parent %d but is owned by %d", cid, c.ParentID, id)
			}
		}
	}
	if _, owned := owners[m.root]; owned {
		return fmt.Errorf("root %d has a parent", m.root)
	}

	reached := make(map[models.ID]bool, len(m.nodes))
	queue := []models.ID{m.root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			return fmt.Errorf("cycle through %d", id)
		}
		reached[id] = true
		queue = append(queue, m.nodes[id].Children...)
	}
	if len(reached) != len(m.nodes) {
		return fmt.Errorf("%d nodes unreachable from root", len(m.nodes)-len(reached))
	}
	return nil
}
