package mirror

import "github.com/dastanaron/bookmarktree/internal/models"

// View is a read-only copy of a node and its loaded descendants, used for
// rendering and export.
type View struct {
	Node     models.Node
	Children []*View
}

// Snapshot copies the whole tree.
func (m *Mirror) Snapshot() *View {
	v, _ := m.SnapshotAt(m.root)
	return v
}

// SnapshotAt copies the subtree rooted at id.
func (m *Mirror) SnapshotAt(id models.ID) (*View, error) {
	n, err := m.node(id)
	if err != nil {
		return nil, err
	}
	return m.view(n), nil
}

func (m *Mirror) view(n *models.Node) *View {
	v := &View{Node: *n.Clone()}
	for _, cid := range n.Children {
		v.Children = append(v.Children, m.view(m.nodes[cid]))
	}
	return v
}

// Walk visits v and its descendants in pre-order with their depth.
func (v *View) Walk(fn func(v *View, depth int)) {
	var walk func(v *View, depth int)
	walk = func(v *View, depth int) {
		fn(v, depth)
		for _, c := range v.Children {
			walk(c, depth+1)
		}
	}
	walk(v, 0)
}
