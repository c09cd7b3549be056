package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dastanaron/bookmarktree/internal/mirror"
	"github.com/dastanaron/bookmarktree/internal/models"
)

// marks flags nodes that are drawn differently.
type marks struct {
	expanded map[models.ID]bool
	cut      models.ID
	moving   models.ID
}

// buildTree turns a snapshot into tview nodes. A folder shows its children
// only when it is loaded and the user expanded it; the root is always open.
func buildTree(v *mirror.View, m marks) *tview.TreeNode {
	root := treeNode(v, m)
	root.SetExpanded(true)
	return root
}

func treeNode(v *mirror.View, m marks) *tview.TreeNode {
	n := v.Node
	tn := tview.NewTreeNode(label(n, m)).
		SetReference(n.ID).
		SetSelectable(true)
	if n.IsFolder() {
		tn.SetColor(tcell.ColorYellow)
		tn.SetExpanded(m.expanded[n.ID] && n.Loaded)
		for _, c := range v.Children {
			tn.AddChild(treeNode(c, m))
		}
	} else {
		tn.SetColor(tcell.ColorWhite)
	}
	if n.ID.Temporary() {
		tn.SetColor(tcell.ColorGray)
	}
	return tn
}

func label(n models.Node, m marks) string {
	text := tview.Escape(n.Title)
	if n.IsFolder() {
		switch {
		case !n.Loaded:
			text = "+ " + text
		case m.expanded[n.ID]:
			text = "- " + text
		default:
			text = "+ " + text
		}
	} else if n.Starred {
		text = "* " + text
	}
	if n.ID.Temporary() {
		text += " (saving)"
	}
	switch n.ID {
	case m.cut:
		text += " (cut)"
	case m.moving:
		text += " (moving)"
	}
	return text
}

// findNode returns the tview node for id below root, or nil.
func findNode(root *tview.TreeNode, id models.ID) *tview.TreeNode {
	var found *tview.TreeNode
	root.Walk(func(node, parent *tview.TreeNode) bool {
		if found != nil {
			return false
		}
		if ref, ok := node.GetReference().(models.ID); ok && ref == id {
			found = node
			return false
		}
		return true
	})
	return found
}

func nodeID(n *tview.TreeNode) (models.ID, bool) {
	if n == nil {
		return 0, false
	}
	id, ok := n.GetReference().(models.ID)
	return id, ok
}
