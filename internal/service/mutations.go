package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dastanaron/bookmarktree/internal/mirror"
	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/movecheck"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

// destination checks that parentID can receive a new child.
func (c *Coordinator) destination(parentID models.ID) error {
	p, err := c.tree.Get(parentID)
	if err != nil {
		return fmt.Errorf("%w: %d", models.ErrParentNotFound, parentID)
	}
	if !p.IsFolder() {
		return fmt.Errorf("%w: %d", models.ErrParentNotFolder, parentID)
	}
	if parentID.Temporary() {
		return models.ErrUnconfirmed
	}
	return nil
}

// PerformCreateFolder adds a folder under parentID and returns its
// temporary id.
func (c *Coordinator) PerformCreateFolder(parentID models.ID, name string) (models.ID, error) {
	m := c.begin(remote.OpCreateFolder, parentID)
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, c.reject(m, fmt.Errorf("%w: folder name is empty", models.ErrInvalidNode))
	}
	if err := c.destination(parentID); err != nil {
		return 0, c.reject(m, err)
	}

	tmp := c.tree.NextTempID()
	n := models.NewFolder(tmp, name)
	n.Loaded = true
	if err := c.tree.Insert(parentID, n, mirror.Append); err != nil {
		return 0, c.reject(m, err)
	}
	m.Node = tmp
	c.applied(m)

	var id models.ID
	c.exec.Go(func(ctx context.Context) error {
		var err error
		id, err = c.store.CreateFolder(ctx, parentID, name)
		return err
	}, func(err error) {
		if err != nil {
			c.undo(m, "remove", c.removeTemp(tmp))
			c.rolledBack(m, remoteErr(remote.OpCreateFolder, err))
			return
		}
		c.rekey(m, tmp, &models.Item{Type: models.ItemTypeFolder, ID: id, Title: name})
		c.confirmed(m)
		c.report.Success(fmt.Sprintf("Folder %q created", name))
	})
	return tmp, nil
}

// PerformCreateBookmark adds a bookmark for url under parentID and returns
// its temporary id. The title shows the url until the store resolves it.
func (c *Coordinator) PerformCreateBookmark(parentID models.ID, url string) (models.ID, error) {
	m := c.begin(remote.OpCreateBookmark, parentID)
	url = strings.TrimSpace(url)
	if err := c.destination(parentID); err != nil {
		return 0, c.reject(m, err)
	}
	tmp := c.tree.NextTempID()
	n, err := models.NewBookmark(tmp, url, url)
	if err != nil {
		return 0, c.reject(m, err)
	}
	if err := c.tree.Insert(parentID, n, mirror.Append); err != nil {
		return 0, c.reject(m, err)
	}
	m.Node = tmp
	c.applied(m)

	var it *models.Item
	c.exec.Go(func(ctx context.Context) error {
		var err error
		it, err = c.store.CreateBookmark(ctx, parentID, url)
		return err
	}, func(err error) {
		if err != nil {
			c.undo(m, "remove", c.removeTemp(tmp))
			c.rolledBack(m, remoteErr(remote.OpCreateBookmark, err))
			return
		}
		c.rekey(m, tmp, it)
		c.confirmed(m)
		c.report.Success("Bookmark added")
	})
	return tmp, nil
}

// outcome is how the create of a detached temporary node ended. A nil item
// means the create failed.
type outcome struct {
	done bool
	item *models.Item
}

// removeTemp drops the node of a failed create. A node detached by a
// pending delete is dropped when that delete rolls back.
func (c *Coordinator) removeTemp(tmp models.ID) error {
	if o, ok := c.detached[tmp]; ok && !c.tree.Has(tmp) {
		*o = outcome{done: true}
		return nil
	}
	_, err := c.tree.Remove(tmp)
	return err
}

// rekey gives the optimistic node its server id. When a reload already
// installed the server copy, the optimistic one is dropped. A node detached
// by a pending delete is rekeyed when that delete rolls back.
func (c *Coordinator) rekey(m *Mutation, tmp models.ID, it *models.Item) {
	m.Node = it.ID
	if o, ok := c.detached[tmp]; ok && !c.tree.Has(tmp) {
		*o = outcome{done: true, item: it}
		c.entry(m).Debug("node detached by pending delete")
		return
	}
	if err := c.adopt(tmp, it); err != nil {
		c.entry(m).WithError(err).Debug("optimistic node superseded by reload")
	}
}

// adopt moves tmp to the server id and copies the fields the store filled in.
func (c *Coordinator) adopt(tmp models.ID, it *models.Item) error {
	err := c.tree.Rekey(tmp, it.ID)
	if err != nil {
		if c.tree.Has(it.ID) {
			_, _ = c.tree.Remove(tmp)
		}
		return err
	}
	if it.Type == models.ItemTypeBookmark {
		if it.Title != "" {
			_, _ = c.tree.Rename(it.ID, it.Title)
		}
		_ = c.tree.SetFavicon(it.ID, it.Favicon)
	}
	return nil
}

// detach records the temporary nodes of a subtree taken out by a delete.
func (c *Coordinator) detach(sub *mirror.Subtree) []models.ID {
	var tmps []models.ID
	for _, n := range sub.Nodes {
		if n.ID.Temporary() {
			c.detached[n.ID] = &outcome{}
			tmps = append(tmps, n.ID)
		}
	}
	return tmps
}

// settle applies the creates that finished while tmps were detached. With
// restored false the subtree stays gone and the outcomes are only dropped.
func (c *Coordinator) settle(m *Mutation, tmps []models.ID, restored bool) {
	for _, tmp := range tmps {
		o := c.detached[tmp]
		delete(c.detached, tmp)
		if !restored || o == nil || !o.done {
			continue
		}
		if o.item == nil {
			_, err := c.tree.Remove(tmp)
			c.undo(m, "drop failed create", err)
			continue
		}
		if err := c.adopt(tmp, o.item); err != nil {
			c.undo(m, "rekey restored node", err)
		}
	}
}

// PerformRename sets a new title.
func (c *Coordinator) PerformRename(id models.ID, title string) error {
	return c.edit(remote.OpUpdate, id, models.Edit{Title: title})
}

// PerformEdit applies a title change plus, for bookmarks, an optional URL
// and tag set in one step. Rollback restores all three fields.
func (c *Coordinator) PerformEdit(id models.ID, e models.Edit) error {
	return c.edit(remote.OpUpdate, id, e)
}

func (c *Coordinator) edit(op string, id models.ID, e models.Edit) error {
	m := c.begin(op, id)
	n, err := c.editable(id)
	if err != nil {
		return c.reject(m, err)
	}
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" && n.IsFolder() {
		return c.reject(m, fmt.Errorf("%w: folder name is empty", models.ErrInvalidNode))
	}
	if n.IsFolder() && (e.URL != nil || e.Tags != nil) {
		return c.reject(m, fmt.Errorf("%w: folders carry no url or tags", models.ErrInvalidNode))
	}
	if e.URL != nil && strings.TrimSpace(*e.URL) == "" {
		return c.reject(m, fmt.Errorf("%w: bookmark url is empty", models.ErrInvalidNode))
	}

	oldTitle, _ := c.tree.Rename(id, e.Title)
	oldURL := n.URL
	if e.URL != nil {
		if _, err := c.tree.SetURL(id, *e.URL); err != nil {
			_, _ = c.tree.Rename(id, oldTitle)
			return c.reject(m, err)
		}
	}
	oldTags := n.Tags
	if e.Tags != nil {
		_, _ = c.tree.SetTags(id, *e.Tags)
	}
	c.applied(m)

	c.exec.Go(func(ctx context.Context) error {
		return c.store.Update(ctx, id, e)
	}, func(err error) {
		if err == nil {
			c.confirmed(m)
			return
		}
		_, rerr := c.tree.Rename(id, oldTitle)
		c.undo(m, "title", rerr)
		if e.URL != nil {
			_, rerr = c.tree.SetURL(id, oldURL)
			c.undo(m, "url", rerr)
		}
		if e.Tags != nil {
			_, rerr = c.tree.SetTags(id, oldTags)
			c.undo(m, "tags", rerr)
		}
		c.rolledBack(m, remoteErr(op, err))
	})
	return nil
}

// PerformDelete removes an item and its subtree.
func (c *Coordinator) PerformDelete(id models.ID) error {
	m := c.begin(remote.OpDelete, id)
	if _, err := c.editable(id); err != nil {
		return c.reject(m, err)
	}
	sub, err := c.tree.Remove(id)
	if err != nil {
		return c.reject(m, err)
	}
	tmps := c.detach(sub)
	var unstarred []models.Item
	for _, n := range sub.Nodes {
		if n.Starred {
			unstarred = append(unstarred, n.Item())
			c.starred.Remove(n.ID)
		}
	}
	c.applied(m)

	c.exec.Go(func(ctx context.Context) error {
		return c.store.Delete(ctx, id)
	}, func(err error) {
		if err == nil {
			c.settle(m, tmps, false)
			c.confirmed(m)
			return
		}
		rerr := c.tree.Restore(sub)
		if rerr != nil {
			c.undo(m, "restore", rerr)
		} else {
			for _, it := range unstarred {
				c.starred.Add(it)
			}
		}
		c.settle(m, tmps, rerr == nil)
		c.rolledBack(m, remoteErr(remote.OpDelete, err))
	})
	return nil
}

// PerformMove moves dragged into destination, appended after its children.
// Rejections from movecheck that stem from an accidental gesture are
// returned but not reported.
func (c *Coordinator) PerformMove(dragged, destination models.ID) error {
	m := c.begin(remote.OpMove, dragged)
	if err := movecheck.CanMove(c.tree, dragged, destination); err != nil {
		return c.reject(m, err)
	}
	if dragged.Temporary() || destination.Temporary() {
		return c.reject(m, models.ErrUnconfirmed)
	}
	from, err := c.tree.Move(dragged, destination, mirror.Append)
	if err != nil {
		return c.reject(m, err)
	}
	c.applied(m)

	c.exec.Go(func(ctx context.Context) error {
		return c.store.Move(ctx, dragged, destination)
	}, func(err error) {
		if err == nil {
			c.confirmed(m)
			return
		}
		_, rerr := c.tree.Move(dragged, from.Parent, from.Index)
		c.undo(m, "move back", rerr)
		c.rolledBack(m, remoteErr(remote.OpMove, err))
	})
	return nil
}

// PerformStar stars or unstars a bookmark. Starring shows up once the store
// confirms it; unstarring is applied at once and never rolled back.
func (c *Coordinator) PerformStar(id models.ID, star bool) error {
	m := c.begin(remote.OpStar, id)
	n, err := c.editable(id)
	if err != nil {
		return c.reject(m, err)
	}
	if !n.IsBookmark() {
		return c.reject(m, fmt.Errorf("%w: only bookmarks can be starred", models.ErrInvalidNode))
	}
	if !star {
		_, _ = c.tree.SetStarred(id, false)
		c.starred.Remove(id)
	}
	c.applied(m)

	var it *models.Item
	c.exec.Go(func(ctx context.Context) error {
		var err error
		it, err = c.store.Star(ctx, id, star)
		return err
	}, func(err error) {
		if err != nil {
			m.Phase = PhaseRolledBack
			delete(c.inflight, m.ID)
			c.entry(m).WithError(err).Error("star failed")
			c.report.Failure(remoteErr(remote.OpStar, err))
			return
		}
		if star {
			if _, serr := c.tree.SetStarred(id, true); serr != nil {
				c.undo(m, "set starred", serr)
			}
			if it != nil {
				c.starred.Add(*it)
			} else if n, gerr := c.tree.Get(id); gerr == nil {
				c.starred.Add(n.Item())
			}
		}
		c.confirmed(m)
	})
	return nil
}
