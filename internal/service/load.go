package service

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

// children fetches a folder listing. Concurrent fetches of the same folder,
// from Expand and Reload, share one store call. The shared call ignores the
// caller's cancellation so a failed reload cannot fail a concurrent Expand.
func (c *Coordinator) children(ctx context.Context, id models.ID) ([]models.Item, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.fetches.Do(strconv.FormatInt(int64(id), 10), func() (any, error) {
		return c.store.Children(shared, id)
	})
	if err != nil {
		return nil, err
	}
	items, _ := v.([]models.Item)
	return items, nil
}

func nodes(items []models.Item) ([]*models.Node, error) {
	out := make([]*models.Node, 0, len(items))
	for _, it := range items {
		n, err := it.Node()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Expand loads a folder's children the first time it is opened. Expanding
// a loaded folder, a bookmark, or a folder whose fetch is in flight does
// nothing. A failed fetch leaves the folder unloaded.
func (c *Coordinator) Expand(id models.ID) {
	n, err := c.tree.Get(id)
	if err != nil || !n.IsFolder() || n.Loaded || c.expanding[id] || id.Temporary() {
		return
	}
	c.expanding[id] = true
	l := c.log.WithFields(logrus.Fields{"op": remote.OpChildren, "node_id": id})
	l.Debug("expanding folder")

	var items []models.Item
	c.exec.Go(func(ctx context.Context) error {
		var err error
		items, err = c.children(ctx, id)
		return err
	}, func(err error) {
		delete(c.expanding, id)
		if err == nil {
			err = c.install(id, items)
		}
		if err != nil {
			l.WithError(err).Error("expand failed")
			c.report.Failure(remoteErr(remote.OpChildren, err))
			return
		}
		c.onChange()
	})
}

func (c *Coordinator) install(id models.ID, items []models.Item) error {
	if !c.tree.Has(id) {
		return nil
	}
	ns, err := nodes(items)
	if err != nil {
		return err
	}
	return c.tree.ReplaceSubtree(id, ns)
}

// Reload refetches the root and every loaded folder plus the starred list
// and installs the results top-down. Folders that vanished on the store, or
// were dropped by their parent's listing, are skipped. A Reload requested
// while one is running is folded into a single follow-up run.
func (c *Coordinator) Reload() {
	if c.reloading {
		c.reloadPending = true
		return
	}
	c.reloading = true

	folders := slices.DeleteFunc(c.tree.LoadedFolders(), models.ID.Temporary)
	if len(folders) == 0 {
		folders = append(folders, c.tree.Root())
	}
	c.log.WithField("folders", len(folders)).Debug("reload started")

	listings := make([][]models.Item, len(folders))
	found := make([]bool, len(folders))
	var starred []models.Item
	c.exec.Go(func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(c.reloadLimit)
		for i, id := range folders {
			g.Go(func() error {
				items, err := c.children(ctx, id)
				if errors.Is(err, models.ErrNotFound) {
					return nil
				}
				listings[i], found[i] = items, err == nil
				return err
			})
		}
		g.Go(func() error {
			var err error
			starred, err = c.store.Starred(ctx)
			return err
		})
		return g.Wait()
	}, func(err error) {
		c.reloading = false
		if err != nil {
			c.log.WithError(err).Error("reload failed")
			c.report.Failure(remoteErr(remote.OpChildren, err))
		} else {
			c.applyReload(folders, found, listings, starred)
		}
		if c.reloadPending {
			c.reloadPending = false
			c.Reload()
		}
	})
}

func (c *Coordinator) applyReload(folders []models.ID, found []bool, listings [][]models.Item, starred []models.Item) {
	for i, id := range folders {
		if !found[i] {
			continue
		}
		n, err := c.tree.Get(id)
		if err != nil || !n.IsFolder() {
			continue
		}
		if err := c.install(id, listings[i]); err != nil {
			c.log.WithError(err).WithField("node_id", id).Error("reload listing rejected")
		}
	}
	c.starred.Set(starred)
	c.log.WithField("folders", len(folders)).Debug("reload applied")
	c.onChange()
}

// LoadStarred fetches the starred list.
func (c *Coordinator) LoadStarred() {
	var items []models.Item
	c.exec.Go(func(ctx context.Context) error {
		var err error
		items, err = c.store.Starred(ctx)
		return err
	}, func(err error) {
		if err != nil {
			c.log.WithError(err).Error("loading starred failed")
			c.report.Failure(remoteErr(remote.OpStarred, err))
			return
		}
		c.starred.Set(items)
		c.onChange()
	})
}

// Tags fetches every tag and hands the list to done on the loop. A failure
// is reported and done receives nil.
func (c *Coordinator) Tags(done func([]models.Tag)) {
	var tags []models.Tag
	c.exec.Go(func(ctx context.Context) error {
		var err error
		tags, err = c.store.Tags(ctx)
		return err
	}, func(err error) {
		if err != nil {
			c.report.Failure(remoteErr(remote.OpTags, err))
			tags = nil
		}
		done(tags)
	})
}

// BookmarkTags fetches the tags of one bookmark, for the edit form.
func (c *Coordinator) BookmarkTags(id models.ID, done func([]models.Tag)) {
	var tags []models.Tag
	c.exec.Go(func(ctx context.Context) error {
		var err error
		tags, err = c.store.BookmarkTags(ctx, id)
		return err
	}, func(err error) {
		if err != nil {
			c.report.Failure(remoteErr(remote.OpBookmarkTags, err))
			tags = nil
		}
		done(tags)
	})
}
