package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/dastanaron/bookmarktree/internal/models"
)

const (
	pageForm    = "form"
	pageConfirm = "confirm"
	pageError   = "error"
	pageTags    = "tags"
)

// center places p in the middle of the screen with a fixed size.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) openPage(name string, p tview.Primitive, focus tview.Primitive, width, height int) {
	a.pages.AddPage(name, center(p, width, height), true, true)
	a.mode = ModeForm
	a.app.SetFocus(focus)
}

func (a *App) closePage(name string) {
	a.pages.RemovePage(name)
	if a.pages.HasPage(pageForm) {
		if _, p := a.pages.GetFrontPage(); p != nil {
			a.app.SetFocus(p)
		}
		return
	}
	a.mode = ModeNormal
	a.app.SetFocus(a.tree)
}

// showBookmarkForm asks for the URL of a new bookmark in parentID.
func (a *App) showBookmarkForm(parentID models.ID) {
	url := ""
	form := tview.NewForm()
	form.AddInputField("URL", "", 60, nil, func(t string) { url = t })
	form.AddButton("Save", func() {
		if _, err := a.coord.PerformCreateBookmark(parentID, url); err != nil {
			return
		}
		a.closePage(pageForm)
	})
	form.AddButton("Cancel", func() { a.closePage(pageForm) })
	form.SetCancelFunc(func() { a.closePage(pageForm) })
	form.SetBorder(true).SetTitle(fmt.Sprintf("New bookmark in %s", a.title(parentID)))
	a.openPage(pageForm, form, form, 72, 7)
}

// showFolderForm creates a folder in parentID, or renames folder when it is
// not nil.
func (a *App) showFolderForm(parentID models.ID, folder *models.Node) {
	name := ""
	title := fmt.Sprintf("New folder in %s", a.title(parentID))
	if folder != nil {
		name = folder.Title
		title = "Rename folder"
	}
	form := tview.NewForm()
	form.AddInputField("Name", name, 60, nil, func(t string) { name = t })
	form.AddButton("Save", func() {
		var err error
		if folder != nil {
			err = a.coord.PerformRename(folder.ID, name)
		} else {
			_, err = a.coord.PerformCreateFolder(parentID, name)
		}
		if err != nil {
			return
		}
		a.closePage(pageForm)
	})
	form.AddButton("Cancel", func() { a.closePage(pageForm) })
	form.SetCancelFunc(func() { a.closePage(pageForm) })
	form.SetBorder(true).SetTitle(title)
	a.openPage(pageForm, form, form, 72, 7)
}

// showEditForm edits the title, URL and tags of a bookmark. Tags are typed
// as a comma separated list; names the bookmark already had keep their ids.
func (a *App) showEditForm(b models.Node, current []models.Tag) {
	title, url := b.Title, b.URL
	tagText := models.TagNames(current)

	form := tview.NewForm()
	form.AddInputField("Title", title, 60, nil, func(t string) { title = t })
	form.AddInputField("URL", url, 60, nil, func(t string) { url = t })
	form.AddInputField("Tags", tagText, 60, nil, func(t string) { tagText = t })
	form.AddButton("Save", func() {
		tags := parseTags(tagText, current)
		if err := a.coord.PerformEdit(b.ID, models.Edit{Title: title, URL: &url, Tags: &tags}); err != nil {
			return
		}
		a.closePage(pageForm)
	})
	form.AddButton("Cancel", func() { a.closePage(pageForm) })
	form.SetCancelFunc(func() { a.closePage(pageForm) })
	form.SetBorder(true).SetTitle("Edit bookmark")
	a.openPage(pageForm, form, form, 72, 11)
}

func parseTags(text string, known []models.Tag) []models.Tag {
	ids := make(map[string]models.ID, len(known))
	for _, t := range known {
		ids[t.Name] = t.ID
	}
	seen := make(map[string]bool)
	tags := []models.Tag{}
	for _, name := range strings.Split(text, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, models.Tag{ID: ids[name], Name: name})
	}
	return tags
}

// showTags lists every tag; choosing one searches for it.
func (a *App) showTags(tags []models.Tag) {
	if len(tags) == 0 {
		a.notices.Info("No tags yet")
		return
	}
	list := tview.NewList().ShowSecondaryText(false)
	for _, t := range tags {
		list.AddItem(tview.Escape(t.Name), "", 0, func() {
			a.closePage(pageTags)
			a.searchFor(t.Name)
		})
	}
	list.SetDoneFunc(func() { a.closePage(pageTags) })
	list.SetBorder(true).SetTitle("Tags")
	a.openPage(pageTags, list, list, 40, min(len(tags)+2, 20))
}

func (a *App) showError(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.closePage(pageError)
		})
	modal.SetBorder(true).SetTitle("Error")
	a.pages.AddPage(pageError, modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}

func (a *App) showConfirm(message string, onConfirm func()) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"Cancel", "OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.closePage(pageConfirm)
			if buttonIndex == 1 && onConfirm != nil {
				onConfirm()
			}
		})
	modal.SetBorder(true).SetTitle("Confirm")
	a.pages.AddPage(pageConfirm, modal, true, true)
	a.mode = ModeModal
	a.app.SetFocus(modal)
}
