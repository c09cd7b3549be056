// Package ui is the terminal front end: a folder tree bound to the mutation
// coordinator, with a starred list, a search box and transient notices.
package ui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	sysclip "github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/sirupsen/logrus"

	"github.com/dastanaron/bookmarktree/internal/clipboard"
	"github.com/dastanaron/bookmarktree/internal/loop"
	"github.com/dastanaron/bookmarktree/internal/mirror"
	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/reconcile"
	"github.com/dastanaron/bookmarktree/internal/remote"
	"github.com/dastanaron/bookmarktree/internal/search"
	"github.com/dastanaron/bookmarktree/internal/service"
)

const (
	ModeNormal = 1
	ModeSearch = 2
	ModeForm   = 3
	ModeModal  = 4
)

const helpText = "[::b]a[::-] bookmark  [::b]f[::-] folder  [::b]e[::-] edit  [::b]d[::-] del  " +
	"[::b]x[::-]/[::b]p[::-] cut/paste  [::b]m[::-] move  [::b]s[::-] star  [::b]/[::-] search  " +
	"[::b]t[::-] tags  [::b]y[::-] copy  [::b]r[::-] reload  [::b]q[::-] quit"

type Options struct {
	Log            logrus.FieldLogger
	Search         search.Options
	NoticeDuration time.Duration
	// Notifier delivers change signals from the store. Nil disables
	// reconciliation, as in local mode where nobody else writes.
	Notifier remote.Notifier
}

// App represents the TUI application
type App struct {
	app     *tview.Application
	pages   *tview.Pages
	tree    *tview.TreeView
	starred *tview.List
	results *tview.List
	detail  *tview.TextView
	search  *tview.InputField
	status  *tview.TextView
	side    *tview.Pages
	mode    uint8

	ctx    context.Context
	cancel context.CancelFunc
	loop   loop.Dispatcher
	exec   *loop.Async
	log    logrus.FieldLogger

	coord    *service.Coordinator
	clip     *clipboard.State
	overlay  *search.Overlay
	notices  *notices
	notifier remote.Notifier

	expanded map[models.ID]bool
	moving   models.ID
}

// New builds the application around store. Nothing is fetched until Run.
func New(ctx context.Context, store remote.Store, opts Options) *App {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &App{
		app:      tview.NewApplication(),
		pages:    tview.NewPages(),
		tree:     tview.NewTreeView(),
		starred:  tview.NewList().ShowSecondaryText(false),
		results:  tview.NewList(),
		detail:   tview.NewTextView().SetDynamicColors(true).SetWrap(true),
		search:   tview.NewInputField().SetLabel("Search: "),
		status:   tview.NewTextView().SetDynamicColors(true),
		side:     tview.NewPages(),
		mode:     ModeNormal,
		log:      log,
		notifier: opts.Notifier,
		expanded: map[models.ID]bool{models.RootID: true},
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.loop = loop.DispatcherFunc(func(fn func()) { a.app.QueueUpdateDraw(fn) })
	a.exec = loop.NewAsync(a.ctx, a.loop)

	duration := opts.NoticeDuration
	if duration <= 0 {
		duration = time.Second
	}
	a.notices = newNotices(a.status, a.loop, duration, func() string { return helpText })

	a.coord = service.New(mirror.New("Bookmarks"), store, a.exec, service.Options{
		Log:      log,
		Reporter: a.notices,
		OnChange: a.refresh,
	})
	a.clip = clipboard.New(a.coord)

	so := opts.Search
	so.Log = log
	a.overlay = search.New(store, a.loop, a.exec, a.showResults, so)
	return a
}

// Run starts the application and blocks until the user quits.
func (a *App) Run() error {
	defer a.cancel()

	a.tree.SetBorder(true).SetTitle("Bookmarks")
	a.starred.SetBorder(true).SetTitle("Starred")
	a.results.SetBorder(true).SetTitle("Results")
	a.detail.SetBorder(true).SetTitle("Details")

	a.side.AddPage("starred", a.starred, true, true)
	a.side.AddPage("results", a.results, true, false)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.side, 0, 2, false).
		AddItem(a.detail, 0, 1, false)
	cols := tview.NewFlex().
		AddItem(a.tree, 0, 3, true).
		AddItem(right, 0, 2, false)
	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.search, 1, 0, false).
		AddItem(cols, 0, 1, true).
		AddItem(a.status, 1, 0, false)
	a.pages.AddPage("main", main, true, true)

	a.tree.SetChangedFunc(func(*tview.TreeNode) { a.showDetails() })
	a.tree.SetSelectedFunc(a.onSelect)
	a.search.SetChangedFunc(a.overlay.Input)
	a.search.SetDoneFunc(a.onSearchDone)

	a.app.SetRoot(a.pages, true)
	a.app.SetInputCapture(a.globalInput)
	a.notices.Reset()
	a.refresh()

	if a.notifier != nil {
		l := reconcile.New(a.notifier, a.loop, a.coord, a.log)
		go func() {
			if err := l.Run(a.ctx); err != nil {
				a.loop.Post(func() {
					a.notices.Failure(fmt.Errorf("live updates stopped: %w", err))
				})
			}
		}()
	}
	a.loop.Post(a.coord.Reload)

	return a.app.Run()
}

// refresh redraws the tree and starred list from the coordinator, keeping
// the selection where the selected node still exists.
func (a *App) refresh() {
	selected, _ := nodeID(a.tree.GetCurrentNode())
	entry, _ := a.clip.Content()
	root := buildTree(a.coord.Snapshot(), marks{expanded: a.expanded, cut: entry.ID, moving: a.moving})
	a.tree.SetRoot(root)
	current := findNode(root, selected)
	if current == nil {
		current = root
	}
	a.tree.SetCurrentNode(current)

	index := a.starred.GetCurrentItem()
	a.starred.Clear()
	for _, it := range a.coord.Starred() {
		url := it.URL
		a.starred.AddItem(tview.Escape(it.Title), tview.Escape(url), 0, func() { a.open(url) })
	}
	if index < a.starred.GetItemCount() {
		a.starred.SetCurrentItem(index)
	}
	a.showDetails()
}

func (a *App) selected() (models.Node, bool) {
	id, ok := nodeID(a.tree.GetCurrentNode())
	if !ok {
		return models.Node{}, false
	}
	n, err := a.coord.Node(id)
	return n, err == nil
}

// target is the folder new items and pastes go to: the selected folder, or
// the parent of the selected bookmark.
func (a *App) target() models.ID {
	n, ok := a.selected()
	switch {
	case !ok:
		return models.RootID
	case n.IsFolder():
		return n.ID
	default:
		return n.ParentID
	}
}

func (a *App) title(id models.ID) string {
	if n, err := a.coord.Node(id); err == nil {
		return n.Title
	}
	return "?"
}

func (a *App) showDetails() {
	n, ok := a.selected()
	if !ok {
		a.detail.SetText("")
		return
	}
	if n.IsFolder() {
		state := "not loaded"
		if n.Loaded {
			state = fmt.Sprintf("%d items", len(n.Children))
		}
		a.detail.SetText(fmt.Sprintf("[::b]Folder[::-]\n%s\n\n%s", tview.Escape(n.Title), state))
		return
	}
	text := fmt.Sprintf("[::b]Title:[::-]\n%s\n\n[::b]URL:[::-]\n%s",
		tview.Escape(n.Title), tview.Escape(n.URL))
	if len(n.Tags) > 0 {
		text += fmt.Sprintf("\n\n[::b]Tags:[::-]\n%s", tview.Escape(models.TagNames(n.Tags)))
	}
	if n.Starred {
		text += "\n\n[yellow]starred[-]"
	}
	a.detail.SetText(text)
}

// onSelect toggles folders, loading them on first open, and opens
// bookmarks in the browser.
func (a *App) onSelect(node *tview.TreeNode) {
	id, ok := nodeID(node)
	if !ok {
		return
	}
	n, err := a.coord.Node(id)
	if err != nil {
		return
	}
	if !n.IsFolder() {
		a.open(n.URL)
		return
	}
	if id == models.RootID {
		return
	}
	a.expanded[id] = !a.expanded[id]
	if a.expanded[id] && !n.Loaded {
		a.coord.Expand(id)
	}
	a.refresh()
}

func (a *App) showResults(query string, items []models.Item) {
	a.results.Clear()
	for _, it := range items {
		url := it.URL
		secondary := url
		if it.IsFolder() {
			secondary = "folder"
		}
		a.results.AddItem(tview.Escape(it.Title), tview.Escape(secondary), 0, func() {
			if url != "" {
				a.open(url)
			}
		})
	}
	if query == "" {
		a.results.SetTitle("Results")
	} else {
		a.results.SetTitle(fmt.Sprintf("Results for %q (%d)", query, len(items)))
	}
	if len(items) > 0 || query != "" {
		a.side.SwitchToPage("results")
	} else {
		a.side.SwitchToPage("starred")
	}
}

// searchFor runs query immediately, as if typed and submitted.
func (a *App) searchFor(query string) {
	a.search.SetText(query)
	a.overlay.Submit(query)
}

func (a *App) onSearchDone(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		a.overlay.Submit(a.search.GetText())
		a.setMode(ModeNormal)
		if a.results.GetItemCount() > 0 {
			a.app.SetFocus(a.results)
		}
	case tcell.KeyEscape:
		a.search.SetText("")
		a.overlay.Clear()
		a.side.SwitchToPage("starred")
		a.setMode(ModeNormal)
	}
}

func (a *App) setMode(m uint8) {
	a.mode = m
	switch m {
	case ModeSearch:
		a.app.SetFocus(a.search)
	case ModeNormal:
		a.app.SetFocus(a.tree)
	}
}

func (a *App) globalInput(event *tcell.EventKey) *tcell.EventKey {
	if a.mode != ModeNormal {
		return event
	}

	switch event.Key() {
	case tcell.KeyTab:
		a.cycleFocus()
		return nil
	case tcell.KeyEscape:
		if a.moving != 0 {
			a.moving = 0
			a.notices.Reset()
			a.refresh()
			return nil
		}
		a.app.SetFocus(a.tree)
		return event
	case tcell.KeyRune:
	default:
		return event
	}

	if a.app.GetFocus() != a.tree {
		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case '/':
			a.setMode(ModeSearch)
			return nil
		}
		return event
	}

	switch event.Rune() {
	case 'q':
		a.app.Stop()
	case '/':
		a.setMode(ModeSearch)
	case 'a':
		a.showBookmarkForm(a.target())
	case 'f':
		a.showFolderForm(a.target(), nil)
	case 'e':
		a.edit()
	case 'd':
		a.confirmDelete()
	case 'x':
		a.cut()
	case 'p':
		a.paste()
	case 'm':
		a.move()
	case 's':
		a.toggleStar()
	case 'y':
		a.copyURL()
	case 't':
		a.coord.Tags(a.showTags)
	case 'r':
		a.coord.Reload()
	default:
		return event
	}
	return nil
}

func (a *App) cycleFocus() {
	switch a.app.GetFocus() {
	case a.tree:
		if name, _ := a.side.GetFrontPage(); name == "results" {
			a.app.SetFocus(a.results)
		} else {
			a.app.SetFocus(a.starred)
		}
	default:
		a.app.SetFocus(a.tree)
	}
}

func (a *App) edit() {
	n, ok := a.selected()
	if !ok || n.ID == models.RootID {
		return
	}
	if n.IsFolder() {
		a.showFolderForm(n.ParentID, &n)
		return
	}
	if n.ID.Temporary() {
		a.notices.Failure(models.ErrUnconfirmed)
		return
	}
	id := n.ID
	a.coord.BookmarkTags(id, func(tags []models.Tag) {
		current, err := a.coord.Node(id)
		if err != nil {
			return
		}
		if tags == nil {
			tags = current.Tags
		}
		a.showEditForm(current, tags)
	})
}

func (a *App) confirmDelete() {
	n, ok := a.selected()
	if !ok || n.ID == models.RootID {
		return
	}
	what := "bookmark"
	if n.IsFolder() {
		what = "folder and everything in it"
	}
	id := n.ID
	a.showConfirm(fmt.Sprintf("Delete %s %q?", what, n.Title), func() {
		a.coord.PerformDelete(id)
	})
}

func (a *App) cut() {
	n, ok := a.selected()
	if !ok || n.ID == models.RootID {
		return
	}
	a.clip.Cut(n.ID, n.IsFolder())
	a.notices.Info(fmt.Sprintf("Cut %q, press p on a folder to paste", n.Title))
	a.refresh()
}

func (a *App) paste() {
	if a.clip.Empty() {
		return
	}
	// A failed paste may still have emptied the slot.
	_ = a.clip.Paste(a.target())
	a.refresh()
}

// move is the two-step move gesture: the first press picks the selected
// node up, the second drops it on the selected node.
func (a *App) move() {
	n, ok := a.selected()
	if !ok {
		return
	}
	if a.moving == 0 {
		if n.ID == models.RootID {
			return
		}
		a.moving = n.ID
		a.notices.Info(fmt.Sprintf("Moving %q, press m on the destination folder, Esc to cancel", n.Title))
		a.refresh()
		return
	}
	dragged := a.moving
	a.moving = 0
	a.notices.Reset()
	a.coord.PerformMove(dragged, n.ID)
	a.refresh()
}

func (a *App) toggleStar() {
	n, ok := a.selected()
	if !ok || n.IsFolder() {
		return
	}
	a.coord.PerformStar(n.ID, !n.Starred)
}

func (a *App) copyURL() {
	n, ok := a.selected()
	if !ok || n.IsFolder() {
		return
	}
	if err := sysclip.WriteAll(n.URL); err != nil {
		a.showError(fmt.Sprintf("Cannot copy to clipboard: %v", err))
		return
	}
	a.notices.Success("Copied " + n.URL)
}

func (a *App) open(url string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	if err := openURL(url); err != nil {
		a.log.WithError(err).WithField("url", url).Warn("cannot open browser")
		a.notices.Failure(fmt.Errorf("cannot open %s: %w", url, err))
	}
}

func openURL(url string) error {
	var cmd string
	var args []string
	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default:
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
