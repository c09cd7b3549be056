// Package service applies user edits to the mirrored tree.
//
// Every edit runs the same three phases: validate against the mirror,
// apply optimistically, then confirm or roll back when the store answers.
// All Coordinator methods must be called on the event loop. They return as
// soon as the remote call is issued; its outcome arrives later through the
// loop.Executor and is surfaced through the Reporter.
package service

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/dastanaron/bookmarktree/internal/loop"
	"github.com/dastanaron/bookmarktree/internal/mirror"
	"github.com/dastanaron/bookmarktree/internal/models"
	"github.com/dastanaron/bookmarktree/internal/remote"
)

// Phase is the lifecycle state of one mutation.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseApplied
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseApplied:
		return "applied"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Mutation is one in-flight edit.
type Mutation struct {
	ID    uuid.UUID
	Op    string
	Node  models.ID
	Phase Phase
}

// Reporter shows transient notices to the user.
type Reporter interface {
	Success(msg string)
	Failure(err error)
}

type nopReporter struct{}

func (nopReporter) Success(string) {}
func (nopReporter) Failure(error)  {}

// Options configures a Coordinator. Zero values are usable.
type Options struct {
	Log      logrus.FieldLogger
	Reporter Reporter
	// OnChange runs on the loop after every change to the mirror or the
	// starred list.
	OnChange func()
	// ReloadConcurrency bounds parallel folder fetches during Reload.
	ReloadConcurrency int
}

// Coordinator owns the mirror and the starred list and runs every edit
// against the store.
type Coordinator struct {
	tree    *mirror.Mirror
	starred mirror.Starred
	store   remote.Store
	exec    loop.Executor

	log      logrus.FieldLogger
	report   Reporter
	onChange func()

	inflight  map[uuid.UUID]*Mutation
	expanding map[models.ID]bool
	fetches   singleflight.Group
	// detached holds the temporary nodes captured by a pending delete. A
	// create that finishes while its node is detached leaves its outcome
	// here for the delete's rollback to apply.
	detached map[models.ID]*outcome

	reloadLimit   int
	reloading     bool
	reloadPending bool
}

// New returns a coordinator over tree. The tree is owned by the coordinator
// from now on; read it through Snapshot and Node.
func New(tree *mirror.Mirror, store remote.Store, exec loop.Executor, opts Options) *Coordinator {
	c := &Coordinator{
		tree:        tree,
		store:       store,
		exec:        exec,
		log:         opts.Log,
		report:      opts.Reporter,
		onChange:    opts.OnChange,
		inflight:    make(map[uuid.UUID]*Mutation),
		expanding:   make(map[models.ID]bool),
		detached:    make(map[models.ID]*outcome),
		reloadLimit: opts.ReloadConcurrency,
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	if c.report == nil {
		c.report = nopReporter{}
	}
	if c.onChange == nil {
		c.onChange = func() {}
	}
	if c.reloadLimit <= 0 {
		c.reloadLimit = 4
	}
	return c
}

// Snapshot returns a read-only copy of the loaded tree for rendering.
func (c *Coordinator) Snapshot() *mirror.View {
	return c.tree.Snapshot()
}

// Node returns a copy of one node.
func (c *Coordinator) Node(id models.ID) (models.Node, error) {
	return c.tree.Get(id)
}

// Starred returns the starred bookmarks.
func (c *Coordinator) Starred() []models.Item {
	return c.starred.Items()
}

// InFlight returns the mutations still waiting for the store.
func (c *Coordinator) InFlight() []Mutation {
	out := make([]Mutation, 0, len(c.inflight))
	for _, m := range c.inflight {
		out = append(out, *m)
	}
	return out
}

func (c *Coordinator) begin(op string, id models.ID) *Mutation {
	m := &Mutation{ID: uuid.New(), Op: op, Node: id, Phase: PhaseValidating}
	c.entry(m).Debug("mutation validating")
	return m
}

// reject ends a mutation that failed validation. Nothing was applied.
func (c *Coordinator) reject(m *Mutation, err error) error {
	m.Phase = PhaseIdle
	l := c.entry(m).WithError(err)
	if models.IsSilent(err) {
		l.Debug("mutation ignored")
		return err
	}
	l.Info("mutation rejected")
	c.report.Failure(err)
	return err
}

func (c *Coordinator) applied(m *Mutation) {
	m.Phase = PhaseApplied
	c.inflight[m.ID] = m
	c.entry(m).Debug("mutation applied")
	c.onChange()
}

func (c *Coordinator) confirmed(m *Mutation) {
	m.Phase = PhaseConfirmed
	delete(c.inflight, m.ID)
	c.entry(m).Debug("mutation confirmed")
	c.onChange()
}

func (c *Coordinator) rolledBack(m *Mutation, err error) {
	m.Phase = PhaseRolledBack
	delete(c.inflight, m.ID)
	c.entry(m).WithError(err).Warn("mutation rolled back")
	c.report.Failure(err)
	c.onChange()
}

// undo runs one rollback step. A node that disappeared, or reappeared,
// because a reload replaced it makes the step a no-op.
func (c *Coordinator) undo(m *Mutation, step string, err error) {
	if err == nil {
		return
	}
	l := c.entry(m).WithField("step", step).WithError(err)
	if superseded(err) {
		l.Debug("rollback step superseded by reload")
		return
	}
	l.Error("rollback step failed")
}

func superseded(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrParentNotFound) ||
		errors.Is(err, models.ErrDuplicateID)
}

func (c *Coordinator) entry(m *Mutation) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"mutation_id": m.ID.String(),
		"op":          m.Op,
		"node_id":     m.Node,
		"phase":       m.Phase.String(),
	})
}

func remoteErr(op string, err error) error {
	var re *models.RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &models.RemoteError{Op: op, Err: err}
}

// editable checks that id names a confirmed, non-root node.
func (c *Coordinator) editable(id models.ID) (models.Node, error) {
	n, err := c.tree.Get(id)
	if err != nil {
		return n, err
	}
	if id == c.tree.Root() {
		return n, models.ErrRootImmutable
	}
	if id.Temporary() {
		return n, models.ErrUnconfirmed
	}
	return n, nil
}
