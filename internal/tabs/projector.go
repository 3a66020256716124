package tabs

import (
	"sync"
	"sync/atomic"

	"github.com/san-kum/erpsim/internal/params"
)

// Projector keeps the shared active parameter set equal to the fields of the
// active tab.
//
// Pull copies the newly active tab into the set when the active id changes.
// Push copies an edit of the active tab into the set; edits of other tabs are
// ignored. Edits made directly on the set are copied back into the active tab.
// While a pull is in progress both directions of push are suspended, so a pull
// is always complete before any downstream observer sees a push.
type Projector struct {
	reg    *Registry
	active *FieldSet

	pulling atomic.Bool

	mu    sync.Mutex
	links map[int]func()
}

func NewProjector(reg *Registry) *Projector {
	initial := params.Fields{}
	if t, ok := reg.Active(); ok {
		initial = t.Fields.Fields()
	}
	p := &Projector{
		reg:    reg,
		active: NewFieldSet(initial),
		links:  make(map[int]func()),
	}

	for _, t := range reg.Tabs() {
		p.attach(t)
	}
	reg.Changes().Subscribe(func(c Change) {
		switch c.Kind {
		case Created:
			if t, ok := reg.Tab(c.ID); ok {
				p.attach(t)
			}
		case Removed:
			p.detach(c.ID)
		}
	})
	reg.ActiveSignal().Subscribe(p.pull)

	// reverse push: the set writes into whichever tab is active
	p.active.bindTo(p.activeTab)
	return p
}

// Active returns the shared active parameter set.
func (p *Projector) Active() *FieldSet { return p.active }

// Snapshot reads the active parameter set.
func (p *Projector) Snapshot() params.Fields { return p.active.Fields() }

func (p *Projector) pull(id int) {
	t, ok := p.reg.Tab(id)
	if !ok {
		return
	}
	p.pulling.Store(true)
	defer p.pulling.Store(false)
	p.active.Load(t.Fields.Fields())
}

func (p *Projector) attach(t *Tab) {
	id := t.ID
	cancel := t.Fields.bindTo(func() *FieldSet {
		if p.pulling.Load() || p.reg.ActiveID() != id {
			return nil
		}
		return p.active
	})
	p.mu.Lock()
	p.links[id] = cancel
	p.mu.Unlock()
}

func (p *Projector) detach(id int) {
	p.mu.Lock()
	cancel, ok := p.links[id]
	delete(p.links, id)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *Projector) activeTab() *FieldSet {
	if p.pulling.Load() {
		return nil
	}
	t, ok := p.reg.Active()
	if !ok {
		return nil
	}
	return t.Fields
}
