package tabs

import (
	"fmt"
	"sync"

	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/signal"
)

// Presets resolves a preset name to the fields a new tab starts with.
type Presets interface {
	Preset(name string) (params.Fields, error)
}

// Tab is one isolated bundle of model-specific parameters. Its id is never
// reused within a registry; Label is the preset it was created from.
type Tab struct {
	ID     int
	Label  string
	Fields *FieldSet
}

type ChangeKind int

const (
	Created ChangeKind = iota
	Activated
	Removed
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Activated:
		return "activated"
	case Removed:
		return "removed"
	case Renamed:
		return "renamed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one structural edit of the tab sequence.
type Change struct {
	Kind ChangeKind
	ID   int
}

type Registry struct {
	presets Presets
	maxTabs int

	mu     sync.RWMutex
	nextID int
	order  []*Tab
	byID   map[int]*Tab

	active  *signal.Signal[int]
	changes *signal.Signal[Change]
}

type Option func(*Registry)

// WithMaxTabs caps the number of live tabs. Zero or less means unlimited.
func WithMaxTabs(n int) Option {
	return func(r *Registry) { r.maxTabs = n }
}

func NewRegistry(presets Presets, opts ...Option) *Registry {
	r := &Registry{
		presets: presets,
		nextID:  1,
		byID:    make(map[int]*Tab),
		active:  signal.NewComparable(0),
		changes: signal.New(Change{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateTab appends a tab initialized from the named preset and activates it.
func (r *Registry) CreateTab(preset string) (int, error) {
	fields, err := r.presets.Preset(preset)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPreset, preset)
	}
	return r.CreateTabWith(preset, fields)
}

// CreateTabWith appends a tab with explicit fields and activates it.
func (r *Registry) CreateTabWith(label string, fields params.Fields) (int, error) {
	r.mu.Lock()
	if r.maxTabs > 0 && len(r.order) >= r.maxTabs {
		r.mu.Unlock()
		return 0, fmt.Errorf("%w (%d)", ErrTooManyTabs, r.maxTabs)
	}
	t := &Tab{ID: r.nextID, Label: label, Fields: NewFieldSet(fields)}
	r.nextID++
	r.order = append(r.order, t)
	r.byID[t.ID] = t
	r.mu.Unlock()

	r.changes.Set(Change{Kind: Created, ID: t.ID})
	r.SetActive(t.ID)
	return t.ID, nil
}

// SetActive makes id the active tab. Unknown ids are ignored.
func (r *Registry) SetActive(id int) bool {
	if _, ok := r.Tab(id); !ok {
		return false
	}
	if r.active.Set(id) {
		r.changes.Set(Change{Kind: Activated, ID: id})
	}
	return true
}

// RemoveTab drops a tab. When it was active, the tab before it (or after it,
// for the first tab) becomes active before the removal is announced.
func (r *Registry) RemoveTab(id int) error {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownTab, id)
	}
	if len(r.order) == 1 {
		r.mu.Unlock()
		return ErrLastTab
	}
	next := 0
	if idx > 0 {
		next = r.order[idx-1].ID
	} else {
		next = r.order[1].ID
	}
	r.order = append(r.order[:idx], r.order[idx+1:]...)
	r.mu.Unlock()

	if r.active.Get() == id {
		r.SetActive(next)
	}

	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()

	r.changes.Set(Change{Kind: Removed, ID: id})
	return nil
}

// Rename changes a tab's label. Tabs handed out earlier keep the old label.
func (r *Registry) Rename(id int, label string) error {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownTab, id)
	}
	t := *r.order[idx]
	t.Label = label
	r.order[idx] = &t
	r.byID[id] = &t
	r.mu.Unlock()

	r.changes.Set(Change{Kind: Renamed, ID: id})
	return nil
}

// Tabs returns the tabs in creation order.
func (r *Registry) Tabs() []*Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tab, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Tab(id int) (*Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// Index returns the position of id in the tab sequence, or -1.
func (r *Registry) Index(id int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ActiveID returns the active tab id, or 0 before the first tab exists.
func (r *Registry) ActiveID() int { return r.active.Get() }

// Active returns the active tab.
func (r *Registry) Active() (*Tab, bool) { return r.Tab(r.active.Get()) }

// ActiveSignal announces every change of the active id.
func (r *Registry) ActiveSignal() *signal.Signal[int] { return r.active }

// Changes announces every structural change for tab bars to re-render.
func (r *Registry) Changes() *signal.Signal[Change] { return r.changes }

func (r *Registry) indexLocked(id int) int {
	for i, t := range r.order {
		if t.ID == id {
			return i
		}
	}
	return -1
}
