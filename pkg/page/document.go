package page

import "sync"

// Event names a document event a listener can be attached to.
type Event string

// EventMouseDown fires when a mouse button is pressed anywhere on the page.
const EventMouseDown Event = "mousedown"

// Pointer is the position of a mouse event in page coordinates.
type Pointer struct {
	X, Y int
}

// Document is the page the overlay is drawn on.
type Document interface {
	// Mount adds the tooltip to the page.
	Mount(t *Tooltip)

	// Unmount removes the tooltip from the page.
	Unmount(t *Tooltip)

	// Update redraws a mounted tooltip after its content changed.
	Update(t *Tooltip)

	// AddListener attaches fn to a document event and returns the function
	// that detaches it.
	AddListener(event Event, fn func(Pointer)) (remove func())
}

// MemDocument is an in-memory Document. Mouse events are injected with
// Dispatch.
type MemDocument struct {
	mu        sync.Mutex
	mounted   map[*Tooltip]struct{}
	listeners map[Event]map[int]func(Pointer)
	nextID    int
	onChange  func(*MemDocument)
}

var _ Document = (*MemDocument)(nil)

// NewMemDocument creates an empty document.
func NewMemDocument() *MemDocument {
	return &MemDocument{
		mounted:   make(map[*Tooltip]struct{}),
		listeners: make(map[Event]map[int]func(Pointer)),
	}
}

// OnChange registers fn to run after every mount, unmount and tooltip
// update. The agent binary uses it to redraw.
func (d *MemDocument) OnChange(fn func(*MemDocument)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

func (d *MemDocument) Mount(t *Tooltip) {
	d.mu.Lock()
	d.mounted[t] = struct{}{}
	d.mu.Unlock()
	d.changed()
}

func (d *MemDocument) Unmount(t *Tooltip) {
	d.mu.Lock()
	delete(d.mounted, t)
	d.mu.Unlock()
	d.changed()
}

// Update signals that a mounted tooltip's content changed.
func (d *MemDocument) Update(t *Tooltip) {
	d.changed()
}

func (d *MemDocument) changed() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

func (d *MemDocument) AddListener(event Event, fn func(Pointer)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	if d.listeners[event] == nil {
		d.listeners[event] = make(map[int]func(Pointer))
	}
	d.listeners[event][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.listeners[event], id)
		})
	}
}

// Dispatch calls every listener attached to event.
func (d *MemDocument) Dispatch(event Event, p Pointer) {
	d.mu.Lock()
	fns := make([]func(Pointer), 0, len(d.listeners[event]))
	for _, fn := range d.listeners[event] {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// Tooltips returns the mounted tooltips.
func (d *MemDocument) Tooltips() []*Tooltip {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Tooltip, 0, len(d.mounted))
	for t := range d.mounted {
		out = append(out, t)
	}
	return out
}

// ListenerCount returns the number of attached listeners for event.
func (d *MemDocument) ListenerCount(event Event) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[event])
}
