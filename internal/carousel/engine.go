// Package carousel implements a paged, optionally looping and
// auto-advancing carousel as a state machine independent of any renderer.
//
// The host feeds scroll observations (HandleScroll, HandleDragStart,
// HandleDragEnd, HandleScrollEnd) and receives scroll commands through a
// Viewport and focus changes through OnItemChange. In loop mode the
// rendered sequence is [last, items..., first]; landing on either clone is
// silently corrected back to the matching real page.
package carousel

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/drallgood/book-catalog/internal/logger"
)

// Defaults applied by New
const (
	DefaultInterval        = 3 * time.Second
	DefaultCorrectionDelay = 20 * time.Millisecond

	// restTolerance is how far from a page offset a scroll sample may be
	// and still count as resting on that page
	restTolerance = 0.5
)

// State is the engine's interaction state
type State int

const (
	// Idle means there are no items; the host renders nothing
	Idle State = iota
	// Settled means the carousel rests on a page
	Settled
	// UserDragging means a drag is in progress and auto-advance is suspended
	UserDragging
	// ProgrammaticScroll means an engine-initiated animation is in flight
	ProgrammaticScroll
)

func (s State) String() string {
	switch s {
	case Settled:
		return "settled"
	case UserDragging:
		return "user_dragging"
	case ProgrammaticScroll:
		return "programmatic_scroll"
	default:
		return "idle"
	}
}

// Viewport is the host scroll surface
type Viewport interface {
	ScrollTo(offset float64, animated bool)
}

// ViewportFunc adapts a function to Viewport
type ViewportFunc func(offset float64, animated bool)

// ScrollTo calls f(offset, animated)
func (f ViewportFunc) ScrollTo(offset float64, animated bool) { f(offset, animated) }

// Options configures an Engine
type Options[T any] struct {
	Loop         bool
	VariableSize bool
	AutoAdvance  bool
	// Interval between auto-advance steps (DefaultInterval when zero)
	Interval time.Duration
	Layout   Layout
	// InitialSelection picks the item focused when items are set; the
	// first item is used when nil or nothing matches
	InitialSelection func(T) bool
	// OnItemChange is called once per settled focus change with the
	// real item index
	OnItemChange func(index int, item T)
	Viewport     Viewport
	Clock        Clock
	// CorrectionDelay before a wraparound correction is applied
	// (DefaultCorrectionDelay when zero)
	CorrectionDelay time.Duration
	Logger          *logger.Logger
}

// Engine drives one carousel instance. All methods are safe for
// concurrent use; host callbacks are invoked without the engine lock held.
type Engine[T any] struct {
	geo             geometry
	loop            bool
	interval        time.Duration
	correctionDelay time.Duration
	initial         func(T) bool
	onItemChange    func(int, T)
	viewport        Viewport
	clock           Clock
	log             *logger.Logger

	mu          sync.Mutex
	items       []T
	state       State
	current     int // real index of the focused item
	focus       int // rendered index of the focused page
	target      int // rendered index of an in-flight programmatic scroll
	offset      float64
	autoAdvance bool
	unmounted   bool

	timer         Timer
	timerSeq      uint64
	correction    Timer
	correctionSeq uint64
}

// New creates an engine. It fails when the layout is unusable.
func New[T any](opts Options[T]) (*Engine[T], error) {
	if err := opts.Layout.validate(opts.VariableSize); err != nil {
		return nil, err
	}
	if opts.Interval < 0 || opts.CorrectionDelay < 0 {
		return nil, errors.New("carousel: durations must not be negative")
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CorrectionDelay == 0 {
		opts.CorrectionDelay = DefaultCorrectionDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Viewport == nil {
		opts.Viewport = ViewportFunc(func(float64, bool) {})
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Engine[T]{
		geo:             geometry{layout: opts.Layout, variable: opts.VariableSize},
		loop:            opts.Loop,
		interval:        opts.Interval,
		correctionDelay: opts.CorrectionDelay,
		initial:         opts.InitialSelection,
		onItemChange:    opts.OnItemChange,
		viewport:        opts.Viewport,
		clock:           opts.Clock,
		log:             opts.Logger.Component("carousel"),
		autoAdvance:     opts.AutoAdvance,
	}, nil
}

// effects collects host callbacks to run once the lock is released
type effects []func()

func (e *Engine[T]) run(fx effects) {
	for _, f := range fx {
		f()
	}
}

func (e *Engine[T]) scrollEffect(offset float64, animated bool) func() {
	vp := e.viewport
	return func() { vp.ScrollTo(offset, animated) }
}

func (e *Engine[T]) notifyEffect(index int) func() {
	cb := e.onItemChange
	if cb == nil {
		return func() {}
	}
	item := e.items[index]
	return func() { cb(index, item) }
}

func (e *Engine[T]) renderedCount() int {
	if len(e.items) == 0 {
		return 0
	}
	if e.loop {
		return len(e.items) + 2
	}
	return len(e.items)
}

func (e *Engine[T]) toRendered(i int) int {
	if e.loop {
		return i + 1
	}
	return i
}

func (e *Engine[T]) toReal(r int) int {
	n := len(e.items)
	if !e.loop {
		return r
	}
	return ((r-1)%n + n) % n
}

func (e *Engine[T]) isClone(r int) bool {
	return e.loop && (r == 0 || r == len(e.items)+1)
}

// SetItems replaces the item list. A non-empty list settles on the
// initial selection and notifies the host; an empty list returns to Idle.
func (e *Engine[T]) SetItems(items []T) {
	e.mu.Lock()
	if e.unmounted {
		e.mu.Unlock()
		return
	}
	e.disarm()
	e.cancelCorrection()

	if len(items) == 0 {
		e.items = nil
		e.state = Idle
		e.current, e.focus, e.target = 0, 0, 0
		e.mu.Unlock()
		e.log.Debug("Carousel emptied")
		return
	}

	e.items = append([]T(nil), items...)
	start := 0
	if e.initial != nil {
		for i, it := range e.items {
			if e.initial(it) {
				start = i
				break
			}
		}
	}
	e.current = start
	e.focus = e.toRendered(start)
	e.target = e.focus
	e.state = Settled
	e.offset = e.geo.offset(e.focus, e.focus)

	fx := effects{e.scrollEffect(e.offset, false), e.notifyEffect(start)}
	e.arm()
	e.mu.Unlock()

	e.log.Debug("Carousel items set", map[string]interface{}{
		"items": len(items),
		"start": start,
		"loop":  e.loop,
	})
	e.run(fx)
}

// HandleScroll records a continuous scroll observation. It never
// notifies; a resting position on a clone page schedules a correction.
func (e *Engine[T]) HandleScroll(offset float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return
	}
	e.offset = offset
	if e.state != Settled || !e.loop {
		return
	}
	r := e.geo.nearest(offset, e.renderedCount(), e.focus)
	// only a clone of the focused item; other pages wait for HandleScrollEnd
	if e.isClone(r) && e.toReal(r) == e.current && math.Abs(e.geo.offset(r, e.focus)-offset) <= restTolerance {
		e.focus = r
		e.scheduleCorrection()
	}
}

// HandleDragStart suspends auto-advance until the matching HandleDragEnd
func (e *Engine[T]) HandleDragStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return
	}
	e.disarm()
	e.cancelCorrection()
	e.state = UserDragging
}

// HandleDragEnd settles on the item nearest to offset and re-arms
// auto-advance with a full interval. Without a preceding drag start the
// call is ignored.
func (e *Engine[T]) HandleDragEnd(offset float64) {
	e.mu.Lock()
	if e.state != UserDragging {
		state := e.state
		e.mu.Unlock()
		e.log.Debug("Ignoring drag end without drag start", map[string]interface{}{
			"state": state.String(),
		})
		return
	}

	e.offset = offset
	r := e.geo.nearest(offset, e.renderedCount(), e.focus)
	fx := e.settle(r)
	// snap to the exact position for the new focus, sizes may have changed
	fx = append(fx, e.scrollEffect(e.geo.offset(r, r), true))
	e.arm()
	e.mu.Unlock()

	e.run(fx)
}

// HandleScrollEnd reports that scrolling came to rest at offset, either
// after momentum or after an engine-initiated animation
func (e *Engine[T]) HandleScrollEnd(offset float64) {
	e.mu.Lock()
	var fx effects
	switch e.state {
	case ProgrammaticScroll:
		e.offset = offset
		fx = e.settle(e.geo.nearest(offset, e.renderedCount(), e.target))
	case Settled:
		e.offset = offset
		if r := e.geo.nearest(offset, e.renderedCount(), e.focus); r != e.focus || e.isClone(r) {
			fx = e.settle(r)
		}
	}
	e.mu.Unlock()

	e.run(fx)
}

// settle focuses rendered index r, notifying when the real item changed.
// Callers hold the lock.
func (e *Engine[T]) settle(r int) effects {
	var fx effects
	e.state = Settled
	e.focus = r
	e.target = r
	if idx := e.toReal(r); idx != e.current {
		e.current = idx
		fx = append(fx, e.notifyEffect(idx))
	}
	if e.isClone(r) {
		e.scheduleCorrection()
	}
	return fx
}

// scheduleCorrection arms the delayed wraparound correction, replacing a
// pending one. Callers hold the lock.
func (e *Engine[T]) scheduleCorrection() {
	e.cancelCorrection()
	seq := e.correctionSeq
	e.correction = e.clock.AfterFunc(e.correctionDelay, func() {
		e.onCorrection(seq)
	})
}

func (e *Engine[T]) cancelCorrection() {
	if e.correction != nil {
		e.correction.Stop()
		e.correction = nil
	}
	e.correctionSeq++
}

func (e *Engine[T]) onCorrection(seq uint64) {
	e.mu.Lock()
	if seq != e.correctionSeq || e.unmounted {
		e.mu.Unlock()
		return
	}
	e.correction = nil
	var fx effects
	if e.state == Settled {
		fx = e.recenter()
	}
	e.mu.Unlock()

	e.run(fx)
}

// recenter moves a clone focus onto the real page showing the same item,
// without animation and without notifying. Callers hold the lock.
func (e *Engine[T]) recenter() effects {
	if !e.isClone(e.focus) {
		return nil
	}
	r := e.toRendered(e.current)
	e.log.Debug("Wraparound correction", map[string]interface{}{
		"from": e.focus,
		"to":   r,
	})
	e.focus = r
	e.target = r
	e.offset = e.geo.offset(r, r)
	return effects{e.scrollEffect(e.offset, false)}
}

// arm schedules the next auto-advance step, replacing any pending one.
// Callers hold the lock.
func (e *Engine[T]) arm() {
	e.disarm()
	if !e.autoAdvance || e.unmounted || len(e.items) < 2 {
		return
	}
	seq := e.timerSeq
	e.timer = e.clock.AfterFunc(e.interval, func() {
		e.onTick(seq)
	})
}

func (e *Engine[T]) disarm() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerSeq++
}

func (e *Engine[T]) onTick(seq uint64) {
	e.mu.Lock()
	if seq != e.timerSeq || e.unmounted {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	if e.state != Settled && e.state != ProgrammaticScroll {
		e.mu.Unlock()
		return
	}

	var fx effects
	if e.state == ProgrammaticScroll {
		// the previous step never reported completion
		fx = append(fx, e.settle(e.target)...)
	}
	if e.isClone(e.focus) {
		e.cancelCorrection()
		fx = append(fx, e.recenter()...)
	}

	next := e.focus + 1
	if !e.loop && next >= len(e.items) {
		next = 0
	}
	e.state = ProgrammaticScroll
	e.target = next
	fx = append(fx, e.scrollEffect(e.geo.offset(next, next), true))
	e.arm()
	e.mu.Unlock()

	e.run(fx)
}

// SetAutoAdvance enables or disables auto-advance
func (e *Engine[T]) SetAutoAdvance(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoAdvance = enabled
	if !enabled {
		e.disarm()
		return
	}
	if e.state == Settled || e.state == ProgrammaticScroll {
		e.arm()
	}
}

// Unmount cancels every pending timer. The engine is inert afterwards.
func (e *Engine[T]) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disarm()
	e.cancelCorrection()
	e.unmounted = true
	e.items = nil
	e.state = Idle
}

// State returns the current interaction state
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentIndex returns the focused item index, or -1 when Idle
func (e *Engine[T]) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return -1
	}
	return e.current
}

// CurrentItem returns the focused item
func (e *Engine[T]) CurrentItem() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	if e.state == Idle {
		return zero, false
	}
	return e.items[e.current], true
}

// RenderItems returns the sequence the host should render, including the
// boundary clones in loop mode
func (e *Engine[T]) RenderItems() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.items)
	if n == 0 {
		return nil
	}
	if !e.loop {
		return append([]T(nil), e.items...)
	}
	out := make([]T, 0, n+2)
	out = append(out, e.items[n-1])
	out = append(out, e.items...)
	return append(out, e.items[0])
}

// ItemOffset returns the scroll offset of rendered index r for the
// current focus
func (e *Engine[T]) ItemOffset(r int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.geo.offset(r, e.focus)
}

// ItemSize returns the width of rendered index r for the current focus
func (e *Engine[T]) ItemSize(r int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.geo.size(r, e.focus)
}

// FocusedPage returns the rendered index the engine considers focused
func (e *Engine[T]) FocusedPage() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focus
}

// ActiveTimers returns the number of armed auto-advance timers (0 or 1)
func (e *Engine[T]) ActiveTimers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		return 1
	}
	return 0
}

// CorrectionPending reports whether a wraparound correction is scheduled
func (e *Engine[T]) CorrectionPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.correction != nil
}
