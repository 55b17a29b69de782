package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Controller errors.
var (
	// ErrSuperseded is returned when a fetch resolved after the project or
	// mode it was started for was left.
	ErrSuperseded = errors.New("request superseded")
	// ErrOverlayUnavailable is returned when the overlay cannot be toggled.
	ErrOverlayUnavailable = errors.New("temperature overlay unavailable")
	// ErrUnknownProject is returned by providers for project keys without data.
	ErrUnknownProject = errors.New("unknown project")
)

// Provider builds the calendar of a project.
type Provider interface {
	Calendar(ctx context.Context, project string) (*Calendar, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, project string) (*Calendar, error)

// Calendar calls f.
func (f ProviderFunc) Calendar(ctx context.Context, project string) (*Calendar, error) {
	return f(ctx, project)
}

// Listener receives every published view.
type Listener interface {
	ViewChanged(view *View)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(view *View)

// ViewChanged calls f.
func (f ListenerFunc) ViewChanged(view *View) { f(view) }

// ControllerOptions configures a ModeController.
type ControllerOptions struct {
	// Mode is the initial mode; DefaultMode when nil.
	Mode Mode
	// Overlay is the initial state of the temperature toggle.
	Overlay bool
	Logger  *slog.Logger
}

// ModeController is the view-mode state machine. It owns the current
// calendar, the active mode and the overlay toggle, and publishes a new View
// after every transition. It is safe for concurrent use; the lock is never
// held while file changes are fetched.
type ModeController struct {
	provider Provider
	logger   *slog.Logger

	mu         sync.Mutex
	mode       Mode
	overlay    bool
	generation uint64
	cal        *Calendar
	view       *View
	listeners  []Listener
}

// ticket identifies the calendar a fetch was started for. A ticket from
// SelectMode also carries the state to restore when the fetch fails.
type ticket struct {
	generation uint64
	cal        *Calendar

	rollback    bool
	mode        Mode
	prevMode    Mode
	prevOverlay bool
}

// NewModeController creates a controller without a project.
func NewModeController(provider Provider, opts ControllerOptions) *ModeController {
	if opts.Mode == nil {
		opts.Mode = DefaultMode
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &ModeController{
		provider: provider,
		logger:   opts.Logger,
		mode:     opts.Mode,
		overlay:  opts.Overlay && opts.Mode.SupportsTemperatureOverlay(),
	}
}

// Subscribe registers l for future views.
func (c *ModeController) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, l)
}

// View returns the last published view; nil before the first project.
func (c *ModeController) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.view
}

// Mode returns the active mode.
func (c *ModeController) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.mode
}

// SelectProject replaces the calendar with the one of project, keeping the
// mode and the overlay toggle. In file-changes mode the new project's file
// changes are fetched before a view is published.
func (c *ModeController) SelectProject(ctx context.Context, project string) (*View, error) {
	cal, err := c.provider.Calendar(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("select project %s: %w", project, err)
	}

	c.mu.Lock()
	c.generation++
	c.cal = cal
	t := ticket{generation: c.generation, cal: cal}
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "project selected", "project", project)

	return c.resolve(ctx, t)
}

// SelectMode switches to mode. Entering a mode without overlay support
// switches the toggle off; the previous state is not restored on leaving it.
// When mode needs file changes that were not fetched yet, the call blocks
// until the fetch resolves and publishes nothing before that.
func (c *ModeController) SelectMode(ctx context.Context, mode Mode) (*View, error) {
	c.mu.Lock()
	prevMode, prevOverlay := c.mode, c.overlay
	c.mode = mode

	if !mode.SupportsTemperatureOverlay() {
		c.overlay = false
	}

	if c.cal == nil {
		c.mu.Unlock()

		return nil, nil
	}

	t := ticket{
		generation:  c.generation,
		cal:         c.cal,
		rollback:    true,
		mode:        mode,
		prevMode:    prevMode,
		prevOverlay: prevOverlay,
	}
	c.mu.Unlock()

	return c.resolve(ctx, t)
}

// ToggleOverlay flips the temperature overlay.
func (c *ModeController) ToggleOverlay() (*View, error) {
	c.mu.Lock()

	if !c.overlayAvailableLocked() {
		c.mu.Unlock()

		return nil, ErrOverlayUnavailable
	}

	c.overlay = !c.overlay
	view, listeners := c.publishLocked()
	c.mu.Unlock()

	notify(listeners, view)

	return view, nil
}

// SetOverlay sets the temperature overlay to enabled. Disabling always succeeds.
func (c *ModeController) SetOverlay(enabled bool) (*View, error) {
	c.mu.Lock()

	if enabled && !c.overlayAvailableLocked() {
		c.mu.Unlock()

		return nil, ErrOverlayUnavailable
	}

	c.overlay = enabled

	if c.cal == nil {
		c.mu.Unlock()

		return nil, nil
	}

	view, listeners := c.publishLocked()
	c.mu.Unlock()

	notify(listeners, view)

	return view, nil
}

func (c *ModeController) overlayAvailableLocked() bool {
	return c.cal != nil && c.mode.SupportsTemperatureOverlay() && c.cal.HasTemperature()
}

// resolve fetches what the active mode needs for t's calendar and publishes
// a view if t is still current afterwards.
func (c *ModeController) resolve(ctx context.Context, t ticket) (*View, error) {
	c.mu.Lock()
	needsFetch := c.mode.RequiresAsyncFetch() && !t.cal.FileChangesLoaded()
	c.mu.Unlock()

	var fetchErr error
	if needsFetch {
		fetchErr = t.cal.LoadFileChanges(ctx)
	}

	c.mu.Lock()

	if t.generation != c.generation || (needsFetch && !c.mode.RequiresAsyncFetch()) {
		c.mu.Unlock()

		c.logger.DebugContext(ctx, "discarding stale result", "project", t.cal.Project())

		return nil, ErrSuperseded
	}

	if fetchErr != nil {
		// The published view still shows the previous mode.
		if t.rollback && c.mode.Name() == t.mode.Name() {
			c.mode, c.overlay = t.prevMode, t.prevOverlay
		}

		c.mu.Unlock()

		c.logger.WarnContext(ctx, "file changes unavailable", "project", t.cal.Project(), "error", fetchErr)

		return nil, fetchErr
	}

	view, listeners := c.publishLocked()
	c.mu.Unlock()

	notify(listeners, view)

	return view, nil
}

func (c *ModeController) publishLocked() (*View, []Listener) {
	c.view = c.cal.View(c.mode, c.overlay)

	return c.view, append([]Listener(nil), c.listeners...)
}

func notify(listeners []Listener, view *View) {
	for _, l := range listeners {
		l.ViewChanged(view)
	}
}
