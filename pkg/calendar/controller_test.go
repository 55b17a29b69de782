package calendar_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
)

// Test constants to avoid magic strings.
const (
	projectA = "alpha"
	projectB = "beta"
)

type fixture struct {
	src    *blockingSource
	ctrl   *calendar.ModeController
	mu     sync.Mutex
	events []*calendar.View
}

func newFixture(t *testing.T, opts calendar.ControllerOptions) *fixture {
	t.Helper()

	f := &fixture{src: newBlockingSource()}

	inputs := map[string]calendar.Input{
		projectA: {
			Project:    projectA,
			Commits:    []calendar.DayRecord{rec("2021-01-01", 3), rec("2021-01-02", 5)},
			Developers: []calendar.DayRecord{rec("2021-01-01", 1), rec("2021-01-02", 2), rec("2021-01-05", 4)},
			Temperature: calendar.TemperatureSeries{
				calendar.MustParseDate("2021-01-01"): 4.4,
			},
		},
		projectB: {
			Project: projectB,
			Commits: []calendar.DayRecord{rec("2021-03-01", 1)},
			Temperature: calendar.TemperatureSeries{
				calendar.MustParseDate("2021-03-01"): 10,
			},
		},
		"bare": {Project: "bare", Commits: []calendar.DayRecord{rec("2021-01-01", 1)}},
	}

	f.src.events[projectA] = fileChangeEvents("2021-03-01", 150)
	f.src.events[projectB] = fileChangeEvents("2021-03-01", 4)

	provider := calendar.ProviderFunc(func(_ context.Context, project string) (*calendar.Calendar, error) {
		in, ok := inputs[project]
		if !ok {
			return nil, fmt.Errorf("%w: %s", calendar.ErrUnknownProject, project)
		}

		return calendar.NewCalendar(in, f.src, calendar.Config{}, nil), nil
	})

	f.ctrl = calendar.NewModeController(provider, opts)
	f.ctrl.Subscribe(calendar.ListenerFunc(func(v *calendar.View) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.events = append(f.events, v)
	}))

	return f
}

func (f *fixture) published() []*calendar.View {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*calendar.View(nil), f.events...)
}

type result struct {
	view *calendar.View
	err  error
}

func async(fn func() (*calendar.View, error)) <-chan result {
	ch := make(chan result, 1)

	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	return ch
}

// --- ModeController Tests ---

func TestModeController_SelectProjectPublishes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{Overlay: true})
	ctx := context.Background()

	assert.Nil(t, f.ctrl.View())

	view, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)

	assert.Equal(t, projectA, view.Project)
	assert.Equal(t, calendar.NameTotalCommits, view.Mode.Name())
	assert.Equal(t, []int{2021}, view.Years)
	assert.InDelta(t, 5.0, view.Legend[2021], 0)
	assert.Equal(t, calendar.OverlayState{Enabled: true, Available: true}, view.Overlay)
	assert.Same(t, view, f.ctrl.View())
	require.Len(t, f.published(), 1)

	cell := view.Cell(calendar.MustParseDate("2021-01-01"))
	require.True(t, cell.HasData)
	assert.Equal(t, 3, cell.Bucket)
	require.NotNil(t, cell.Tooltip)
	assert.Equal(t, "3 commits, 4°C", cell.Tooltip.Message)
	require.NotNil(t, cell.Temperature)
	assert.InDelta(t, 4.4, *cell.Temperature, 1e-9)

	devOnly := view.Cell(calendar.MustParseDate("2021-01-05"))
	assert.False(t, devOnly.HasData)
	assert.Nil(t, devOnly.Tooltip)

	assert.Len(t, view.Days(2021), 365)
	assert.Len(t, view.Cells(), 2)
	assert.Equal(t, calendar.Mode(calendar.TotalCommits{}), f.ctrl.Mode())
}

func TestModeController_UnknownProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{})

	_, err := f.ctrl.SelectProject(context.Background(), "missing")
	require.ErrorIs(t, err, calendar.ErrUnknownProject)
	assert.Nil(t, f.ctrl.View())
	assert.Empty(t, f.published())
}

func TestModeController_CommitsPerDeveloperScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{Mode: calendar.CommitsPerDeveloper{}})

	view, err := f.ctrl.SelectProject(context.Background(), projectA)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, view.Legend[2021], 1e-9)

	cell := view.Cell(calendar.MustParseDate("2021-01-01"))
	require.NotNil(t, cell.Tooltip)
	assert.Equal(t, "3.0 commits/developer, 1 developers, 4°C", cell.Tooltip.Message)
	assert.Equal(t, 5, cell.Bucket)
	assert.Nil(t, cell.Temperature, "overlay toggle is off")
}

func TestModeController_FileChangesForcesOverlayOff(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{Overlay: true})
	ctx := context.Background()

	_, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)

	f.src.Release(projectA)

	view, err := f.ctrl.SelectMode(ctx, calendar.FileChanges{})
	require.NoError(t, err)

	assert.Equal(t, calendar.OverlayState{}, view.Overlay)
	assert.InDelta(t, 100.0, view.Legend[2021], 0)

	cell := view.Cell(calendar.MustParseDate("2021-03-01"))
	assert.InDelta(t, 150.0, cell.Value, 0)
	assert.Equal(t, 5, cell.Bucket)
	require.NotNil(t, cell.Tooltip)
	assert.Equal(t, "26 changed files", cell.Tooltip.Message)
	assert.Len(t, view.Detail(calendar.MustParseDate("2021-03-01")), 1)

	_, err = f.ctrl.ToggleOverlay()
	require.ErrorIs(t, err, calendar.ErrOverlayUnavailable)

	// Leaving file changes re-enables the toggle without restoring its state.
	view, err = f.ctrl.SelectMode(ctx, calendar.TotalCommits{})
	require.NoError(t, err)
	assert.Equal(t, calendar.OverlayState{Enabled: false, Available: true}, view.Overlay)

	view, err = f.ctrl.ToggleOverlay()
	require.NoError(t, err)
	assert.True(t, view.Overlay.Enabled)

	// Switching back does not fetch again.
	_, err = f.ctrl.SelectMode(ctx, calendar.FileChanges{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.src.Calls(projectA))
}

func TestModeController_OverlayUnavailableWithoutTemperature(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{Overlay: true})

	view, err := f.ctrl.SelectProject(context.Background(), "bare")
	require.NoError(t, err)
	assert.Equal(t, calendar.OverlayState{}, view.Overlay)

	_, err = f.ctrl.ToggleOverlay()
	require.ErrorIs(t, err, calendar.ErrOverlayUnavailable)

	_, err = f.ctrl.SetOverlay(true)
	require.ErrorIs(t, err, calendar.ErrOverlayUnavailable)

	_, err = f.ctrl.SetOverlay(false)
	require.NoError(t, err)
}

func TestModeController_PendingFetchDeduplicated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{})
	ctx := context.Background()

	_, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)

	first := async(func() (*calendar.View, error) { return f.ctrl.SelectMode(ctx, calendar.FileChanges{}) })

	waitStarted(t, f.src, projectA)

	second := async(func() (*calendar.View, error) { return f.ctrl.SelectMode(ctx, calendar.FileChanges{}) })

	f.src.Release(projectA)

	for _, ch := range []<-chan result{first, second} {
		res := <-ch
		require.NoError(t, res.err)
		assert.Equal(t, calendar.NameFileChanges, res.view.Mode.Name())
	}

	assert.Equal(t, 1, f.src.Calls(projectA))
}

func TestModeController_ProjectSwitchDiscardsStaleFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{})
	ctx := context.Background()

	_, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)

	stale := async(func() (*calendar.View, error) { return f.ctrl.SelectMode(ctx, calendar.FileChanges{}) })

	waitStarted(t, f.src, projectA)

	fresh := async(func() (*calendar.View, error) { return f.ctrl.SelectProject(ctx, projectB) })

	waitStarted(t, f.src, projectB)

	f.src.Release(projectA)

	res := <-stale
	require.ErrorIs(t, res.err, calendar.ErrSuperseded)
	assert.Nil(t, res.view)

	f.src.Release(projectB)

	res = <-fresh
	require.NoError(t, res.err)
	assert.Equal(t, projectB, res.view.Project)
	assert.Equal(t, calendar.NameFileChanges, res.view.Mode.Name())
	assert.InDelta(t, 4.0, res.view.Legend[2021], 0)

	published := f.published()
	require.Len(t, published, 2)
	assert.Equal(t, projectA, published[0].Project)
	assert.Equal(t, projectB, published[1].Project)
}

func TestModeController_ModeSwitchDiscardsStaleFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{})
	ctx := context.Background()

	_, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)

	pending := async(func() (*calendar.View, error) { return f.ctrl.SelectMode(ctx, calendar.FileChanges{}) })

	waitStarted(t, f.src, projectA)

	view, err := f.ctrl.SelectMode(ctx, calendar.CommitsPerDeveloper{})
	require.NoError(t, err)
	assert.Equal(t, calendar.NameCommitsPerDeveloper, view.Mode.Name())

	f.src.Release(projectA)

	res := <-pending
	require.ErrorIs(t, res.err, calendar.ErrSuperseded)
	assert.Equal(t, calendar.NameCommitsPerDeveloper, f.ctrl.View().Mode.Name())
}

func TestModeController_FetchFailureKeepsView(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{Overlay: true})
	ctx := context.Background()

	before, err := f.ctrl.SelectProject(ctx, projectA)
	require.NoError(t, err)
	require.True(t, before.Overlay.Enabled)

	f.src.err = errBackend
	f.src.Release(projectA)

	_, err = f.ctrl.SelectMode(ctx, calendar.FileChanges{})
	require.ErrorIs(t, err, calendar.ErrFileChangeFetch)
	require.ErrorIs(t, err, errBackend)
	assert.Same(t, before, f.ctrl.View())
	assert.Equal(t, calendar.NameTotalCommits, f.ctrl.Mode().Name())

	// The toggle still belongs to the commit view that is shown.
	toggled, err := f.ctrl.ToggleOverlay()
	require.NoError(t, err)
	assert.False(t, toggled.Overlay.Enabled)

	restored, err := f.ctrl.ToggleOverlay()
	require.NoError(t, err)
	assert.True(t, restored.Overlay.Enabled)

	view, err := f.ctrl.SelectMode(ctx, calendar.TotalCommits{})
	require.NoError(t, err)
	assert.True(t, view.Overlay.Enabled)

	f.src.mu.Lock()
	f.src.err = nil
	f.src.mu.Unlock()

	view, err = f.ctrl.SelectMode(ctx, calendar.FileChanges{})
	require.NoError(t, err)
	assert.Equal(t, calendar.NameFileChanges, view.Mode.Name())
	assert.False(t, view.Overlay.Enabled)
	assert.Equal(t, 2, f.src.Calls(projectA))
}

func TestModeController_ModeBeforeProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, calendar.ControllerOptions{})
	ctx := context.Background()

	view, err := f.ctrl.SelectMode(ctx, calendar.CommitsPerDeveloper{})
	require.NoError(t, err)
	assert.Nil(t, view)

	view, err = f.ctrl.SelectProject(ctx, projectB)
	require.NoError(t, err)
	assert.Equal(t, calendar.NameCommitsPerDeveloper, view.Mode.Name())
}

func TestView_TemperatureRange(t *testing.T) {
	t.Parallel()

	cal := calendar.NewCalendar(calendar.Input{
		Project: projectA,
		Commits: []calendar.DayRecord{rec("2021-01-01", 1)},
		Temperature: calendar.TemperatureSeries{
			calendar.MustParseDate("2021-01-01"): -3,
			calendar.MustParseDate("2021-07-01"): 28,
			calendar.MustParseDate("2015-07-01"): 40,
		},
	}, nil, calendar.Config{}, nil)

	lo, hi, ok := cal.View(calendar.TotalCommits{}, true).TemperatureRange()
	require.True(t, ok)
	assert.InDelta(t, -3, lo, 0)
	assert.InDelta(t, 28, hi, 0)

	assert.True(t, calendar.NewCalendar(calendar.Input{Project: "empty"}, nil, calendar.Config{}, nil).View(calendar.TotalCommits{}, false).Empty())
}
