package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrFileChangeFetch wraps failures of the file-change data source.
var ErrFileChangeFetch = errors.New("file change fetch failed")

// collapseThreshold is the number of changes on a date above which
// per-repo listings start collapsed when several repos are involved.
const collapseThreshold = 10

// DayFileChanges groups the file changes of a single date by repository.
type DayFileChanges struct {
	// ByRepo holds the events per repository in input order.
	ByRepo map[string][]FileChangeEvent
	// Repos lists repository names in first-appearance order.
	Repos []string
	// Total is the sum of all per-repo list lengths.
	Total int
}

// DistinctFiles returns the number of distinct (repo, file) pairs.
func (dfc *DayFileChanges) DistinctFiles() int {
	if dfc == nil {
		return 0
	}

	type key struct{ repo, file string }

	seen := make(map[key]struct{}, dfc.Total)

	for repo, events := range dfc.ByRepo {
		for _, ev := range events {
			seen[key{repo, ev.File}] = struct{}{}
		}
	}

	return len(seen)
}

// FileChangeIndex maps a date to its file changes.
type FileChangeIndex map[Date]*DayFileChanges

// NestFileChanges nests events by later date and repository and derives the
// per-date total.
func NestFileChanges(events []FileChangeEvent) FileChangeIndex {
	index := make(FileChangeIndex)

	for _, ev := range events {
		day := index[ev.LaterDate]
		if day == nil {
			day = &DayFileChanges{ByRepo: make(map[string][]FileChangeEvent)}
			index[ev.LaterDate] = day
		}

		if _, ok := day.ByRepo[ev.Repo]; !ok {
			day.Repos = append(day.Repos, ev.Repo)
		}

		day.ByRepo[ev.Repo] = append(day.ByRepo[ev.Repo], ev)
	}

	for _, day := range index {
		total := 0
		for _, events := range day.ByRepo {
			total += len(events)
		}

		day.Total = total
	}

	return index
}

// --- Detail listing ---.

// RepoChanges is the detail listing of one repository on a date.
type RepoChanges struct {
	Repo      string       `json:"repo"       yaml:"repo"`
	URL       string       `json:"url,omitempty" yaml:"url,omitempty"`
	Count     int          `json:"count"      yaml:"count"`
	Collapsed bool         `json:"collapsed"  yaml:"collapsed"`
	Files     []FileChange `json:"files"      yaml:"files"`
}

// FileChange is a single listed file with its idle period.
type FileChange struct {
	File     string `json:"file"      yaml:"file"`
	IdleDays int    `json:"idle_days" yaml:"idle_days"`
}

// Detail returns the per-repo listing for the date, in repo order.
// Listings start collapsed when more than one repo is involved and the date
// has more than ten changes.
func (dfc *DayFileChanges) Detail() []RepoChanges {
	if dfc == nil {
		return nil
	}

	collapsed := len(dfc.Repos) > 1 && dfc.Total > collapseThreshold
	out := make([]RepoChanges, 0, len(dfc.Repos))

	for _, repo := range dfc.Repos {
		events := dfc.ByRepo[repo]
		rc := RepoChanges{
			Repo:      repo,
			Count:     len(events),
			Collapsed: collapsed,
			Files:     make([]FileChange, 0, len(events)),
		}

		for _, ev := range events {
			if rc.URL == "" {
				rc.URL = ev.URL
			}

			rc.Files = append(rc.Files, FileChange{File: ev.File, IdleDays: ev.IdleDays()})
		}

		out = append(out, rc)
	}

	return out
}

// --- Lazy aggregation ---.

// FileChangeSource retrieves the file-change events of a project.
type FileChangeSource interface {
	FetchFileChanges(ctx context.Context, project string) ([]FileChangeEvent, error)
}

// FileChangeSourceFunc adapts a function to FileChangeSource.
type FileChangeSourceFunc func(ctx context.Context, project string) ([]FileChangeEvent, error)

// FetchFileChanges calls f.
func (f FileChangeSourceFunc) FetchFileChanges(ctx context.Context, project string) ([]FileChangeEvent, error) {
	return f(ctx, project)
}

// FileChangeAggregator fetches and nests file changes on demand.
// A successful result is cached for the aggregator's lifetime; concurrent
// loads of the same project share a single fetch. Failures are not cached.
type FileChangeAggregator struct {
	source FileChangeSource
	logger *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]FileChangeIndex
}

// NewFileChangeAggregator creates an aggregator over source.
func NewFileChangeAggregator(source FileChangeSource, logger *slog.Logger) *FileChangeAggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileChangeAggregator{
		source: source,
		logger: logger,
		cache:  make(map[string]FileChangeIndex),
	}
}

// Cached returns the index of project if it was fetched already.
func (a *FileChangeAggregator) Cached(project string) (FileChangeIndex, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	idx, ok := a.cache[project]

	return idx, ok
}

// Load returns the nested file changes of project, fetching them on first use.
func (a *FileChangeAggregator) Load(ctx context.Context, project string) (FileChangeIndex, error) {
	if idx, ok := a.Cached(project); ok {
		return idx, nil
	}

	// Joined callers must not inherit the cancellation of the first one.
	fetchCtx := context.WithoutCancel(ctx)

	ch := a.group.DoChan(project, func() (any, error) {
		// Another caller may have completed the fetch between Cached and DoChan.
		if idx, ok := a.Cached(project); ok {
			return idx, nil
		}

		a.logger.DebugContext(fetchCtx, "fetching file changes", "project", project)

		events, err := a.source.FetchFileChanges(fetchCtx, project)
		if err != nil {
			return nil, fmt.Errorf("%w: project %s: %w", ErrFileChangeFetch, project, err)
		}

		idx := NestFileChanges(events)

		a.mu.Lock()
		a.cache[project] = idx
		a.mu.Unlock()

		return idx, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		idx, _ := res.Val.(FileChangeIndex)

		return idx, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: project %s: %w", ErrFileChangeFetch, project, ctx.Err())
	}
}
