// Package project holds the catalog of projects shown in the heatmap and the
// filters used to narrow it down.
package project

import (
	"slices"
)

// Metadata describes a project.
type Metadata struct {
	Name               string `json:"name"                           yaml:"name"`
	QualityDisplayName string `json:"quality_display_name,omitempty" yaml:"quality_display_name,omitempty"`
	Recent             bool   `json:"recent,omitempty"               yaml:"recent,omitempty"`
	Core               bool   `json:"core,omitempty"                 yaml:"core,omitempty"`
	Main               bool   `json:"main,omitempty"                 yaml:"main,omitempty"`
}

// Sources lists the external locations of a project.
type Sources struct {
	VCSURL string `json:"vcs_url,omitempty" yaml:"vcs_url,omitempty"`
}

// Project is a catalog entry.
type Project struct {
	Metadata `yaml:",inline"`

	Sources Sources `json:"sources" yaml:"sources"`
}

// Key returns the identifier used to look up the project's data.
func (p Project) Key() string {
	return p.Name
}

// DisplayName returns the human-readable project name.
func (p Project) DisplayName() string {
	if p.QualityDisplayName != "" {
		return p.QualityDisplayName
	}

	return p.Name
}

// Filter selects projects from a catalog.
type Filter struct {
	// Recent limits the list to recently active projects.
	Recent bool
	// Support includes support projects; otherwise only core projects are listed.
	Support bool
}

// DefaultFilter lists recent core projects.
func DefaultFilter() Filter {
	return Filter{Recent: true, Support: false}
}

// Match reports whether p passes the filter.
func (f Filter) Match(p Project) bool {
	if f.Recent && !p.Recent {
		return false
	}

	if !f.Support && !p.Core {
		return false
	}

	return true
}

// Catalog is the ordered set of projects that have commit data.
type Catalog struct {
	projects    []Project
	index       map[string]int
	hasMetadata bool
}

// NewCatalog builds a catalog of the projects in keys. When meta is non-empty
// only projects listed there are kept, in metadata order; otherwise every key
// becomes a project, sorted by name. sources may be nil.
func NewCatalog(keys []string, meta []Metadata, sources map[string]Sources) *Catalog {
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}

	c := &Catalog{index: make(map[string]int), hasMetadata: len(meta) > 0}

	add := func(m Metadata) {
		if _, dup := c.index[m.Name]; dup {
			return
		}

		c.index[m.Name] = len(c.projects)
		c.projects = append(c.projects, Project{Metadata: m, Sources: sources[m.Name]})
	}

	if c.hasMetadata {
		for _, m := range meta {
			if _, ok := known[m.Name]; ok {
				add(m)
			}
		}

		return c
	}

	sorted := slices.Clone(keys)
	slices.Sort(sorted)

	for _, k := range sorted {
		add(Metadata{Name: k})
	}

	return c
}

// HasMetadata reports whether the catalog was built from project metadata.
// Filters have no effect without metadata.
func (c *Catalog) HasMetadata() bool {
	return c.hasMetadata
}

// Len returns the number of projects.
func (c *Catalog) Len() int {
	return len(c.projects)
}

// All returns every project in catalog order.
func (c *Catalog) All() []Project {
	return slices.Clone(c.projects)
}

// Lookup returns the project with the given key.
func (c *Catalog) Lookup(key string) (Project, bool) {
	i, ok := c.index[key]
	if !ok {
		return Project{}, false
	}

	return c.projects[i], true
}

// Filter returns the projects matching f in catalog order.
func (c *Catalog) Filter(f Filter) []Project {
	if !c.hasMetadata {
		return c.All()
	}

	out := make([]Project, 0, len(c.projects))

	for _, p := range c.projects {
		if f.Match(p) {
			out = append(out, p)
		}
	}

	return out
}

// Default returns the first project matching f; the project shown when
// nothing was requested explicitly.
func (c *Catalog) Default(f Filter) (Project, bool) {
	matches := c.Filter(f)
	if len(matches) == 0 {
		return Project{}, false
	}

	return matches[0], true
}
