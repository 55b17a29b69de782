package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

func keysOf(projects []project.Project) []string {
	keys := make([]string, len(projects))
	for i, p := range projects {
		keys[i] = p.Key()
	}

	return keys
}

func sampleCatalog() *project.Catalog {
	return project.NewCatalog(
		[]string{"alpha", "beta", "gamma", "delta"},
		[]project.Metadata{
			{Name: "gamma", Recent: true, Core: true, QualityDisplayName: "Gamma Project"},
			{Name: "alpha", Recent: true},
			{Name: "beta", Core: true},
			{Name: "omega", Recent: true, Core: true},
			{Name: "alpha", Core: true},
		},
		map[string]project.Sources{"gamma": {VCSURL: "https://git.example.org/gamma"}},
	)
}

func TestCatalog_MetadataOrderAndCommitFilter(t *testing.T) {
	t.Parallel()

	c := sampleCatalog()

	require.True(t, c.HasMetadata())
	assert.Equal(t, []string{"gamma", "alpha", "beta"}, keysOf(c.All()))
	assert.Equal(t, 3, c.Len())

	_, ok := c.Lookup("omega")
	assert.False(t, ok, "projects without commits are dropped")

	_, ok = c.Lookup("delta")
	assert.False(t, ok, "projects without metadata are dropped when metadata exists")

	alpha, ok := c.Lookup("alpha")
	require.True(t, ok)
	assert.True(t, alpha.Recent, "first metadata entry wins")
}

func TestCatalog_Filters(t *testing.T) {
	t.Parallel()

	c := sampleCatalog()

	assert.Equal(t, []string{"gamma"}, keysOf(c.Filter(project.DefaultFilter())))
	assert.Equal(t, []string{"gamma", "alpha"}, keysOf(c.Filter(project.Filter{Recent: true, Support: true})))
	assert.Equal(t, []string{"gamma", "beta"}, keysOf(c.Filter(project.Filter{})))
	assert.Equal(t, []string{"gamma", "alpha", "beta"}, keysOf(c.Filter(project.Filter{Support: true})))

	def, ok := c.Default(project.DefaultFilter())
	require.True(t, ok)
	assert.Equal(t, "gamma", def.Key())
	assert.Equal(t, "Gamma Project", def.DisplayName())
	assert.Equal(t, "https://git.example.org/gamma", def.Sources.VCSURL)
}

func TestCatalog_WithoutMetadata(t *testing.T) {
	t.Parallel()

	c := project.NewCatalog([]string{"zeta", "alpha", "mu"}, nil, nil)

	assert.False(t, c.HasMetadata())
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, keysOf(c.Filter(project.DefaultFilter())))

	p, ok := c.Lookup("mu")
	require.True(t, ok)
	assert.Equal(t, "mu", p.DisplayName())
	assert.Empty(t, p.Sources.VCSURL)
}

func TestCatalog_Empty(t *testing.T) {
	t.Parallel()

	c := project.NewCatalog(nil, nil, nil)

	_, ok := c.Default(project.DefaultFilter())
	assert.False(t, ok)
	assert.Empty(t, c.All())
}
