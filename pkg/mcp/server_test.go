package mcp_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/datasource"
	"github.com/Sumatoshi-tech/heatmap/pkg/mcp"
	"github.com/Sumatoshi-tech/heatmap/pkg/render"
)

// Test constants to avoid magic strings.
const (
	testCommits = `{
		"alpha": [{"day": "2021-01-01", "value": 3}, {"day": "2021-03-01", "value": 5}],
		"beta": [{"day": "2021-02-01", "value": 1}]
	}`
	testDevelopers  = `{"alpha": [{"day": "2021-01-01", "value": 1}]}`
	testWeather     = `{"2021-01-01": 4.4}`
	testMeta        = `[{"name": "alpha", "quality_display_name": "Alpha", "recent": true, "core": true}, {"name": "beta", "core": true}]`
	testSources     = `{"alpha": {"vcs_url": "https://git.example.org/alpha"}}`
	testFileChanges = `[
		{"later_date": "2021-03-01", "earlier_date": "2020-03-01", "repo_name": "core", "file": "a.go"},
		{"later_date": "2021-03-01", "earlier_date": "2020-09-01", "repo_name": "web", "file": "b.js"}
	]`

	testTimeout = 10 * time.Second
)

func newSource(t *testing.T) *datasource.Repository {
	t.Helper()

	docs := map[string]string{
		datasource.CommitsPath:              testCommits,
		datasource.DevelopersPath:           testDevelopers,
		datasource.WeatherPath:              testWeather,
		datasource.MetadataPath:             testMeta,
		datasource.SourcesPath:              testSources,
		datasource.FileChangesPath("alpha"): testFileChanges,
	}

	fetcher := datasource.FetcherFunc(func(_ context.Context, name string) ([]byte, error) {
		doc, ok := docs[name]
		if !ok {
			return nil, datasource.ErrNotFound
		}

		return []byte(doc), nil
	})

	repo, err := datasource.Open(context.Background(), fetcher, calendar.DefaultConfig(), nil)
	require.NoError(t, err)

	return repo
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func firstText(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok, "expected text content")

	return text.Text
}

func decodeResult[T any](t *testing.T, result *mcpsdk.CallToolResult) T {
	t.Helper()

	require.False(t, result.IsError, firstText(t, result))

	var out T

	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &out))

	return out
}

func TestNewServer_ToolNames(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{Source: newSource(t)})

	assert.Equal(t, []string{mcp.ToolNameCalendar, mcp.ToolNameDay, mcp.ToolNameProjects}, srv.ListToolNames())
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
	}

	assert.ElementsMatch(t, []string{mcp.ToolNameProjects, mcp.ToolNameCalendar, mcp.ToolNameDay}, toolNames)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s missing description", tool.Name)
	}
}

func TestMCPServer_Projects(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	list := decodeResult[render.ProjectList](t, callTool(t, session, mcp.ToolNameProjects, map[string]any{}))
	require.Len(t, list.Projects, 1)
	assert.Equal(t, "alpha", list.Projects[0].Key)
	assert.Equal(t, "Alpha", list.Projects[0].Name)
	assert.Equal(t, "alpha", list.Default)

	list = decodeResult[render.ProjectList](t, callTool(t, session, mcp.ToolNameProjects, map[string]any{"recent": false}))
	assert.Len(t, list.Projects, 2)
}

func TestMCPServer_Calendar(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	snap := decodeResult[render.Snapshot](t, callTool(t, session, mcp.ToolNameCalendar, map[string]any{
		"project": "alpha",
		"overlay": true,
	}))

	assert.Equal(t, "Alpha", snap.Name)
	assert.Equal(t, calendar.NameTotalCommits, snap.Mode)
	assert.Equal(t, []int{2021}, snap.Years)
	assert.True(t, snap.Overlay.Enabled)
	require.Len(t, snap.Days, 2)
	require.NotNil(t, snap.Days[0].Temperature)
}

func TestMCPServer_CalendarFileChanges(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	snap := decodeResult[render.Snapshot](t, callTool(t, session, mcp.ToolNameCalendar, map[string]any{
		"project": "alpha",
		"mode":    calendar.NameFileChanges,
		"overlay": true,
	}))

	assert.Equal(t, calendar.NameFileChanges, snap.Mode)
	assert.False(t, snap.Overlay.Enabled)
	require.Len(t, snap.Days, 1)
	assert.Equal(t, "2021-03-01", snap.Days[0].Date)
}

func TestMCPServer_Day(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	day := decodeResult[render.DaySnapshot](t, callTool(t, session, mcp.ToolNameDay, map[string]any{
		"project": "alpha",
		"date":    "2021-03-01",
		"mode":    calendar.NameFileChanges,
	}))

	assert.True(t, day.HasData)
	assert.Equal(t, 2, day.FileChanges)
	assert.Len(t, day.Repos, 2)
}

func TestMCPServer_InvalidInput(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t)}))

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{name: "empty project", tool: mcp.ToolNameCalendar, args: map[string]any{"project": ""}, want: "project parameter"},
		{name: "unknown project", tool: mcp.ToolNameCalendar, args: map[string]any{"project": "nope"}, want: "unknown project"},
		{name: "unknown mode", tool: mcp.ToolNameCalendar, args: map[string]any{"project": "alpha", "mode": "bogus"}, want: "bogus"},
		{name: "empty date", tool: mcp.ToolNameDay, args: map[string]any{"project": "alpha", "date": ""}, want: "date parameter"},
		{name: "bad date", tool: mcp.ToolNameDay, args: map[string]any{"project": "alpha", "date": "2021-13-01"}, want: "2021-13-01"},
	}

	for _, tt := range tests {
		result := callTool(t, session, tt.tool, tt.args)

		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, firstText(t, result), tt.want, tt.name)
	}
}

func TestMCPServer_TraceID(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Source: newSource(t), Tracer: tp.Tracer("test")}))

	result := callTool(t, session, mcp.ToolNameProjects, map[string]any{})
	require.Len(t, result.Content, 2)

	last, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(last.Text, "trace_id="))

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "mcp."+mcp.ToolNameProjects, spans[0].Name)
}
