package pipeline

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logjuicer/logjuicer/internal/lineiter"
	"github.com/logjuicer/logjuicer/internal/source"
)

func stringSource(name, content string) lineiter.Source {
	return lineiter.Source{
		Name: name,
		Open: func(_ context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func repeatLine(line string, n int) string {
	return strings.Repeat(line+"\n", n)
}

// TestRun_RotatedFile mirrors spec §8 scenario 1: the target has one extra
// line versus its baseline.
func TestRun_RotatedFile(t *testing.T) {
	baseline := repeatLine("start service ok done", 100)
	target := baseline + "start service ok done zulu yankee xray whiskey victor uniform tango\n"

	indexName := source.IndexNameOf("audit.log")
	groups := map[string][]lineiter.Source{
		indexName: {stringSource("audit.log.1", baseline)},
	}
	targets := []lineiter.Source{stringSource("audit.log", target)}

	rep, err := Run(context.Background(), "audit.log", targets, []string{"audit.log.1"}, groups, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rep.LogReports, 1)
	lr := rep.LogReports[0]
	require.Equal(t, 1, lr.AnomalyCount())
	require.Len(t, lr.Contexts, 1)
	anomaly := lr.Contexts[0].Anomalies[0]
	assert.Greater(t, anomaly.Distance, float32(0.25))
	assert.Equal(t, 101, anomaly.LineNumber)
}

// TestRun_IdenticalStreams mirrors spec §8 scenario 2.
func TestRun_IdenticalStreams(t *testing.T) {
	content := repeatLine("scheduler: processing event for repo X", 50)

	indexName := source.IndexNameOf("app.log")
	groups := map[string][]lineiter.Source{
		indexName: {stringSource("app.log.1", content)},
	}
	targets := []lineiter.Source{stringSource("app.log", content)}

	rep, err := Run(context.Background(), "app.log", targets, []string{"app.log.1"}, groups, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rep.LogReports, 1)
	assert.Equal(t, uint32(0), rep.TotalAnomalyCount)
	assert.Equal(t, 50, rep.LogReports[0].LineCount)
}

// TestRun_DisjointVocabularies mirrors spec §8 scenario 3.
func TestRun_DisjointVocabularies(t *testing.T) {
	baseline := repeatLine("scheduler: processing event for repo X", 500)
	target := repeatLine("kernel panic not syncing", 10)

	indexName := source.IndexNameOf("app.log")
	groups := map[string][]lineiter.Source{
		indexName: {stringSource("app.log.1", baseline)},
	}
	targets := []lineiter.Source{stringSource("app.log", target)}

	rep, err := Run(context.Background(), "app.log", targets, []string{"app.log.1"}, groups, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rep.LogReports, 1)
	assert.Equal(t, uint32(10), rep.TotalAnomalyCount)
	for _, ctx := range rep.LogReports[0].Contexts {
		for _, a := range ctx.Anomalies {
			assert.GreaterOrEqual(t, a.Distance, float32(0.9))
		}
	}
}

// TestRun_UnknownFile mirrors spec §8 scenario 5: a target source whose
// IndexName has no trained group is reported as unknown, not analyzed.
func TestRun_UnknownFile(t *testing.T) {
	groups := map[string][]lineiter.Source{
		source.IndexNameOf("app.log"): {stringSource("app.log.1", "hello world\n")},
	}
	targets := []lineiter.Source{stringSource("metrics.csv", "a,b,c\n1,2,3\n")}

	rep, err := Run(context.Background(), "target", targets, []string{"app.log.1"}, groups, DefaultConfig())
	require.NoError(t, err)

	assert.Empty(t, rep.LogReports)
	require.Len(t, rep.UnknownFiles, 1)
	assert.Equal(t, source.IndexNameOf("metrics.csv"), rep.UnknownFiles[0].Name)
}

func TestTrain_ReturnsLiveIndexes(t *testing.T) {
	indexName := source.IndexNameOf("app.log")
	groups := map[string][]lineiter.Source{
		indexName: {stringSource("app.log.1", repeatLine("hello world", 5))},
	}
	indexes, reports, err := Train(context.Background(), groups, DefaultConfig())
	require.NoError(t, err)
	require.Contains(t, indexes, indexName)
	assert.Equal(t, 1, indexes[indexName].RowCount())
	require.Len(t, reports, 1)
	assert.Equal(t, indexName, reports[0].Name)
}
