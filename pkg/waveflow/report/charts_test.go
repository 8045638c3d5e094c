package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shRunner executes "scripts" with sh so tests need no Python.
func shRunner(t *testing.T) *ChartRunner {
	t.Helper()
	r := NewChartRunner(t.TempDir())
	r.Python = "sh"
	return r
}

func TestChartRunnerHarvestsPathLines(t *testing.T) {
	r := shRunner(t)

	paths, err := r.Run(context.Background(), `
echo "rendering chart 1"
echo "PATH:/tmp/chart_a.png"
echo "PATH: /tmp/chart_b.png"
echo "no marker here"
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/chart_a.png", "/tmp/chart_b.png"}, paths)
}

func TestChartRunnerFallbackDiscovery(t *testing.T) {
	r := shRunner(t)

	// Pre-existing images are not re-discovered.
	old := filepath.Join(r.OutputDir, "old.png")
	require.NoError(t, os.WriteFile(old, []byte("png"), 0o644))

	fresh := filepath.Join(r.OutputDir, "fresh.png")
	paths, err := r.Run(context.Background(), "touch "+fresh)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, paths)
}

func TestChartRunnerScriptFailure(t *testing.T) {
	r := shRunner(t)

	_, err := r.Run(context.Background(), `echo "bad column" >&2; exit 3`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chart script failed")
	assert.Contains(t, err.Error(), "bad column")
}

func TestChartRunnerNoArtifacts(t *testing.T) {
	r := shRunner(t)

	paths, err := r.Run(context.Background(), `echo "nothing saved"`)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestChartRunnerCancelledContext(t *testing.T) {
	r := shRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, `sleep 5`)
	assert.Error(t, err)
}
