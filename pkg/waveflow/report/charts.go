package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// pathMarker prefixes artifact lines in generated script output.
const pathMarker = "PATH:"

// ChartRunner executes generated plotting scripts and harvests the
// image paths they report.
type ChartRunner struct {
	// OutputDir is where scripts are told to save images.
	OutputDir string

	// Python is the interpreter to invoke. Defaults to "python3".
	Python string
}

// NewChartRunner returns a runner writing images under outputDir.
func NewChartRunner(outputDir string) *ChartRunner {
	return &ChartRunner{OutputDir: outputDir, Python: "python3"}
}

// Run writes the script to a temp file, executes it, and returns the
// artifact paths it printed as PATH: lines. When the script saved
// images without reporting them, new *.png files under OutputDir are
// returned instead.
func (r *ChartRunner) Run(ctx context.Context, script string) ([]string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	pre, err := r.pngSet()
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "viz_*.py")
	if err != nil {
		return nil, fmt.Errorf("write chart script: %w", err)
	}
	scriptPath := f.Name()
	defer os.Remove(scriptPath)

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return nil, fmt.Errorf("write chart script: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write chart script: %w", err)
	}

	interpreter := r.Python
	if interpreter == "" {
		interpreter = "python3"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, scriptPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("chart script failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if i := strings.Index(line, pathMarker); i >= 0 {
			if p := strings.TrimSpace(line[i+len(pathMarker):]); p != "" {
				paths = append(paths, p)
			}
		}
	}
	if len(paths) > 0 {
		return paths, nil
	}

	// Fallback discovery for scripts that saved but did not report.
	post, err := r.pngSet()
	if err != nil {
		return nil, err
	}
	for p := range post {
		if !pre[p] {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func (r *ChartRunner) pngSet() (map[string]bool, error) {
	matches, err := filepath.Glob(filepath.Join(r.OutputDir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("scan output dir: %w", err)
	}
	set := make(map[string]bool, len(matches))
	for _, m := range matches {
		set[m] = true
	}
	return set, nil
}
