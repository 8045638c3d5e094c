package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchPNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestInjectFigures(t *testing.T) {
	dir := t.TempDir()
	img := touchPNG(t, dir, "chart.png")

	t.Run("inserts before document close", func(t *testing.T) {
		body := `\begin{document}hello\end{document}`
		out := InjectFigures(body, []string{img})

		assert.Contains(t, out, `\section*{Visual Analysis}`)
		assert.Contains(t, out, `\includegraphics`)
		assert.Contains(t, out, filepath.ToSlash(img))
		assert.True(t, strings.Index(out, `\includegraphics`) < strings.Index(out, `\end{document}`))
	})

	t.Run("appends close when missing", func(t *testing.T) {
		out := InjectFigures(`\begin{document}hello`, []string{img})
		assert.Contains(t, out, `\end{document}`)
	})

	t.Run("existing header not duplicated", func(t *testing.T) {
		body := `\section*{Visual Analysis}\end{document}`
		out := InjectFigures(body, []string{img})
		assert.Equal(t, 1, strings.Count(out, `\section*{Visual Analysis}`))
	})

	t.Run("missing artifacts skipped", func(t *testing.T) {
		out := InjectFigures(`\end{document}`, []string{filepath.Join(dir, "ghost.png")})
		assert.NotContains(t, out, `\includegraphics`)
	})

	t.Run("no artifacts no header", func(t *testing.T) {
		out := InjectFigures(`body\end{document}`, nil)
		assert.NotContains(t, out, `\section*{Visual Analysis}`)
	})
}

func TestAssembleWritesTex(t *testing.T) {
	dir := t.TempDir()
	img := touchPNG(t, dir, "chart.png")

	a := NewAssembler(dir)
	a.LaTeXCmd = "true" // skip the real compiler

	pdfPath, err := a.Assemble(context.Background(), `\begin{document}body\end{document}`, []string{img})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(pdfPath, "report.pdf"))

	tex, err := os.ReadFile(filepath.Join(dir, "report.tex"))
	require.NoError(t, err)
	assert.Contains(t, string(tex), `\includegraphics`)
}

func TestAssembleCompileFailure(t *testing.T) {
	a := NewAssembler(t.TempDir())
	a.LaTeXCmd = "false"

	_, err := a.Assemble(context.Background(), `\end{document}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile pdf")
}
