package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	visualHeader = `\section*{Visual Analysis}`
	endDocument  = `\end{document}`
)

// Assembler compiles a LaTeX narrative plus chart artifacts into a PDF.
type Assembler struct {
	// OutputDir receives report.tex and the compiled PDF.
	OutputDir string

	// LaTeXCmd is the compiler binary. Defaults to "pdflatex".
	LaTeXCmd string
}

// NewAssembler returns an assembler writing under outputDir.
func NewAssembler(outputDir string) *Assembler {
	return &Assembler{OutputDir: outputDir, LaTeXCmd: "pdflatex"}
}

// InjectFigures appends figure blocks for each existing artifact before
// the document close. Artifacts that do not exist on disk are skipped.
func InjectFigures(body string, artifacts []string) string {
	var figures strings.Builder
	if len(artifacts) > 0 && !strings.Contains(body, visualHeader) {
		figures.WriteString("\n" + visualHeader + "\n")
	}
	for _, img := range artifacts {
		if _, err := os.Stat(img); err != nil {
			continue
		}
		abs, err := filepath.Abs(img)
		if err != nil {
			abs = img
		}
		abs = filepath.ToSlash(abs)
		fmt.Fprintf(&figures,
			`\begin{figure}[h!]\centering\includegraphics[width=0.8\textwidth]{%s}\end{figure}`+"\n", abs)
	}

	if strings.Contains(body, endDocument) {
		return strings.Replace(body, endDocument, figures.String()+endDocument, 1)
	}
	return body + "\n" + figures.String() + endDocument
}

// Assemble writes the final .tex and compiles it. The compiler runs
// twice so page numbering and layout references settle.
func (a *Assembler) Assemble(ctx context.Context, body string, artifacts []string) (string, error) {
	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	texPath := filepath.Join(a.OutputDir, "report.tex")
	content := InjectFigures(body, artifacts)
	if err := os.WriteFile(texPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write tex: %w", err)
	}

	compiler := a.LaTeXCmd
	if compiler == "" {
		compiler = "pdflatex"
	}
	for i := 0; i < 2; i++ {
		cmd := exec.CommandContext(ctx, compiler,
			"-output-directory="+a.OutputDir,
			"-interaction=nonstopmode",
			texPath,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("compile pdf (run %d): %w: %s", i+1, err, lastLines(out, 5))
		}
	}

	pdfPath, err := filepath.Abs(filepath.Join(a.OutputDir, "report.pdf"))
	if err != nil {
		return "", err
	}
	return pdfPath, nil
}

func lastLines(out []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
