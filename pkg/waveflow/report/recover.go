package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/waveflow-io/waveflow/pkg/waveflow/llm"
	"github.com/waveflow-io/waveflow/pkg/waveflow/prompt"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// RecoverArtifacts regenerates charts outside the graph when a finished
// session produced none. It is an explicit caller step after Execute
// returns; the graph itself is never re-entered.
func (p *Pipeline) RecoverArtifacts(ctx context.Context, final state.State) ([]string, error) {
	if existing := final.Strings("artifacts"); len(existing) > 0 {
		return existing, nil
	}
	if p.charts == nil {
		return nil, nil
	}

	p.logger.Warn("no artifacts in final state, generating charts via fallback")

	schema := "Unknown"
	if profile, err := ProfileCSV(p.csvPath); err == nil {
		schema = "Columns: " + strings.Join(profile.Columns, ", ")
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		Node: "charts_fallback",
		Prompt: prompt.Render(chartsPrompt, state.State{
			"csv_path":   p.csvPath,
			"schema":     schema,
			"goal":       planGoal(final, "viz_goal"),
			"output_dir": p.charts.OutputDir,
		}),
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("fallback chart script: %w", err)
	}

	return p.charts.Run(ctx, llm.ExtractCode(resp.Content, "python"))
}

// Narrative extracts the writer's LaTeX body from final state, ready
// for figure injection and assembly.
func Narrative(final state.State) string {
	narrative, _ := final.Map("report_sections")["narrative"].(string)
	return narrative
}
