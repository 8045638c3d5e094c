// Package report builds the analyst pipeline: a planner fans out to
// KPI, statistics, and chart nodes, a writer joins their sections into
// a LaTeX narrative, and a supervisor gates completion with a bounded
// retry loop. The package also covers what happens after the graph:
// chart recovery, figure injection, and PDF assembly.
package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/waveflow-io/waveflow/pkg/waveflow"
	"github.com/waveflow-io/waveflow/pkg/waveflow/llm"
	"github.com/waveflow-io/waveflow/pkg/waveflow/prompt"
	"github.com/waveflow-io/waveflow/pkg/waveflow/registry"
	"github.com/waveflow-io/waveflow/pkg/waveflow/state"
)

// maxIterations is how many supervisor retries are tolerated before the
// report ships as-is.
const maxIterations = 2

const plannerPrompt = `Based on this data schema, define an analysis strategy.

${summary}

Your strategy must include:
1. A 'viz_goal' that explicitly requests a comparison bar chart between the main categories.
2. Instructions for secondary plots like time-series trends or distributions.

Return the plan as JSON:
{
  "kpi_goal": "...",
  "stats_goal": "...",
  "viz_goal": "..."
}`

const sectionPrompt = `ROLE: ${persona} (LaTeX specialist)
DATA: ${summary}
GOAL: ${goal}

Generate a professional report section using raw LaTeX code.
Do not include a preamble or \begin{document}.

STRUCTURE:
\subsection*{${section} Analysis}
\textbf{Key Finding:} [one sentence]
\begin{itemize}
  \item \textbf{Trend:} ...
  \item \textbf{Metrics:} ...
\end{itemize}

Output only the LaTeX code. Every \begin{itemize} needs a matching \end{itemize}.`

const chartsPrompt = `Write a Python script to visualize this CSV: '${csv_path}'.

DATA SCHEMA:
${schema}

GOAL:
${goal}

STRICT RULES:
1. TOP LINE: import matplotlib; matplotlib.use("Agg"); import matplotlib.pyplot as plt; import pandas as pd
2. CLEANING: use df.dropna() before plotting.
3. OUTPUT: save images to '${output_dir}' with unique names.
4. LOGGING: for every file saved, print: PATH:<full_path>

Provide only the Python code block.`

const writerPrompt = `ROLE: LaTeX document architect

GOAL: generate a complete, valid LaTeX document from the provided KPI and STATS blocks.

KPI block:
${report_sections.kpis}

STATS block:
${report_sections.stats}

RULES:
1. Use \documentclass[11pt]{article} with \usepackage{graphicx}, \usepackage{geometry}, \usepackage{booktabs}.
2. Start the body with \begin{document} and \maketitle, then a short executive summary.
3. Insert the KPI block, then the STATS block.
4. End with \section*{Visual Analysis} followed by \end{document}.
5. No markdown fences, no conversational text. Output only LaTeX.`

// Pipeline owns the analyst nodes and their collaborators.
type Pipeline struct {
	client  llm.Client
	csvPath string
	charts  *ChartRunner
	logger  *slog.Logger
	model   string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChartRunner sets the chart script runner. Without one the charts
// node records no artifacts.
func WithChartRunner(r *ChartRunner) Option {
	return func(p *Pipeline) { p.charts = r }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithModel overrides the model for every completion call.
func WithModel(model string) Option {
	return func(p *Pipeline) { p.model = model }
}

// NewPipeline builds a pipeline reading from csvPath and calling client
// for every generation step.
func NewPipeline(client llm.Client, csvPath string, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:  client,
		csvPath: csvPath,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema declares the pipeline state: scalars overwrite, artifacts
// accumulate, and sections merge by key so parallel writers compose.
func (p *Pipeline) Schema() *state.Schema {
	return state.NewSchema().
		Overwrite("csv_path", "plan", "data_summary", "supervisor_review", "iteration").
		Append("artifacts").
		KeyMerge("report_sections")
}

// Graph wires the analyst topology: planner fans out to the three
// section producers, the writer joins them, and the supervisor routes
// back to the planner until the report is complete.
func (p *Pipeline) Graph() *waveflow.Graph {
	return waveflow.NewGraph(p.Schema()).
		AddNode("planner", p.plannerNode).
		AddNode("kpi", p.sectionNode("kpis", "kpi_goal", "Senior Business Consultant")).
		AddNode("stats", p.sectionNode("stats", "stats_goal", "Lead Statistical Analyst")).
		AddNode("charts", p.chartsNode).
		AddNode("writer", p.writerNode).
		AddDecision("supervisor", p.supervisorNode).
		AddEdge("planner", "kpi").
		AddEdge("planner", "stats").
		AddEdge("planner", "charts").
		AddEdge("kpi", "writer").
		AddEdge("stats", "writer").
		AddEdge("charts", "writer").
		AddEdge("writer", "supervisor").
		AddConditionalEdge("supervisor", map[string]string{
			"approve": waveflow.END,
			"retry":   "planner",
		}).
		SetEntry("planner")
}

// Register exposes the pipeline nodes by name for assembly elsewhere.
func (p *Pipeline) Register(r *registry.Registry) {
	r.RegisterWork("planner", p.plannerNode)
	r.RegisterWork("kpi", p.sectionNode("kpis", "kpi_goal", "Senior Business Consultant"))
	r.RegisterWork("stats", p.sectionNode("stats", "stats_goal", "Lead Statistical Analyst"))
	r.RegisterWork("charts", p.chartsNode)
	r.RegisterWork("writer", p.writerNode)
	r.RegisterDecision("supervisor", p.supervisorNode, map[string]string{
		"approve": waveflow.END,
		"retry":   "planner",
	})
}

// InitialState seeds a session for this pipeline.
func (p *Pipeline) InitialState() state.State {
	return state.State{
		"csv_path":        p.csvPath,
		"iteration":       0,
		"artifacts":       []any{},
		"report_sections": map[string]any{},
	}
}

func defaultPlan() map[string]any {
	return map[string]any{
		"kpi_goal":   "General KPIs",
		"stats_goal": "Basic statistics",
		"viz_goal":   "Data distribution",
	}
}

// planGoal reads one goal from the merged plan, falling back to the
// default when the planner output lacked it.
func planGoal(s state.State, key string) string {
	if goal, ok := s.Map("plan")[key].(string); ok && goal != "" {
		return goal
	}
	goal, _ := defaultPlan()[key].(string)
	return goal
}

func (p *Pipeline) plannerNode(ctx waveflow.Context, s state.State) (state.Update, error) {
	summary := summarizeCSV(p.csvPath)

	resp, err := p.client.Complete(ctx, llm.Request{
		Node:   "planner",
		Prompt: prompt.Render(plannerPrompt, state.State{"summary": summary}),
		JSON:   true,
		Model:  p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	plan := defaultPlan()
	if err := llm.DecodeJSON(resp.Content, &plan); err != nil {
		ctx.Logger().Warn("plan response was not valid JSON, using defaults",
			slog.String("error", err.Error()))
		plan = defaultPlan()
	}

	return state.Update{"plan": plan, "data_summary": summary}, nil
}

// sectionNode produces one LaTeX report section keyed into the merged
// sections map.
func (p *Pipeline) sectionNode(key, goalKey, persona string) waveflow.WorkFunc {
	return func(ctx waveflow.Context, s state.State) (state.Update, error) {
		resp, err := p.client.Complete(ctx, llm.Request{
			Node: ctx.NodeID(),
			Prompt: prompt.Render(sectionPrompt, state.State{
				"persona": persona,
				"summary": EscapeLaTeX(s.String("data_summary")),
				"goal":    planGoal(s, goalKey),
				"section": strings.ToUpper(key),
			}),
			Model: p.model,
		})
		if err != nil {
			return nil, fmt.Errorf("%s section: %w", key, err)
		}

		section := RepairItemize(strings.TrimSpace(resp.Content))
		return state.Update{
			"report_sections": map[string]any{key: section},
		}, nil
	}
}

func (p *Pipeline) chartsNode(ctx waveflow.Context, s state.State) (state.Update, error) {
	if p.charts == nil {
		return nil, nil
	}

	schema := "Unknown"
	if profile, err := ProfileCSV(p.csvPath); err == nil {
		schema = "Columns: " + strings.Join(profile.Columns, ", ")
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		Node: "charts",
		Prompt: prompt.Render(chartsPrompt, state.State{
			"csv_path":   p.csvPath,
			"schema":     schema,
			"goal":       planGoal(s, "viz_goal"),
			"output_dir": p.charts.OutputDir,
		}),
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("chart script generation: %w", err)
	}

	paths, err := p.charts.Run(ctx, llm.ExtractCode(resp.Content, "python"))
	if err != nil {
		return nil, fmt.Errorf("chart rendering: %w", err)
	}

	artifacts := make([]any, len(paths))
	for i, path := range paths {
		artifacts[i] = path
	}
	return state.Update{"artifacts": artifacts}, nil
}

func (p *Pipeline) writerNode(ctx waveflow.Context, s state.State) (state.Update, error) {
	resp, err := p.client.Complete(ctx, llm.Request{
		Node:   "writer",
		Prompt: prompt.Render(writerPrompt, s),
		Model:  p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("narrative: %w", err)
	}

	return state.Update{
		"report_sections": map[string]any{"narrative": strings.TrimSpace(resp.Content)},
	}, nil
}

// supervisorNode validates report completeness: all three sections must
// be present, or the pass budget must be spent.
func (p *Pipeline) supervisorNode(ctx waveflow.Context, s state.State) (state.Update, string, error) {
	iteration := s.Int("iteration")
	sections := s.Map("report_sections")

	complete := true
	for _, key := range []string{"kpis", "stats", "narrative"} {
		if _, ok := sections[key]; !ok {
			complete = false
			break
		}
	}

	if complete || iteration >= maxIterations {
		ctx.Logger().Info("report approved",
			slog.Int("iteration", iteration),
			slog.Bool("complete", complete))
		return state.Update{"supervisor_review": "approve"}, "approve", nil
	}

	ctx.Logger().Warn("report incomplete, retrying",
		slog.Int("iteration", iteration+1))
	return state.Update{
		"supervisor_review": "retry",
		"iteration":         iteration + 1,
	}, "retry", nil
}
