// Package prompt assembles the instruction payload sent to a model backend.
// Assembly is a pure function of its inputs: every attempt builds a fresh
// prompt, and the conversation history is read-only.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdf/askdf/pkg/domain"
)

// historyLimit caps how many prior turns are rendered into the prompt.
const historyLimit = 6

// rules is the fixed behavioral block prepended to every prompt.
const rules = `You are a data analyst. Answer the user's question by writing a GO SCRIPT.

RULES:
1. A dataset is ALREADY LOADED as the variable df. Do not load any file yourself.
2. Refer to columns by their EXACT names from the schema below. Never use positional indexes.
3. Missing or non-numeric cells are handled for you: aggregations skip them and emit serializes them as null. Do not invent replacement values.
4. The LAST action of your script must be a single call to emit(...) with exactly one JSON object. Print nothing else.
5. If the requested metric cannot be derived from the available columns, emit a "markdown" result whose summary names the missing fields. Never fabricate data.

THE df VARIABLE supports:
  df.Columns() []string, df.RowCount() int
  df.Column(name) []string, df.Numbers(name) []float64
  df.Sum(name), df.Mean(name), df.Min(name), df.Max(name) float64
  df.Count(name) int, df.Unique(name) []string
  df.GroupBySum(keyColumn, valueColumn) []map[string]any
  df.Head(n) []map[string]any, df.Records() []map[string]any
  df.Filter(name, func(cell string) bool) and df.SortBy(name, descending) return a new frame

OUTPUT OBJECT SHAPES (choose exactly one):
  {"type": "markdown", "summary": "..."}
  {"type": "table", "summary": "...", "data": {"headers": [...], "rows": [[...], ...]}}
  {"type": "chart", "summary": "...", "data": {"config": {"type": "line|bar|pie|area|scatter", "title": "...", "xAxisKey": "...", "series": [{"dataKey": "...", "label": "..."}]}, "data": [{...}, ...]}}
  {"type": "kpi", "summary": "...", "data": [{"label": "...", "value": ..., "trend": "...", "status": "positive|negative|neutral"}]}

EXAMPLE SCRIPT:
rows := df.GroupBySum("Month", "Revenue")
emit(map[string]any{
	"type":    "chart",
	"summary": "Revenue peaked in December.",
	"data": map[string]any{
		"config": map[string]any{
			"type": "bar", "title": "Revenue by month", "xAxisKey": "Month",
			"series": []map[string]any{{"dataKey": "Revenue", "label": "Revenue"}},
		},
		"data": rows,
	},
})`

// Input carries everything one prompt is assembled from. Diagnostic is only
// set on retry attempts.
type Input struct {
	Schema      string
	UserMessage string
	History     []domain.ConversationTurn
	Diagnostic  string
}

// Build assembles the full prompt string.
func Build(in Input) string {
	var sb strings.Builder
	sb.WriteString(rules)
	sb.WriteString("\n\n")

	if in.Schema != "" {
		sb.WriteString("DATA SCHEMA:\n")
		sb.WriteString(in.Schema)
		sb.WriteString("\n\n")
	}

	if len(in.History) > 0 {
		sb.WriteString("CONVERSATION SO FAR:\n")
		history := in.History
		if len(history) > historyLimit {
			history = history[len(history)-historyLimit:]
		}
		for _, turn := range history {
			role := "User"
			if turn.Role == domain.RoleAssistant {
				role = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", role, turn.Content)
		}
		sb.WriteString("\n")
	}

	if in.Diagnostic != "" {
		sb.WriteString("PREVIOUS ATTEMPT FAILED:\n")
		sb.WriteString(in.Diagnostic)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "USER REQUEST: %q\n\nWrite the Go script now.", in.UserMessage)
	return sb.String()
}

// FormatSchema renders the schema summary into the fixed textual block the
// prompt carries. Sample rows are JSON-encoded so string and numeric cells
// are unambiguous.
func FormatSchema(sc domain.SchemaContext) string {
	columns, _ := json.Marshal(sc.Columns)
	sample, _ := json.Marshal(sc.SampleRows)
	sheet := ""
	if len(sc.SheetNames) > 0 {
		sheet = sc.SheetNames[0]
	}
	return fmt.Sprintf(
		"ACTIVE FILE METADATA:\n- File Name: %q\n- Sheet Name: %q\n- Total Rows: %d\n- Columns: %s\n- Sample Data (Top %d rows): %s",
		sc.FileName, sheet, sc.RowCount, columns, len(sc.SampleRows), sample,
	)
}
