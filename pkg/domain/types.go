package domain

import (
	"encoding/json"
	"fmt"
)

// ResultType discriminates the four shapes a script may emit.
type ResultType string

const (
	ResultMarkdown ResultType = "markdown"
	ResultTable    ResultType = "table"
	ResultChart    ResultType = "chart"
	ResultKPI      ResultType = "kpi"
)

// KnownResultType reports whether t is one of the four contract shapes.
func KnownResultType(t ResultType) bool {
	switch t {
	case ResultMarkdown, ResultTable, ResultChart, ResultKPI:
		return true
	}
	return false
}

// ChartType names a renderer the host UI knows how to draw.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartPie     ChartType = "pie"
	ChartArea    ChartType = "area"
	ChartScatter ChartType = "scatter"
)

// KnownChartType reports whether t belongs to the closed chart-type set.
func KnownChartType(t ChartType) bool {
	switch t {
	case ChartLine, ChartBar, ChartPie, ChartArea, ChartScatter:
		return true
	}
	return false
}

// Result is the discriminated output contract: exactly one of four shapes,
// tagged by Type. Non-markdown variants carry the script that produced them
// in Code so the host UI can show it for auditing.
type Result struct {
	Type    ResultType      `json:"type"`
	Summary string          `json:"summary"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TableData holds column headers plus row-major cells.
type TableData struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// Series describes one plotted value stream.
type Series struct {
	DataKey string `json:"dataKey"`
	Label   string `json:"label"`
	Color   string `json:"color,omitempty"`
}

// ChartConfig tells the renderer how to draw the data points.
type ChartConfig struct {
	Type     ChartType `json:"type"`
	Title    string    `json:"title"`
	XAxisKey string    `json:"xAxisKey"`
	Series   []Series  `json:"series"`
}

// DataPoint is one row-record of a chart payload.
type DataPoint map[string]any

// ChartPayload pairs a chart configuration with its row-record data.
type ChartPayload struct {
	Config ChartConfig `json:"config"`
	Data   []DataPoint `json:"data"`
}

// KPI is a single headline metric.
type KPI struct {
	Label  string `json:"label"`
	Value  any    `json:"value"`
	Trend  string `json:"trend,omitempty"`
	Status string `json:"status,omitempty"`
}

// Table decodes the result's payload as table data.
func (r *Result) Table() (*TableData, error) {
	if r.Type != ResultTable {
		return nil, fmt.Errorf("result type is %q, not %q", r.Type, ResultTable)
	}
	var t TableData
	if err := json.Unmarshal(r.Data, &t); err != nil {
		return nil, fmt.Errorf("decoding table payload: %w", err)
	}
	return &t, nil
}

// Chart decodes the result's payload as a chart payload.
func (r *Result) Chart() (*ChartPayload, error) {
	if r.Type != ResultChart {
		return nil, fmt.Errorf("result type is %q, not %q", r.Type, ResultChart)
	}
	var c ChartPayload
	if err := json.Unmarshal(r.Data, &c); err != nil {
		return nil, fmt.Errorf("decoding chart payload: %w", err)
	}
	return &c, nil
}

// KPIs decodes the result's payload as a metric list.
func (r *Result) KPIs() ([]KPI, error) {
	if r.Type != ResultKPI {
		return nil, fmt.Errorf("result type is %q, not %q", r.Type, ResultKPI)
	}
	var k []KPI
	if err := json.Unmarshal(r.Data, &k); err != nil {
		return nil, fmt.Errorf("decoding kpi payload: %w", err)
	}
	return k, nil
}

// ConversationTurn is one user or assistant entry in the rolling history.
// History is read-only input to prompt assembly and is never mutated by the
// pipeline.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SchemaContext is the lightweight dataset summary sent to the model in
// place of the full file.
type SchemaContext struct {
	FileName   string   `json:"file_name"`
	SheetNames []string `json:"sheet_names"`
	Columns    []string `json:"columns"`
	SampleRows [][]any  `json:"sample_rows"`
	RowCount   int      `json:"row_count"`
}

// TurnRequest is one user turn as submitted by the host UI. DatasetBytes is
// only set when a new file was attached; it replaces the sandbox's dataset
// binding before the first script execution of the turn.
type TurnRequest struct {
	UserMessage     string             `json:"userMessage"`
	FileContext     string             `json:"fileContext,omitempty"`
	History         []ConversationTurn `json:"history,omitempty"`
	DatasetBytes    []byte             `json:"datasetBytes,omitempty"`
	DatasetFileName string             `json:"datasetFileName,omitempty"`
	UseLocalModel   bool               `json:"useLocalModel"`
}

// TurnResponse is the pipeline's answer to one turn: either a validated
// result or a best-effort markdown fallback after retry exhaustion.
type TurnResponse struct {
	TurnID   string  `json:"turn_id"`
	Result   *Result `json:"result"`
	Attempts int     `json:"attempts"`
}

// ModelInfo describes one model available from a backend.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}
