// Package validate checks captured script output against the discriminated
// output contract. Its failures are deliberately distinct from execution
// failures: "the model ignored the output-format instruction" and "the
// script crashed" call for different corrective prompts.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askdf/askdf/pkg/domain"
)

// ValidationError reports output that parsed or decoded but does not satisfy
// the contract.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid analysis output: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Output parses one captured stdout payload as a Result and validates it.
func Output(raw string) (*domain.Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalid("script produced no output")
	}
	var res domain.Result
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		return nil, invalid("output is not a JSON object: %v", err)
	}
	if err := Result(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Result validates an already-parsed value against the contract. It never
// mutates its argument, so re-validating a valid result is a no-op that
// reports success.
func Result(res *domain.Result) error {
	if !domain.KnownResultType(res.Type) {
		return invalid("unrecognized type tag %q", res.Type)
	}
	if strings.TrimSpace(res.Summary) == "" {
		return invalid("missing summary")
	}

	switch res.Type {
	case domain.ResultMarkdown:
		return nil
	case domain.ResultTable:
		table, err := res.Table()
		if err != nil {
			return invalid("%v", err)
		}
		if len(table.Headers) == 0 {
			return invalid("table has no headers")
		}
		for i, row := range table.Rows {
			if len(row) != len(table.Headers) {
				return invalid("table row %d has %d cells, want %d", i, len(row), len(table.Headers))
			}
		}
	case domain.ResultChart:
		chart, err := res.Chart()
		if err != nil {
			return invalid("%v", err)
		}
		if !domain.KnownChartType(chart.Config.Type) {
			return invalid("unrecognized chart type %q", chart.Config.Type)
		}
		if chart.Config.XAxisKey == "" {
			return invalid("chart config is missing xAxisKey")
		}
		if len(chart.Config.Series) == 0 {
			return invalid("chart config has no series")
		}
	case domain.ResultKPI:
		kpis, err := res.KPIs()
		if err != nil {
			return invalid("%v", err)
		}
		if len(kpis) == 0 {
			return invalid("kpi result has no metrics")
		}
		for i, k := range kpis {
			if strings.TrimSpace(k.Label) == "" {
				return invalid("kpi %d has no label", i)
			}
		}
	}
	return nil
}
