package extract

import "testing"

func TestScriptTaggedBlock(t *testing.T) {
	raw := "Here is the analysis:\n```go\ntotal := df.Sum(\"Sales\")\nemit(total)\n```\nHope that helps."
	got := Script(raw)
	want := "total := df.Sum(\"Sales\")\nemit(total)"
	if got != want {
		t.Errorf("Script = %q, want %q", got, want)
	}
}

func TestScriptFallsBackToAnyBlock(t *testing.T) {
	raw := "```\nemit(df.RowCount())\n```"
	got := Script(raw)
	if got != "emit(df.RowCount())" {
		t.Errorf("Script = %q, want untagged block interior", got)
	}
}

func TestScriptFallsBackToWholeResponse(t *testing.T) {
	raw := "  emit(df.RowCount())\n"
	got := Script(raw)
	if got != "emit(df.RowCount())" {
		t.Errorf("Script = %q, want trimmed raw response", got)
	}
}

func TestScriptPrefersTaggedOverEarlierUntagged(t *testing.T) {
	raw := "```\nnot this one\n```\nand then:\n```go\nemit(1)\n```"
	got := Script(raw)
	if got != "emit(1)" {
		t.Errorf("Script = %q, want tagged block even when an untagged one comes first", got)
	}
}

func TestScriptHandlesCRLF(t *testing.T) {
	raw := "```go\r\nemit(2)\r\n```"
	got := Script(raw)
	if got != "emit(2)" {
		t.Errorf("Script = %q, want CRLF fences handled", got)
	}
}
