package frame

import (
	"math"
	"testing"
)

func newTestFrame(t *testing.T) *Frame {
	t.Helper()
	return New("sales.csv", []string{"Sheet1"},
		[]string{"Region", "Sales", "Notes"},
		[][]string{
			{"East", "100", "ok"},
			{"West", "250", ""},
			{"East", "50", "late"},
			{"North", "", "missing"},
			{"West", "abc", "typo"},
		})
}

func TestColumnsAndRowCount(t *testing.T) {
	f := newTestFrame(t)
	cols := f.Columns()
	if len(cols) != 3 || cols[0] != "Region" || cols[1] != "Sales" {
		t.Errorf("Columns = %v", cols)
	}
	if f.RowCount() != 5 {
		t.Errorf("RowCount = %d, want 5", f.RowCount())
	}
}

func TestAggregationsSkipNonNumeric(t *testing.T) {
	f := newTestFrame(t)
	if got := f.Sum("Sales"); got != 400 {
		t.Errorf("Sum = %v, want 400", got)
	}
	if got := f.Mean("Sales"); math.Abs(got-400.0/3) > 1e-9 {
		t.Errorf("Mean = %v, want %v", got, 400.0/3)
	}
	if got := f.Min("Sales"); got != 50 {
		t.Errorf("Min = %v, want 50", got)
	}
	if got := f.Max("Sales"); got != 250 {
		t.Errorf("Max = %v, want 250", got)
	}
	if got := f.Count("Sales"); got != 4 {
		t.Errorf("Count = %d, want 4 (empty cell excluded)", got)
	}
}

func TestNumbersMarksUnparsableAsNaN(t *testing.T) {
	f := newTestFrame(t)
	nums := f.Numbers("Sales")
	if len(nums) != 5 {
		t.Fatalf("Numbers len = %d, want 5", len(nums))
	}
	if !math.IsNaN(nums[3]) || !math.IsNaN(nums[4]) {
		t.Errorf("empty and non-numeric cells should be NaN, got %v and %v", nums[3], nums[4])
	}
}

func TestUniqueFirstSeenOrder(t *testing.T) {
	f := newTestFrame(t)
	got := f.Unique("Region")
	want := []string{"East", "West", "North"}
	if len(got) != len(want) {
		t.Fatalf("Unique = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Unique[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGroupBySum(t *testing.T) {
	f := newTestFrame(t)
	got := f.GroupBySum("Region", "Sales")
	if len(got) != 3 {
		t.Fatalf("GroupBySum len = %d, want 3", len(got))
	}
	if got[0]["Region"] != "East" || got[0]["Sales"] != 150.0 {
		t.Errorf("group 0 = %v, want East=150", got[0])
	}
	if got[1]["Region"] != "West" || got[1]["Sales"] != 250.0 {
		t.Errorf("group 1 = %v, want West=250", got[1])
	}
	if got[2]["Region"] != "North" || got[2]["Sales"] != 0.0 {
		t.Errorf("group 2 = %v, want North=0", got[2])
	}
}

func TestGroupBySumRepeatedKeyWithoutNumericValues(t *testing.T) {
	f := New("x.csv", nil, []string{"Region", "Sales"}, [][]string{
		{"South", "n/a"},
		{"South", ""},
		{"East", "10"},
	})
	got := f.GroupBySum("Region", "Sales")
	if len(got) != 2 {
		t.Fatalf("GroupBySum = %v, want one record per distinct key", got)
	}
	if got[0]["Region"] != "South" || got[0]["Sales"] != 0.0 {
		t.Errorf("group 0 = %v, want South=0", got[0])
	}
	if got[1]["Region"] != "East" || got[1]["Sales"] != 10.0 {
		t.Errorf("group 1 = %v, want East=10", got[1])
	}
}

func TestFilterAndSortBy(t *testing.T) {
	f := newTestFrame(t)
	east := f.Filter("Region", func(cell string) bool { return cell == "East" })
	if east.RowCount() != 2 {
		t.Fatalf("filtered RowCount = %d, want 2", east.RowCount())
	}
	if f.RowCount() != 5 {
		t.Errorf("Filter mutated the original frame")
	}

	sorted := f.SortBy("Sales", true)
	top := sorted.Column("Sales")[0]
	if top != "250" {
		t.Errorf("descending sort top cell = %q, want 250", top)
	}
}

func TestSortByIsStable(t *testing.T) {
	f := New("x.csv", nil, []string{"Region", "Sales"}, [][]string{
		{"East", "10"},
		{"West", "10"},
		{"North", "5"},
	})
	regions := f.SortBy("Sales", false).Column("Region")
	want := []string{"North", "East", "West"}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("Region[%d] = %q, want %q (ties keep input order)", i, regions[i], want[i])
		}
	}
}

func TestHeadAndRecordsAreJSONSafe(t *testing.T) {
	f := newTestFrame(t)
	recs := f.Head(2)
	if len(recs) != 2 {
		t.Fatalf("Head len = %d, want 2", len(recs))
	}
	if recs[0]["Sales"] != 100.0 {
		t.Errorf("numeric cell = %v (%T), want float64 100", recs[0]["Sales"], recs[0]["Sales"])
	}
	all := f.Records()
	if all[3]["Sales"] != nil {
		t.Errorf("empty cell = %v, want nil", all[3]["Sales"])
	}
	if all[4]["Sales"] != "abc" {
		t.Errorf("non-numeric cell = %v, want original string", all[4]["Sales"])
	}
}

func TestUnknownColumnPanics(t *testing.T) {
	f := newTestFrame(t)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for unknown column")
		}
		uc, ok := r.(*UnknownColumnError)
		if !ok {
			t.Fatalf("panic value = %T, want *UnknownColumnError", r)
		}
		if uc.Name != "Revenue" {
			t.Errorf("Name = %q, want Revenue", uc.Name)
		}
		if len(uc.Available) != 3 {
			t.Errorf("Available = %v, want the 3 real columns", uc.Available)
		}
	}()
	f.Sum("Revenue")
}

func TestNewPadsShortRows(t *testing.T) {
	f := New("x.csv", nil, []string{"A", "B"}, [][]string{{"only"}})
	row := f.Records()[0]
	if row["B"] != nil {
		t.Errorf("padded cell = %v, want nil", row["B"])
	}
}
