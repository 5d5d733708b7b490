package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScoreTableAlignsValues(t *testing.T) {
	tbl := scoreTable{headers: []string{"Set size", "Series", "Ratio"}}
	tbl.add("3", "3", "88.89%")
	tbl.add("7", "12", "9.52%")

	want := []string{
		"Set size  Series   Ratio",
		"3              3  88.89%",
		"7             12   9.52%",
	}
	if diff := cmp.Diff(want, tbl.lines()); diff != "" {
		t.Fatalf("unexpected table (-want +got):\n%s", diff)
	}
}

func TestScoreTableWideLabels(t *testing.T) {
	tbl := scoreTable{headers: []string{"Score", "Value"}}
	tbl.add("字字", "1")
	tbl.add("ŁĄ", "20")

	want := []string{
		"Score  Value",
		"字字       1",
		"ŁĄ        20",
	}
	if diff := cmp.Diff(want, tbl.lines()); diff != "" {
		t.Fatalf("unexpected table (-want +got):\n%s", diff)
	}
}

func TestScoreTableEmpty(t *testing.T) {
	var tbl scoreTable
	if lines := tbl.lines(); lines != nil {
		t.Fatalf("expected no lines, got %q", lines)
	}
}
