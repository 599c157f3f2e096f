package markers

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `1,2,0.33
3,4,0.33
5,6,0.35`

	bars, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if len(bars) != 3 {
		t.Fatalf("expected 3 records, got %d", len(bars))
	}

	if bars[0].From != 1 || bars[0].To != 2 || bars[0].Distance != 0.33 {
		t.Errorf("unexpected first record: %+v", bars[0])
	}
	if bars[2].Distance != 0.35 {
		t.Errorf("expected distance 0.35, got %f", bars[2].Distance)
	}
}

func TestParse_CommentsAndWhitespace(t *testing.T) {
	input := `# from,to,distance
1, 2, 0.33
# trailing comment
3,4,0.33`

	bars, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 records, got %d", len(bars))
	}
}

func TestParse_BadFieldCount(t *testing.T) {
	_, err := Parse(strings.NewReader("1,2\n"))
	if err == nil {
		t.Error("expected error for record with 2 fields")
	}
}

func TestParse_NonNumeric(t *testing.T) {
	cases := []string{
		"a,2,0.33\n",
		"1,b,0.33\n",
		"1,2,far\n",
	}
	for _, input := range cases {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("expected error for input %q", input)
		}
	}
}

func TestScaleBar_Validate(t *testing.T) {
	valid := ScaleBar{From: 1, To: 2, Distance: 0.33}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid record, got %v", err)
	}

	cases := []struct {
		name string
		bar  ScaleBar
	}{
		{"zero from", ScaleBar{From: 0, To: 2, Distance: 0.33}},
		{"negative to", ScaleBar{From: 1, To: -2, Distance: 0.33}},
		{"zero distance", ScaleBar{From: 1, To: 2, Distance: 0}},
		{"negative distance", ScaleBar{From: 1, To: 2, Distance: -0.1}},
		{"self pair", ScaleBar{From: 3, To: 3, Distance: 0.33}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.bar.Validate(); err == nil {
				t.Errorf("expected validation error for %+v", tc.bar)
			}
		})
	}
}

func TestValidateSet_DuplicatePair(t *testing.T) {
	bars := []ScaleBar{
		{From: 1, To: 2, Distance: 0.33},
		{From: 2, To: 1, Distance: 0.35},
	}
	err := ValidateSet(bars)
	if err == nil {
		t.Fatal("expected duplicate pair error")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate in error, got %v", err)
	}
}

func TestValidateSet_Empty(t *testing.T) {
	if err := ValidateSet(nil); err == nil {
		t.Error("expected error for empty record set")
	}
}

func TestValidateSet_ReportsAllProblems(t *testing.T) {
	bars := []ScaleBar{
		{From: 0, To: 2, Distance: 0.33},
		{From: 1, To: 2, Distance: -1},
		{From: 3, To: 4, Distance: 0.33},
	}
	err := ValidateSet(bars)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "record 1") || !strings.Contains(err.Error(), "record 2") {
		t.Errorf("expected both bad records reported, got %v", err)
	}
}

func TestTargetLabel(t *testing.T) {
	if got := TargetLabel(3); got != "target 3" {
		t.Errorf("expected %q, got %q", "target 3", got)
	}
}

func TestTargetIDs(t *testing.T) {
	bars := []ScaleBar{
		{From: 5, To: 6, Distance: 0.35},
		{From: 1, To: 2, Distance: 0.33},
		{From: 3, To: 4, Distance: 0.33},
	}
	ids := TargetIDs(bars)
	want := []int{1, 2, 3, 4, 5, 6}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected id %d at position %d, got %d", want[i], i, ids[i])
		}
	}
}
