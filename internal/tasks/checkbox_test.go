package tasks

import "testing"

func TestParseCheckboxLine(t *testing.T) {
	tests := []struct {
		line        string
		ok          bool
		indent      string
		marker      string
		completed   bool
		description string
		completedOn string
	}{
		{"- [ ] Write tests", true, "", "-", false, "Write tests", ""},
		{"* [x] Ship it", true, "", "*", true, "Ship it", ""},
		{"  - [X] Upper case", true, "  ", "-", true, "Upper case", ""},
		{"12. [ ] Numbered", true, "", "12.", false, "Numbered", ""},
		{"\t3. [x] Tabbed", true, "\t", "3.", true, "Tabbed", ""},
		{"-[ ] Tight", true, "", "-", false, "Tight", ""},
		{"- [x] Done <!-- completed: 2026-10-18 -->", true, "", "-", true, "Done", "2026-10-18"},
		{"- [x] Done <!--completed:2026-01-02-->  ", true, "", "-", true, "Done", "2026-01-02"},
		{"- [ ]", false, "", "", false, "", ""},
		{"- [y] Not a box", false, "", "", false, "", ""},
		{"Plain paragraph", false, "", "", false, "", ""},
		{"## Phase 1", false, "", "", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cb, ok := ParseCheckboxLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if cb.Indent != tt.indent || cb.Marker != tt.marker {
				t.Errorf("indent/marker = %q/%q, want %q/%q", cb.Indent, cb.Marker, tt.indent, tt.marker)
			}
			if cb.Completed != tt.completed {
				t.Errorf("Completed = %v, want %v", cb.Completed, tt.completed)
			}
			if cb.Description != tt.description {
				t.Errorf("Description = %q, want %q", cb.Description, tt.description)
			}
			if cb.CompletedOn != tt.completedOn {
				t.Errorf("CompletedOn = %q, want %q", cb.CompletedOn, tt.completedOn)
			}
		})
	}
}

func TestRenderCheckboxLine_RoundTrip(t *testing.T) {
	lines := []string{
		"- [ ] Write tests",
		"   *   [X]    odd   spacing  ",
		"10.[x]tight",
		"- [x] Done <!--completed:2026-01-02-->  ",
		"\t- [ ] tab indented `code` and **bold**",
	}
	for _, line := range lines {
		cb, ok := ParseCheckboxLine(line)
		if !ok {
			t.Fatalf("ParseCheckboxLine(%q) failed", line)
		}
		if got := RenderCheckboxLine(cb); got != line {
			t.Errorf("round trip = %q, want %q", got, line)
		}
	}
}

func TestRenderCheckboxLine_Constructed(t *testing.T) {
	got := RenderCheckboxLine(Checkbox{Indent: "  ", Marker: "1.", Description: "New", Completed: true, CompletedOn: "2026-10-18"})
	want := "  1. [x] New <!-- completed: 2026-10-18 -->"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetCompleted(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		completed bool
		stamp     string
		want      string
	}{
		{"check with stamp", "- [ ] Write tests", true, "2026-10-18", "- [x] Write tests <!-- completed: 2026-10-18 -->"},
		{"check without stamp", "  * [ ] Write tests", true, "", "  * [x] Write tests"},
		{"uncheck drops marker", "- [x] Write tests <!-- completed: 2026-10-18 -->", false, "", "- [ ] Write tests"},
		{"uncheck upper", "3.  [X]  Keep spacing", false, "", "3.  [ ]  Keep spacing"},
		{"already done untouched", "- [X] Done <!--completed:2026-01-02-->", true, "2026-10-18", "- [X] Done <!--completed:2026-01-02-->"},
		{"stale marker replaced", "- [ ] Redo <!-- completed: 2025-01-01 -->", true, "2026-10-18", "- [x] Redo <!-- completed: 2026-10-18 -->"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SetCompleted(tt.line, tt.completed, tt.stamp)
			if !ok {
				t.Fatal("expected checkbox line")
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if got, ok := SetCompleted("not a task", true, "2026-10-18"); ok || got != "not a task" {
		t.Errorf("non-checkbox line should pass through, got %q ok=%v", got, ok)
	}
}
