package domain

import "testing"

func TestParseYear(t *testing.T) {
	for _, y := range Years() {
		got, ok := ParseYear(string(y))
		if !ok || got != y {
			t.Fatalf("ParseYear(%q) = %q, %v", y, got, ok)
		}
	}
	if _, ok := ParseYear("freshman"); ok {
		t.Fatal("expected lowercase label to be rejected")
	}
}

func TestChatTitleFallsBackToRaw(t *testing.T) {
	p := SessionProfile{Year: YearJunior, ConcentrationRaw: "econ"}
	if got := p.ChatTitle(); got != "Junior - econ" {
		t.Fatalf("unexpected title %q", got)
	}
	p.ConcentrationCanonical = "Economics"
	if got := p.ChatTitle(); got != "Junior - Economics" {
		t.Fatalf("unexpected title %q", got)
	}
}
