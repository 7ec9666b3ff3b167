package initiative

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"On Track", StatusOnTrack},
		{"on_track", StatusOnTrack},
		{"  ON-TRACK ", StatusOnTrack},
		{"green", StatusOnTrack},
		{"At Risk", StatusAtRisk},
		{"amber", StatusAtRisk},
		{"Blocked", StatusBlocked},
		{"off track", StatusBlocked},
		{"", StatusUnknown},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.raw)
		if err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseStatus_Unmappable(t *testing.T) {
	_, err := ParseStatus("vibing")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestStatusLabel(t *testing.T) {
	if StatusOnTrack.Label() != "on track" {
		t.Errorf("unexpected label %q", StatusOnTrack.Label())
	}
	if StatusUnknown.Label() != "unknown" {
		t.Errorf("unexpected label %q", StatusUnknown.Label())
	}
}

func TestIdentity(t *testing.T) {
	if got := (Initiative{ID: " I1 ", Name: "Ship v1"}).Identity(); got != "I1" {
		t.Errorf("expected id to win, got %q", got)
	}
	if got := (Initiative{Name: "Ship v1"}).Identity(); got != "Ship v1" {
		t.Errorf("expected name fallback, got %q", got)
	}
}

func TestHasBlockers(t *testing.T) {
	if (Initiative{Blockers: "  "}).HasBlockers() {
		t.Error("whitespace blockers should not count")
	}
	if !(Initiative{Blockers: "legal review"}).HasBlockers() {
		t.Error("expected blockers")
	}
}

func TestExportCSV(t *testing.T) {
	items := []Initiative{
		{ID: "I1", Owner: "Alice", Status: StatusOnTrack, Progress: 40, DueDate: "2025-01-01", Description: "Ship v1, fast", RelatedOKR: "Grow revenue"},
		{Name: "Hiring", Owner: "Bob", Status: StatusAtRisk, Progress: 12.5},
	}

	got, err := ExportCSV(items)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "Initiative ID/Name,Owner,Status,Progress percentage,Due date,Description,Related OKR/Goal\n" +
		"I1,Alice,on_track,40%,2025-01-01,\"Ship v1, fast\",Grow revenue\n" +
		"Hiring,Bob,at_risk,12.5%,,,\n"
	if got != want {
		t.Errorf("unexpected export:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportCSV_Empty(t *testing.T) {
	got, err := ExportCSV(nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got != "Initiative ID/Name,Owner,Status,Progress percentage,Due date,Description,Related OKR/Goal\n" {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestDiff(t *testing.T) {
	before := []Initiative{
		{ID: "I1", Status: StatusOnTrack, Progress: 40},
		{ID: "I2", Status: StatusAtRisk},
	}
	after := []Initiative{
		{ID: "I1", Status: StatusBlocked, Progress: 40, Blockers: "legal"},
		{ID: "I3", Status: StatusOnTrack},
	}

	changes := Diff(before, after)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Identity != "I1" || changes[0].Kind != ChangeUpdated {
		t.Errorf("unexpected first change %+v", changes[0])
	}
	if !reflect.DeepEqual(changes[0].Fields, []string{"status", "blockers"}) {
		t.Errorf("unexpected changed fields %v", changes[0].Fields)
	}
	if changes[1].Identity != "I3" || changes[1].Kind != ChangeAdded {
		t.Errorf("unexpected second change %+v", changes[1])
	}
	if changes[2].Identity != "I2" || changes[2].Kind != ChangeRemoved {
		t.Errorf("unexpected third change %+v", changes[2])
	}
}

func TestDiff_NoChanges(t *testing.T) {
	items := []Initiative{{ID: "I1", Status: StatusOnTrack}}
	if changes := Diff(items, Clone(items)); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
}
