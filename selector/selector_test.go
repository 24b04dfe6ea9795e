package selector

import (
	"testing"

	"moduleinstaller/catalog"
)

func candidates(versions ...string) []catalog.UpdateCandidate {
	out := make([]catalog.UpdateCandidate, 0, len(versions))
	for _, v := range versions {
		out = append(out, catalog.UpdateCandidate{Version: v})
	}
	return out
}

func TestPickLatest(t *testing.T) {
	tests := []struct {
		name   string
		input  []catalog.UpdateCandidate
		want   string
		wantOK bool
	}{
		{name: "nil", input: nil, wantOK: false},
		{name: "empty", input: candidates(), wantOK: false},
		{name: "single", input: candidates("1.0.0"), want: "1.0.0", wantOK: true},
		{name: "several", input: candidates("1.0.0", "1.1.0", "2.0.0"), want: "2.0.0", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickLatest(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got.Version != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Version)
			}
		})
	}
}

// The catalog ordering is trusted. An unsorted list yields its last element
// even when that is not the highest version; Ascending exposes the problem.
func TestPickLatestTrustsCatalogOrder(t *testing.T) {
	unsorted := candidates("2.0.0", "1.0.0")

	got, ok := PickLatest(unsorted)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if got.Version != "1.0.0" {
		t.Errorf("expected last element 1.0.0, got %s", got.Version)
	}
	if Ascending(unsorted) {
		t.Error("expected Ascending to report the unsorted list")
	}

	if unsorted[0].Version != "2.0.0" {
		t.Error("PickLatest must not reorder its input")
	}
}

func TestAscending(t *testing.T) {
	tests := []struct {
		name  string
		input []catalog.UpdateCandidate
		want  bool
	}{
		{name: "empty", input: nil, want: true},
		{name: "sorted", input: candidates("0.9.0", "1.0.0", "1.0.1"), want: true},
		{name: "equal", input: candidates("1.0.0", "1.0.0"), want: true},
		{name: "prerelease before release", input: candidates("1.0.0-rc.1", "1.0.0"), want: true},
		{name: "descending", input: candidates("1.2.0", "1.1.0"), want: false},
		{name: "unparseable skipped", input: candidates("1.0.0", "nightly", "1.1.0"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ascending(tt.input); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
