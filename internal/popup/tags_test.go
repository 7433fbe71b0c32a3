package popup

import (
	"testing"

	"github.com/joestump/bmrk/internal/dataservice"
)

func TestShareURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com", "https://example.com?utm_source=bmrk.cc"},
		{"https://example.com/a?b=1", "https://example.com/a?b=1&utm_source=bmrk.cc"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := ShareURL(tt.in); got != tt.want {
			t.Errorf("ShareURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTagMatching(t *testing.T) {
	tags := []dataservice.Tag{{ID: "1", Name: "Golang"}, {ID: "2", Name: "news"}, {ID: "3", Name: "go"}}

	if got := FilterTags(tags, "  "); len(got) != 3 {
		t.Errorf("blank filter = %d tags, want 3", len(got))
	}
	if got := FilterTags(tags, "GO"); len(got) != 2 {
		t.Errorf("GO filter = %+v", got)
	}

	if tag, ok := ExactMatch(tags, " GO "); !ok || tag.ID != "3" {
		t.Errorf("ExactMatch(GO) = %+v, %v", tag, ok)
	}
	if _, ok := ExactMatch(tags, "gol"); ok {
		t.Error("partial name must not match exactly")
	}

	if CanCreateTag(tags, "") {
		t.Error("blank name cannot be created")
	}
	if CanCreateTag(tags, "NEWS") {
		t.Error("existing name cannot be created")
	}
	if !CanCreateTag(tags, "rust") {
		t.Error("new name should be creatable")
	}
}
