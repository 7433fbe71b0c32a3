package popup

import (
	"testing"

	"github.com/joestump/bmrk/internal/dataservice"
)

func sample() []dataservice.Bookmark {
	goTag := dataservice.Tag{ID: "t-go", Name: "go"}
	newsTag := dataservice.Tag{ID: "t-news", Name: "news"}
	return []dataservice.Bookmark{
		{ID: "1", URL: "https://example.com", Title: "Example", Tags: []dataservice.Tag{newsTag}},
		{ID: "2", URL: "https://go.dev/doc", Title: "Go Docs", Tags: []dataservice.Tag{goTag}},
		{ID: "3", URL: "https://pkg.go.dev", Title: "Packages", Tags: []dataservice.Tag{goTag, newsTag}},
	}
}

func ids(list []dataservice.Bookmark) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ptr(s string) *string { return &s }

func TestIsCurrentPageBookmarked(t *testing.T) {
	list := sample()
	tests := []struct {
		name string
		url  *string
		want bool
	}{
		{"exact", ptr("https://example.com"), true},
		{"trailing slash", ptr("https://example.com/"), false},
		{"query", ptr("https://example.com?a=1"), false},
		{"case", ptr("https://EXAMPLE.com"), false},
		{"absent", ptr("https://other.example"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCurrentPageBookmarked(list, tt.url); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if IsCurrentPageBookmarked(nil, ptr("https://example.com")) {
		t.Error("empty list should never match")
	}
}

func TestView_EmptyQueryIsFullList(t *testing.T) {
	var v View
	v.SetList(sample())
	if got := ids(v.Visible()); !equal(got, []string{"1", "2", "3"}) {
		t.Errorf("visible = %v", got)
	}
	v.SetQuery("exa")
	v.SetQuery("")
	if got := ids(v.Visible()); !equal(got, []string{"1", "2", "3"}) {
		t.Errorf("visible after clearing = %v", got)
	}
}

func TestView_SubstringMatch(t *testing.T) {
	var v View
	v.SetList(sample())

	v.SetQuery("exa")
	if got := ids(v.Visible()); !equal(got, []string{"1"}) {
		t.Errorf("exa = %v, want [1]", got)
	}
	v.SetQuery("DOCS")
	if got := ids(v.Visible()); !equal(got, []string{"2"}) {
		t.Errorf("DOCS = %v, want [2]", got)
	}
	// url matches count too, in list order
	v.SetQuery("go.dev")
	if got := ids(v.Visible()); !equal(got, []string{"2", "3"}) {
		t.Errorf("go.dev = %v, want [2 3]", got)
	}
	v.SetQuery("nothing")
	if len(v.Visible()) != 0 {
		t.Errorf("nothing = %v", ids(v.Visible()))
	}
	if len(v.List()) != 3 {
		t.Error("filtering must not change the list")
	}
}

func TestView_SetListKeepsQuery(t *testing.T) {
	var v View
	v.SetList(sample()[:2])
	v.SetQuery("pack")
	if len(v.Visible()) != 0 {
		t.Fatalf("visible = %v", ids(v.Visible()))
	}
	v.SetList(sample())
	if got := ids(v.Visible()); !equal(got, []string{"3"}) {
		t.Errorf("visible after SetList = %v, want [3]", got)
	}
}

func TestView_TagFacet(t *testing.T) {
	var v View
	v.SetList(sample())

	v.SelectTag("t-go")
	if got := ids(v.Visible()); !equal(got, []string{"2", "3"}) {
		t.Errorf("facet go = %v", got)
	}
	v.SetQuery("pack")
	if got := ids(v.Visible()); !equal(got, []string{"3"}) {
		t.Errorf("facet go + pack = %v", got)
	}
	v.SetQuery("")

	// selecting again clears
	v.SelectTag("t-go")
	if v.Facet() != "" || len(v.Visible()) != 3 {
		t.Errorf("facet = %q, visible = %v", v.Facet(), ids(v.Visible()))
	}

	v.SelectTag("t-news")
	v.SelectTag("t-go")
	if v.Facet() != "t-go" {
		t.Errorf("facet = %q, want t-go", v.Facet())
	}
	v.ClearFacet()
	if len(v.Visible()) != 3 {
		t.Errorf("visible after ClearFacet = %v", ids(v.Visible()))
	}
}

func TestView_Fuzzy(t *testing.T) {
	var v View
	v.SetList(sample())
	v.SetFuzzy(true)

	v.SetQuery("godoc")
	got := ids(v.Visible())
	if len(got) == 0 || got[0] != "2" {
		t.Errorf("fuzzy godoc = %v, want Go Docs first", got)
	}

	v.SetQuery("")
	if len(v.Visible()) != 3 {
		t.Errorf("empty fuzzy query = %v", ids(v.Visible()))
	}
}

func TestFacetTags(t *testing.T) {
	tags := FacetTags(sample())
	if len(tags) != 2 || tags[0].ID != "t-news" || tags[1].ID != "t-go" {
		t.Errorf("FacetTags = %+v", tags)
	}
}
