package popup

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/joestump/bmrk/internal/dataservice"
)

// IsCurrentPageBookmarked reports whether activeURL exactly equals the URL
// of some bookmark in list. A nil activeURL is never bookmarked.
func IsCurrentPageBookmarked(list []dataservice.Bookmark, activeURL *string) bool {
	if activeURL == nil {
		return false
	}
	for _, b := range list {
		if b.URL == *activeURL {
			return true
		}
	}
	return false
}

// FindByURL returns the first bookmark whose URL exactly equals url.
func FindByURL(list []dataservice.Bookmark, url string) (dataservice.Bookmark, bool) {
	for _, b := range list {
		if b.URL == url {
			return b, true
		}
	}
	return dataservice.Bookmark{}, false
}

// View derives the visible list from the authoritative list, a text query
// and an optional tag facet. It never mutates the list it was given.
type View struct {
	list    []dataservice.Bookmark
	visible []dataservice.Bookmark
	query   string
	facet   string
	fuzzy   bool
}

// SetList replaces the authoritative list and recomputes the visible one
// against the current query and facet.
func (v *View) SetList(list []dataservice.Bookmark) {
	v.list = list
	v.recompute()
}

func (v *View) SetQuery(q string) {
	v.query = q
	v.recompute()
}

// SelectTag activates the tag facet, or clears it when tagID is already
// selected.
func (v *View) SelectTag(tagID string) {
	if v.facet == tagID {
		v.facet = ""
	} else {
		v.facet = tagID
	}
	v.recompute()
}

func (v *View) ClearFacet() {
	v.facet = ""
	v.recompute()
}

// SetFuzzy switches between substring matching and fuzzy ranking.
func (v *View) SetFuzzy(on bool) {
	v.fuzzy = on
	v.recompute()
}

func (v *View) List() []dataservice.Bookmark    { return v.list }
func (v *View) Visible() []dataservice.Bookmark { return v.visible }
func (v *View) Query() string                   { return v.query }
func (v *View) Facet() string                   { return v.facet }
func (v *View) Fuzzy() bool                     { return v.fuzzy }

func (v *View) recompute() {
	var matched []dataservice.Bookmark
	switch {
	case v.query == "":
		matched = v.list
	case v.fuzzy:
		matched = fuzzyMatch(v.list, v.query)
	default:
		q := strings.ToLower(v.query)
		for _, b := range v.list {
			if strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.URL), q) {
				matched = append(matched, b)
			}
		}
	}

	out := make([]dataservice.Bookmark, 0, len(matched))
	for _, b := range matched {
		if v.facet == "" || b.HasTag(v.facet) {
			out = append(out, b)
		}
	}
	v.visible = out
}

// bookmarkSource adapts a bookmark list to fuzzy.Source, matching against
// "title url".
type bookmarkSource []dataservice.Bookmark

func (s bookmarkSource) String(i int) string { return s[i].Title + " " + s[i].URL }
func (s bookmarkSource) Len() int            { return len(s) }

func fuzzyMatch(list []dataservice.Bookmark, q string) []dataservice.Bookmark {
	matches := fuzzy.FindFrom(q, bookmarkSource(list))
	out := make([]dataservice.Bookmark, 0, len(matches))
	for _, m := range matches {
		out = append(out, list[m.Index])
	}
	return out
}

// FacetTags returns the distinct tags carried by list, in first-seen order.
func FacetTags(list []dataservice.Bookmark) []dataservice.Tag {
	seen := make(map[string]bool)
	var out []dataservice.Tag
	for _, b := range list {
		for _, t := range b.Tags {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, t)
			}
		}
	}
	return out
}
