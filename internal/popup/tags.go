package popup

import (
	"net/url"
	"strings"

	"github.com/joestump/bmrk/internal/dataservice"
)

// ShareSource is appended as utm_source to copied links.
const ShareSource = "bmrk.cc"

// HelpURL is opened from the profile menu.
const HelpURL = "mailto:support@bmrk.cc"

// ShareURL returns raw with utm_source=bmrk.cc appended. Unparseable URLs are
// returned unchanged.
func ShareURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	param := "utm_source=" + url.QueryEscape(ShareSource)
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String()
}

// FilterTags returns the tags whose name contains search, case-insensitively.
// A blank search returns every tag.
func FilterTags(tags []dataservice.Tag, search string) []dataservice.Tag {
	s := strings.ToLower(strings.TrimSpace(search))
	if s == "" {
		return tags
	}
	var out []dataservice.Tag
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t.Name), s) {
			out = append(out, t)
		}
	}
	return out
}

// ExactMatch returns the tag whose name equals search after trimming and
// case folding.
func ExactMatch(tags []dataservice.Tag, search string) (dataservice.Tag, bool) {
	s := strings.ToLower(strings.TrimSpace(search))
	if s == "" {
		return dataservice.Tag{}, false
	}
	for _, t := range tags {
		if strings.ToLower(strings.TrimSpace(t.Name)) == s {
			return t, true
		}
	}
	return dataservice.Tag{}, false
}

// CanCreateTag reports whether search names a tag that does not exist yet.
func CanCreateTag(tags []dataservice.Tag, search string) bool {
	if strings.TrimSpace(search) == "" {
		return false
	}
	_, ok := ExactMatch(tags, search)
	return !ok
}
