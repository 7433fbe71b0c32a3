package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joestump/bmrk/internal/popup"
)

func (a App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Bookmark It."))
	if u := a.snap.User; u != nil {
		b.WriteString("  " + a.styles.User.Render(u.Email))
	}
	b.WriteString("\n\n")

	if a.snap.User == nil {
		b.WriteString(a.styles.Empty.Render("Not signed in. Sign in from the browser, then press r."))
		b.WriteString("\n")
		if a.signInURL != "" {
			b.WriteString(a.styles.URL.Render(a.signInURL) + "\n")
		}
		return a.frame(b.String())
	}

	b.WriteString(a.pageLine())
	b.WriteString("\n")
	b.WriteString(a.filterLine())
	b.WriteString("\n\n")

	if a.mode == modeTags {
		b.WriteString(a.tagPicker())
	} else {
		b.WriteString(a.list())
	}

	if n := a.notice; n != nil {
		style := a.styles.Success
		if n.Level == popup.NoticeError {
			style = a.styles.Error
		}
		b.WriteString("\n" + style.Render(n.Message) + "\n")
	}
	return a.frame(b.String())
}

func (a App) frame(body string) string {
	body += "\n" + a.help.View(a.keys)
	if a.help.ShowAll {
		body += "\n\n" + a.styles.User.Render("Support: "+popup.HelpURL)
	}
	if a.width > 0 {
		return a.styles.App.Width(a.width).Render(body)
	}
	return a.styles.App.Render(body)
}

func (a App) pageLine() string {
	if a.snap.ActiveURL == nil {
		return a.styles.Empty.Render(popup.MsgURLNotAllowed)
	}
	var mark string
	switch a.snap.Toggle {
	case popup.ToggleBookmarked:
		mark = a.styles.Bookmarked.Render("★ Bookmarked")
	case popup.ToggleNotBookmarked:
		mark = a.styles.Page.Render("☆ Not bookmarked")
	default:
		mark = a.styles.Empty.Render("…")
	}
	return mark + "  " + a.styles.URL.Render(*a.snap.ActiveURL)
}

func (a App) filterLine() string {
	var parts []string
	if a.mode == modeSearch {
		parts = append(parts, a.search.View())
	} else if a.snap.Query != "" {
		parts = append(parts, "search: "+a.snap.Query)
	}
	if a.snap.Facet != "" {
		for _, t := range a.snap.FacetTags {
			if t.ID == a.snap.Facet {
				parts = append(parts, a.styles.TagActive.Render("#"+t.Name))
			}
		}
	}
	if a.snap.Fuzzy {
		parts = append(parts, a.styles.Tag.Render("fuzzy"))
	}
	return strings.Join(parts, "  ")
}

func (a App) list() string {
	switch {
	case a.snap.Fetch == popup.FetchLoading && len(a.snap.List) == 0:
		return a.styles.Empty.Render("Loading bookmarks...") + "\n"
	case len(a.snap.List) == 0:
		return a.styles.Empty.Render("No bookmarks yet.") + "\n"
	case len(a.snap.Visible) == 0:
		return a.styles.Empty.Render("No bookmarks match.") + "\n"
	}

	var b strings.Builder
	for i, bm := range a.snap.Visible {
		title := bm.Title
		if title == "" {
			title = bm.URL
		}
		line := title + "  " + a.styles.URL.Render(bm.URL)
		if len(bm.Tags) > 0 {
			names := make([]string, len(bm.Tags))
			for j, t := range bm.Tags {
				names[j] = "#" + t.Name
			}
			line += "  " + a.styles.Tag.Render(strings.Join(names, " "))
		}
		style := a.styles.Item
		if i == a.cursor {
			style = a.styles.ItemSelected
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

func (a App) tagPicker() string {
	bm, _ := a.selected()
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tags for %s\n", lipgloss.NewStyle().Bold(true).Render(bm.Title)))
	b.WriteString(a.tagInput.View() + "\n")
	rows := a.tagRows()
	if len(rows) == 0 {
		b.WriteString(a.styles.Empty.Render("No tags.") + "\n")
	}
	for i, r := range rows {
		var line string
		switch {
		case r.create:
			line = fmt.Sprintf("+ Create %q", strings.TrimSpace(a.tagInput.Value()))
		case r.assigned:
			line = "[x] " + r.tag.Name
		default:
			line = "[ ] " + r.tag.Name
		}
		style := a.styles.Item
		if i == a.tagCursor {
			style = a.styles.ItemSelected
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}
