// Package tui renders the popup in a terminal. All state lives in a
// popup.Controller; the model only tracks the cursor, input modes and the
// last notice.
package tui

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joestump/bmrk/internal/dataservice"
	"github.com/joestump/bmrk/internal/popup"
)

type mode uint8

const (
	modeList mode = iota
	modeSearch
	modeTags
)

// changedMsg tells the model to re-read the controller snapshot.
type changedMsg struct{}

type noticeMsg popup.Notice

// opDoneMsg ends an asynchronous controller operation. Failures already
// arrived as notices.
type opDoneMsg struct{ err error }

// AppParams holds parameters for creating a new App.
type AppParams struct {
	Controller *popup.Controller
	// ActiveURL and ActiveTitle describe the page the popup was opened on.
	ActiveURL   *string
	ActiveTitle string
	// SignInURL is shown while signed out.
	SignInURL string
	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
	Keys      *KeyMap
	Styles    *Styles
}

// App is the bubbletea model of the popup.
type App struct {
	ctx    context.Context
	ctrl   *popup.Controller
	events chan tea.Msg

	activeURL   *string
	activeTitle string
	signInURL   string
	clip        func(string) error

	snap      popup.Snapshot
	mode      mode
	cursor    int
	tagCursor int
	notice    *popup.Notice
	search    textinput.Model
	tagInput  textinput.Model
	help      help.Model
	keys      KeyMap
	styles    Styles
	width     int
	height    int
}

// NewApp creates the model and subscribes it to controller changes.
func NewApp(p AppParams) App {
	keys := DefaultKeyMap()
	if p.Keys != nil {
		keys = *p.Keys
	}
	styles := DefaultStyles()
	if p.Styles != nil {
		styles = *p.Styles
	}
	cp := p.Clipboard
	if cp == nil {
		cp = clipboard.WriteAll
	}

	search := textinput.New()
	search.Placeholder = "Search bookmarks..."
	search.CharLimit = 256
	search.Width = 40
	search.Cursor.SetMode(cursor.CursorStatic)

	tagInput := textinput.New()
	tagInput.Placeholder = "Search or create tag..."
	tagInput.CharLimit = 64
	tagInput.Width = 30
	tagInput.Cursor.SetMode(cursor.CursorStatic)

	events := make(chan tea.Msg, 16)
	p.Controller.OnChange(func(popup.Snapshot) {
		select {
		case events <- changedMsg{}:
		default:
		}
	})
	p.Controller.OnNotice(func(n popup.Notice) {
		select {
		case events <- noticeMsg(n):
		default:
		}
	})

	return App{
		ctx:         context.Background(),
		ctrl:        p.Controller,
		events:      events,
		activeURL:   p.ActiveURL,
		activeTitle: p.ActiveTitle,
		signInURL:   p.SignInURL,
		clip:        cp,
		snap:        p.Controller.Snapshot(),
		search:      search,
		tagInput:    tagInput,
		help:        help.New(),
		keys:        keys,
		styles:      styles,
	}
}

// WithDimensions sets the terminal size, for tests.
func (a App) WithDimensions(w, h int) App {
	a.width, a.height = w, h
	return a
}

// Cursor returns the selected row of the visible list.
func (a App) Cursor() int { return a.cursor }

// Snapshot returns the controller state last rendered.
func (a App) Snapshot() popup.Snapshot { return a.snap }

// Notice returns the notice on screen, if any.
func (a App) Notice() *popup.Notice { return a.notice }

func (a App) Init() tea.Cmd {
	return tea.Batch(a.mount(), a.listen())
}

func (a App) mount() tea.Cmd {
	ctrl, ctx, url := a.ctrl, a.ctx, a.activeURL
	return func() tea.Msg {
		err := ctrl.Mount(ctx)
		ctrl.SetActiveTab(url)
		return opDoneMsg{err: err}
	}
}

func (a App) listen() tea.Cmd {
	events := a.events
	return func() tea.Msg { return <-events }
}

// run executes fn off the update loop.
func (a App) run(fn func(context.Context) error) tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg { return opDoneMsg{err: fn(ctx)} }
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil
	case changedMsg:
		a.sync()
		return a, a.listen()
	case noticeMsg:
		n := popup.Notice(msg)
		a.notice = &n
		a.sync()
		return a, a.listen()
	case opDoneMsg:
		a.sync()
		return a, nil
	case tea.KeyMsg:
		switch a.mode {
		case modeSearch:
			return a.updateSearch(msg)
		case modeTags:
			return a.updateTags(msg)
		default:
			return a.updateList(msg)
		}
	}
	return a, nil
}

// sync re-reads the snapshot and clamps the cursor.
func (a *App) sync() {
	a.snap = a.ctrl.Snapshot()
	if a.cursor >= len(a.snap.Visible) {
		a.cursor = max(len(a.snap.Visible)-1, 0)
	}
	if n := len(a.tagRows()); a.tagCursor >= n {
		a.tagCursor = max(n-1, 0)
	}
}

func (a App) selected() (dataservice.Bookmark, bool) {
	if a.cursor < 0 || a.cursor >= len(a.snap.Visible) {
		return dataservice.Bookmark{}, false
	}
	return a.snap.Visible[a.cursor], true
}

func (a App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.ctrl.Unmount()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.snap.Visible)-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Search):
		a.mode = modeSearch
		a.search.SetValue(a.snap.Query)
		a.search.CursorEnd()
		cmd := a.search.Focus()
		return a, cmd
	case key.Matches(msg, a.keys.Toggle):
		title := a.activeTitle
		return a, a.run(func(ctx context.Context) error { return a.ctrl.ToggleBookmark(ctx, title) })
	case key.Matches(msg, a.keys.Delete):
		if b, ok := a.selected(); ok {
			return a, a.run(func(ctx context.Context) error { return a.ctrl.DeleteBookmark(ctx, b.ID) })
		}
	case key.Matches(msg, a.keys.Share):
		if b, ok := a.selected(); ok {
			n := popup.Notice{Level: popup.NoticeSuccess, Message: popup.MsgLinkCopied}
			if err := a.clip(popup.ShareURL(b.URL)); err != nil {
				n = popup.Notice{Level: popup.NoticeError, Message: "Could not copy link.", Err: err}
			}
			a.notice = &n
		}
	case key.Matches(msg, a.keys.Tags):
		if _, ok := a.selected(); ok {
			a.mode = modeTags
			a.tagCursor = 0
			a.tagInput.Reset()
			cmd := a.tagInput.Focus()
			return a, cmd
		}
	case key.Matches(msg, a.keys.Facet):
		a.cycleFacet()
		a.sync()
	case key.Matches(msg, a.keys.Fuzzy):
		a.ctrl.SetFuzzy(!a.snap.Fuzzy)
		a.sync()
	case key.Matches(msg, a.keys.Refresh):
		return a, a.run(func(ctx context.Context) error { return a.ctrl.Refresh(ctx, true) })
	case key.Matches(msg, a.keys.SignOut):
		return a, a.run(a.ctrl.SignOut)
	}
	return a, nil
}

// cycleFacet moves the facet to the next tag in use, then back to none.
func (a App) cycleFacet() {
	tags := a.snap.FacetTags
	if len(tags) == 0 {
		return
	}
	if a.snap.Facet == "" {
		a.ctrl.SelectTag(tags[0].ID)
		return
	}
	for i, t := range tags {
		if t.ID == a.snap.Facet && i+1 < len(tags) {
			a.ctrl.SelectTag(tags[i+1].ID)
			return
		}
	}
	a.ctrl.ClearFacet()
}

func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.search.Reset()
		a.search.Blur()
		a.ctrl.SetQuery("")
		a.mode = modeList
		a.sync()
		return a, nil
	case key.Matches(msg, a.keys.Confirm):
		a.search.Blur()
		a.mode = modeList
		return a, nil
	}

	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	a.ctrl.SetQuery(a.search.Value())
	a.cursor = 0
	a.sync()
	return a, cmd
}

// tagRow is one line of the tag picker; a zero Tag is the "create" row.
type tagRow struct {
	tag      dataservice.Tag
	create   bool
	assigned bool
}

func (a App) tagRows() []tagRow {
	if a.mode != modeTags {
		return nil
	}
	b, _ := a.selected()
	search := a.tagInput.Value()
	var rows []tagRow
	for _, t := range popup.FilterTags(a.snap.Tags, search) {
		rows = append(rows, tagRow{tag: t, assigned: b.HasTag(t.ID)})
	}
	if popup.CanCreateTag(a.snap.Tags, search) {
		rows = append(rows, tagRow{create: true})
	}
	return rows
}

func (a App) updateTags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := a.tagRows()
	switch msg.String() {
	case "esc":
		a.tagInput.Blur()
		a.mode = modeList
		return a, nil
	case "down", "ctrl+n":
		if a.tagCursor < len(rows)-1 {
			a.tagCursor++
		}
		return a, nil
	case "up", "ctrl+p":
		if a.tagCursor > 0 {
			a.tagCursor--
		}
		return a, nil
	case "enter":
		b, ok := a.selected()
		if !ok || a.tagCursor >= len(rows) {
			return a, nil
		}
		row := rows[a.tagCursor]
		if row.create {
			name := a.tagInput.Value()
			a.tagInput.Reset()
			a.tagCursor = 0
			return a, a.run(func(ctx context.Context) error { return a.ctrl.CreateAndAssignTag(ctx, b.ID, name) })
		}
		return a, a.run(func(ctx context.Context) error { return a.ctrl.ToggleTag(ctx, b.ID, row.tag.ID) })
	}

	var cmd tea.Cmd
	a.tagInput, cmd = a.tagInput.Update(msg)
	a.tagCursor = 0
	return a, cmd
}
