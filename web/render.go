package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
)

// pageCache maps a page file name (e.g. "landing.html") to a template set of
// base.html plus that page, so {{define "content"}} blocks don't collide.
var pageCache map[string]*template.Template

func init() {
	pageCache = make(map[string]*template.Template)
	err := fs.WalkDir(TemplateFS, "templates/pages", func(p string, d fs.DirEntry, e error) error {
		if e != nil || d.IsDir() || !strings.HasSuffix(p, ".html") {
			return e
		}
		t, err := template.New("").ParseFS(TemplateFS, "templates/base.html", p)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		rel, _ := strings.CutPrefix(p, "templates/pages/")
		pageCache[rel] = t
		return nil
	})
	if err != nil {
		panic("build page cache: " + err.Error())
	}
}

// Page is the data every page receives.
type Page struct {
	Title   string
	Message string
	Error   string
	LinkURL string
	Data    any
}

// Render executes a full page (base layout + named page) with the given
// status code.
func Render(w http.ResponseWriter, status int, tmpl string, data Page) {
	t, ok := pageCache[tmpl]
	if !ok {
		http.Error(w, "template not found: "+tmpl, http.StatusInternalServerError)
		return
	}
	var b strings.Builder
	if err := t.ExecuteTemplate(&b, "base", data); err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(b.String()))
}

// StaticHandler serves StaticFS under prefix.
func StaticHandler(prefix string) http.Handler {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		panic("failed to sub static FS: " + err.Error())
	}
	return http.StripPrefix(prefix, http.FileServerFS(sub))
}
