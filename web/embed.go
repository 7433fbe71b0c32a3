// Package web holds the embedded pages served by the data service and the
// agent: the landing page and the sign-in completion pages.
package web

import "embed"

// TemplateFS contains all HTML templates.
//
//go:embed templates
var TemplateFS embed.FS

// StaticFS contains the stylesheet.
//
//go:embed static
var StaticFS embed.FS
