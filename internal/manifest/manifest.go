// Package manifest reads the agent's static configuration: who may send
// external messages, where sign-in completes and which context menus exist.
package manifest

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ContextMenu is one entry registered on install.
type ContextMenu struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Contexts []string `yaml:"contexts" json:"contexts"`
}

// Manifest is the agent manifest.
type Manifest struct {
	Name        string   `yaml:"name"`
	ShortName   string   `yaml:"short_name"`
	Version     string   `yaml:"version"`
	HomepageURL string   `yaml:"homepage_url"`
	AuthOrigin  string   `yaml:"auth_origin"`
	Permissions []string `yaml:"permissions"`

	ExternallyConnectable struct {
		Matches []string `yaml:"matches"`
	} `yaml:"externally_connectable"`

	ContextMenus []ContextMenu `yaml:"context_menus"`
}

// Default returns the built-in manifest.
func Default() *Manifest {
	m, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("manifest: invalid default.yaml: %v", err))
	}
	return m
}

// Load reads a manifest file. An empty path returns Default.
func Load(file string) (*Manifest, error) {
	if file == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest yaml: %w", err)
	}
	if m.AuthOrigin != "" {
		u, err := url.Parse(m.AuthOrigin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("manifest: auth_origin %q is not an origin", m.AuthOrigin)
		}
		m.AuthOrigin = u.Scheme + "://" + u.Host
	}
	for _, p := range m.ExternallyConnectable.Matches {
		o := patternOrigin(p)
		if _, err := path.Match(o, o); err != nil {
			return nil, fmt.Errorf("manifest: bad match pattern %q: %w", p, err)
		}
	}
	for _, cm := range m.ContextMenus {
		if cm.ID == "" || cm.Title == "" {
			return nil, fmt.Errorf("manifest: context menu needs id and title")
		}
	}
	return &m, nil
}

// AllowsOrigin reports whether origin (scheme://host[:port]) matches one of
// the externally_connectable patterns. Patterns are URLs whose path part is
// ignored; "*" in the host matches any run of characters.
func (m *Manifest) AllowsOrigin(origin string) bool {
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		return false
	}
	for _, p := range m.ExternallyConnectable.Matches {
		if ok, _ := path.Match(patternOrigin(p), origin); ok {
			return true
		}
	}
	return false
}

// IsAuthOrigin reports whether rawURL belongs to the sign-in origin.
func (m *Manifest) IsAuthOrigin(rawURL string) bool {
	if m.AuthOrigin == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme+"://"+u.Host == m.AuthOrigin
}

// patternOrigin strips the path from a match pattern,
// "https://app.bmrk.cc/*" -> "https://app.bmrk.cc".
func patternOrigin(p string) string {
	scheme, rest, ok := strings.Cut(p, "://")
	if !ok {
		return p
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

// ContextMenu returns the context menu entry with the given id.
func (m *Manifest) ContextMenu(id string) (ContextMenu, bool) {
	for _, cm := range m.ContextMenus {
		if cm.ID == id {
			return cm, true
		}
	}
	return ContextMenu{}, false
}
