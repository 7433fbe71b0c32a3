package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	m := Default()
	if m.Name != "Bookmark It." {
		t.Errorf("Name = %q", m.Name)
	}
	if m.AuthOrigin != "https://bmrk.cc" {
		t.Errorf("AuthOrigin = %q", m.AuthOrigin)
	}
	cm, ok := m.ContextMenu("saveBookmark")
	if !ok || cm.Title != "Bookmark this page" {
		t.Errorf("context menu = %+v, %v", cm, ok)
	}
}

func TestAllowsOrigin(t *testing.T) {
	m := Default()
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.bmrk.cc", true},
		{"https://app.bmrk.cc/", true},
		{"http://app.localhost:3000", true},
		{"http://app.bmrk.cc", false},
		{"https://evil.example", false},
		{"https://app.bmrk.cc.evil.example", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.AllowsOrigin(tt.origin); got != tt.want {
			t.Errorf("AllowsOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestAllowsOrigin_Wildcard(t *testing.T) {
	m, err := Parse([]byte("externally_connectable:\n  matches: ['https://*.bmrk.cc/*']\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !m.AllowsOrigin("https://app.bmrk.cc") {
		t.Error("wildcard subdomain should match")
	}
	if m.AllowsOrigin("https://bmrk.cc") {
		t.Error("bare domain should not match *.bmrk.cc")
	}
}

func TestIsAuthOrigin(t *testing.T) {
	m := Default()
	if !m.IsAuthOrigin("https://bmrk.cc/auth/done#access_token=x") {
		t.Error("auth url not recognised")
	}
	if m.IsAuthOrigin("https://app.bmrk.cc/") {
		t.Error("other origin recognised as auth origin")
	}
	if m.IsAuthOrigin("chrome://newtab") {
		t.Error("privileged page recognised as auth origin")
	}
}

func TestParse_Errors(t *testing.T) {
	bad := map[string]string{
		"yaml":        "name: [",
		"auth origin": "auth_origin: not-a-url",
		"menu":        "context_menus:\n  - id: x\n",
		"pattern":     "externally_connectable:\n  matches: ['https://[/*']\n",
	}
	for name, src := range bad {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(file, []byte("name: Test\nauth_origin: http://127.0.0.1:7171/callback\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "Test" || m.AuthOrigin != "http://127.0.0.1:7171" {
		t.Errorf("manifest = %+v", m)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if m, err := Load(""); err != nil || m.Name != "Bookmark It." {
		t.Errorf("Load(\"\") = %+v, %v", m, err)
	}
}
