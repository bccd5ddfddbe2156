package utils

import (
	"strings"
	"testing"
)

func TestGenerateTrackingID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateTrackingID()
		if len(id) != 32 {
			t.Fatalf("expected 32 hex chars, got %d (%q)", len(id), id)
		}
		if strings.Trim(id, "0123456789abcdef") != "" {
			t.Fatalf("tracking id contains non-hex characters: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate tracking id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestBuildClickURL(t *testing.T) {
	tests := []struct {
		name       string
		landingURL string
		want       string
	}{
		{"no query string", "https://portal.example.com/login", "https://portal.example.com/login?tid=abc123"},
		{"existing query string", "https://portal.example.com/login?utm=x", "https://portal.example.com/login?utm=x&tid=abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildClickURL(tt.landingURL, "abc123"); got != tt.want {
				t.Errorf("BuildClickURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeTemplate(t *testing.T) {
	vars := TemplateVars{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Position:   "Engineer",
		TrackingID: "deadbeefdeadbeefdeadbeefdeadbeef",
		BaseURL:    "https://phish.example.com",
	}

	in := `Hi {{.FirstName}} {{.LastName}}, click <a href="{{.URL}}">here</a>`
	got := MergeTemplate(in, vars)

	if !strings.Contains(got, "Hi Ada Lovelace") {
		t.Errorf("name variables not merged: %q", got)
	}
	want := "https://phish.example.com/track/click/deadbeefdeadbeefdeadbeefdeadbeef"
	if !strings.Contains(got, want) {
		t.Errorf("URL variable not merged, got %q", got)
	}
	if strings.Contains(got, "{{.") {
		t.Errorf("unresolved variables remain: %q", got)
	}
}

func TestInjectTrackingPixel(t *testing.T) {
	base := "https://phish.example.com"
	id := "deadbeefdeadbeefdeadbeefdeadbeef"
	pixelURL := TrackingPixelURL(base, id)

	t.Run("with body tag", func(t *testing.T) {
		got := InjectTrackingPixel("<html><body><p>hi</p></body></html>", base, id)
		if !strings.Contains(got, pixelURL) {
			t.Fatalf("pixel not injected: %q", got)
		}
		if !strings.HasSuffix(got, "</body></html>") {
			t.Errorf("pixel should land before the closing body tag: %q", got)
		}
	})

	t.Run("without body tag", func(t *testing.T) {
		got := InjectTrackingPixel("<p>hi</p>", base, id)
		if !strings.Contains(got, pixelURL) {
			t.Fatalf("pixel not injected: %q", got)
		}
	})
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "<p>hello</p>", "<p>hello</p>"},
		{"fenced html", "```html\n<p>hello</p>\n```", "<p>hello</p>"},
		{"fenced no language", "```\n<p>hello</p>\n```", "<p>hello</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}
