package paths

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestResolver_Resolve_Deterministic(t *testing.T) {
	r := NewResolver("/data/transcripts")

	first, err := r.Resolve("youtube", "Lex Fridman", "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve("youtube", "Lex Fridman", "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected identical paths, got %q and %q", first, second)
	}

	want := filepath.Join("/data/transcripts", "youtube", "Lex_Fridman", "dQw4w9WgXcQ")
	if first != want {
		t.Errorf("Expected path %q, got %q", want, first)
	}
}

func TestResolver_Resolve_DistinctVideosNeverCollide(t *testing.T) {
	r := NewResolver("/data/transcripts")

	// Same channel, ids that sanitize differently must map to distinct dirs.
	a, err := r.Resolve("youtube", "Some Channel", "abc123")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := r.Resolve("youtube", "Some Channel", "abc124")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if a == b {
		t.Errorf("Expected distinct paths for distinct video ids, both got %q", a)
	}
}

func TestResolver_Resolve_UnsupportedPlatform(t *testing.T) {
	r := NewResolver("/data/transcripts")

	cases := []string{"", "You Tube", "UPPER", "../etc", "a/b"}
	for _, platform := range cases {
		if _, err := r.Resolve(platform, "chan", "vid"); err == nil {
			t.Errorf("Expected error for platform %q, got nil", platform)
		}
	}
}

func TestResolver_Resolve_EmptyVideoID(t *testing.T) {
	r := NewResolver("/data/transcripts")

	if _, err := r.Resolve("youtube", "chan", ""); err == nil {
		t.Fatal("Expected error for empty video id, got nil")
	}
}

func TestSanitizeSegment(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"plain", "hello", 100, "hello"},
		{"spaces collapse", "Lex  Fridman   Podcast", 100, "Lex_Fridman_Podcast"},
		{"path separators", `a/b\c`, 100, "a_b_c"},
		{"reserved characters", `<title>: "quoted"?*|`, 100, "title_quoted"},
		{"control characters", "a\x00b\x1fc", 100, "a_b_c"},
		{"leading trailing trim", "  _name_  ", 100, "name"},
		{"length cap", strings.Repeat("x", 80), 50, strings.Repeat("x", 50)},
		{"empty fallback", "", 100, "untitled"},
		{"only unsafe fallback", `///"""`, 100, "untitled"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeSegment(tc.input, tc.maxLen)
			if got != tc.expected {
				t.Errorf("SanitizeSegment(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestPlatformFromURL(t *testing.T) {
	cases := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=abc", "youtube"},
		{"https://youtu.be/abc", "youtube"},
		{"https://vimeo.com/12345", "vimeo"},
		{"https://x.com/user/status/1", "twitter"},
		{"https://www.twitch.tv/videos/1", "twitch"},
		{"https://fb.watch/xyz/", "facebook"},
		{"https://www.tiktok.com/@user/video/1", "tiktok"},
		{"https://example.org/video/1", "example"},
	}

	for _, tc := range cases {
		got, err := PlatformFromURL(tc.url)
		if err != nil {
			t.Errorf("PlatformFromURL(%q) failed: %v", tc.url, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("PlatformFromURL(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

func TestPlatformFromURL_NoDomain(t *testing.T) {
	if _, err := PlatformFromURL("https:///path"); err == nil {
		t.Fatal("Expected error for URL without domain, got nil")
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url      string
		expected string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=xyz", "dQw4w9WgXcQ"},
		{"https://vimeo.com/123456789", "123456789"},
		{"https://www.twitch.tv/videos/987654", "987654"},
	}

	for _, tc := range cases {
		got, err := ExtractVideoID(tc.url)
		if err != nil {
			t.Errorf("ExtractVideoID(%q) failed: %v", tc.url, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("ExtractVideoID(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}
