package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Resolver maps (platform, channel, video_id) to a storage directory.
//
// The mapping is deterministic and injective on (platform, video_id): the
// directory leaf is the sanitized video_id, so title drift upstream never
// moves an entry and sanitized-title collisions cannot occur.
type Resolver struct {
	root string
}

// NewResolver creates a resolver rooted at the transcripts directory.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the transcripts root directory.
func (r *Resolver) Root() string {
	return r.root
}

var platformRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Resolve returns the entry directory for a video. The channel segment is
// human-readable nesting only; video_id is canonical. Returns an error for
// unsupported platform values, never a silent substitute.
func (r *Resolver) Resolve(platform, channel, videoID string) (string, error) {
	if !platformRe.MatchString(platform) {
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
	if videoID == "" {
		return "", fmt.Errorf("empty video id")
	}
	safeChannel := SanitizeSegment(channel, 100)
	safeID := SanitizeSegment(videoID, 50)
	return filepath.Join(r.root, platform, safeChannel, safeID), nil
}

var (
	unsafeRe     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRe = regexp.MustCompile(`[\s_]+`)
)

// SanitizeSegment makes a string safe for use as a single path segment:
// path separators and control characters are replaced, whitespace runs
// collapse to underscores, and the result is capped at maxLen bytes.
func SanitizeSegment(name string, maxLen int) string {
	s := unsafeRe.ReplaceAllString(name, "_")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_ ")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "_")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// platformMap maps URL domains to platform names.
var platformMap = []struct {
	domain   string
	platform string
}{
	{"youtube.com", "youtube"},
	{"youtu.be", "youtube"},
	{"vimeo.com", "vimeo"},
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"twitch.tv", "twitch"},
	{"dailymotion.com", "dailymotion"},
	{"facebook.com", "facebook"},
	{"fb.watch", "facebook"},
	{"instagram.com", "instagram"},
	{"tiktok.com", "tiktok"},
}

// PlatformFromURL detects the platform name from a video URL. Unknown
// domains fall back to the first domain label (e.g., "example" for
// example.org); an error is returned only when no domain can be derived.
func PlatformFromURL(rawURL string) (string, error) {
	lower := strings.ToLower(rawURL)
	rest := lower
	if i := strings.Index(lower, "://"); i >= 0 {
		rest = lower[i+3:]
	}
	domain := rest
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	domain = strings.TrimPrefix(domain, "www.")
	if domain == "" {
		return "", fmt.Errorf("no domain in URL %q", rawURL)
	}

	for _, m := range platformMap {
		if strings.Contains(domain, m.domain) {
			return m.platform, nil
		}
	}

	label := strings.SplitN(domain, ".", 2)[0]
	if !platformRe.MatchString(label) {
		return "", fmt.Errorf("cannot derive platform from URL %q", rawURL)
	}
	return label, nil
}

// ExtractVideoID pulls the platform-native video identifier out of a URL.
// YouTube watch and short URLs are handled explicitly; for other platforms
// the last non-empty path segment is used.
func ExtractVideoID(rawURL string) (string, error) {
	lower := strings.ToLower(rawURL)

	if strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be") {
		if i := strings.Index(rawURL, "v="); i >= 0 {
			id := rawURL[i+2:]
			if j := strings.IndexAny(id, "&#"); j >= 0 {
				id = id[:j]
			}
			if id != "" {
				return id, nil
			}
		}
		if i := strings.Index(lower, "youtu.be/"); i >= 0 {
			id := rawURL[i+len("youtu.be/"):]
			if j := strings.IndexAny(id, "?&#"); j >= 0 {
				id = id[:j]
			}
			if id != "" {
				return id, nil
			}
		}
	}

	path := rawURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" && !strings.Contains(segments[i], ":") {
			return segments[i], nil
		}
	}
	return "", fmt.Errorf("cannot extract video id from URL %q", rawURL)
}
