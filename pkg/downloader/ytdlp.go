package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/paths"
)

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	// BinPath is the yt-dlp binary. Empty means resolve from PATH and
	// common install locations.
	BinPath string

	// DownloadDir receives in-flight audio files.
	DownloadDir string

	// CookiesFile is a Netscape cookies file for access-restricted
	// content. Takes precedence over CookiesFromBrowser.
	CookiesFile string

	// CookiesFromBrowser extracts cookies from the named browser.
	CookiesFromBrowser string
}

var commonBinPaths = []string{
	"/opt/homebrew/bin/yt-dlp",
	"/usr/local/bin/yt-dlp",
	"/usr/bin/yt-dlp",
}

// NewYtDlp creates a yt-dlp downloader writing into downloadDir.
func NewYtDlp(downloadDir string) *YtDlp {
	return &YtDlp{DownloadDir: downloadDir}
}

func (y *YtDlp) binary() (string, error) {
	if y.BinPath != "" {
		return y.BinPath, nil
	}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		return path, nil
	}
	for _, p := range commonBinPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("yt-dlp not found in PATH")
}

func (y *YtDlp) cookieArgs() []string {
	if y.CookiesFile != "" {
		return []string{"--cookies", y.CookiesFile}
	}
	if y.CookiesFromBrowser != "" {
		return []string{"--cookies-from-browser", y.CookiesFromBrowser}
	}
	return nil
}

func (y *YtDlp) run(ctx context.Context, args ...string) (string, error) {
	bin, err := y.binary()
	if err != nil {
		return "", err
	}
	full := append(y.cookieArgs(), args...)
	cmd := exec.CommandContext(ctx, bin, full...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("yt-dlp: %s", msg)
	}
	return string(out), nil
}

// ytdlpOutput is the raw --dump-json / --print-json shape.
type ytdlpOutput struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Channel     string  `json:"channel"`
	ChannelID   string  `json:"channel_id"`
	Uploader    string  `json:"uploader"`
	UploaderID  string  `json:"uploader_id"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"`
	Description string  `json:"description"`
	WebpageURL  string  `json:"webpage_url"`
}

func (o *ytdlpOutput) toVideoRef(url, platform string) domain.VideoRef {
	channel := o.Channel
	if channel == "" {
		channel = o.Uploader
	}
	if channel == "" {
		channel = "Unknown Channel"
	}
	title := o.Title
	if title == "" {
		title = "Unknown Title"
	}
	return domain.VideoRef{
		VideoID:       o.ID,
		Platform:      platform,
		Channel:       channel,
		ChannelID:     o.ChannelID,
		ChannelHandle: o.UploaderID,
		Title:         title,
		URL:           url,
		Description:   o.Description,
		UploadDate:    o.UploadDate,
		DurationSec:   int64(o.Duration),
	}
}

// Metadata captures video metadata without downloading.
func (y *YtDlp) Metadata(ctx context.Context, url string) (domain.VideoRef, error) {
	out, err := y.run(ctx, "--dump-json", "--no-download", url)
	if err != nil {
		return domain.VideoRef{}, err
	}
	return parseVideoJSON(out, url)
}

// FetchAudio downloads the best audio track as mp3 and returns it with the
// captured metadata. The file lands in DownloadDir under a random name; the
// caller owns it from here.
func (y *YtDlp) FetchAudio(ctx context.Context, url string) (domain.VideoRef, domain.AudioAsset, error) {
	if err := os.MkdirAll(y.DownloadDir, 0o755); err != nil {
		return domain.VideoRef{}, domain.AudioAsset{}, fmt.Errorf("create download dir: %w", err)
	}

	outputID := uuid.NewString()[:8]
	template := filepath.Join(y.DownloadDir, outputID+".%(ext)s")

	out, err := y.run(ctx,
		"-f", "bestaudio",
		"-x", "--audio-format", "mp3",
		"--print-json",
		"-o", template,
		url)
	if err != nil {
		return domain.VideoRef{}, domain.AudioAsset{}, err
	}

	ref, err := parseVideoJSON(out, url)
	if err != nil {
		return domain.VideoRef{}, domain.AudioAsset{}, err
	}

	audioPath, err := y.findDownloaded(outputID)
	if err != nil {
		return domain.VideoRef{}, domain.AudioAsset{}, err
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return domain.VideoRef{}, domain.AudioAsset{}, fmt.Errorf("stat audio: %w", err)
	}

	asset := domain.AudioAsset{
		LocalPath: audioPath,
		Format:    strings.TrimPrefix(filepath.Ext(audioPath), "."),
		SizeBytes: info.Size(),
	}
	return ref, asset, nil
}

// findDownloaded locates the file yt-dlp produced for outputID. The
// extension is usually mp3 but post-processing can leave other formats.
func (y *YtDlp) findDownloaded(outputID string) (string, error) {
	mp3 := filepath.Join(y.DownloadDir, outputID+".mp3")
	if _, err := os.Stat(mp3); err == nil {
		return mp3, nil
	}
	entries, err := os.ReadDir(y.DownloadDir)
	if err != nil {
		return "", fmt.Errorf("scan download dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), outputID) {
			return filepath.Join(y.DownloadDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("downloaded audio file not found for id %s", outputID)
}

// playlistEntry is the raw --flat-playlist line shape. Channel fields fall
// back to uploader and playlist-level values, which yt-dlp leaves null on
// some tabs.
type playlistEntry struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Channel          string  `json:"channel"`
	ChannelID        string  `json:"channel_id"`
	Uploader         string  `json:"uploader"`
	UploaderID       string  `json:"uploader_id"`
	Duration         float64 `json:"duration"`
	ViewCount        int64   `json:"view_count"`
	UploadDate       string  `json:"upload_date"`
	PlaylistUploader string  `json:"playlist_uploader"`
	PlaylistChannel  string  `json:"playlist_channel"`
	PlaylistChanID   string  `json:"playlist_channel_id"`
}

func (e *playlistEntry) toDomain() (domain.PlaylistEntry, bool) {
	if e.ID == "" {
		return domain.PlaylistEntry{}, false
	}
	title := e.Title
	if title == "" {
		title = "Untitled"
	}
	url := e.URL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + e.ID
	}
	channel := firstNonEmpty(e.Channel, e.Uploader, e.PlaylistChannel, e.PlaylistUploader)
	channelID := firstNonEmpty(e.ChannelID, e.UploaderID, e.PlaylistChanID)
	return domain.PlaylistEntry{
		VideoID:     e.ID,
		Title:       title,
		URL:         url,
		Channel:     channel,
		ChannelID:   channelID,
		DurationSec: int64(e.Duration),
		ViewCount:   e.ViewCount,
		UploadDate:  e.UploadDate,
	}, true
}

// PlaylistEntries lists videos from a playlist-like URL using
// --flat-playlist, one JSON object per line.
func (y *YtDlp) PlaylistEntries(ctx context.Context, url string, limit int) ([]domain.PlaylistEntry, error) {
	out, err := y.run(ctx,
		"--dump-json",
		"--flat-playlist",
		"--playlist-end", fmt.Sprintf("%d", limit),
		"--no-warnings",
		"--extractor-args", "youtubetab:skip=authcheck",
		url)
	if err != nil {
		return nil, err
	}
	return parsePlaylistLines(out), nil
}

// ChannelVideos lists the latest videos of a channel.
func (y *YtDlp) ChannelVideos(ctx context.Context, channelURL string, limit int) ([]domain.PlaylistEntry, error) {
	return y.PlaylistEntries(ctx, NormalizeChannelURL(channelURL), limit)
}

// SearchVideos searches the platform for videos matching query.
func (y *YtDlp) SearchVideos(ctx context.Context, query string, limit int) ([]domain.PlaylistEntry, error) {
	return y.PlaylistEntries(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query), limit)
}

func parseVideoJSON(out, url string) (domain.VideoRef, error) {
	var raw ytdlpOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &raw); err != nil {
		return domain.VideoRef{}, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	platform := platformOrDefault(url)
	return raw.toVideoRef(url, platform), nil
}

func parsePlaylistLines(out string) []domain.PlaylistEntry {
	var entries []domain.PlaylistEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw playlistEntry
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			// Skip malformed entries, keep parsing.
			continue
		}
		if entry, ok := raw.toDomain(); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// NormalizeChannelURL points a channel reference (URL, @handle, or channel
// id) at its videos tab.
func NormalizeChannelURL(raw string) string {
	url := strings.TrimRight(raw, "/")
	if strings.HasSuffix(url, "/videos") {
		return url
	}
	if strings.Contains(url, "youtube.com/") {
		return url + "/videos"
	}
	if strings.HasPrefix(url, "@") {
		return "https://www.youtube.com/" + url + "/videos"
	}
	return "https://www.youtube.com/channel/" + url + "/videos"
}

func platformOrDefault(url string) string {
	p, err := paths.PlatformFromURL(url)
	if err != nil {
		return "unknown"
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
