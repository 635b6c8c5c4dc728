package domain

// VideoRef identifies a video as captured from the downloader.
// It is immutable once captured; the title may drift upstream but the
// (Platform, VideoID) pair is canonical.
type VideoRef struct {
	// VideoID is the platform-native identifier (e.g., a YouTube watch ID).
	VideoID string `json:"id"`

	// Platform is the lowercase platform name (youtube, vimeo, ...).
	Platform string `json:"platform"`

	// Channel is the display name of the uploading channel.
	Channel string `json:"channel"`

	// ChannelID is the platform-native channel identifier, when available.
	ChannelID string `json:"channel_id,omitempty"`

	// ChannelHandle is the channel handle (e.g., "@somechannel"), when available.
	ChannelHandle string `json:"channel_handle,omitempty"`

	Title string `json:"title"`
	URL   string `json:"url"`

	// Description is the video description, when available. Indexed for search.
	Description string `json:"description,omitempty"`

	// UploadDate is the publish date in yt-dlp's YYYYMMDD form, when available.
	UploadDate string `json:"upload_date,omitempty"`

	// DurationSec is the video duration in seconds, when available.
	DurationSec int64 `json:"duration,omitempty"`
}

// AudioAsset is a downloaded audio file owned by one transcription job
// until it is handed to storage (or deleted after success).
type AudioAsset struct {
	LocalPath string `json:"local_path"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

// PlaylistEntry is one video from a channel listing or a platform search.
type PlaylistEntry struct {
	VideoID     string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Channel     string `json:"channel,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	DurationSec int64  `json:"duration,omitempty"`
	ViewCount   int64  `json:"view_count,omitempty"`
	UploadDate  string `json:"upload_date,omitempty"`
}
