package domain

// Utterance is one diarized speech segment. Utterances are ordered by
// StartMS and non-overlapping by contract of the transcription provider.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	StartMS    int64   `json:"start"`
	EndMS      int64   `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Word is fine-grained word-level timing data.
type Word struct {
	Text       string  `json:"text"`
	StartMS    int64   `json:"start"`
	EndMS      int64   `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Chapter is a provider-detected topical segment of the video.
type Chapter struct {
	StartMS  int64  `json:"start"`
	EndMS    int64  `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary,omitempty"`
}

// Transcript is the structured transcription result for one video,
// as returned by the provider.
type Transcript struct {
	// ProviderID is the provider-side job identifier the transcript was
	// fetched from. Kept for traceability.
	ProviderID string `json:"id"`

	// Text is the full flattened transcript text.
	Text string `json:"text"`

	Utterances []Utterance `json:"utterances"`
	Words      []Word      `json:"words,omitempty"`
	Chapters   []Chapter   `json:"chapters,omitempty"`

	Confidence       float64 `json:"confidence,omitempty"`
	AudioDurationSec int64   `json:"audio_duration,omitempty"`
}

// SpeakerCount returns the number of distinct speaker labels.
func (t *Transcript) SpeakerCount() int {
	seen := make(map[string]struct{})
	for _, u := range t.Utterances {
		seen[u.Speaker] = struct{}{}
	}
	return len(seen)
}

// ChapterText returns all chapter headlines and summaries joined for indexing.
func (t *Transcript) ChapterText() string {
	var b []byte
	for _, c := range t.Chapters {
		if len(b) > 0 {
			b = append(b, '\n')
		}
		b = append(b, c.Headline...)
		if c.Summary != "" {
			b = append(b, ' ')
			b = append(b, c.Summary...)
		}
	}
	return string(b)
}

// TranscriptDoc ties a transcript to the video it was produced from.
// This is the unit the store materializes and the index derives from.
type TranscriptDoc struct {
	Video      VideoRef   `json:"video"`
	Transcript Transcript `json:"transcript"`
}

// StorageEntry is a summary of one stored transcript directory.
type StorageEntry struct {
	// Path is the absolute entry directory.
	Path string `json:"path"`

	VideoID       string `json:"id"`
	Title         string `json:"title"`
	Channel       string `json:"channel"`
	ChannelHandle string `json:"channel_handle,omitempty"`
	Platform      string `json:"platform"`
	URL           string `json:"url,omitempty"`
	UploadDate    string `json:"upload_date,omitempty"`
	DurationSec   int64  `json:"duration,omitempty"`
}
