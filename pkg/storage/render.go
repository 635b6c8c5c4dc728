package storage

import (
	"fmt"
	"strings"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// FormatTimestamp renders milliseconds as MM:SS, or HH:MM:SS past an hour.
func FormatTimestamp(ms int64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes%60, seconds%60)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds%60)
}

// RenderMarkdown produces the human-readable transcript artifact: a title
// header, chapter outline, and speaker-labeled timestamped paragraphs.
// Consecutive utterances from the same speaker batch into one paragraph.
func RenderMarkdown(doc *domain.TranscriptDoc) string {
	var b strings.Builder

	if doc.Video.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", doc.Video.Title)
	}
	if doc.Video.Channel != "" {
		fmt.Fprintf(&b, "Channel: %s\n\n", doc.Video.Channel)
	}

	if len(doc.Transcript.Chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, c := range doc.Transcript.Chapters {
			fmt.Fprintf(&b, "- [%s] %s\n", FormatTimestamp(c.StartMS), c.Headline)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Transcript\n\n")

	if len(doc.Transcript.Utterances) == 0 {
		b.WriteString(doc.Transcript.Text)
		return b.String()
	}

	var paragraphs []string
	var speaker string
	var texts []string
	var startMS int64

	flush := func() {
		if speaker == "" {
			return
		}
		paragraphs = append(paragraphs, fmt.Sprintf("**Speaker %s** [%s]: %s",
			speaker, FormatTimestamp(startMS), strings.Join(texts, " ")))
	}

	for _, u := range doc.Transcript.Utterances {
		if u.Speaker == speaker {
			texts = append(texts, u.Text)
			continue
		}
		flush()
		speaker = u.Speaker
		texts = []string{u.Text}
		startMS = u.StartMS
	}
	flush()

	b.WriteString(strings.Join(paragraphs, "\n\n"))
	b.WriteString("\n")
	return b.String()
}

// RenderPlain produces an unformatted speaker-labeled rendering, used for
// terminal output.
func RenderPlain(t *domain.Transcript) string {
	if len(t.Utterances) == 0 {
		return t.Text
	}

	var paragraphs []string
	var speaker string
	var texts []string

	flush := func() {
		if speaker == "" {
			return
		}
		paragraphs = append(paragraphs, fmt.Sprintf("Speaker %s: %s", speaker, strings.Join(texts, " ")))
	}

	for _, u := range t.Utterances {
		if u.Speaker == speaker {
			texts = append(texts, u.Text)
			continue
		}
		flush()
		speaker = u.Speaker
		texts = []string{u.Text}
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}
