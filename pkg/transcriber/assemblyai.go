package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
	"github.com/DigiBugCat/yt-cli/pkg/httpclient"
)

// DefaultBaseURL is the AssemblyAI v2 API root.
const DefaultBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAI implements Provider against the AssemblyAI REST API.
type AssemblyAI struct {
	baseURL string
	apiKey  string
	client  *httpclient.HTTPClient
}

// NewAssemblyAI creates a client with the default base URL.
func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  httpclient.NewClient(httpclient.APIClient),
	}
}

// NewAssemblyAIWithBaseURL creates a client against a custom API root.
// Used by tests to point at a local server.
func NewAssemblyAIWithBaseURL(apiKey, baseURL string) *AssemblyAI {
	c := NewAssemblyAI(apiKey)
	c.baseURL = baseURL
	return c
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
	AutoChapters  bool   `json:"auto_chapters"`
}

type apiUtterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type apiWord struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker"`
}

type apiChapter struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
}

type transcriptResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Text          string         `json:"text"`
	Utterances    []apiUtterance `json:"utterances"`
	Words         []apiWord      `json:"words"`
	Chapters      []apiChapter   `json:"chapters"`
	Confidence    float64        `json:"confidence"`
	AudioDuration int64          `json:"audio_duration"`
	Error         string         `json:"error"`
}

// Upload reads the audio file, uploads it, and creates a transcription job
// with speaker diarization and chapter detection enabled.
func (a *AssemblyAI) Upload(ctx context.Context, asset domain.AudioAsset) (JobHandle, error) {
	data, err := os.ReadFile(asset.LocalPath)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var upload uploadResponse
	if err := a.doJSON(req, &upload); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}

	body, err := json.Marshal(transcriptRequest{
		AudioURL:      upload.UploadURL,
		SpeakerLabels: true,
		Punctuate:     true,
		FormatText:    true,
		AutoChapters:  true,
	})
	if err != nil {
		return "", err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var created transcriptResponse
	if err := a.doJSON(req, &created); err != nil {
		return "", fmt.Errorf("create transcript: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create transcript: empty job id")
	}
	return JobHandle(created.ID), nil
}

// PollStatus reports the provider's status for a job.
func (a *AssemblyAI) PollStatus(ctx context.Context, handle JobHandle) (Status, error) {
	resp, err := a.getTranscript(ctx, handle)
	if err != nil {
		return "", err
	}
	switch resp.Status {
	case "queued":
		return StatusQueued, nil
	case "processing":
		return StatusProcessing, nil
	case "completed":
		return StatusCompleted, nil
	case "error":
		return StatusError, &PermanentError{Message: resp.Error}
	default:
		return "", fmt.Errorf("unknown transcript status %q", resp.Status)
	}
}

// FetchResult retrieves the structured transcript of a completed job.
func (a *AssemblyAI) FetchResult(ctx context.Context, handle JobHandle) (*domain.Transcript, error) {
	resp, err := a.getTranscript(ctx, handle)
	if err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, &PermanentError{Message: resp.Error}
	}
	if resp.Status != "completed" {
		return nil, fmt.Errorf("transcript %s not completed (status %s)", handle, resp.Status)
	}

	tr := &domain.Transcript{
		ProviderID:       resp.ID,
		Text:             resp.Text,
		Confidence:       resp.Confidence,
		AudioDurationSec: resp.AudioDuration,
	}
	for _, u := range resp.Utterances {
		tr.Utterances = append(tr.Utterances, domain.Utterance{
			Speaker: u.Speaker, Text: u.Text, StartMS: u.Start, EndMS: u.End, Confidence: u.Confidence,
		})
	}
	for _, w := range resp.Words {
		tr.Words = append(tr.Words, domain.Word{
			Text: w.Text, StartMS: w.Start, EndMS: w.End, Confidence: w.Confidence, Speaker: w.Speaker,
		})
	}
	for _, c := range resp.Chapters {
		tr.Chapters = append(tr.Chapters, domain.Chapter{
			StartMS: c.Start, EndMS: c.End, Headline: c.Headline, Summary: c.Summary,
		})
	}
	return tr, nil
}

// Delete releases the provider-side transcript.
func (a *AssemblyAI) Delete(ctx context.Context, handle JobHandle) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.baseURL+"/transcript/"+string(handle), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete transcript: status %d", resp.StatusCode)
	}
	return nil
}

func (a *AssemblyAI) getTranscript(ctx context.Context, handle JobHandle) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/transcript/"+string(handle), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", a.apiKey)

	var out transcriptResponse
	if err := a.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("poll transcript: %w", err)
	}
	return &out, nil
}

func (a *AssemblyAI) doJSON(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
