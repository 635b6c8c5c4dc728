package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// fakeAssemblyAI is a minimal stand-in for the provider API.
type fakeAssemblyAI struct {
	t          *testing.T
	apiKey     string
	pollCount  atomic.Int32
	pollsUntil int32 // polls returning "processing" before "completed"
	deleted    atomic.Bool
	failStatus string // when non-empty, poll returns this status
	failError  string
}

func (f *fakeAssemblyAI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != f.apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio-1"})
	})

	mux.HandleFunc("/transcript", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req["audio_url"] != "https://cdn.example/audio-1" {
			f.t.Errorf("Expected uploaded audio URL, got %v", req["audio_url"])
		}
		if req["speaker_labels"] != true || req["auto_chapters"] != true {
			f.t.Errorf("Expected speaker_labels and auto_chapters enabled, got %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "job-42", "status": "queued"})
	})

	mux.HandleFunc("/transcript/job-42", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.deleted.Store(true)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if f.failStatus != "" {
			json.NewEncoder(w).Encode(map[string]string{
				"id": "job-42", "status": f.failStatus, "error": f.failError,
			})
			return
		}
		n := f.pollCount.Add(1)
		if n <= f.pollsUntil {
			json.NewEncoder(w).Encode(map[string]string{"id": "job-42", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-42",
			"status": "completed",
			"text":   "Hello there. General Kenobi.",
			"utterances": []map[string]any{
				{"speaker": "A", "text": "Hello there.", "start": 0, "end": 1200},
				{"speaker": "B", "text": "General Kenobi.", "start": 1200, "end": 2400},
			},
			"chapters": []map[string]any{
				{"start": 0, "end": 2400, "headline": "Greetings", "summary": "An exchange."},
			},
			"confidence":     0.93,
			"audio_duration": 3,
		})
	})

	return mux
}

func writeAudioFixture(t *testing.T) domain.AudioAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(path, []byte("fake-mp3"), 0o644); err != nil {
		t.Fatalf("Failed to write audio fixture: %v", err)
	}
	return domain.AudioAsset{LocalPath: path, Format: "mp3", SizeBytes: 8}
}

func TestAssemblyAI_FullFlow(t *testing.T) {
	fake := &fakeAssemblyAI{t: t, apiKey: "test-key", pollsUntil: 2}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewAssemblyAIWithBaseURL("test-key", server.URL)
	ctx := context.Background()

	handle, err := client.Upload(ctx, writeAudioFixture(t))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if handle != "job-42" {
		t.Fatalf("Expected handle 'job-42', got %q", handle)
	}

	// First polls report processing, then the job completes.
	for i := 0; i < 2; i++ {
		status, err := client.PollStatus(ctx, handle)
		if err != nil {
			t.Fatalf("PollStatus failed: %v", err)
		}
		if status != StatusProcessing {
			t.Fatalf("Expected processing on poll %d, got %q", i, status)
		}
	}
	status, err := client.PollStatus(ctx, handle)
	if err != nil {
		t.Fatalf("PollStatus failed: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("Expected completed, got %q", status)
	}

	result, err := client.FetchResult(ctx, handle)
	if err != nil {
		t.Fatalf("FetchResult failed: %v", err)
	}
	if result.Text != "Hello there. General Kenobi." {
		t.Errorf("Expected full text, got %q", result.Text)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(result.Utterances))
	}
	if result.Utterances[1].Speaker != "B" || result.Utterances[1].StartMS != 1200 {
		t.Errorf("Unexpected second utterance: %+v", result.Utterances[1])
	}
	if len(result.Chapters) != 1 || result.Chapters[0].Headline != "Greetings" {
		t.Errorf("Expected chapter data, got %+v", result.Chapters)
	}
	if result.SpeakerCount() != 2 {
		t.Errorf("Expected 2 speakers, got %d", result.SpeakerCount())
	}

	if err := client.Delete(ctx, handle); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !fake.deleted.Load() {
		t.Error("Expected delete to reach the server")
	}
}

func TestAssemblyAI_PollStatus_ProviderError(t *testing.T) {
	fake := &fakeAssemblyAI{t: t, apiKey: "k", failStatus: "error", failError: "audio unreadable"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewAssemblyAIWithBaseURL("k", server.URL)

	status, err := client.PollStatus(context.Background(), "job-42")
	if status != StatusError {
		t.Errorf("Expected StatusError, got %q", status)
	}
	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("Expected PermanentError, got %v", err)
	}
	if !strings.Contains(perm.Message, "audio unreadable") {
		t.Errorf("Expected provider message, got %q", perm.Message)
	}
}

func TestAssemblyAI_Upload_Unauthorized(t *testing.T) {
	fake := &fakeAssemblyAI{t: t, apiKey: "right-key"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := NewAssemblyAIWithBaseURL("wrong-key", server.URL)

	_, err := client.Upload(context.Background(), writeAudioFixture(t))
	if err == nil {
		t.Fatal("Expected error for bad API key, got nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected 401 in error, got: %v", err)
	}
}

func TestAssemblyAI_Upload_MissingAudioFile(t *testing.T) {
	client := NewAssemblyAIWithBaseURL("k", "http://127.0.0.1:1")

	_, err := client.Upload(context.Background(), domain.AudioAsset{LocalPath: "/nonexistent/audio.mp3"})
	if err == nil {
		t.Fatal("Expected error for missing audio file, got nil")
	}
}
