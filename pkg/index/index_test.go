package index

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(Config{Path: filepath.Join(t.TempDir(), "index.db")})
	if err := ix.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func testRecord(videoID, platform, channel, text string) Record {
	return Record{
		VideoID:        videoID,
		Platform:       platform,
		URL:            "https://example.com/" + videoID,
		Title:          "Title " + videoID,
		Channel:        channel,
		Path:           "/data/transcripts/" + platform + "/" + channel + "/" + videoID,
		WordCount:      100,
		DurationSec:    300,
		TranscriptText: text,
	}
}

func TestIndex_AddAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	rec := testRecord("vid1", "youtube", "chan", "the quick brown fox jumps")
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(ctx, "quick", SearchFilter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].VideoID != "vid1" {
		t.Errorf("Expected video id 'vid1', got %q", results[0].VideoID)
	}
	if results[0].Path != rec.Path {
		t.Errorf("Expected path %q, got %q", rec.Path, results[0].Path)
	}
}

func TestIndex_Search_AbsentToken(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, testRecord("vid1", "youtube", "chan", "some transcript")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(ctx, "zebra", SearchFilter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %d", len(results))
	}
}

func TestIndex_Search_ChapterHeadlineOnly(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	// Token appears only in the chapter headline, not the transcript body.
	rec := testRecord("vid1", "youtube", "chan", "plain body words")
	rec.ChapterText = "Kubernetes networking deep dive"
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(ctx, "kubernetes", SearchFilter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected chapter-only token to match, got %d results", len(results))
	}
}

func TestIndex_Search_PlatformFilterIsHard(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, testRecord("yt1", "youtube", "chan", "shared token")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Add(ctx, testRecord("vm1", "vimeo", "chan", "shared token shared token shared")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// The vimeo row scores higher but must never appear under the filter.
	results, err := ix.Search(ctx, "shared", SearchFilter{Platform: "youtube"}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Platform != "youtube" {
		t.Errorf("Expected only youtube results, got platform %q", results[0].Platform)
	}
}

func TestIndex_Search_ChannelFilter(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, testRecord("a1", "youtube", "Lex Fridman", "token here")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Add(ctx, testRecord("b1", "youtube", "Other", "token here")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := ix.Search(ctx, "token", SearchFilter{Channel: "Fridman"}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].VideoID != "a1" {
		t.Errorf("Expected video 'a1', got %q", results[0].VideoID)
	}
}

func TestIndex_Add_NoDuplicateAccumulation(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	rec := testRecord("vid1", "youtube", "chan", "repeated indexing token")
	for i := 0; i < 3; i++ {
		if err := ix.Add(ctx, rec); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}

	results, err := ix.Search(ctx, "repeated", SearchFilter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after re-adds, got %d", len(results))
	}

	st, err := ix.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalTranscripts != 1 {
		t.Errorf("Expected 1 indexed transcript, got %d", st.TotalTranscripts)
	}
}

func TestIndex_Add_UpdatesChangedFields(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	rec := testRecord("vid1", "youtube", "chan", "original text")
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	rec.TranscriptText = "replacement text"
	rec.Title = "New Title"
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Re-add failed: %v", err)
	}

	// Old postings are gone, new ones searchable.
	if results, _ := ix.Search(ctx, "original", SearchFilter{}, 10); len(results) != 0 {
		t.Errorf("Expected stale token to be gone, got %d results", len(results))
	}
	results, err := ix.Search(ctx, "replacement", SearchFilter{}, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result for new token, got %d", len(results))
	}
	if results[0].Title != "New Title" {
		t.Errorf("Expected updated title, got %q", results[0].Title)
	}
}

func TestIndex_Lookup(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	rec := testRecord("vid1", "youtube", "chan", "text")
	if err := ix.Add(ctx, rec); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	path, err := ix.Lookup(ctx, "vid1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if path != rec.Path {
		t.Errorf("Expected path %q, got %q", rec.Path, path)
	}

	missing, err := ix.Lookup(ctx, "nope")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if missing != "" {
		t.Errorf("Expected empty path for unknown video, got %q", missing)
	}
}

func TestIndex_Remove(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, testRecord("vid1", "youtube", "chan", "findable token")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Remove(ctx, "vid1", "youtube"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if results, _ := ix.Search(ctx, "findable", SearchFilter{}, 10); len(results) != 0 {
		t.Errorf("Expected no results after remove, got %d", len(results))
	}

	// Removing an absent row is a no-op.
	if err := ix.Remove(ctx, "vid1", "youtube"); err != nil {
		t.Errorf("Expected nil removing absent row, got %v", err)
	}
}

func TestIndex_ReindexAll_FixedPoint(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	// Seed with a row that reindex should drop.
	if err := ix.Add(ctx, testRecord("stale", "youtube", "chan", "stale token")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	recs := []Record{
		testRecord("vid1", "youtube", "chan", "alpha content"),
		testRecord("vid2", "vimeo", "chan", "beta content"),
	}

	for pass := 0; pass < 2; pass++ {
		n, err := ix.ReindexAll(ctx, recs)
		if err != nil {
			t.Fatalf("ReindexAll pass %d failed: %v", pass, err)
		}
		if n != 2 {
			t.Fatalf("Expected 2 records indexed, got %d", n)
		}

		st, err := ix.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if st.TotalTranscripts != 2 {
			t.Fatalf("Expected 2 transcripts after pass %d, got %d", pass, st.TotalTranscripts)
		}
	}

	if results, _ := ix.Search(ctx, "stale", SearchFilter{}, 10); len(results) != 0 {
		t.Errorf("Expected stale row to be dropped, got %d results", len(results))
	}
	if results, _ := ix.Search(ctx, "alpha", SearchFilter{}, 10); len(results) != 1 {
		t.Errorf("Expected reindexed row to be searchable, got %d results", len(results))
	}
}

func TestIndex_Stats(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, testRecord("a", "youtube", "ChanOne", "x")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Add(ctx, testRecord("b", "youtube", "ChanTwo", "y")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ix.Add(ctx, testRecord("c", "vimeo", "ChanOne", "z")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	st, err := ix.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if st.TotalTranscripts != 3 {
		t.Errorf("Expected 3 transcripts, got %d", st.TotalTranscripts)
	}
	if st.UniqueChannels != 2 {
		t.Errorf("Expected 2 unique channels, got %d", st.UniqueChannels)
	}
	if st.UniquePlatforms != 2 {
		t.Errorf("Expected 2 unique platforms, got %d", st.UniquePlatforms)
	}
	if st.TotalDurationSec != 900 {
		t.Errorf("Expected total duration 900, got %d", st.TotalDurationSec)
	}
	if st.TotalWords != 300 {
		t.Errorf("Expected 300 total words, got %d", st.TotalWords)
	}
	if st.PlatformCounts["youtube"] != 2 {
		t.Errorf("Expected 2 youtube transcripts, got %d", st.PlatformCounts["youtube"])
	}
	if st.ChannelCounts["ChanOne"] != 2 {
		t.Errorf("Expected 2 ChanOne transcripts, got %d", st.ChannelCounts["ChanOne"])
	}
}
