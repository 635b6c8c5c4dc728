package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/DigiBugCat/yt-cli/pkg/domain"
)

// Config holds configuration for the search index database.
type Config struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string
}

// Index maintains the derived full-text index over stored transcripts.
//
// The index is never the source of truth: every row is reconstructible from
// the storage tree via ReindexAll. It is a thin wrapper around a sql.DB
// handle, SQLite with the FTS5 extension underneath.
type Index struct {
	db  *sql.DB
	cfg Config
}

// New constructs an index client. Connect must be called before use.
func New(cfg Config) *Index {
	return &Index{cfg: cfg}
}

// Connect opens the database, applies pragmas, and ensures the schema.
func (ix *Index) Connect(ctx context.Context) error {
	if ix.cfg.Path == "" {
		return fmt.Errorf("index database path is required")
	}

	dsn := ix.cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open index database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping index database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("init index schema: %w", err)
	}

	ix.db = db
	return nil
}

// Close closes the underlying database handle.
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// DB exposes the underlying handle for query/exec operations.
func (ix *Index) DB() *sql.DB {
	return ix.db
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL,
    platform TEXT NOT NULL,
    url TEXT,
    title TEXT,
    channel TEXT,
    channel_handle TEXT,
    channel_id TEXT,
    duration INTEGER,
    upload_date TEXT,
    description TEXT,
    path TEXT NOT NULL,
    speaker_count INTEGER,
    word_count INTEGER,
    confidence REAL,
    transcribed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(video_id, platform)
);

CREATE VIRTUAL TABLE IF NOT EXISTS transcripts_fts USING fts5(
    title,
    channel,
    description,
    transcript_text,
    chapter_text
);
`

// Record is the derived index projection of one storage entry.
type Record struct {
	VideoID        string
	Platform       string
	URL            string
	Title          string
	Channel        string
	ChannelHandle  string
	ChannelID      string
	DurationSec    int64
	UploadDate     string
	Description    string
	Path           string
	SpeakerCount   int
	WordCount      int
	Confidence     float64
	TranscriptText string
	ChapterText    string
}

// RecordFromDoc derives an index record from a transcript document and its
// entry directory.
func RecordFromDoc(doc *domain.TranscriptDoc, entryDir string) Record {
	return Record{
		VideoID:        doc.Video.VideoID,
		Platform:       doc.Video.Platform,
		URL:            doc.Video.URL,
		Title:          doc.Video.Title,
		Channel:        doc.Video.Channel,
		ChannelHandle:  doc.Video.ChannelHandle,
		ChannelID:      doc.Video.ChannelID,
		DurationSec:    doc.Video.DurationSec,
		UploadDate:     doc.Video.UploadDate,
		Description:    doc.Video.Description,
		Path:           entryDir,
		SpeakerCount:   doc.Transcript.SpeakerCount(),
		WordCount:      len(strings.Fields(doc.Transcript.Text)),
		Confidence:     doc.Transcript.Confidence,
		TranscriptText: doc.Transcript.Text,
		ChapterText:    doc.Transcript.ChapterText(),
	}
}

// Add indexes a record, replacing any prior postings for the same
// (video_id, platform). Re-adding the same entry never accumulates
// duplicates.
func (ix *Index) Add(ctx context.Context, rec Record) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	if err := addInTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	return nil
}

func addInTx(ctx context.Context, tx *sql.Tx, rec Record) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO transcripts
            (video_id, platform, url, title, channel, channel_handle, channel_id,
             duration, upload_date, description, path, speaker_count, word_count, confidence)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(video_id, platform) DO UPDATE SET
            url = excluded.url,
            title = excluded.title,
            channel = excluded.channel,
            channel_handle = excluded.channel_handle,
            channel_id = excluded.channel_id,
            duration = excluded.duration,
            upload_date = excluded.upload_date,
            description = excluded.description,
            path = excluded.path,
            speaker_count = excluded.speaker_count,
            word_count = excluded.word_count,
            confidence = excluded.confidence,
            transcribed_at = CURRENT_TIMESTAMP`,
		rec.VideoID, rec.Platform, rec.URL, rec.Title, rec.Channel, rec.ChannelHandle,
		rec.ChannelID, rec.DurationSec, rec.UploadDate, rec.Description, rec.Path,
		rec.SpeakerCount, rec.WordCount, rec.Confidence)
	if err != nil {
		return fmt.Errorf("upsert transcript row: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM transcripts WHERE video_id = ? AND platform = ?`,
		rec.VideoID, rec.Platform).Scan(&id)
	if err != nil {
		return fmt.Errorf("resolve transcript row id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("drop prior postings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO transcripts_fts (rowid, title, channel, description, transcript_text, chapter_text)
        VALUES (?, ?, ?, ?, ?, ?)`,
		id, rec.Title, rec.Channel, rec.Description, rec.TranscriptText, rec.ChapterText)
	if err != nil {
		return fmt.Errorf("insert postings: %w", err)
	}
	return nil
}

// SearchFilter applies as a hard predicate: rows not matching the filter
// never appear regardless of text score. Empty fields match everything.
type SearchFilter struct {
	Platform string
	Channel  string
}

// SearchResult is one ranked query hit.
type SearchResult struct {
	VideoID     string
	Platform    string
	Title       string
	Channel     string
	Path        string
	URL         string
	DurationSec int64
	UploadDate  string
	Snippet     string
}

// Search evaluates a ranked full-text query. Ranking is FTS5 bm25
// (monotonic in match count) with publish-date recency as the tiebreak.
func (ix *Index) Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	// Quote the query so user input cannot invoke FTS5 operators.
	escaped := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`

	q := `
        SELECT
            t.video_id, t.platform, t.title, t.channel, t.path,
            COALESCE(t.url, ''), COALESCE(t.duration, 0), COALESCE(t.upload_date, ''),
            snippet(transcripts_fts, 3, '>>> ', ' <<<', '...', 32)
        FROM transcripts_fts
        JOIN transcripts t ON transcripts_fts.rowid = t.id
        WHERE transcripts_fts MATCH ?`
	args := []any{escaped}

	if filter.Platform != "" {
		q += ` AND t.platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.Channel != "" {
		q += ` AND t.channel LIKE ?`
		args = append(args, "%"+filter.Channel+"%")
	}
	q += ` ORDER BY rank, t.upload_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.VideoID, &r.Platform, &r.Title, &r.Channel, &r.Path,
			&r.URL, &r.DurationSec, &r.UploadDate, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return results, nil
}

// Lookup returns the stored entry path for a video id, or "" when the video
// is not indexed.
func (ix *Index) Lookup(ctx context.Context, videoID string) (string, error) {
	var path string
	err := ix.db.QueryRowContext(ctx,
		`SELECT path FROM transcripts WHERE video_id = ?`, videoID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup video: %w", err)
	}
	return path, nil
}

// Remove deletes a video's row and postings. Used when the query layer
// detects the index referencing a missing entry.
func (ix *Index) Remove(ctx context.Context, videoID, platform string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM transcripts WHERE video_id = ? AND platform = ?`,
		videoID, platform).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve transcript row id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("drop postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("drop transcript row: %w", err)
	}
	return tx.Commit()
}

// ReindexAll drops the entire index and rebuilds it from the given records
// in one transaction, so concurrent read-only queries see either the old or
// the new index, never a torn one. Returns the number of records indexed.
func (ix *Index) ReindexAll(ctx context.Context, recs []Record) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reindex tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts_fts`); err != nil {
		return 0, fmt.Errorf("drop postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts`); err != nil {
		return 0, fmt.Errorf("drop transcripts: %w", err)
	}

	for _, rec := range recs {
		if err := addInTx(ctx, tx, rec); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reindex tx: %w", err)
	}
	return len(recs), nil
}

// Stats summarizes the indexed corpus.
type Stats struct {
	TotalTranscripts int64
	UniqueChannels   int64
	UniquePlatforms  int64
	TotalDurationSec int64
	TotalWords       int64
	PlatformCounts   map[string]int64
	ChannelCounts    map[string]int64
}

// Stats computes aggregate statistics over the indexed transcripts.
func (ix *Index) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		PlatformCounts: make(map[string]int64),
		ChannelCounts:  make(map[string]int64),
	}

	err := ix.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COUNT(DISTINCT channel), COUNT(DISTINCT platform),
               COALESCE(SUM(duration), 0), COALESCE(SUM(word_count), 0)
        FROM transcripts`).Scan(
		&st.TotalTranscripts, &st.UniqueChannels, &st.UniquePlatforms,
		&st.TotalDurationSec, &st.TotalWords)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}

	if err := ix.countsInto(ctx, `SELECT platform, COUNT(*) FROM transcripts GROUP BY platform`, st.PlatformCounts); err != nil {
		return nil, err
	}
	if err := ix.countsInto(ctx, `SELECT channel, COUNT(*) FROM transcripts GROUP BY channel`, st.ChannelCounts); err != nil {
		return nil, err
	}
	return st, nil
}

func (ix *Index) countsInto(ctx context.Context, query string, dst map[string]int64) error {
	rows, err := ix.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("stats group query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan stats row: %w", err)
		}
		dst[key] = n
	}
	return rows.Err()
}
