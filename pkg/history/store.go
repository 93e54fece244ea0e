package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

// Store records and queries completed analyses.
type Store interface {
	// Record stores one analysis record.
	Record(ctx context.Context, rec models.AnalysisRecord) error
	// Recent returns the newest records, most recent first.
	Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	// ByPlatform returns per-platform aggregates over all records.
	ByPlatform(ctx context.Context) ([]models.PlatformSummary, error)
	// SentimentBreakdown counts records per sentiment since a given time.
	SentimentBreakdown(ctx context.Context, since time.Time) ([]models.SentimentCount, error)
	// CountSince returns the number of records since a given time.
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// PurgeOlderThan deletes records older than the given number of days.
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteStore implements Store with a SQLite database.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	done          chan struct{}
	wg            sync.WaitGroup
}

const createAnalysesTable = `
CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	word_count INTEGER NOT NULL DEFAULT 0,
	sentiment TEXT NOT NULL,
	confidence REAL NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	provider TEXT NOT NULL,
	cached INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_platform ON analyses(platform);
`

// New opens the history database and runs auto-migration. A positive
// retentionDays starts an hourly purge loop for records past retention.
func New(dbPath string, retentionDays int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createAnalysesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	s := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		done:          make(chan struct{}),
	}

	if retentionDays > 0 {
		s.wg.Add(1)
		go s.retentionLoop()
	}

	return s, nil
}

// Record stores one analysis record.
func (s *SQLiteStore) Record(ctx context.Context, rec models.AnalysisRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (request_id, content_hash, url, platform, content_type, word_count,
		 sentiment, confidence, summary, provider, cached, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.ContentHash, rec.URL, rec.Platform, rec.ContentType, rec.WordCount,
		string(rec.Sentiment), rec.Confidence, rec.Summary, rec.Provider, rec.Cached, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first. Non-positive limits
// default to 20.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, content_hash, url, platform, content_type, word_count,
		 sentiment, confidence, summary, provider, cached, latency_ms, created_at
		 FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent analyses: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		var sentiment string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.ContentHash, &r.URL, &r.Platform, &r.ContentType,
			&r.WordCount, &sentiment, &r.Confidence, &r.Summary, &r.Provider, &r.Cached, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		r.Sentiment = models.Sentiment(sentiment)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ByPlatform returns per-platform aggregates, busiest platform first.
func (s *SQLiteStore) ByPlatform(ctx context.Context) ([]models.PlatformSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, COUNT(*), SUM(cached), AVG(confidence), AVG(word_count)
		 FROM analyses GROUP BY platform ORDER BY COUNT(*) DESC, platform`,
	)
	if err != nil {
		return nil, fmt.Errorf("platform summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.PlatformSummary
	for rows.Next() {
		var p models.PlatformSummary
		var avgWords float64
		if err := rows.Scan(&p.Platform, &p.AnalysisCount, &p.CacheHits, &p.AvgConfidence, &avgWords); err != nil {
			return nil, fmt.Errorf("scan platform summary: %w", err)
		}
		p.AvgWordCount = int(avgWords)
		summaries = append(summaries, p)
	}
	return summaries, rows.Err()
}

// SentimentBreakdown counts records per sentiment since a given time.
func (s *SQLiteStore) SentimentBreakdown(ctx context.Context, since time.Time) ([]models.SentimentCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sentiment, COUNT(*) FROM analyses WHERE created_at >= ?
		 GROUP BY sentiment ORDER BY COUNT(*) DESC, sentiment`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("sentiment breakdown: %w", err)
	}
	defer rows.Close()

	var counts []models.SentimentCount
	for rows.Next() {
		var c models.SentimentCount
		var sentiment string
		if err := rows.Scan(&sentiment, &c.Count); err != nil {
			return nil, fmt.Errorf("scan sentiment count: %w", err)
		}
		c.Sentiment = models.Sentiment(sentiment)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// CountSince returns the number of records since a given time.
func (s *SQLiteStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE created_at >= ?`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes records older than the given number of days and
// reports how many were removed.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention loop and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLiteStore) retentionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_, _ = s.PurgeOlderThan(context.Background(), s.retentionDays)
		}
	}
}
