package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PedroOSilv/meetResume/internal/session"
)

// ErrNotFound is returned when no archived session has the requested id
var ErrNotFound = errors.New("archived session not found")

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		transcript TEXT NOT NULL,
		analysis TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		chunkCount INTEGER NOT NULL,
		totalBytes INTEGER NOT NULL,
		startedAt REAL NOT NULL,
		finalizedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		chunkIndex INTEGER NOT NULL,
		text TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		receivedAt REAL NOT NULL,
		PRIMARY KEY (sessionId, chunkIndex)
	);
`

// Record is an archived session
type Record struct {
	SessionID   string        `json:"sessionId"`
	Transcript  string        `json:"fullTranscript"`
	Analysis    string        `json:"analysis"`
	Degraded    bool          `json:"degraded"`
	ChunkCount  int           `json:"chunkCount"`
	TotalBytes  int64         `json:"totalBytes"`
	StartedAt   time.Time     `json:"startedAt"`
	FinalizedAt time.Time     `json:"finalizedAt"`
	Chunks      []ChunkRecord `json:"chunks,omitempty"`
}

// ChunkRecord is one archived chunk transcription
type ChunkRecord struct {
	Index      int       `json:"chunkIndex"`
	Text       string    `json:"text"`
	Bytes      int64     `json:"bytes"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// SQLiteArchive stores finalized sessions in SQLite
type SQLiteArchive struct {
	db *sql.DB
}

// Open opens or creates the archive at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*SQLiteArchive, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create archive dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// Archive stores a finalized session, replacing any earlier copy
func (a *SQLiteArchive) Archive(ctx context.Context, s *session.Session, result *session.FinalResult) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE sessionId = ?`, result.SessionID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	finalizedAt := s.CreatedAt.Add(result.Duration)
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, transcript, analysis, degraded, chunkCount, totalBytes, startedAt, finalizedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.SessionID, result.FullTranscript, result.Analysis, result.Degraded,
		result.CompressionStats.ChunkCount, result.CompressionStats.TotalBytes,
		unixFromTime(s.CreatedAt), unixFromTime(finalizedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, idx := range s.Indexes() {
		c := s.Chunks[idx]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (sessionId, chunkIndex, text, bytes, receivedAt)
			VALUES (?, ?, ?, ?, ?)
		`, result.SessionID, c.Index, c.Text, c.Bytes, unixFromTime(c.ReceivedAt)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns an archived session with its chunks in index order
func (a *SQLiteArchive) Get(ctx context.Context, id string) (*Record, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, transcript, analysis, degraded, chunkCount, totalBytes, startedAt, finalizedAt
		FROM sessions
		WHERE id = ?
	`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT chunkIndex, text, bytes, receivedAt
		FROM chunks
		WHERE sessionId = ?
		ORDER BY chunkIndex ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ChunkRecord
		var receivedAt float64
		if err := rows.Scan(&c.Index, &c.Text, &c.Bytes, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.ReceivedAt = timeFromUnix(receivedAt)
		r.Chunks = append(r.Chunks, c)
	}
	return r, rows.Err()
}

// Recent returns the most recently finalized sessions without their chunks
func (a *SQLiteArchive) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, transcript, analysis, degraded, chunkCount, totalBytes, startedAt, finalizedAt
		FROM sessions
		ORDER BY finalizedAt DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var startedAt, finalizedAt float64
	if err := row.Scan(&r.SessionID, &r.Transcript, &r.Analysis, &r.Degraded,
		&r.ChunkCount, &r.TotalBytes, &startedAt, &finalizedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	r.StartedAt = timeFromUnix(startedAt)
	r.FinalizedAt = timeFromUnix(finalizedAt)
	return &r, nil
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
