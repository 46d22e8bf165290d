package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pairmux/internal/config"
)

// Store manages merge history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "history.db"))
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin inserts a new record for a merge that is about to run.
func (s *Store) Begin(ctx context.Context, sessionKey string, source Source, videoPath, audioPath, outputPath string) (*Record, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO merge_records (
            session_key, source, video_path, audio_path, output_path,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionKey,
		source,
		nullableString(videoPath),
		nullableString(audioPath),
		nullableString(outputPath),
		StatusMerging,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert merge record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Complete marks a record as successfully merged.
func (s *Store) Complete(ctx context.Context, id int64, outputPath string) error {
	return s.finish(ctx, id, StatusCompleted, outputPath, "")
}

// Fail marks a record as failed with the given reason.
func (s *Store) Fail(ctx context.Context, id int64, reason string) error {
	return s.finish(ctx, id, StatusFailed, "", reason)
}

func (s *Store) finish(ctx context.Context, id int64, status Status, outputPath, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE merge_records
         SET status = ?, output_path = COALESCE(?, output_path),
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		status,
		nullableString(outputPath),
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish merge record: %w", err)
	}
	return nil
}

// GetByID fetches a record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM merge_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get merge record: %w", err)
	}
	return record, nil
}

// List returns records filtered by status set (or all records when no
// status is provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM merge_records`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list merge records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM merge_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes all merge records.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM merge_records`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// MarkCaptureProcessed records that a capture file has been handled so it
// is not reprocessed after a restart.
func (s *Store) MarkCaptureProcessed(ctx context.Context, captureKey string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO processed_captures (capture_key, processed_at) VALUES (?, ?)
         ON CONFLICT (capture_key) DO NOTHING`,
		captureKey,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("mark capture processed: %w", err)
	}
	return nil
}

// CaptureProcessed reports whether a capture file was handled before.
func (s *Store) CaptureProcessed(ctx context.Context, captureKey string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM processed_captures WHERE capture_key = ?`, captureKey)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("lookup processed capture: %w", err)
	}
	return count > 0, nil
}

const recordColumns = "id, session_key, source, video_path, audio_path, output_path, status, error_message, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           int64
		sessionKey   string
		source       string
		videoPath    sql.NullString
		audioPath    sql.NullString
		outputPath   sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&sessionKey,
		&source,
		&videoPath,
		&audioPath,
		&outputPath,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		SessionKey:   sessionKey,
		Source:       Source(source),
		VideoPath:    videoPath.String,
		AudioPath:    audioPath.String,
		OutputPath:   outputPath.String,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
