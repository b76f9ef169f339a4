package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	sqliteMaxOpenConns    = 4
	sqliteMaxIdleConns    = 2
	sqliteConnMaxLifetime = time.Hour
)

// SQLiteStore is the relational Store backed by a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// every pending migration.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info(ctx, "opening database", logger.String("path", path))

	// Connection scoped pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(sqliteMaxOpenConns)
	db.SetMaxIdleConns(sqliteMaxIdleConns)
	db.SetConnMaxLifetime(sqliteConnMaxLifetime)
	s.db = db

	if err := s.optimize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.log.Info(ctx, "database ready")
	return s, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) optimize(ctx context.Context) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"temp_store", "MEMORY"},
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			s.log.Warn(ctx, "failed to set pragma", logger.String("pragma", p.name), logger.Error(err))
			return fmt.Errorf("set PRAGMA %s: %w", p.name, err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, last_activity, completed_games, total_score, user_agent, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, toNanos(sess.CreatedAt), toNanos(sess.LastActivity),
		sess.CompletedGames, sess.TotalScore, sess.UserAgent, sess.IPAddress)
	if err != nil {
		return unavailable("create session", err)
	}
	return nil
}

// GetSession loads one session.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		sess           model.Session
		created, touch int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, last_activity, completed_games, total_score, user_agent, ip_address
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &created, &touch, &sess.CompletedGames, &sess.TotalScore, &sess.UserAgent, &sess.IPAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %s: %w", id, model.ErrSessionNotFound)
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}
	sess.CreatedAt = fromNanos(created)
	sess.LastActivity = fromNanos(touch)
	return &sess, nil
}

// TouchSession refreshes last activity.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return unavailable("touch session", err)
	}
	return requireRow(res, id)
}

// SessionExists reports whether id names a session.
func (s *SQLiteStore) SessionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("session exists", err)
	}
	return true, nil
}

// InsertEvent appends an event and updates the session row in one transaction.
func (s *SQLiteStore) InsertEvent(ctx context.Context, e *model.GameEvent) error {
	var data []byte
	if len(e.Data) > 0 {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("%w: encode data: %v", model.ErrInvalidEvent, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin insert event", err)
	}
	defer func() { _ = tx.Rollback() }()

	var games, score int
	if e.IsCompletion() {
		games, score = 1, e.Score
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET completed_games = completed_games + ?, total_score = total_score + ?, last_activity = ?
		WHERE id = ?`, games, score, toNanos(e.CreatedAt), e.SessionID)
	if err != nil {
		return unavailable("bump session", err)
	}
	if err := requireRow(res, e.SessionID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_events
			(id, session_id, game_id, event_type, score, time_spent_seconds, hints_used, client_event_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.GameID.String(), e.Type.String(),
		e.Score, e.TimeSpentSeconds, e.HintsUsed,
		nullString(e.ClientEventID), nullBytes(data), toNanos(e.CreatedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("insert event %q: %w", e.ClientEventID, model.ErrDuplicateEvent)
		}
		return unavailable("insert event", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit insert event", err)
	}
	return nil
}

const eventColumns = `id, session_id, game_id, event_type, score, time_spent_seconds, hints_used, client_event_id, data, created_at`

// QueryCompletedEvents returns completions oldest first.
func (s *SQLiteStore) QueryCompletedEvents(ctx context.Context, sessionID string) ([]model.GameEvent, error) {
	return s.queryEvents(ctx, "query completed events", `
		SELECT `+eventColumns+` FROM game_events
		WHERE session_id = ? AND event_type = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID, model.EventGameCompleted.String())
}

// History returns every event newest first.
func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]model.GameEvent, error) {
	return s.queryEvents(ctx, "history", `
		SELECT `+eventColumns+` FROM game_events
		WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC`, sessionID)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, op, query string, args ...any) ([]model.GameEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []model.GameEvent
	for rows.Next() {
		var (
			e             model.GameEvent
			game, typ     string
			clientEventID sql.NullString
			data          []byte
			created       int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &game, &typ, &e.Score, &e.TimeSpentSeconds, &e.HintsUsed,
			&clientEventID, &data, &created); err != nil {
			return nil, unavailable(op, err)
		}
		if e.GameID, err = model.ParseGameID(game); err != nil {
			return nil, fmt.Errorf("%s: stored event %s: %w", op, e.ID, err)
		}
		if e.Type, err = model.ParseEventType(typ); err != nil {
			return nil, fmt.Errorf("%s: stored event %s: %w", op, e.ID, err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("%s: stored event %s data: %w", op, e.ID, err)
			}
		}
		e.ClientEventID = clientEventID.String
		e.CreatedAt = fromNanos(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// UpsertSnapshot replaces the snapshot row of the session.
func (s *SQLiteStore) UpsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	var dominant, confidence sql.NullString
	if snap.Dominant.Valid() {
		dominant = sql.NullString{String: snap.Dominant.String(), Valid: true}
	}
	if snap.Confidence.Valid() {
		confidence = sql.NullString{String: snap.Confidence.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO affinity_snapshots
			(session_id, mathematics_score, science_score, technology_score, engineering_score,
			 dominant_domain, confidence_label, confidence_fraction, total_games, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			mathematics_score   = excluded.mathematics_score,
			science_score       = excluded.science_score,
			technology_score    = excluded.technology_score,
			engineering_score   = excluded.engineering_score,
			dominant_domain     = excluded.dominant_domain,
			confidence_label    = excluded.confidence_label,
			confidence_fraction = excluded.confidence_fraction,
			total_games         = excluded.total_games,
			calculated_at       = excluded.calculated_at`,
		snap.SessionID,
		snap.Scores.Mathematics, snap.Scores.Science, snap.Scores.Technology, snap.Scores.Engineering,
		dominant, confidence, snap.ConfidenceFraction, snap.TotalGames, toNanos(snap.CalculatedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("upsert snapshot %s: %w", snap.SessionID, model.ErrSessionNotFound)
		}
		return unavailable("upsert snapshot", err)
	}
	return nil
}

// GetSnapshot loads the snapshot of a session.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	var (
		snap                 model.Snapshot
		dominant, confidence sql.NullString
		calculated           int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, mathematics_score, science_score, technology_score, engineering_score,
		       dominant_domain, confidence_label, confidence_fraction, total_games, calculated_at
		FROM affinity_snapshots WHERE session_id = ?`, sessionID).
		Scan(&snap.SessionID,
			&snap.Scores.Mathematics, &snap.Scores.Science, &snap.Scores.Technology, &snap.Scores.Engineering,
			&dominant, &confidence, &snap.ConfidenceFraction, &snap.TotalGames, &calculated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", sessionID, model.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get snapshot", err)
	}

	if dominant.Valid {
		if snap.Dominant, err = model.ParseDomain(dominant.String); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", sessionID, err)
		}
	}
	if confidence.Valid {
		if snap.Confidence, err = model.ParseConfidence(confidence.String); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", sessionID, err)
		}
	}
	snap.CalculatedAt = fromNanos(calculated)
	return &snap, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, model.ErrSessionNotFound)
	}
	return nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
