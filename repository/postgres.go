package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/stark-secure/starkmole-integrity/models"
)

// ConnectPostgreSQL opens and pings a Postgres connection from discrete
// config values.
func ConnectPostgreSQL(host, port, user, password, dbname string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresSessionStore persists sessions in a single table with the action
// stream, metadata and check snapshot as JSONB columns.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `id, user_id, puzzle_id, module_id, session_type, status,
    started_at, ended_at, duration_ms, score, max_possible_score,
    actions, metadata, checks, signature, created_at, updated_at`

func (p *PostgresSessionStore) Create(ctx context.Context, session *models.GameSession) error {
	actions, metadata, checks, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO game_sessions (`+sessionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		session.ID, session.UserID, session.PuzzleID, session.ModuleID, session.SessionType,
		string(session.Status), session.StartedAt, session.EndedAt, session.Duration,
		session.Score, session.MaxPossibleScore, actions, metadata, checks,
		session.Signature, session.CreatedAt, session.UpdatedAt)
	return err
}

func (p *PostgresSessionStore) Get(ctx context.Context, id string) (*models.GameSession, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return session, err
}

func (p *PostgresSessionStore) Update(ctx context.Context, session *models.GameSession) error {
	actions, metadata, checks, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `UPDATE game_sessions SET
        status = $2, ended_at = $3, duration_ms = $4, score = $5, max_possible_score = $6,
        actions = $7, metadata = $8, checks = $9, signature = $10, updated_at = $11
        WHERE id = $1`,
		session.ID, string(session.Status), session.EndedAt, session.Duration,
		session.Score, session.MaxPossibleScore, actions, metadata, checks,
		session.Signature, session.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresSessionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.GameSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM game_sessions
        WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.GameSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func marshalSessionBlobs(session *models.GameSession) ([]byte, []byte, []byte, error) {
	actions, err := json.Marshal(session.Actions)
	if err != nil {
		return nil, nil, nil, err
	}
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return nil, nil, nil, err
	}
	checks, err := json.Marshal(session.Checks)
	if err != nil {
		return nil, nil, nil, err
	}
	return actions, metadata, checks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.GameSession, error) {
	var session models.GameSession
	var status string
	var endedAt sql.NullTime
	var actions, metadata, checks []byte
	err := row.Scan(&session.ID, &session.UserID, &session.PuzzleID, &session.ModuleID,
		&session.SessionType, &status, &session.StartedAt, &endedAt, &session.Duration,
		&session.Score, &session.MaxPossibleScore, &actions, &metadata, &checks,
		&session.Signature, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}
	session.Status = models.SessionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	if err := json.Unmarshal(actions, &session.Actions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(checks, &session.Checks); err != nil {
		return nil, err
	}
	return &session, nil
}
