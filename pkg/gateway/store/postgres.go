package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL, runs pending migrations, and returns
// the store.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.IsActive = true

	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, full_name, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) UserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, username, email, full_name, password_hash, is_active, created_at, updated_at
		FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1)`,
		usernameOrEmail,
	))
}

func (p *Postgres) UserByID(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `
		SELECT id, username, email, full_name, password_hash, is_active, created_at, updated_at
		FROM users WHERE id = $1`,
		id,
	))
}

func (p *Postgres) UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE users SET
			email = COALESCE($2, email),
			full_name = COALESCE($3, full_name),
			updated_at = now()
		WHERE id = $1
		RETURNING id, username, email, full_name, password_hash, is_active, created_at, updated_at`,
		id, update.Email, update.FullName,
	)
	u, err := p.scanUser(row)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	return u, err
}

func (p *Postgres) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = "active"
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, room_name, voice_enabled, screen_share_enabled, language, voice_model, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.RoomName,
		s.Config.VoiceEnabled, s.Config.ScreenShareEnabled, s.Config.Language, s.Config.VoiceModel,
		s.Status, s.StartedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *Postgres) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE sessions SET ended_at = $2, status = 'ended'
		WHERE id = $1 AND ended_at IS NULL`,
		id, endedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already ended or missing. Missing is the error case.
		if _, err := p.SessionByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SessionByID(ctx context.Context, id string) (*Session, error) {
	return p.scanSession(p.pool.QueryRow(ctx, `
		SELECT id, user_id, room_name, voice_enabled, screen_share_enabled, language, voice_model, status, started_at, ended_at
		FROM sessions WHERE id = $1`,
		id,
	))
}

func (p *Postgres) SessionsByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, room_name, voice_enabled, screen_share_enabled, language, voice_model, status, started_at, ended_at
		FROM sessions WHERE user_id = $1 ORDER BY started_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := p.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.RoomName,
		&s.Config.VoiceEnabled, &s.Config.ScreenShareEnabled, &s.Config.Language, &s.Config.VoiceModel,
		&s.Status, &s.StartedAt, &s.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

func (p *Postgres) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, text, audio_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Role, m.Text, m.AudioData, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (p *Postgres) MessagesBySession(ctx context.Context, sessionID string) ([]*Message, error) {
	if _, err := p.SessionByID(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, session_id, role, text, audio_data, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := make([]*Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.AudioData, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
