package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver used by goose
	"github.com/pressly/goose/v3"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres is a Store backed by a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres applies pending migrations and connects a pool to dsn
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if err := RunMigrations(ctx, dsn); err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrStoreUnavailable, "Failed to migrate database", err)
	}

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrStoreUnavailable, "Failed to connect to database", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPool creates and pings a connection pool
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// RunMigrations applies all pending migrations from the embedded SQL files
func RunMigrations(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Postgres) GetMessage(ctx context.Context, key, room string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	var eventID string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id FROM matrix_message
		WHERE message_key = $1 AND room_id = $2`, key, room).Scan(&eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storeError("get message", err).WithContext("message_key", key)
	}
	return eventID, true, nil
}

func (s *Postgres) PutMessage(ctx context.Context, key, room, messageID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matrix_message (message_key, room_id, event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_key, room_id)
		DO UPDATE SET event_id = EXCLUDED.event_id, updated_at = now()`,
		key, room, messageID,
	)
	if err != nil {
		return storeError("put message", err).WithContext("message_key", key)
	}
	return nil
}

func (s *Postgres) GetWebhookRoom(ctx context.Context, token string) (string, bool, error) {
	var room string
	err := s.pool.QueryRow(ctx, `
		SELECT room_id FROM webhook_token WHERE secret = $1`, token).Scan(&room)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storeError("get webhook room", err)
	}
	return room, true, nil
}

func (s *Postgres) AddWebhookRoom(ctx context.Context, binding Binding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_token (secret, room_id, project)
		VALUES ($1, $2, $3)
		ON CONFLICT (secret)
		DO UPDATE SET room_id = EXCLUDED.room_id, project = EXCLUDED.project`,
		binding.Token, binding.Room, binding.Project,
	)
	if err != nil {
		return storeError("add webhook room", err).WithContext("room_id", binding.Room)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.NewErrorWithCause(apperrors.ErrStoreUnavailable, "Database is unreachable", err)
	}
	return nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func storeError(op string, err error) *apperrors.AppError {
	return apperrors.NewErrorWithCause(apperrors.ErrStoreFailed, fmt.Sprintf("Failed to %s", op), err)
}
