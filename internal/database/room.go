package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/wordclue/internal/models"
)

// PostgresStore implements Store on top of a pgx pool.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: pool}
}

// CreateRoom inserts a new room row.
func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	order, choices, err := encodeRoomJSON(room)
	if err != nil {
		return err
	}

	q := `
	INSERT INTO rooms (
		code, player_order, total_rounds, completed_rounds,
		turn_index, cycle, word_choices, is_active, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err = pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			room.Code, order, room.TotalRounds, room.CompletedRounds,
			room.TurnIndex, room.Cycle, choices, room.IsActive, room.CreatedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert room %s: %w", room.Code, mapPgError(err))
	}
	return nil
}

// GetRoom fetches a room by code.
func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var (
		r       models.Room
		order   []byte
		choices []byte
	)
	q := `
	SELECT code, player_order, total_rounds, completed_rounds,
	       turn_index, cycle, word_choices, is_active, created_at
	FROM rooms
	WHERE code = $1
	`
	err := s.DB.QueryRow(ctx, q, code).Scan(
		&r.Code, &order, &r.TotalRounds, &r.CompletedRounds,
		&r.TurnIndex, &r.Cycle, &choices, &r.IsActive, &r.CreatedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	if len(order) > 0 {
		if err := json.Unmarshal(order, &r.PlayerOrder); err != nil {
			return nil, fmt.Errorf("decode player_order for room %s: %w", code, err)
		}
	}
	if len(choices) > 0 {
		if err := json.Unmarshal(choices, &r.WordChoices); err != nil {
			return nil, fmt.Errorf("decode word_choices for room %s: %w", code, err)
		}
	}
	return &r, nil
}

// UpdateRoom overwrites the mutable room columns.
func (s *PostgresStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	order, choices, err := encodeRoomJSON(room)
	if err != nil {
		return err
	}
	q := `
	UPDATE rooms
	   SET player_order = $2, total_rounds = $3, completed_rounds = $4,
	       turn_index = $5, cycle = $6, word_choices = $7, is_active = $8
	 WHERE code = $1
	`
	var affected int64
	err = pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, q,
			room.Code, order, room.TotalRounds, room.CompletedRounds,
			room.TurnIndex, room.Cycle, choices, room.IsActive,
		)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", room.Code, mapPgError(err))
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room; players go with it (ON DELETE CASCADE).
func (s *PostgresStore) DeleteRoom(ctx context.Context, code string) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
		return err
	})
}

func encodeRoomJSON(room *models.Room) (order []byte, choices []byte, err error) {
	ids := room.PlayerOrder
	if ids == nil {
		ids = []uuid.UUID{}
	}
	order, err = json.Marshal(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("encode player_order: %w", err)
	}
	if room.WordChoices != nil {
		choices, err = json.Marshal(room.WordChoices)
		if err != nil {
			return nil, nil, fmt.Errorf("encode word_choices: %w", err)
		}
	}
	return order, choices, nil
}

// mapPgError converts driver errors into the package sentinels.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
