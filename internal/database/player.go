package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/wordclue/internal/models"
)

const playerColumns = `id, room_code, pseudo, session_id, is_owner, score, joined_at`

// CreatePlayer inserts a player, generating its id and session token when unset.
func (s *PostgresStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	if player.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate player id: %w", err)
		}
		player.ID = id
	}
	if player.SessionID == uuid.Nil {
		sid, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
		player.SessionID = sid
	}
	if player.JoinedAt.IsZero() {
		player.JoinedAt = time.Now().UTC()
	}

	q := `INSERT INTO players (` + playerColumns + `)
	      VALUES ($1, $2, $3, $4, $5, $6, $7)`
	err := pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			player.ID, player.RoomCode, player.Pseudo, player.SessionID,
			player.IsOwner, player.Score, player.JoinedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert player %q: %w", player.Pseudo, mapPgError(err))
	}
	return nil
}

// GetPlayer fetches a player by id.
func (s *PostgresStore) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return scanPlayer(s.DB.QueryRow(ctx, q, id))
}

// GetPlayerBySession fetches the player holding sessionID inside roomCode.
func (s *PostgresStore) GetPlayerBySession(ctx context.Context, roomCode string, sessionID uuid.UUID) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE room_code = $1 AND session_id = $2`
	return scanPlayer(s.DB.QueryRow(ctx, q, roomCode, sessionID))
}

// ListPlayers returns every player of a room, earliest joiner first.
func (s *PostgresStore) ListPlayers(ctx context.Context, roomCode string) ([]*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE room_code = $1 ORDER BY joined_at, id`
	rows, err := s.DB.Query(ctx, q, roomCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// UpdatePlayer persists the owner flag and score.
func (s *PostgresStore) UpdatePlayer(ctx context.Context, player *models.Player) error {
	q := `UPDATE players SET is_owner = $2, score = $3 WHERE id = $1`
	var affected int64
	err := pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, q, player.ID, player.IsOwner, player.Score)
		affected = tag.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", player.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlayer removes a player row.
func (s *PostgresStore) DeletePlayer(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM players WHERE id = $1`, id)
		return err
	})
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.RoomCode, &p.Pseudo, &p.SessionID, &p.IsOwner, &p.Score, &p.JoinedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &p, nil
}
