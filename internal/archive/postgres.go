package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/chesslink-companion/internal/session"
)

// PGStore persists archived games in Postgres, including a generated PGN
// rendering. The board does not report outcomes over the wire, so the PGN
// result is always "*".
type PGStore struct {
	db *sql.DB
}

func NewPGStore(databaseURL string) (*PGStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL required for postgres archive store")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &PGStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS archived_games (
		id        TEXT PRIMARY KEY,
		saved_at  TIMESTAMPTZ NOT NULL,
		elo       INTEGER NOT NULL,
		minutes   INTEGER NOT NULL,
		moves     JSONB NOT NULL,
		pgn       TEXT NOT NULL
	)`)
	return err
}

func (s *PGStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PGStore) Save(ctx context.Context, g session.ArchivedGame) error {
	movesRaw, err := json.Marshal(g.Moves)
	if err != nil {
		return err
	}
	q := `INSERT INTO archived_games (id, saved_at, elo, minutes, moves, pgn)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (id) DO UPDATE SET
	        saved_at=EXCLUDED.saved_at,
	        elo=EXCLUDED.elo,
	        minutes=EXCLUDED.minutes,
	        moves=EXCLUDED.moves,
	        pgn=EXCLUDED.pgn`
	_, err = s.db.ExecContext(ctx, q, g.ID, g.SavedAt, g.Elo, g.Minutes, string(movesRaw), BuildPGN(g))
	return err
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]session.ArchivedGame, error) {
	q := `SELECT id, saved_at, elo, minutes, moves FROM archived_games ORDER BY saved_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.ArchivedGame
	for rows.Next() {
		var g session.ArchivedGame
		var movesRaw []byte
		if err := rows.Scan(&g.ID, &g.SavedAt, &g.Elo, &g.Minutes, &movesRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(movesRaw, &g.Moves); err != nil {
			return nil, fmt.Errorf("decode moves for %s: %w", g.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// BuildPGN renders an archived game as PGN text. Move strings are written
// verbatim; the board streams SAN, but nothing here validates it.
func BuildPGN(g session.ArchivedGame) string {
	var b strings.Builder
	date := g.SavedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"ChessLink Casual Game\"]\n")
	b.WriteString("[Site \"Chess_RPi\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[White \"Player\"]\n")
	b.WriteString(fmt.Sprintf("[Black \"Board Engine (ELO %d)\"]\n", g.Elo))
	b.WriteString(fmt.Sprintf("[TimeControl \"%d\"]\n", g.Minutes*60))
	b.WriteString("[Result \"*\"]\n\n")

	for i := 0; i < len(g.Moves); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, sanitizePGN(g.Moves[i])))
		if i+1 < len(g.Moves) {
			b.WriteString(" ")
			b.WriteString(sanitizePGN(g.Moves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString("*")
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
