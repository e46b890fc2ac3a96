package persona

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads personas from the assistentes table in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assistentes (
			slug TEXT PRIMARY KEY,
			nome TEXT NOT NULL,
			descricao TEXT NOT NULL DEFAULT '',
			foto_url TEXT NOT NULL DEFAULT '',
			background_image TEXT NOT NULL DEFAULT '',
			elevenlabs_voice_id TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// BySlug performs a case-sensitive exact-match lookup. The slug is bound as a
// query parameter, never concatenated.
func (s *PostgresStore) BySlug(ctx context.Context, slug string) (Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx,
		`SELECT slug, nome, descricao, foto_url, background_image, elevenlabs_voice_id
		 FROM assistentes WHERE slug = $1`,
		slug,
	).Scan(&r.Slug, &r.Nome, &r.Descricao, &r.FotoURL, &r.BackgroundImage, &r.VoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query persona by slug: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
