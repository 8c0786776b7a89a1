package authpg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mprlab/authgate/internal/guilds"
)

// PostgresGuildStore persists guilds in PostgreSQL through pgx.
type PostgresGuildStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGuildStore constructs a Postgres guild store.
func NewPostgresGuildStore(pool *pgxpool.Pool) *PostgresGuildStore {
	return &PostgresGuildStore{pool: pool}
}

// Save inserts or replaces a guild row.
func (store *PostgresGuildStore) Save(ctx context.Context, guild guilds.Guild) error {
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO guilds (id, server_id, name, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET server_id = EXCLUDED.server_id, name = EXCLUDED.name
`, guild.ID, guild.ServerID, guild.Name, guild.CreatedAt)
	if execErr != nil {
		return fmt.Errorf("guild_store.save.pg: %w", execErr)
	}
	return nil
}

// List returns all guilds ordered by creation time.
func (store *PostgresGuildStore) List(ctx context.Context) ([]guilds.Guild, error) {
	rows, queryErr := store.pool.Query(ctx, `
SELECT id, server_id, name, created_at
FROM guilds
ORDER BY created_at
`)
	if queryErr != nil {
		return nil, fmt.Errorf("guild_store.list.pg: %w", queryErr)
	}
	defer rows.Close()
	var listed []guilds.Guild
	for rows.Next() {
		var guild guilds.Guild
		if scanErr := rows.Scan(&guild.ID, &guild.ServerID, &guild.Name, &guild.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("guild_store.list.pg: %w", scanErr)
		}
		listed = append(listed, guild)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("guild_store.list.pg: %w", rowsErr)
	}
	return listed, nil
}

// Delete removes a guild by id.
func (store *PostgresGuildStore) Delete(ctx context.Context, id string) error {
	tag, execErr := store.pool.Exec(ctx, `
DELETE FROM guilds
WHERE id = $1
`, id)
	if execErr != nil {
		return fmt.Errorf("guild_store.delete.pg: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("guild_store.delete.pg: %w", guilds.ErrGuildNotFound)
	}
	return nil
}
