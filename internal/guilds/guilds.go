// Package guilds is a small protected resource served alongside the auth
// endpoints. Its routes require an authenticated caller, which makes it the
// first consumer of the request authenticator.
package guilds

import (
	"context"
	"errors"
	"time"
)

// Guild is a registered chat-server record.
type Guild struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrGuildNotFound is returned when no guild matches the given id.
var ErrGuildNotFound = errors.New("guild_store.not_found")

// Store persists guilds.
type Store interface {
	Save(ctx context.Context, guild Guild) error
	List(ctx context.Context) ([]Guild, error)
	// Delete removes a guild by id. ErrGuildNotFound when absent.
	Delete(ctx context.Context, id string) error
}
