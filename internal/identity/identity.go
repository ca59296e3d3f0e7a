// Package identity resolves the player behind an inbound request.
// Authentication itself (password flows, cookie issuance) is owned by
// another service; the duel server only asks "who is this?".
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAuthFailure is returned when no identity can be established for a
// request.
var ErrAuthFailure = errors.New("authentication failed")

// Principal is an established identity.
type Principal struct {
	PlayerID int64
	Name     string
}

// Provider establishes the identity behind a request.
type Provider interface {
	// CurrentIdentity returns the requesting player, or ErrAuthFailure.
	CurrentIdentity(ctx context.Context, r *http.Request) (Principal, error)
}

// TokenProvider resolves an opaque bearer token against the users table.
type TokenProvider struct {
	db *pgxpool.Pool
}

// NewTokenProvider creates a TokenProvider backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewTokenProvider(db *pgxpool.Pool) *TokenProvider {
	return &TokenProvider{db: db}
}

// CurrentIdentity resolves the request's bearer token to a player.
//
// Postcondition: Returns the matching Principal, or ErrAuthFailure when
// the token is missing or unknown.
func (p *TokenProvider) CurrentIdentity(ctx context.Context, r *http.Request) (Principal, error) {
	token := requestToken(r)
	if token == "" {
		return Principal{}, ErrAuthFailure
	}

	var pr Principal
	err := p.db.QueryRow(ctx,
		`SELECT id, username FROM users WHERE api_token = $1`,
		token,
	).Scan(&pr.PlayerID, &pr.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrAuthFailure
		}
		return Principal{}, fmt.Errorf("resolving token: %w", err)
	}
	return pr, nil
}

// requestToken extracts the bearer token from the Authorization header,
// falling back to the "token" query parameter for websocket clients
// that cannot set headers.
func requestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// QueryProvider trusts "player_id" and "username" query parameters.
// Development and test use only.
type QueryProvider struct{}

// CurrentIdentity reads the identity from query parameters.
//
// Postcondition: Returns ErrAuthFailure when player_id is absent or not
// a positive integer.
func (QueryProvider) CurrentIdentity(_ context.Context, r *http.Request) (Principal, error) {
	raw := r.URL.Query().Get("player_id")
	if raw == "" {
		return Principal{}, ErrAuthFailure
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, ErrAuthFailure
	}
	name := r.URL.Query().Get("username")
	if name == "" {
		name = fmt.Sprintf("player-%d", id)
	}
	return Principal{PlayerID: id, Name: name}, nil
}
