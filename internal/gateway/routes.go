package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/duelhall/duelhall/internal/game/registry"
	"github.com/duelhall/duelhall/internal/game/state"
	"github.com/duelhall/duelhall/internal/identity"
)

// Routes builds the HTTP handler for the duel server.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/duel/{id}", g.handleDuel)
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("POST /admin/duels/{id}/abandon", g.handleAbandon)
	return g.corsMiddleware(mux)
}

// handleDuel upgrades the request to a websocket, joins the caller to
// the duel session, and pumps inbound actions until the peer goes away.
func (g *Gateway) handleDuel(w http.ResponseWriter, r *http.Request) {
	duelID, err := parseDuelID(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A failed identity lookup demotes the connection to an anonymous
	// watcher rather than rejecting it; actions will be refused.
	pr, err := g.identity.CurrentIdentity(r.Context(), r)
	if err != nil && !errors.Is(err, identity.ErrAuthFailure) {
		g.logger.Warn("identity lookup failed",
			zap.Int64("duel_id", duelID),
			zap.Error(err),
		)
	}

	sess, created, err := g.registry.Acquire(duelID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	sock, err := websocket.Accept(w, r, g.acceptOptions())
	if err != nil {
		g.logger.Warn("websocket accept failed",
			zap.Int64("duel_id", duelID),
			zap.Error(err),
		)
		return
	}
	defer sock.Close(websocket.StatusInternalError, "server shutting down")

	conn := newWSConn(sock)
	ctx := r.Context()

	if created {
		g.persistAsync("create", duelID, func(ctx context.Context) error {
			return g.store.CreateSessionRecord(ctx, duelID)
		})
	}

	seated, joined := g.attachSession(ctx, sess, conn, pr)
	if joined {
		g.persistAsync("join", duelID, func(ctx context.Context) error {
			return g.store.JoinSessionRecord(ctx, duelID, pr.PlayerID)
		})
		g.persistSnapshot(duelID, sess.Snapshot())
	}

	g.logger.Info("duel connection opened",
		zap.Int64("duel_id", duelID),
		zap.Int64("player_id", pr.PlayerID),
		zap.Bool("spectator", !seated),
	)

	g.readLoop(ctx, sess, conn, pr)

	g.hub.Disconnect(duelID, conn)
	if !seated && pr.PlayerID != 0 {
		_ = sess.Do(func(d *state.Duel) error {
			d.RemoveSpectator(pr.PlayerID)
			return nil
		})
	}
	g.hub.Broadcast(context.Background(), duelID, PlayerDisconnect{
		Type:    "player_disconnect",
		Message: disconnectMessage(pr),
	})
	sock.Close(websocket.StatusNormalClosure, "")
}

// readLoop pumps inbound frames until the transport fails or the peer
// closes. Frames are read raw; decode failures are answered with an
// error reply and never end the connection.
func (g *Gateway) readLoop(ctx context.Context, sess *registry.Session, conn *wsConn, pr identity.Principal) {
	for {
		_, raw, err := conn.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			g.logger.Debug("read loop ended",
				zap.Int64("duel_id", sess.ID()),
				zap.String("conn_id", conn.ID()),
				zap.Error(err),
			)
			return
		}
		g.dispatch(ctx, sess, conn, pr, raw)
	}
}

func disconnectMessage(pr identity.Principal) string {
	if pr.PlayerID == 0 {
		return "A watcher disconnected"
	}
	return fmt.Sprintf("Player %d disconnected", pr.PlayerID)
}

func (g *Gateway) acceptOptions() *websocket.AcceptOptions {
	for _, origin := range g.cfg.AllowedOrigins {
		if origin == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: g.cfg.AllowedOrigins}
}

// handleHealth reports liveness, and backing-store reachability when a
// health checker is configured.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if g.health != nil {
		if err := g.health.Health(r.Context(), 2*time.Second); err != nil {
			g.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAbandon force-abandons a live session, notifying its room and
// evicting it from the registry.
func (g *Gateway) handleAbandon(w http.ResponseWriter, r *http.Request) {
	duelID, err := parseDuelID(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, ok := g.registry.Get(duelID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	var snap state.Snapshot
	_ = sess.Do(func(d *state.Duel) error {
		d.Abandon()
		snap = d.Snapshot()
		return nil
	})
	g.registry.Remove(duelID)
	g.NotifyAbandoned(sess, snap)

	g.logger.Info("session abandoned by operator", zap.Int64("duel_id", duelID))
	writeJSON(w, http.StatusOK, map[string]any{
		"duel_id": duelID,
		"status":  string(snap.Status),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (g *Gateway) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && g.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) originAllowed(origin string) bool {
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
