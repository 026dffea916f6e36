package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatfabric/chatfabric/internal/auth"
	"github.com/chatfabric/chatfabric/internal/metrics"
	"github.com/chatfabric/chatfabric/internal/relay"
	"github.com/chatfabric/chatfabric/internal/server/middleware"
	"github.com/chatfabric/chatfabric/pkg/config"
	"github.com/chatfabric/chatfabric/pkg/protocol"
	"github.com/chatfabric/chatfabric/pkg/state"
	"github.com/chatfabric/chatfabric/pkg/transport"
)

// Pinger is the readiness surface of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	logger   *slog.Logger
	registry state.Manager
	relay    *relay.Relay
	verifier auth.Verifier
	pingers  []Pinger
	wg       sync.WaitGroup
	http     *http.Server
	config   *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootContx context.Context, cfg *config.Config, registry state.Manager, verifier auth.Verifier, rl *relay.Relay, pingers ...Pinger) *App {
	app := &App{
		logger:   logger,
		registry: registry,
		relay:    rl,
		verifier: verifier,
		pingers:  pingers,
		config:   cfg,
		ctx:      rootContx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
		),
	)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	// Credentials ride the query string and are checked after the upgrade,
	// so a rejected client still receives a terminal ERROR event instead of
	// an opaque handshake failure.
	userID, err := a.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		metrics.AuthFailures.Inc()
		connLogger.Warn("Authentication failed", slog.Any("error", err))
		a.rejectConnection(r.Context(), wsConn, "authentication failed")
		return
	}
	connLogger = connLogger.With(slog.String("userID", userID))

	if !a.admitConnection(connLogger, userID) {
		a.rejectConnection(r.Context(), wsConn, "connection limit reached")
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	stateConn, err := a.registry.RegisterConnection(conn, reqMeta.IP)
	if err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	if _, err := a.registry.AssociateUser(stateConn.ID, userID); err != nil {
		connLogger.Error("Failed to associate user with connection", slog.Any("error", err))
		conn.Close(err)
		return
	}
	metrics.ConnectionsActive.Inc()

	conn.SetOnMessageHandler(a.relay.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		metrics.ConnectionsActive.Dec()
		connLogger.Info("Connection closed", slog.String("connID", id.String()), slog.Any("reason", err))
		a.relay.HandleClose(context.Background(), id)
	})

	connLogger.Info("User connection fully established", slog.String("connID", stateConn.ID.String()))
	conn.Run()
	a.relay.HandleOpen(r.Context(), stateConn.ID)
	<-conn.Done()
}

// admitConnection enforces the per-user connection limit. In cycle mode the
// oldest connection is closed to make room; in reject mode the newcomer
// loses.
func (a *App) admitConnection(logger *slog.Logger, userID string) bool {
	limit := a.config.Server.ConnectionLimit
	if limit.MaxPerUser <= 0 {
		return true
	}
	count, err := a.registry.GetUserConnectionCount(userID)
	if err != nil {
		logger.Error("Failed to count user connections", slog.Any("error", err))
		return true
	}
	if count < limit.MaxPerUser {
		return true
	}

	if limit.Mode == "cycle" {
		oldest, found := a.registry.FindOldestUserConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
		return true
	}
	logger.Warn("Rejecting connection: limit reached", slog.Int("count", count))
	return false
}

// rejectConnection sends a single terminal ERROR event and closes the socket.
func (a *App) rejectConnection(ctx context.Context, wsConn *websocket.Conn, reason string) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(protocol.NewError(reason))
	if err == nil {
		if werr := wsConn.Write(writeCtx, websocket.MessageText, payload); werr != nil {
			a.logger.Debug("Failed to deliver rejection", slog.Any("error", werr))
		}
	}
	wsConn.Close(websocket.StatusPolicyViolation, reason)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			a.logger.Error("Health check failed", slog.Any("error", err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown failed", slog.Any("error", err))
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.Connections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
