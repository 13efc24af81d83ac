// Package transport exposes the coordinator over HTTP: plain-text
// lobby create/find endpoints and the websocket game channel. It only
// decodes requests into coordinator commands and forwards replies or
// errors back to the caller; all game semantics live behind the
// coordinator.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fruitduel/fruitduel/internal/lobby"
	"github.com/fruitduel/fruitduel/internal/relay"
)

// joinTimeout bounds how long a fresh websocket may wait on the
// coordinator before the join attempt is abandoned.
const joinTimeout = 10 * time.Second

// Coordinator is the surface of the lobby coordinator the transport
// drives, satisfied by *lobby.Coordinator.
type Coordinator interface {
	Create(ctx context.Context, hint string) (lobby.Snapshot, error)
	Find(ctx context.Context, name string) (lobby.Snapshot, error)
	Join(ctx context.Context, name, code string, sink *lobby.Sink) (lobby.Snapshot, error)
	relay.Coordinator
}

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	coord        Coordinator
	sinkCapacity int
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewRouter builds the HTTP routing table.
//
// Precondition: coord must be running; logger must be non-nil.
func NewRouter(coord Coordinator, sinkCapacity int, logger *zap.Logger) http.Handler {
	h := &Handler{
		coord:        coord,
		sinkCapacity: sinkCapacity,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The game client is served from a separate origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Post("/lobby/create", h.createLobby)
	r.Get("/lobby/find", h.findLobby)
	r.Get("/game/{code}", h.gameSocket)
	return r
}

// createLobby allocates an empty lobby and answers with its code. The
// optional name parameter is a display hint for the logs.
func (h *Handler) createLobby(w http.ResponseWriter, r *http.Request) {
	snap, err := h.coord.Create(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.logger.Error("create lobby", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeCode(w, snap.Code)
}

// findLobby seats the named player in an open lobby, creating one when
// needed, and answers with the lobby code.
func (h *Handler) findLobby(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name", http.StatusBadRequest)
		return
	}
	snap, err := h.coord.Find(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeCode(w, snap.Code)
}

// gameSocket upgrades to a websocket, joins the lobby with a fresh
// outbound sink, and hands the connection to a relay for its lifetime.
func (h *Handler) gameSocket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sink := lobby.NewSink(name, h.sinkCapacity)
	joinCtx, cancel := context.WithTimeout(r.Context(), joinTimeout)
	_, err = h.coord.Join(joinCtx, name, code, sink)
	cancel()
	if err != nil {
		sink.Close()
		// On a context error the command may have been enqueued before
		// the deadline hit, in which case the coordinator seats the
		// player anyway; the Leave is ordered after the join and undoes
		// the seat. Domain rejections mean no seat was taken, and for
		// ErrNameTaken the name belongs to another connection.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.coord.Leave(name, code)
		}
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	relay.New(name, code, conn, sink, h.coord, h.logger).Run(r.Context())
}

// writeError maps coordinator failures onto client-error responses with
// a textual reason.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, lobby.ErrCoordinatorClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, lobby.ErrLobbyNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeCode(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(code))
}
