// Package relay bridges one player's websocket to the lobby
// coordinator: coordinator events flow out through the player's sink,
// decoded player commands flow in as coordinator commands.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fruitduel/fruitduel/internal/game"
	"github.com/fruitduel/fruitduel/internal/lobby"
	"github.com/fruitduel/fruitduel/internal/protocol"
)

// Coordinator is the subset of the lobby coordinator the relay drives.
// Both commands are fire-and-forget.
type Coordinator interface {
	Leave(name, code string)
	UpdateBoard(name, code string, board game.BoardState)
}

// writeWait bounds how long a single frame write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// errSinkClosed ends the pump pair when the coordinator has closed the
// player's sink, i.e. the player is no longer in any roster.
var errSinkClosed = errors.New("sink closed")

// Conn is the subset of *websocket.Conn the relay needs. Tests
// substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Relay pumps one duplex connection for the life of the socket.
type Relay struct {
	name   string
	code   string
	conn   Conn
	sink   *lobby.Sink
	coord  Coordinator
	logger *zap.Logger
}

// New creates a Relay for a player that has already joined the lobby
// registered under code.
//
// Precondition: sink is the same Sink the Join command carried; conn is
// an open connection.
func New(name, code string, conn Conn, sink *lobby.Sink, coord Coordinator, logger *zap.Logger) *Relay {
	return &Relay{
		name:  name,
		code:  code,
		conn:  conn,
		sink:  sink,
		coord: coord,
		logger: logger.With(
			zap.String("relay", uuid.NewString()),
			zap.String("lobby", code),
			zap.String("player", name),
		),
	}
}

// Run pumps the connection until it closes, errors, or ctx is
// cancelled, then issues a fire-and-forget Leave and releases the
// connection. There is no reconnection; a dropped player rejoins with a
// fresh websocket.
//
// Postcondition: The connection is closed and the player has been
// removed from the lobby roster.
func (r *Relay) Run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	// Closing the connection is what unblocks a pump stuck in
	// ReadMessage, so the first pump to fail drags the other down.
	g.Go(func() error {
		<-gctx.Done()
		return r.conn.Close()
	})
	g.Go(func() error { return r.writePump(gctx) })
	g.Go(func() error { return r.readPump() })

	err := g.Wait()
	r.coord.Leave(r.name, r.code)
	r.logger.Info("relay closed", zap.Error(err))
}

// writePump copies sink events onto the connection as binary frames.
// It ends when the sink closes (the coordinator removed the player) or
// a write fails.
func (r *Relay) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-r.sink.Events():
			if !ok {
				return errSinkClosed
			}
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return err
			}
		}
	}
}

// readPump decodes inbound frames into coordinator commands. Malformed
// or non-binary frames are discarded, never fatal; only a read error
// (the connection closing) ends the pump.
func (r *Relay) readPump() error {
	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.BinaryMessage {
			r.logger.Debug("ignoring non-binary frame",
				zap.Int("message_type", messageType),
			)
			continue
		}
		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			r.logger.Debug("discarding malformed frame", zap.Error(err))
			continue
		}
		switch msg := msg.(type) {
		case protocol.Drop:
			r.coord.UpdateBoard(r.name, r.code, msg.Board)
		}
	}
}
