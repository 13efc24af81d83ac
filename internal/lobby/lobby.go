// Package lobby implements the matchmaking core: short join codes,
// per-player outbound sinks, the two-player lobby entity with its state
// machine, and the single-goroutine coordinator that owns all of it.
package lobby

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fruitduel/fruitduel/internal/game"
	"github.com/fruitduel/fruitduel/internal/protocol"
)

// maxPlayers is the fixed lobby capacity. The whole protocol is built
// around exactly two opponents.
const maxPlayers = 2

// State is the lobby lifecycle phase. Transitions only ever move
// forward: Waiting → Playing → Ended.
type State int

const (
	// StateWaiting means fewer than two players are registered.
	StateWaiting State = iota
	// StatePlaying means both players are registered and boards are live.
	StatePlaying
	// StateEnded is terminal; the lobby no longer accepts board updates.
	StateEnded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Snapshot is the caller-visible view of a lobby at one instant. It
// holds no references into coordinator-owned state.
type Snapshot struct {
	Code    string
	Players []string
	State   State
}

// Lobby is one match. It is owned exclusively by the coordinator
// goroutine; nothing here is safe for concurrent use.
type Lobby struct {
	code string
	// players maps name → outbound sink. A nil sink is a roster slot
	// reserved by Find before the player's websocket arrived.
	players map[string]*Sink
	state   State
	// boards holds each player's latest board while playing.
	boards map[string]game.BoardState
	logger *zap.Logger
}

func newLobby(code string, logger *zap.Logger) *Lobby {
	return &Lobby{
		code:    code,
		players: make(map[string]*Sink, maxPlayers),
		state:   StateWaiting,
		logger:  logger.With(zap.String("lobby", code)),
	}
}

// snapshot copies the lobby's visible state. Player names are sorted so
// snapshots compare stably.
func (l *Lobby) snapshot() Snapshot {
	names := make([]string, 0, len(l.players))
	for name := range l.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return Snapshot{Code: l.code, Players: names, State: l.state}
}

// hasRoomFor reports whether Find may seat the named player here. Only
// a Waiting lobby qualifies: an Ended lobby may have an open slot after
// a departure, but its state machine is terminal and a player seated
// there could never see a game start.
func (l *Lobby) hasRoomFor(name string) bool {
	if l.state != StateWaiting {
		return false
	}
	if _, present := l.players[name]; present {
		return false
	}
	return len(l.players) < maxPlayers
}

// join adds the named player, or attaches a sink to a slot Find
// reserved earlier. sink may be nil for a Find-style reservation.
//
// Postcondition: On success the player is in the roster, PlayerJoined
// has been broadcast, and the state machine has advanced.
func (l *Lobby) join(name string, sink *Sink) error {
	existing, present := l.players[name]
	switch {
	case present && existing != nil:
		return ErrNameTaken
	case !present && len(l.players) >= maxPlayers:
		return ErrLobbyFull
	}

	l.players[name] = sink
	l.broadcast(protocol.PlayerJoined{Name: name})

	// A player seated by Find connects after the roster may already have
	// filled; hand them the GameStart they could not receive earlier.
	if present && sink != nil && l.state == StatePlaying {
		l.send(sink, protocol.GameStart{})
	}

	l.advance()
	return nil
}

// leave removes the named player and reports whether the roster is now
// empty (meaning the coordinator should delete the lobby). A name that
// was never a member is a no-op and never reports empty, so a stray
// leave cannot delete a lobby somebody else still holds the code for.
func (l *Lobby) leave(name string) (empty bool) {
	if _, present := l.players[name]; !present {
		return false
	}
	delete(l.players, name)
	l.broadcast(protocol.PlayerLeft{Name: name})
	l.advance()
	return len(l.players) == 0
}

// setBoard replaces the named player's board wholesale and fans the
// update out to every other member.
func (l *Lobby) setBoard(name string, board game.BoardState) error {
	if l.state != StatePlaying {
		return ErrGameNotStarted
	}
	if _, present := l.players[name]; !present {
		return fmt.Errorf("player %q not in lobby", name)
	}
	l.boards[name] = board
	l.broadcastExcept(name, protocol.BoardUpdate{Player: name, Board: board})
	l.advance()
	return nil
}

// advance runs the state machine after a roster or board mutation.
//
// Postcondition: state only ever moves Waiting → Playing → Ended.
func (l *Lobby) advance() {
	switch l.state {
	case StateWaiting:
		if len(l.players) == maxPlayers {
			l.state = StatePlaying
			l.boards = make(map[string]game.BoardState, maxPlayers)
			for name := range l.players {
				l.boards[name] = game.NewBoardState()
			}
			l.broadcast(protocol.GameStart{})
			l.logger.Info("game started")
		}
	case StatePlaying:
		if len(l.players) < maxPlayers {
			l.state = StateEnded
			l.broadcast(protocol.GameEnd{})
			l.logger.Info("game ended")
		}
	case StateEnded:
		// Terminal.
	}
}

// broadcast encodes msg once and pushes it to every attached member.
func (l *Lobby) broadcast(msg protocol.ServerMessage) {
	l.deliver(msg, "")
}

// broadcastExcept is broadcast minus one named member.
func (l *Lobby) broadcastExcept(except string, msg protocol.ServerMessage) {
	l.deliver(msg, except)
}

func (l *Lobby) deliver(msg protocol.ServerMessage, except string) {
	frame, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		l.logger.Error("encoding broadcast", zap.Error(err))
		return
	}
	for name, sink := range l.players {
		if name == except || sink == nil {
			continue
		}
		if err := sink.Push(frame); err != nil {
			// Best effort: a slow or gone consumer never blocks the
			// coordinator. The event is simply lost.
			l.logger.Debug("dropping event",
				zap.String("player", name),
				zap.Error(err),
			)
		}
	}
}

// send delivers a single message to one sink, same best-effort rules as
// deliver.
func (l *Lobby) send(sink *Sink, msg protocol.ServerMessage) {
	frame, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		l.logger.Error("encoding message", zap.Error(err))
		return
	}
	if err := sink.Push(frame); err != nil {
		l.logger.Debug("dropping event",
			zap.String("player", sink.Name()),
			zap.Error(err),
		)
	}
}
