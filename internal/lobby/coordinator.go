package lobby

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/fruitduel/fruitduel/internal/game"
)

// DefaultQueueCapacity bounds the coordinator's inbound command queue
// when no capacity is configured.
const DefaultQueueCapacity = 10

// Coordinator is the single authority over every lobby. One goroutine
// (Run) owns the lobby table and processes commands strictly in enqueue
// order, which linearizes all joins, leaves, and board updates without
// any shared-memory locking.
type Coordinator struct {
	logger   *zap.Logger
	commands chan command
	done     chan struct{}

	// Owned exclusively by the Run goroutine.
	lobbies map[string]*Lobby
	rng     *rand.Rand
}

type result struct {
	snap Snapshot
	err  error
}

type command interface{ isCommand() }

type createCmd struct {
	hint  string
	reply chan result
}

type findCmd struct {
	name  string
	reply chan result
}

type joinCmd struct {
	name  string
	code  string
	sink  *Sink
	reply chan result
}

type leaveCmd struct {
	name string
	code string
}

type updateBoardCmd struct {
	name  string
	code  string
	board game.BoardState
}

func (createCmd) isCommand()      {}
func (findCmd) isCommand()        {}
func (joinCmd) isCommand()        {}
func (leaveCmd) isCommand()       {}
func (updateBoardCmd) isCommand() {}

// NewCoordinator creates a Coordinator with the given command queue
// capacity. Run must be started before any command is issued.
//
// Precondition: logger must be non-nil.
func NewCoordinator(queueCapacity int, logger *zap.Logger) *Coordinator {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Coordinator{
		logger:   logger,
		commands: make(chan command, queueCapacity),
		done:     make(chan struct{}),
		lobbies:  make(map[string]*Lobby),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes commands until ctx is cancelled. It never returns an
// error from a command: recoverable failures travel back on the
// command's reply channel, and everything else is logged.
//
// Postcondition: On return every member sink is closed and further
// commands fail with ErrCoordinatorClosed.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.commands:
			c.handle(cmd)
		}
	}
}

func (c *Coordinator) stop() {
	close(c.done)
	for code, l := range c.lobbies {
		for _, sink := range l.players {
			if sink != nil {
				sink.Close()
			}
		}
		delete(c.lobbies, code)
	}
	c.logger.Info("coordinator stopped")
}

// Create allocates an empty lobby under a fresh code. hint is an
// optional display name used only for logging.
//
// Postcondition: Returns a snapshot of the new lobby, or ctx/shutdown
// errors; Create itself has no domain failure mode.
func (c *Coordinator) Create(ctx context.Context, hint string) (Snapshot, error) {
	reply := make(chan result, 1)
	return c.request(ctx, createCmd{hint: hint, reply: reply}, reply)
}

// Find seats the named player in any lobby with an open slot that does
// not already contain them, creating a new lobby when none qualifies.
// The seat is reserved without a sink; the player attaches one by
// joining over the websocket.
func (c *Coordinator) Find(ctx context.Context, name string) (Snapshot, error) {
	reply := make(chan result, 1)
	return c.request(ctx, findCmd{name: name, reply: reply}, reply)
}

// Join attaches the named player, with their outbound sink, to the
// lobby registered under code.
//
// Postcondition: Returns ErrLobbyNotFound, ErrLobbyFull, or
// ErrNameTaken on the failure branch; on success the player is in the
// roster and the lobby may have advanced to Playing.
func (c *Coordinator) Join(ctx context.Context, name, code string, sink *Sink) (Snapshot, error) {
	reply := make(chan result, 1)
	return c.request(ctx, joinCmd{name: name, code: code, sink: sink, reply: reply}, reply)
}

// Leave removes the named player from the lobby. Fire-and-forget: no
// caller ever blocks on the outcome.
func (c *Coordinator) Leave(name, code string) {
	c.post(leaveCmd{name: name, code: code})
}

// UpdateBoard replaces the named player's board and fans the update out
// to the other member. Fire-and-forget; rejected updates (lobby not
// playing, unknown code) are logged, not returned.
func (c *Coordinator) UpdateBoard(name, code string, board game.BoardState) {
	c.post(updateBoardCmd{name: name, code: code, board: board})
}

// request enqueues a command that expects exactly one reply and waits
// for it. The reply channel is buffered, so the coordinator's send
// succeeds even when the caller has already given up.
func (c *Coordinator) request(ctx context.Context, cmd command, reply chan result) (Snapshot, error) {
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrCoordinatorClosed
	}

	select {
	case r := <-reply:
		return r.snap, r.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrCoordinatorClosed
	}
}

// post enqueues a fire-and-forget command, giving up silently when the
// coordinator has shut down.
func (c *Coordinator) post(cmd command) {
	select {
	case c.commands <- cmd:
	case <-c.done:
	}
}

func (c *Coordinator) handle(cmd command) {
	switch cmd := cmd.(type) {
	case createCmd:
		c.handleCreate(cmd)
	case findCmd:
		c.handleFind(cmd)
	case joinCmd:
		c.handleJoin(cmd)
	case leaveCmd:
		c.handleLeave(cmd)
	case updateBoardCmd:
		c.handleUpdateBoard(cmd)
	}
}

func (c *Coordinator) handleCreate(cmd createCmd) {
	l := c.newRegisteredLobby()
	c.logger.Info("lobby created",
		zap.String("code", l.code),
		zap.String("hint", cmd.hint),
	)
	c.respond(cmd.reply, result{snap: l.snapshot()})
}

func (c *Coordinator) handleFind(cmd findCmd) {
	for _, l := range c.lobbies {
		if l.hasRoomFor(cmd.name) {
			if err := l.join(cmd.name, nil); err != nil {
				c.respond(cmd.reply, result{err: err})
				return
			}
			c.logger.Info("player matched",
				zap.String("code", l.code),
				zap.String("player", cmd.name),
			)
			c.respond(cmd.reply, result{snap: l.snapshot()})
			return
		}
	}

	l := c.newRegisteredLobby()
	if err := l.join(cmd.name, nil); err != nil {
		c.respond(cmd.reply, result{err: err})
		return
	}
	c.logger.Info("lobby created for find",
		zap.String("code", l.code),
		zap.String("player", cmd.name),
	)
	c.respond(cmd.reply, result{snap: l.snapshot()})
}

func (c *Coordinator) handleJoin(cmd joinCmd) {
	l, ok := c.lobbies[cmd.code]
	if !ok {
		c.respond(cmd.reply, result{err: ErrLobbyNotFound})
		return
	}
	if err := l.join(cmd.name, cmd.sink); err != nil {
		c.respond(cmd.reply, result{err: err})
		return
	}
	c.logger.Info("player joined",
		zap.String("code", cmd.code),
		zap.String("player", cmd.name),
		zap.String("state", l.state.String()),
	)
	c.respond(cmd.reply, result{snap: l.snapshot()})
}

func (c *Coordinator) handleLeave(cmd leaveCmd) {
	l, ok := c.lobbies[cmd.code]
	if !ok {
		return
	}
	if sink := l.players[cmd.name]; sink != nil {
		sink.Close()
	}
	if l.leave(cmd.name) {
		delete(c.lobbies, cmd.code)
		c.logger.Info("lobby deleted", zap.String("code", cmd.code))
		return
	}
	c.logger.Info("player left",
		zap.String("code", cmd.code),
		zap.String("player", cmd.name),
	)
}

func (c *Coordinator) handleUpdateBoard(cmd updateBoardCmd) {
	l, ok := c.lobbies[cmd.code]
	if !ok {
		c.logger.Debug("board update for unknown lobby",
			zap.String("code", cmd.code),
			zap.String("player", cmd.name),
		)
		return
	}
	if err := l.setBoard(cmd.name, cmd.board); err != nil {
		c.logger.Debug("board update rejected",
			zap.String("code", cmd.code),
			zap.String("player", cmd.name),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) newRegisteredLobby() *Lobby {
	code := GenerateCode(c.rng, func(code string) bool {
		_, taken := c.lobbies[code]
		return taken
	})
	l := newLobby(code, c.logger)
	c.lobbies[code] = l
	return l
}

// respond delivers the single reply for a request. The send is
// non-blocking: reply channels are buffered and used once, so a failed
// send means the caller's contract was broken, which must not take the
// coordinator down with it.
func (c *Coordinator) respond(reply chan result, r result) {
	select {
	case reply <- r:
	default:
		c.logger.Error("reply channel unwritable, dropping reply")
	}
}
