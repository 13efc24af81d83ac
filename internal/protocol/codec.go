// Package protocol implements the binary wire codec for the two message
// vocabularies: player→server (ClientMessage) and server→player
// (ServerMessage).
//
// Frames are little-endian. Every message starts with a single tag byte;
// fields follow in declared order. Strings and the board physics blob are
// u32 length-prefixed; the board grid is a u32 count followed by
// 9-byte (x u32, y u32, fruit u8) entries.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/fruitduel/fruitduel/internal/game"
)

// Codec errors. All decode failures wrap ErrDecode so callers can treat
// any malformed frame uniformly.
var (
	ErrDecode       = errors.New("malformed frame")
	ErrUnknownTag   = fmt.Errorf("%w: unknown tag", ErrDecode)
	ErrTruncated    = fmt.Errorf("%w: truncated payload", ErrDecode)
	ErrTrailingData = fmt.Errorf("%w: trailing bytes", ErrDecode)
	ErrInvalidFruit = fmt.Errorf("%w: invalid fruit value", ErrDecode)
)

// Client→server message tags.
const (
	tagDrop byte = 0
)

// Server→client message tags.
const (
	tagPlayerJoined byte = 0
	tagPlayerLeft   byte = 1
	tagGameStart    byte = 2
	tagBoardUpdate  byte = 3
	tagGameEnd      byte = 4
)

// ClientMessage is a message sent by a player to the server.
type ClientMessage interface{ clientMessage() }

// Drop carries a player's board after they dropped a fruit.
type Drop struct {
	Board game.BoardState
}

func (Drop) clientMessage() {}

// ServerMessage is a message sent by the server to a player.
type ServerMessage interface{ serverMessage() }

// PlayerJoined announces a new member of the lobby.
type PlayerJoined struct {
	Name string
}

// PlayerLeft announces that a member left the lobby.
type PlayerLeft struct {
	Name string
}

// GameStart announces the transition to the playing state.
type GameStart struct{}

// BoardUpdate carries another player's latest board.
type BoardUpdate struct {
	Player string
	Board  game.BoardState
}

// GameEnd announces the terminal state of the lobby.
type GameEnd struct{}

func (PlayerJoined) serverMessage() {}
func (PlayerLeft) serverMessage()   {}
func (GameStart) serverMessage()    {}
func (BoardUpdate) serverMessage()  {}
func (GameEnd) serverMessage()      {}

// EncodeClientMessage encodes a player→server message.
//
// Postcondition: Returns a non-empty frame, or an error for an unknown
// concrete type.
func EncodeClientMessage(m ClientMessage) ([]byte, error) {
	switch msg := m.(type) {
	case Drop:
		buf := []byte{tagDrop}
		return appendBoard(buf, msg.Board), nil
	default:
		return nil, fmt.Errorf("encoding client message: unknown type %T", m)
	}
}

// DecodeClientMessage decodes a player→server frame.
//
// Postcondition: Returns exactly one ClientMessage consuming the whole
// frame, or an error wrapping ErrDecode.
func DecodeClientMessage(frame []byte) (ClientMessage, error) {
	r := reader{buf: frame}
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	var msg ClientMessage
	switch tag {
	case tagDrop:
		board, err := r.board()
		if err != nil {
			return nil, err
		}
		msg = Drop{Board: board}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, tag)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeServerMessage encodes a server→player message.
//
// Postcondition: Returns a non-empty frame, or an error for an unknown
// concrete type.
func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	switch msg := m.(type) {
	case PlayerJoined:
		return appendString([]byte{tagPlayerJoined}, msg.Name), nil
	case PlayerLeft:
		return appendString([]byte{tagPlayerLeft}, msg.Name), nil
	case GameStart:
		return []byte{tagGameStart}, nil
	case BoardUpdate:
		buf := appendString([]byte{tagBoardUpdate}, msg.Player)
		return appendBoard(buf, msg.Board), nil
	case GameEnd:
		return []byte{tagGameEnd}, nil
	default:
		return nil, fmt.Errorf("encoding server message: unknown type %T", m)
	}
}

// DecodeServerMessage decodes a server→player frame. The server itself
// never receives these; the decoder exists for tests and bot clients.
func DecodeServerMessage(frame []byte) (ServerMessage, error) {
	r := reader{buf: frame}
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	var msg ServerMessage
	switch tag {
	case tagPlayerJoined:
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		msg = PlayerJoined{Name: name}
	case tagPlayerLeft:
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		msg = PlayerLeft{Name: name}
	case tagGameStart:
		msg = GameStart{}
	case tagBoardUpdate:
		player, err := r.string()
		if err != nil {
			return nil, err
		}
		board, err := r.board()
		if err != nil {
			return nil, err
		}
		msg = BoardUpdate{Player: player, Board: board}
	case tagGameEnd:
		msg = GameEnd{}
	default:
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, tag)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return msg, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// appendBoard encodes the physics blob then the grid. Cells are written
// in sorted (x, y) order so identical boards produce identical frames.
func appendBoard(buf []byte, b game.BoardState) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Physics)))
	buf = append(buf, b.Physics...)

	cells := make([]game.Cell, 0, len(b.Cells))
	for c := range b.Cells {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Y < cells[j].Y
	})

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cells)))
	for _, c := range cells {
		buf = binary.LittleEndian.AppendUint32(buf, c.X)
		buf = binary.LittleEndian.AppendUint32(buf, c.Y)
		buf = append(buf, byte(b.Cells[c]))
	}
	return buf
}

// reader is a cursor over a frame that turns out-of-bounds reads into
// ErrTruncated instead of panics.
type reader struct {
	buf []byte
	off int
}

func (r *reader) byte() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) board() (game.BoardState, error) {
	blobLen, err := r.uint32()
	if err != nil {
		return game.BoardState{}, err
	}
	blob, err := r.bytes(int(blobLen))
	if err != nil {
		return game.BoardState{}, err
	}

	count, err := r.uint32()
	if err != nil {
		return game.BoardState{}, err
	}
	board := game.NewBoardState()
	if len(blob) > 0 {
		board.Physics = append([]byte(nil), blob...)
	}
	for i := uint32(0); i < count; i++ {
		x, err := r.uint32()
		if err != nil {
			return game.BoardState{}, err
		}
		y, err := r.uint32()
		if err != nil {
			return game.BoardState{}, err
		}
		fruit, err := r.byte()
		if err != nil {
			return game.BoardState{}, err
		}
		ft := game.FruitType(fruit)
		if !ft.Valid() {
			return game.BoardState{}, fmt.Errorf("%w %d", ErrInvalidFruit, fruit)
		}
		board.Cells[game.Cell{X: x, Y: y}] = ft
	}
	return board, nil
}

// done verifies the whole frame was consumed.
func (r *reader) done() error {
	if r.off != len(r.buf) {
		return ErrTrailingData
	}
	return nil
}
