package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fruitduel/fruitduel/internal/game"
)

func TestEncodeServerMessage_PlayerJoined(t *testing.T) {
	frame, err := EncodeServerMessage(PlayerJoined{Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 3, 0, 0, 0, 'A', 'n', 'n'}, frame)
}

func TestEncodeServerMessage_TagOnlyVariants(t *testing.T) {
	frame, err := EncodeServerMessage(GameStart{})
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, frame)

	frame, err = EncodeServerMessage(GameEnd{})
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, frame)
}

func TestEncodeClientMessage_Drop(t *testing.T) {
	board := game.NewBoardState()
	board.Physics = []byte{0xAA, 0xBB}
	board.Cells[game.Cell{X: 1, Y: 2}] = game.FruitGrape

	frame, err := EncodeClientMessage(Drop{Board: board})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, // tag
		2, 0, 0, 0, 0xAA, 0xBB, // physics blob
		1, 0, 0, 0, // cell count
		1, 0, 0, 0, 2, 0, 0, 0, 2, // (1,2) → grape
	}, frame)
}

func TestEncode_CellsAreSorted(t *testing.T) {
	board := game.NewBoardState()
	board.Cells[game.Cell{X: 2, Y: 0}] = game.FruitApple
	board.Cells[game.Cell{X: 1, Y: 9}] = game.FruitCherry
	board.Cells[game.Cell{X: 1, Y: 3}] = game.FruitPeach

	a, err := EncodeClientMessage(Drop{Board: board})
	require.NoError(t, err)
	b, err := EncodeClientMessage(Drop{Board: board})
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical boards must produce identical frames")

	// (1,3) sorts before (1,9) before (2,0)
	grid := a[1+4:]
	assert.Equal(t, []byte{
		3, 0, 0, 0,
		1, 0, 0, 0, 3, 0, 0, 0, byte(game.FruitPeach),
		1, 0, 0, 0, 9, 0, 0, 0, byte(game.FruitCherry),
		2, 0, 0, 0, 0, 0, 0, 0, byte(game.FruitApple),
	}, grid)
}

func TestDecodeClientMessage_UnknownTag(t *testing.T) {
	_, err := DecodeClientMessage([]byte{7})
	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeClientMessage_Empty(t *testing.T) {
	_, err := DecodeClientMessage(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeClientMessage_Truncated(t *testing.T) {
	board := game.NewBoardState()
	board.Physics = []byte{1, 2, 3}
	board.Cells[game.Cell{X: 5, Y: 5}] = game.FruitYuzu
	frame, err := EncodeClientMessage(Drop{Board: board})
	require.NoError(t, err)

	for i := 1; i < len(frame); i++ {
		_, err := DecodeClientMessage(frame[:i])
		assert.ErrorIs(t, err, ErrDecode, "prefix of length %d must not decode", i)
	}
}

func TestDecodeClientMessage_TrailingBytes(t *testing.T) {
	frame, err := EncodeClientMessage(Drop{Board: game.NewBoardState()})
	require.NoError(t, err)
	_, err = DecodeClientMessage(append(frame, 0))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestDecodeClientMessage_InvalidFruit(t *testing.T) {
	frame := []byte{
		0,          // Drop
		0, 0, 0, 0, // empty blob
		1, 0, 0, 0, // one cell
		0, 0, 0, 0, 0, 0, 0, 0, 11, // fruit byte out of range
	}
	_, err := DecodeClientMessage(frame)
	assert.ErrorIs(t, err, ErrInvalidFruit)
}

func TestDecodeServerMessage_UnknownTag(t *testing.T) {
	_, err := DecodeServerMessage([]byte{9})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestServerMessages_RoundTrip(t *testing.T) {
	board := game.NewBoardState()
	board.Physics = []byte{9, 9, 9}
	board.Cells[game.Cell{X: 0, Y: 7}] = game.FruitWatermelon

	messages := []ServerMessage{
		PlayerJoined{Name: "Ann"},
		PlayerLeft{Name: "Bob"},
		GameStart{},
		BoardUpdate{Player: "Ann", Board: board},
		GameEnd{},
	}
	for _, msg := range messages {
		frame, err := EncodeServerMessage(msg)
		require.NoError(t, err)
		got, err := DecodeServerMessage(frame)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func drawBoard(t *rapid.T) game.BoardState {
	board := game.NewBoardState()
	board.Physics = rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "physics")
	cellCount := rapid.IntRange(0, 16).Draw(t, "cells")
	for i := 0; i < cellCount; i++ {
		cell := game.Cell{
			X: rapid.Uint32().Draw(t, "x"),
			Y: rapid.Uint32().Draw(t, "y"),
		}
		board.Cells[cell] = game.FruitType(rapid.IntRange(0, 10).Draw(t, "fruit"))
	}
	return board
}

func TestDrop_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		board := drawBoard(t)
		frame, err := EncodeClientMessage(Drop{Board: board})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeClientMessage(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		drop, ok := got.(Drop)
		if !ok {
			t.Fatalf("decoded %T, want Drop", got)
		}
		if len(drop.Board.Physics) != len(board.Physics) {
			t.Fatalf("physics length changed: %d != %d", len(drop.Board.Physics), len(board.Physics))
		}
		if len(drop.Board.Cells) != len(board.Cells) {
			t.Fatalf("cell count changed: %d != %d", len(drop.Board.Cells), len(board.Cells))
		}
		for cell, fruit := range board.Cells {
			if drop.Board.Cells[cell] != fruit {
				t.Fatalf("cell %v changed: %v != %v", cell, drop.Board.Cells[cell], fruit)
			}
		}
	})
}

func TestBoardUpdate_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := BoardUpdate{
			Player: rapid.StringN(0, 32, -1).Draw(t, "player"),
			Board:  drawBoard(t),
		}
		frame, err := EncodeServerMessage(msg)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeServerMessage(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		update, ok := got.(BoardUpdate)
		if !ok {
			t.Fatalf("decoded %T, want BoardUpdate", got)
		}
		if update.Player != msg.Player {
			t.Fatalf("player changed: %q != %q", update.Player, msg.Player)
		}
	})
}
