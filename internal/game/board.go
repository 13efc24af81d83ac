// Package game defines the board data model shared by the lobby
// coordinator and the wire protocol.
package game

import "fmt"

// FruitType identifies the contents of a single board cell.
// The numeric values are wire-significant and must not be reordered.
type FruitType uint8

// The eleven fruit kinds, smallest to largest.
const (
	FruitCherry FruitType = iota
	FruitStrawberry
	FruitGrape
	FruitOrange
	FruitPersimmon
	FruitApple
	FruitYuzu
	FruitPeach
	FruitPineapple
	FruitHoneydew
	FruitWatermelon
)

// fruitCount is the number of valid FruitType values.
const fruitCount = 11

var fruitNames = [fruitCount]string{
	"cherry", "strawberry", "grape", "orange", "persimmon", "apple",
	"yuzu", "peach", "pineapple", "honeydew", "watermelon",
}

// Valid reports whether f is one of the eleven defined fruit kinds.
func (f FruitType) Valid() bool {
	return uint8(f) < fruitCount
}

// String returns the lowercase fruit name, or a numeric placeholder for
// out-of-range values.
func (f FruitType) String() string {
	if !f.Valid() {
		return fmt.Sprintf("fruit(%d)", uint8(f))
	}
	return fruitNames[f]
}

// Cell addresses one occupied position in the sparse board grid.
type Cell struct {
	X uint32
	Y uint32
}

// BoardState is a player's latest board: an opaque physics snapshot the
// server never interprets, plus a sparse grid of typed fruit cells.
type BoardState struct {
	// Physics is the serialized physics-engine state, treated as an
	// opaque blob.
	Physics []byte
	// Cells maps occupied grid positions to their fruit kind.
	Cells map[Cell]FruitType
}

// NewBoardState returns an empty board with a non-nil cell map.
//
// Postcondition: Returns a BoardState with zero cells and no physics blob.
func NewBoardState() BoardState {
	return BoardState{Cells: make(map[Cell]FruitType)}
}
