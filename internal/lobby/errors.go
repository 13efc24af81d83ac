package lobby

import "errors"

// Recoverable command failures, returned to the request caller and
// surfaced as client errors. None of these terminate the coordinator.
var (
	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrLobbyFull      = errors.New("lobby full")
	ErrNameTaken      = errors.New("name already taken")
	ErrGameNotStarted = errors.New("game not started")
)

// ErrCoordinatorClosed is returned when a command is issued after the
// coordinator loop has stopped.
var ErrCoordinatorClosed = errors.New("coordinator closed")
