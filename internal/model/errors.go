package model

import "errors"

// Common errors used across the application
var (
	// Connection errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotVerified        = errors.New("connection not verified")
	ErrAlreadyInSession   = errors.New("connection is already in a session")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrNotInSession        = errors.New("connection is not in session")
	ErrNotHost             = errors.New("connection is not the host")
	ErrWrongState          = errors.New("operation not valid in current session state")
	ErrInsufficientPlayers = errors.New("insufficient players to start")
	ErrLocationsNotReady   = errors.New("round locations still generating")
	ErrInvalidJoinCode     = errors.New("invalid join code")
	ErrInvalidOptions      = errors.New("invalid session options")
	ErrAlreadyFinal        = errors.New("guess already finalized")

	// Matchmaking errors
	ErrAlreadyQueued = errors.New("connection is already queued")
	ErrSubnetBanned  = errors.New("subnet is banned from matchmaking")

	// Snapshot errors
	ErrSnapshotNotFound = errors.New("no snapshot present")
	ErrSnapshotStale    = errors.New("snapshot is too old to restore")

	// Maintenance
	ErrMaintenance = errors.New("server is in maintenance mode")
)
