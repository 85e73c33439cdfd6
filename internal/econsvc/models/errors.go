package models

import "errors"

// Storage-level invariant violations. Stores of every backing technology
// return these sentinels so callers can react without driver knowledge.
var (
	// ErrDuplicateMove means a move already exists for the (round, player) pair.
	ErrDuplicateMove = errors.New("move already exists for this round and player")

	// ErrRoundExists means a round with the same (game, round_number) already exists.
	ErrRoundExists = errors.New("round already exists for this game and round number")
)
