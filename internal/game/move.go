package game

import "strings"

// Move is one of the three throwable hands.
type Move uint8

const (
	// MoveNone marks an empty slot; a player that has not thrown yet.
	MoveNone Move = 0
	Rock     Move = 1
	Paper    Move = 2
	Scissors Move = 3
)

// String returns the canonical lowercase encoding.
func (m Move) String() string {
	switch m {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	default:
		return ""
	}
}

// Valid reports whether m is a throwable move (not MoveNone).
func (m Move) Valid() bool {
	return m == Rock || m == Paper || m == Scissors
}

// ParseMove accepts the canonical encodings case-insensitively.
// Returns MoveNone and false for anything else.
func ParseMove(s string) (Move, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock":
		return Rock, true
	case "paper":
		return Paper, true
	case "scissors":
		return Scissors, true
	default:
		return MoveNone, false
	}
}

// Outcome is the result of one round from player one's perspective.
type Outcome uint8

const (
	Draw  Outcome = 0
	P1Win Outcome = 1
	P2Win Outcome = 2
)

// String returns the wire encoding.
func (o Outcome) String() string {
	switch o {
	case P1Win:
		return "p1_win"
	case P2Win:
		return "p2_win"
	default:
		return "draw"
	}
}

// Flip mirrors an outcome to the other player's perspective.
func (o Outcome) Flip() Outcome {
	switch o {
	case P1Win:
		return P2Win
	case P2Win:
		return P1Win
	default:
		return Draw
	}
}

// beats[a] is the move that a defeats.
var beats = map[Move]Move{
	Rock:     Scissors,
	Paper:    Rock,
	Scissors: Paper,
}

// Resolve decides a round. Both moves must be valid; callers enforce that.
func Resolve(p1, p2 Move) Outcome {
	if p1 == p2 {
		return Draw
	}
	if beats[p1] == p2 {
		return P1Win
	}
	return P2Win
}
