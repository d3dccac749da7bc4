package side

import "fmt"

// Side identifies one of the two seats at the table.
type Side int

const (
	// Player is the human seat.
	Player Side = iota
	// Opponent is the seat driven by the AI policy.
	Opponent
)

// All lists both sides in seat order.
var All = [...]Side{Player, Opponent}

var sideNames = map[Side]string{
	Player:   "PLAYER",
	Opponent: "OPPONENT",
}

func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SIDE_%d", int(s))
}

// Valid reports whether s is one of the two seats.
func (s Side) Valid() bool {
	return s == Player || s == Opponent
}

// Other returns the opposing seat.
func (s Side) Other() Side {
	if s == Player {
		return Opponent
	}
	return Player
}

// Human reports whether the seat is controlled by external input.
func (s Side) Human() bool {
	return s == Player
}

// Parse resolves a side from its name ("player"/"opponent", case-insensitive).
func Parse(name string) (Side, bool) {
	switch name {
	case "PLAYER", "player", "Player":
		return Player, true
	case "OPPONENT", "opponent", "Opponent", "ai", "AI":
		return Opponent, true
	}
	return Player, false
}
