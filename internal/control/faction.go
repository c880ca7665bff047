// Package control provides the per-cell influence state of the board:
// the three-channel control vector and the factions derived from it.
package control

// Faction identifies who holds a cell.
// Declaration order is the tie-break order used by MaxStatus: A, then B, then Neutral.
type Faction uint8

const (
	FactionA       Faction = iota // First competing faction (red in the original art)
	FactionB                      // Second competing faction (blue)
	FactionNeutral                // Nobody
)

// Factions lists every faction in tie-break order.
var Factions = [3]Faction{FactionA, FactionB, FactionNeutral}

// Competing lists the factional channels that diffuse across the board.
var Competing = [2]Faction{FactionA, FactionB}

// String returns the faction's display name.
func (f Faction) String() string {
	switch f {
	case FactionA:
		return "a"
	case FactionB:
		return "b"
	case FactionNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// Hostile reports whether f and other are opposing factions.
// Neutral is hostile to nobody.
func (f Faction) Hostile(other Faction) bool {
	if f == FactionNeutral || other == FactionNeutral {
		return false
	}
	return f != other
}

// MaxStatus returns the dominant faction of v: the channel with the largest
// value, ties going to the earlier faction in declaration order.
func MaxStatus(v Vector) Faction {
	best := FactionA
	bestVal := v.Get(FactionA)
	for _, f := range Factions[1:] {
		if val := v.Get(f); val > bestVal {
			best, bestVal = f, val
		}
	}
	return best
}
