package control

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Board-wide channel bounds.
const (
	MaxValue = 500.0 // Ceiling for every channel
	MinValue = 0.1   // A decaying channel closer than this to its rest value snaps to it
)

// Vector is the influence held in a cell: one channel per faction plus neutral.
// Every operation returning a Vector keeps each channel within [0, MaxValue].
type Vector struct {
	A       float64 `json:"a" yaml:"a"`
	B       float64 `json:"b" yaml:"b"`
	Neutral float64 `json:"neutral" yaml:"neutral"`
}

// Zero is the empty control vector.
var Zero = Vector{}

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp[T constraints.Float](v, lo, hi T) T {
	if !(v > lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates linearly from start to end by t.
func Lerp(start, end, t float64) float64 {
	return start*(1-t) + end*t
}

// FromChannels builds a clamped vector from channels indexed by Faction.
func FromChannels(ch [3]float64) Vector {
	return Vector{A: ch[FactionA], B: ch[FactionB], Neutral: ch[FactionNeutral]}.Clamp()
}

// Channels returns the channels indexed by Faction.
func (v Vector) Channels() [3]float64 {
	return [3]float64{v.A, v.B, v.Neutral}
}

// Get returns the channel for f.
func (v Vector) Get(f Faction) float64 {
	switch f {
	case FactionA:
		return v.A
	case FactionB:
		return v.B
	default:
		return v.Neutral
	}
}

// Set writes the channel for f, clamped.
func (v *Vector) Set(f Faction, val float64) {
	val = Clamp(val, 0, MaxValue)
	switch f {
	case FactionA:
		v.A = val
	case FactionB:
		v.B = val
	default:
		v.Neutral = val
	}
}

// Clamp returns v with every channel bounded to [0, MaxValue].
func (v Vector) Clamp() Vector {
	return Vector{
		A:       Clamp(v.A, 0, MaxValue),
		B:       Clamp(v.B, 0, MaxValue),
		Neutral: Clamp(v.Neutral, 0, MaxValue),
	}
}

// Add returns the channel-wise sum, saturating at MaxValue.
func (v Vector) Add(o Vector) Vector {
	return Vector{A: v.A + o.A, B: v.B + o.B, Neutral: v.Neutral + o.Neutral}.Clamp()
}

// Sub returns the channel-wise difference, floored at zero.
func (v Vector) Sub(o Vector) Vector {
	return Vector{A: v.A - o.A, B: v.B - o.B, Neutral: v.Neutral - o.Neutral}.Clamp()
}

// Scale multiplies every channel by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{A: v.A * k, B: v.B * k, Neutral: v.Neutral * k}.Clamp()
}

// Total is the sum of all channels.
func (v Vector) Total() float64 {
	return v.A + v.B + v.Neutral
}

// Empty reports whether every channel is at or below the MinValue floor.
func (v Vector) Empty() bool {
	return v.A <= MinValue && v.B <= MinValue && v.Neutral <= MinValue
}

// MaxStatus returns the dominant faction of v.
func (v Vector) MaxStatus() Faction {
	return MaxStatus(v)
}

// Tint returns each channel's share of the total, for colouring a cell.
// An empty vector has no tint.
func (v Vector) Tint() (a, neutral, b float64) {
	total := v.Total()
	if total <= 0 {
		return 0, 0, 0
	}
	return v.A / total, v.Neutral / total, v.B / total
}

func (v Vector) String() string {
	return fmt.Sprintf("{a:%.2f b:%.2f neutral:%.2f}", v.A, v.B, v.Neutral)
}
