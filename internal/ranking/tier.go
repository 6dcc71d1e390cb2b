// Package ranking implements the League Points scoring model and the tier ladder
// that runners climb with it. Everything here is pure: no I/O, no clocks, no locks.
package ranking

import (
	"fmt"
	"strings"
)

// Tier is one of the ten ordered ranks, Iron lowest and Challenger highest.
type Tier int

const (
	Iron Tier = iota
	Bronze
	Silver
	Gold
	Platinum
	Emerald
	Diamond
	Master
	Grandmaster
	Challenger
)

// Ladder constants.
const (
	LPPerGrade    = 200
	GradesPerTier = 4
	LPPerTier     = LPPerGrade * GradesPerTier
	EntryGrade    = 4
	TopGrade      = 1
)

var tierNames = [...]string{
	Iron:        "iron",
	Bronze:      "bronze",
	Silver:      "silver",
	Gold:        "gold",
	Platinum:    "platinum",
	Emerald:     "emerald",
	Diamond:     "diamond",
	Master:      "master",
	Grandmaster: "grandmaster",
	Challenger:  "challenger",
}

var tierBaseLP = [...]int{
	Iron:        0,
	Bronze:      800,
	Silver:      1600,
	Gold:        2400,
	Platinum:    3200,
	Emerald:     4000,
	Diamond:     4800,
	Master:      5600,
	Grandmaster: 6400,
	Challenger:  7200,
}

var tierColors = [...]string{
	Iron:        "gray",
	Bronze:      "brown",
	Silver:      "silver",
	Gold:        "yellow",
	Platinum:    "cyan",
	Emerald:     "green",
	Diamond:     "blue",
	Master:      "purple",
	Grandmaster: "red",
	Challenger:  "rainbow",
}

// Tiers returns every tier in ascending order.
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierNames))
	for t := Iron; t <= Challenger; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is one of the ten defined tiers.
func (t Tier) Valid() bool {
	return t >= Iron && t <= Challenger
}

// BaseLP is the LP floor of the tier.
func (t Tier) BaseLP() int {
	if !t.Valid() {
		return 0
	}
	return tierBaseLP[t]
}

// Next returns the tier directly above t. The second value is false at Challenger.
func (t Tier) Next() (Tier, bool) {
	if !t.Valid() || t == Challenger {
		return t, false
	}
	return t + 1, true
}

// Color is the badge color used by clients when rendering the tier.
func (t Tier) Color() string {
	if !t.Valid() {
		return ""
	}
	return tierColors[t]
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// DisplayName capitalises the tier name, e.g. "Grandmaster".
func (t Tier) DisplayName() string {
	name := t.String()
	if !t.Valid() {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// MarshalText encodes the tier as its lowercase name.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier resolves a tier from its case-insensitive name.
func ParseTier(name string) (Tier, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range tierNames {
		if candidate == normalized {
			return Tier(i), nil
		}
	}
	return Iron, fmt.Errorf("unknown tier %q", name)
}
