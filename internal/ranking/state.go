package ranking

import (
	"fmt"
	"time"
)

// HistoryEntry records the state a runner left behind when promoted.
type HistoryEntry struct {
	Date  time.Time `json:"date"`
	Tier  Tier      `json:"tier"`
	Grade int       `json:"grade"`
	LP    int       `json:"lp"`
}

// State is the ladder position of one runner in one role.
//
// While Grade is 2..4 the LP stays inside the tier's band. At grade 1 LP may reach
// the next tier's base, which is what triggers a promotion.
type State struct {
	Role        Role           `json:"role"`
	Tier        Tier           `json:"tier"`
	Grade       int            `json:"grade"`
	LP          int            `json:"lp"`
	SeasonStart time.Time      `json:"season_start"`
	History     []HistoryEntry `json:"history"`
}

// NewState returns the entry position (Iron 4, 0 LP) for a role.
func NewState(role Role, seasonStart time.Time) State {
	return State{
		Role:        role,
		Tier:        Iron,
		Grade:       EntryGrade,
		LP:          Iron.BaseLP(),
		SeasonStart: seasonStart,
	}
}

// GradeFloorLP is the LP at which the current grade band begins.
func (s State) GradeFloorLP() int {
	return s.Tier.BaseLP() + (EntryGrade-s.Grade)*LPPerGrade
}

// NextTierLP is the LP total that advances the runner out of the current grade.
func (s State) NextTierLP() int {
	return s.GradeFloorLP() + LPPerGrade
}

// Progress is the fraction of the current grade band already covered. It is not
// clamped: LP lost to a reclassification can push it below zero.
func (s State) Progress() float64 {
	floor := s.GradeFloorLP()
	return float64(s.LP-floor) / float64(s.NextTierLP()-floor)
}

// Name renders the position as "Gold 2".
func (s State) Name() string {
	return fmt.Sprintf("%s %d", s.Tier.DisplayName(), s.Grade)
}

// TransitionKind enumerates the outcomes of Evaluate.
type TransitionKind int

const (
	NoChange TransitionKind = iota
	GradeUp
	Promotion
)

func (k TransitionKind) String() string {
	switch k {
	case GradeUp:
		return "grade_up"
	case Promotion:
		return "promotion"
	default:
		return "no_change"
	}
}

// Transition is the result of evaluating a state. Next is only meaningful for Promotion.
type Transition struct {
	Kind TransitionKind
	Next Tier
}

// Changed reports whether applying t mutates the state.
func (t Transition) Changed() bool {
	return t.Kind != NoChange
}

// Evaluate decides what the current LP total earns. It never mutates the state.
func Evaluate(s State) Transition {
	if s.LP < s.NextTierLP() {
		return Transition{Kind: NoChange}
	}
	if s.Grade > TopGrade {
		return Transition{Kind: GradeUp}
	}
	next, ok := s.Tier.Next()
	if !ok {
		// Challenger 1 is a plateau; LP keeps accumulating without a transition.
		return Transition{Kind: NoChange}
	}
	return Transition{Kind: Promotion, Next: next}
}

// Apply mutates s according to t. Promotions log the outgoing position, reset the
// grade to the entry grade and reset LP to the new tier's base, discarding excess LP.
// Grade-ups keep LP untouched.
func Apply(s *State, t Transition, at time.Time) {
	switch t.Kind {
	case Promotion:
		s.History = append(s.History, HistoryEntry{
			Date:  at,
			Tier:  s.Tier,
			Grade: s.Grade,
			LP:    s.LP,
		})
		s.Tier = t.Next
		s.Grade = EntryGrade
		s.LP = t.Next.BaseLP()
	case GradeUp:
		s.Grade--
	}
}

// Advance evaluates and applies transitions until the state settles, returning
// every transition taken in order. A single LP award spanning several grade bands
// climbs each of them; a promotion resets LP to the new base, so it always ends the walk.
func Advance(s *State, at time.Time) []Transition {
	var taken []Transition
	for {
		t := Evaluate(*s)
		if !t.Changed() {
			return taken
		}
		Apply(s, t, at)
		taken = append(taken, t)
	}
}

// Placement is a ladder position assigned without incremental promotion.
type Placement struct {
	Tier  Tier `json:"tier"`
	Grade int  `json:"grade"`
}

// SeedLP is the LP a tier placed at p starts with: the floor of its grade band.
func (p Placement) SeedLP() int {
	return p.Tier.BaseLP() + (EntryGrade-p.Grade)*LPPerGrade
}

func (p Placement) String() string {
	return fmt.Sprintf("%s %d", p.Tier.DisplayName(), p.Grade)
}

// LPToPlacement maps an LP total onto the ladder. Totals beyond Challenger's
// band stay at Challenger 1.
func LPToPlacement(lp int) Placement {
	for t := Challenger; t >= Iron; t-- {
		if lp >= t.BaseLP() {
			steps := min((lp-t.BaseLP())/LPPerGrade, GradesPerTier-1)
			return Placement{Tier: t, Grade: EntryGrade - steps}
		}
	}
	return Placement{Tier: Iron, Grade: EntryGrade}
}
