package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTierLadder(t *testing.T) {
	require.Len(t, Tiers(), 10)
	for i, tier := range Tiers() {
		require.Equal(t, i*LPPerTier, tier.BaseLP())
	}
	require.Equal(t, 7200, Challenger.BaseLP())

	next, ok := Gold.Next()
	require.True(t, ok)
	require.Equal(t, Platinum, next)

	_, ok = Challenger.Next()
	require.False(t, ok)

	require.Equal(t, "Grandmaster", Grandmaster.DisplayName())
	require.Equal(t, "rainbow", Challenger.Color())
}

func TestTierTextRoundTrip(t *testing.T) {
	text, err := Emerald.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "emerald", string(text))

	var decoded Tier
	require.NoError(t, decoded.UnmarshalText([]byte("EMERALD")))
	require.Equal(t, Emerald, decoded)

	require.Error(t, decoded.UnmarshalText([]byte("wood")))
	_, err = Tier(42).MarshalText()
	require.Error(t, err)
}

func TestNextTierLP(t *testing.T) {
	require.Equal(t, 200, State{Tier: Iron, Grade: 4}.NextTierLP())
	require.Equal(t, 800, State{Tier: Iron, Grade: 1}.NextTierLP())
	require.Equal(t, 3200, State{Tier: Gold, Grade: 1}.NextTierLP())
	require.Equal(t, 2800, State{Tier: Gold, Grade: 3}.NextTierLP())
}

func TestEvaluateGradeThreshold(t *testing.T) {
	state := State{Tier: Silver, Grade: 2}
	threshold := state.NextTierLP()

	state.LP = threshold - 1
	require.Equal(t, Transition{Kind: NoChange}, Evaluate(state))

	state.LP = threshold
	result := Evaluate(state)
	require.Equal(t, GradeUp, result.Kind)

	Apply(&state, result, time.Now())
	require.Equal(t, 1, state.Grade)
	require.Equal(t, threshold, state.LP)
	require.Empty(t, state.History)
}

func TestEvaluatePromotionResetsLP(t *testing.T) {
	at := time.Date(2025, time.November, 2, 7, 30, 0, 0, time.UTC)
	state := State{Role: RoleMarathoner, Tier: Gold, Grade: 1}
	state.LP = state.NextTierLP() + 57

	result := Evaluate(state)
	require.Equal(t, Transition{Kind: Promotion, Next: Platinum}, result)

	Apply(&state, result, at)
	require.Equal(t, Platinum, state.Tier)
	require.Equal(t, 4, state.Grade)
	require.Equal(t, 3200, state.LP)
	require.Len(t, state.History, 1)
	require.Equal(t, HistoryEntry{Date: at, Tier: Gold, Grade: 1, LP: 3257}, state.History[0])
}

func TestEvaluateChallengerPlateau(t *testing.T) {
	state := State{Tier: Challenger, Grade: 1, LP: 9000}
	before := state

	result := Evaluate(state)
	require.Equal(t, NoChange, result.Kind)

	Apply(&state, result, time.Now())
	require.Equal(t, before, state)
}

func TestEvaluateOnlyOneStepPerCall(t *testing.T) {
	// A large LP jump advances one grade per evaluation; callers loop until NoChange.
	state := NewState(RoleSprinter, time.Time{})
	state.LP = 650

	steps := 0
	for {
		result := Evaluate(state)
		if !result.Changed() {
			break
		}
		Apply(&state, result, time.Time{})
		steps++
	}
	require.Equal(t, 3, steps)
	require.Equal(t, "Iron 1", state.Name())
	require.Equal(t, 650, state.LP)
}

func TestAdvanceStopsAfterPromotion(t *testing.T) {
	state := State{Tier: Iron, Grade: 3, LP: 850}

	taken := Advance(&state, time.Time{})
	require.Equal(t, []Transition{
		{Kind: GradeUp},
		{Kind: GradeUp},
		{Kind: Promotion, Next: Bronze},
	}, taken)
	require.Equal(t, "Bronze 4", state.Name())
	require.Equal(t, 800, state.LP)
	require.Len(t, state.History, 1)

	require.Empty(t, Advance(&state, time.Time{}))
}

func TestProgress(t *testing.T) {
	state := State{Tier: Bronze, Grade: 3, LP: 1050}
	require.InDelta(t, 0.25, state.Progress(), 1e-9)

	state.LP = 900
	require.Less(t, state.Progress(), 0.0)
}

func TestLPToPlacement(t *testing.T) {
	cases := []struct {
		lp   int
		want Placement
	}{
		{lp: -40, want: Placement{Tier: Iron, Grade: 4}},
		{lp: 0, want: Placement{Tier: Iron, Grade: 4}},
		{lp: 199, want: Placement{Tier: Iron, Grade: 4}},
		{lp: 200, want: Placement{Tier: Iron, Grade: 3}},
		{lp: 799, want: Placement{Tier: Iron, Grade: 1}},
		{lp: 800, want: Placement{Tier: Bronze, Grade: 4}},
		{lp: 2650, want: Placement{Tier: Gold, Grade: 3}},
		{lp: 7200, want: Placement{Tier: Challenger, Grade: 4}},
		{lp: 12000, want: Placement{Tier: Challenger, Grade: 1}},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, LPToPlacement(tc.lp), "lp=%d", tc.lp)
	}
}

func TestPlacementSeedLP(t *testing.T) {
	require.Equal(t, 0, Placement{Tier: Iron, Grade: 4}.SeedLP())
	require.Equal(t, 2000, Placement{Tier: Silver, Grade: 2}.SeedLP())
	require.Equal(t, "Silver 2", Placement{Tier: Silver, Grade: 2}.String())
}
