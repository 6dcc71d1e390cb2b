package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateLPWorkedExample(t *testing.T) {
	profile := Profile{Age: 30, Sex: SexMale, Experience: Advanced, MainRole: RoleMarathoner}
	run := RunInput{
		Role:         RoleMarathoner,
		DistanceKm:   10,
		DurationSec:  3600,
		AvgHeartRate: 140,
		MaxHeartRate: 170,
	}

	require.InDelta(t, 6.0, run.Pace(), 1e-9)
	require.Equal(t, 38, CalculateLP(run, profile))
}

func TestCalculateLPScenarios(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		run     RunInput
		want    int
	}{
		{
			name:    "sprinter beginner with high intensity bonus and elevation",
			profile: Profile{Age: 22, Sex: SexFemale, Experience: Beginner},
			run:     RunInput{Role: RoleSprinter, DistanceKm: 2, DurationSec: 600, AvgHeartRate: 180, ElevationGainM: 10},
			want:    16,
		},
		{
			name:    "marathoner well behind expected pace earns pace bonus",
			profile: Profile{Age: 45, Sex: SexMale, Experience: Intermediate},
			run:     RunInput{Role: RoleMarathoner, DistanceKm: 12, DurationSec: 6480, AvgHeartRate: 100},
			want:    46,
		},
		{
			name:    "elite ratio above 1.2 takes the 0.8 modifier",
			profile: Profile{Age: 30, Sex: SexMale, Experience: Elite},
			run:     RunInput{Role: RoleMarathoner, DistanceKm: 3, DurationSec: 540},
			want:    6,
		},
		{
			name:    "half marathon veteran with climbing",
			profile: Profile{Age: 52, Sex: SexFemale, Experience: Intermediate},
			run:     RunInput{Role: RoleMarathoner, DistanceKm: 21.1, DurationSec: 7596, AvgHeartRate: 150, ElevationGainM: 120},
			want:    69,
		},
		{
			name:    "sprinter on expected pace exactly",
			profile: Profile{Age: 35, Sex: SexMale, Experience: Advanced},
			run:     RunInput{Role: RoleSprinter, DistanceKm: 4, DurationSec: 960, AvgHeartRate: 170, ElevationGainM: 5},
			want:    21,
		},
		{
			name:    "tiny run is floored to one",
			profile: Profile{Age: 30, Sex: SexMale, Experience: Advanced},
			run:     RunInput{Role: RoleSprinter, DistanceKm: 0.1, DurationSec: 60},
			want:    1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CalculateLP(tc.run, tc.profile))
		})
	}
}

func TestCalculateLPIsDeterministicAndPositive(t *testing.T) {
	profile := Profile{Age: 61, Sex: SexOther, Experience: Elite}
	for _, role := range Roles() {
		for d := 0.5; d <= 45; d += 0.5 {
			run := RunInput{Role: role, DistanceKm: d, DurationSec: d * 330, AvgHeartRate: 120}
			first := CalculateLP(run, profile)
			require.GreaterOrEqual(t, first, 1)
			require.Equal(t, first, CalculateLP(run, profile))
		}
	}
}

func TestDistanceLPMonotonic(t *testing.T) {
	for _, role := range Roles() {
		prev := distanceLP(0, role)
		for d := 0.05; d <= 60; d += 0.05 {
			current := distanceLP(d, role)
			require.GreaterOrEqualf(t, current, prev, "role=%s distance=%.2f", role, d)
			prev = current
		}
	}
}

func TestExpectedPaceAdjustments(t *testing.T) {
	require.InDelta(t, 5.5, expectedPace(10, RoleMarathoner, Profile{Age: 30, Sex: SexMale, Experience: Advanced}), 1e-9)
	require.InDelta(t, 5.8, expectedPace(12, RoleMarathoner, Profile{Age: 30, Sex: SexMale, Experience: Advanced}), 1e-9)
	require.InDelta(t, 6.0, expectedPace(16, RoleMarathoner, Profile{Age: 30, Sex: SexMale, Experience: Advanced}), 1e-9)
	require.InDelta(t, 6.8, expectedPace(5, RoleMarathoner, Profile{Age: 50, Sex: SexMale, Experience: Intermediate}), 1e-9)
	// Sprinter elite under 25 would fall to 3.2, clamped to 4.0.
	require.InDelta(t, 4.0, expectedPace(2, RoleSprinter, Profile{Age: 20, Sex: SexMale, Experience: Elite}), 1e-9)
}

func TestHeartRateBonusBands(t *testing.T) {
	// estimated max for age 20 is 200
	require.Equal(t, 0.0, heartRateBonus(110, 20))
	require.Equal(t, 5.0, heartRateBonus(120, 20))
	require.Equal(t, 5.0, heartRateBonus(160, 20))
	require.Equal(t, 0.0, heartRateBonus(170, 20))
	require.Equal(t, 0.0, heartRateBonus(180, 20))
	require.Equal(t, 2.0, heartRateBonus(182, 20))
	require.Equal(t, 0.0, heartRateBonus(0, 20))
}

func TestAgeModifierBands(t *testing.T) {
	require.Equal(t, 1.0, ageModifier(18))
	require.Equal(t, 1.0, ageModifier(29))
	require.Equal(t, 1.05, ageModifier(30))
	require.Equal(t, 1.1, ageModifier(40))
	require.Equal(t, 1.15, ageModifier(59))
	require.Equal(t, 1.2, ageModifier(60))
}

func TestComputeRunLPWithoutProfile(t *testing.T) {
	run := RunInput{Role: RoleMarathoner, DistanceKm: 10, DurationSec: 3600}
	require.Equal(t, 0, ComputeRunLP(run, nil))

	profile := Profile{Age: 30, Sex: SexMale, Experience: Advanced}
	require.Equal(t, CalculateLP(run, profile), ComputeRunLP(run, &profile))
}

func TestPlaceFromHistory(t *testing.T) {
	profile := Profile{Age: 52, Sex: SexFemale, Experience: Intermediate}

	t.Run("empty history starts at iron 4", func(t *testing.T) {
		require.Equal(t, Placement{Tier: Iron, Grade: 4}, PlaceFromHistory(nil, profile))
	})

	t.Run("few runs stay in iron", func(t *testing.T) {
		run := RunInput{Role: RoleMarathoner, DistanceKm: 10, DurationSec: 3600, AvgHeartRate: 140}
		worked := Profile{Age: 30, Sex: SexMale, Experience: Advanced}
		// 3 x 38 LP + 30 frequency bonus
		require.Equal(t, Placement{Tier: Iron, Grade: 4}, PlaceFromHistory([]RunInput{run, run, run}, worked))
	})

	t.Run("frequency bonus caps at 200", func(t *testing.T) {
		run := RunInput{Role: RoleMarathoner, DistanceKm: 21.1, DurationSec: 7596, AvgHeartRate: 150, ElevationGainM: 120}
		workouts := make([]RunInput, 25)
		for i := range workouts {
			workouts[i] = run
		}
		// 25 x 69 + 200 = 1925
		require.Equal(t, Placement{Tier: Silver, Grade: 3}, PlaceFromHistory(workouts, profile))
	})
}

func TestProfileValidate(t *testing.T) {
	valid := Profile{Age: 30, Sex: SexMale, Experience: Advanced, MainRole: RoleMarathoner}
	require.NoError(t, valid.Validate())

	invalid := []Profile{
		{Age: 0, Sex: SexMale, Experience: Advanced},
		{Age: 30, Sex: "robot", Experience: Advanced},
		{Age: 30, Sex: SexMale, Experience: "pro"},
		{Age: 30, Sex: SexMale, Experience: Advanced, MainRole: "swimmer"},
		{Age: 30, Sex: SexMale, Experience: Advanced, WeightKg: -1},
	}
	for _, p := range invalid {
		require.ErrorIs(t, p.Validate(), ErrInvalidProfile)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Sprinter ")
	require.NoError(t, err)
	require.Equal(t, RoleSprinter, role)

	_, err = ParseRole("cyclist")
	require.Error(t, err)
}
