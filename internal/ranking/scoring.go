package ranking

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProfile is returned by Profile.Validate.
var ErrInvalidProfile = errors.New("invalid runner profile")

// Role is the training-style bucket a run is scored under.
type Role string

const (
	RoleMarathoner Role = "marathoner"
	RoleSprinter   Role = "sprinter"
)

// Roles lists the roles in their canonical order.
func Roles() []Role {
	return []Role{RoleMarathoner, RoleSprinter}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMarathoner || r == RoleSprinter
}

// ParseRole resolves a role from its case-insensitive name.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Sex only feeds the expected-pace baseline.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// Valid reports whether s is a known value.
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

// Experience is the self-reported running experience level.
type Experience string

const (
	Beginner     Experience = "beginner"
	Intermediate Experience = "intermediate"
	Advanced     Experience = "advanced"
	Elite        Experience = "elite"
)

// Valid reports whether e is a known level.
func (e Experience) Valid() bool {
	switch e {
	case Beginner, Intermediate, Advanced, Elite:
		return true
	}
	return false
}

// Profile holds the runner attributes that scoring normalises for.
type Profile struct {
	Age        int        `json:"age" yaml:"age" mapstructure:"age"`
	Sex        Sex        `json:"sex" yaml:"sex" mapstructure:"sex"`
	WeightKg   float64    `json:"weight_kg" yaml:"weight_kg" mapstructure:"weight_kg"`
	Experience Experience `json:"experience" yaml:"experience" mapstructure:"experience"`
	MainRole   Role       `json:"main_role" yaml:"main_role" mapstructure:"main_role"`
}

// Validate checks the profile can be scored against.
func (p Profile) Validate() error {
	if p.Age <= 0 {
		return fmt.Errorf("%w: age must be > 0", ErrInvalidProfile)
	}
	if !p.Sex.Valid() {
		return fmt.Errorf("%w: unknown sex %q", ErrInvalidProfile, p.Sex)
	}
	if !p.Experience.Valid() {
		return fmt.Errorf("%w: unknown experience %q", ErrInvalidProfile, p.Experience)
	}
	if p.WeightKg < 0 {
		return fmt.Errorf("%w: weight must be >= 0", ErrInvalidProfile)
	}
	if p.MainRole != "" && !p.MainRole.Valid() {
		return fmt.Errorf("%w: unknown main role %q", ErrInvalidProfile, p.MainRole)
	}
	return nil
}

// RunInput is the subset of a recorded run that scoring reads.
type RunInput struct {
	Role           Role    `json:"role" yaml:"role"`
	DistanceKm     float64 `json:"distance_km" yaml:"distance_km"`
	DurationSec    float64 `json:"duration_sec" yaml:"duration_sec"`
	AvgPace        float64 `json:"avg_pace" yaml:"avg_pace"`
	AvgHeartRate   int     `json:"avg_heart_rate" yaml:"avg_heart_rate"`
	MaxHeartRate   int     `json:"max_heart_rate" yaml:"max_heart_rate"`
	ElevationGainM float64 `json:"elevation_gain_m" yaml:"elevation_gain_m"`
}

// Pace returns the stored average pace, deriving it from duration and distance when unset.
func (r RunInput) Pace() float64 {
	if r.AvgPace > 0 {
		return r.AvgPace
	}
	return Pace(r.DurationSec, r.DistanceKm)
}

// Pace converts a duration in seconds over a distance in km to min/km.
func Pace(durationSec, distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return durationSec / 60.0 / distanceKm
}

// ComputeRunLP scores a run for a profile that may not exist yet. Without a
// profile it awards 0 so the caller can retry once one is registered.
func ComputeRunLP(run RunInput, profile *Profile) int {
	if profile == nil {
		return 0
	}
	return CalculateLP(run, *profile)
}

// CalculateLP converts a run into League Points. The accumulator is a float64 that
// is floored once at the end; the order of the steps below is part of the contract.
// The result is always at least 1.
func CalculateLP(run RunInput, profile Profile) int {
	lp := distanceLP(run.DistanceKm, run.Role)
	lp *= paceModifier(run.Pace(), run.DistanceKm, run.Role, profile)
	lp += heartRateBonus(run.AvgHeartRate, profile.Age)
	lp += run.ElevationGainM * 0.1
	lp *= experienceModifier(profile.Experience)
	lp *= ageModifier(profile.Age)
	return max(1, int(math.Floor(lp)))
}

func distanceLP(distance float64, role Role) float64 {
	if role == RoleSprinter {
		switch {
		case distance >= 5:
			return 20 + (distance-5)*1
		case distance >= 3:
			return 15 + (distance-3)*2.5
		default:
			return distance * 5
		}
	}

	switch {
	case distance >= 20:
		return 50 + (distance-20)*3
	case distance >= 10:
		return 30 + (distance-10)*2
	case distance >= 5:
		return 15 + (distance-5)*3
	default:
		return distance * 3
	}
}

func paceModifier(pace, distance float64, role Role, profile Profile) float64 {
	ratio := expectedPace(distance, role, profile) / pace
	switch {
	case ratio < 1.0:
		return 1.0 + (1.0-ratio)*0.5
	case ratio > 1.2:
		return 0.8
	default:
		return 1.0
	}
}

// expectedPace is the min/km baseline a runner with this profile is measured against.
func expectedPace(distance float64, role Role, profile Profile) float64 {
	base := 6.0
	if role == RoleSprinter {
		base = 4.5
	}

	if profile.Age < 25 {
		base -= 0.3
	} else if profile.Age > 40 {
		base += float64(profile.Age-40) * 0.05
	}

	if profile.Sex == SexFemale {
		base += 0.5
	}

	switch profile.Experience {
	case Beginner:
		base += 1.0
	case Intermediate:
		base += 0.3
	case Advanced:
		base -= 0.5
	case Elite:
		base -= 1.0
	}

	if distance > 15 {
		base += 0.5
	} else if distance > 10 {
		base += 0.3
	}

	return math.Max(4.0, base)
}

func heartRateBonus(avgHR, age int) float64 {
	estimatedMax := 220 - age
	if estimatedMax <= 0 {
		return 0
	}
	fraction := float64(avgHR) / float64(estimatedMax)
	switch {
	case fraction >= 0.6 && fraction <= 0.8:
		return 5.0
	case fraction > 0.9:
		return 2.0
	default:
		return 0.0
	}
}

func experienceModifier(e Experience) float64 {
	switch e {
	case Beginner:
		return 1.3
	case Intermediate:
		return 1.1
	case Elite:
		return 0.9
	default:
		return 1.0
	}
}

func ageModifier(age int) float64 {
	switch {
	case age < 20:
		return 1.0
	case age < 30:
		return 1.0
	case age < 40:
		return 1.05
	case age < 50:
		return 1.1
	case age < 60:
		return 1.15
	default:
		return 1.2
	}
}

// PlaceFromHistory derives an initial ladder position from a batch of past runs.
// It ignores any stored tier: the LP of every workout plus a frequency bonus of
// 10 per workout (capped at 200) is mapped straight onto the ladder.
func PlaceFromHistory(workouts []RunInput, profile Profile) Placement {
	if len(workouts) == 0 {
		return Placement{Tier: Iron, Grade: EntryGrade}
	}

	total := 0
	for _, w := range workouts {
		total += CalculateLP(w, profile)
	}
	total += min(len(workouts)*10, 200)
	return LPToPlacement(total)
}
