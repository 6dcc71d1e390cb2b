package ranking

import "errors"

// Minimum run accepted for scoring.
const (
	MinRunDistanceKm  = 0.5
	MinRunDurationSec = 300
)

var (
	// ErrInvalidRun marks runs with non-positive distance or duration.
	ErrInvalidRun = errors.New("run distance and duration must be > 0")
	// ErrRunTooShort marks runs below the minimum distance or duration.
	ErrRunTooShort = errors.New("run is shorter than 0.5 km or 5 minutes")
)

// ValidateRun rejects degenerate runs before they reach CalculateLP.
func ValidateRun(distanceKm, durationSec float64) error {
	if distanceKm <= 0 || durationSec <= 0 {
		return ErrInvalidRun
	}
	if distanceKm < MinRunDistanceKm || durationSec < MinRunDurationSec {
		return ErrRunTooShort
	}
	return nil
}

// ClassifyRole buckets a run that arrives without a role. Long runs are marathoner
// work, short fast runs sprinter work, and the middle band is decided by pace.
func ClassifyRole(distanceKm, pace float64) Role {
	switch {
	case distanceKm >= 5.0:
		return RoleMarathoner
	case distanceKm < 3.0 && pace < 5.0:
		return RoleSprinter
	case pace > 5.5:
		return RoleMarathoner
	default:
		return RoleSprinter
	}
}
