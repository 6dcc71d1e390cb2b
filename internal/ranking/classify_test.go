package ranking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyRole(t *testing.T) {
	cases := []struct {
		distance float64
		pace     float64
		want     Role
	}{
		{distance: 5, pace: 4.0, want: RoleMarathoner},
		{distance: 12, pace: 7.5, want: RoleMarathoner},
		{distance: 2.5, pace: 4.8, want: RoleSprinter},
		{distance: 2.5, pace: 6.0, want: RoleMarathoner},
		{distance: 4, pace: 5.2, want: RoleSprinter},
		{distance: 4, pace: 5.5, want: RoleSprinter},
		{distance: 4, pace: 5.6, want: RoleMarathoner},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, ClassifyRole(tc.distance, tc.pace), "distance=%.1f pace=%.1f", tc.distance, tc.pace)
	}
}

func TestValidateRun(t *testing.T) {
	require.NoError(t, ValidateRun(0.5, 300))
	require.NoError(t, ValidateRun(10, 3600))
	require.ErrorIs(t, ValidateRun(0.4, 3600), ErrRunTooShort)
	require.ErrorIs(t, ValidateRun(5, 299), ErrRunTooShort)
	require.ErrorIs(t, ValidateRun(0, 600), ErrInvalidRun)
	require.ErrorIs(t, ValidateRun(3, -1), ErrInvalidRun)
}
