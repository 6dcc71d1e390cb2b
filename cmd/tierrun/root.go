package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/tierrun/internal/ranking"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	profilePath string
}

// profileKeys maps profile fields to the persistent flags that set them.
var profileKeys = map[string]string{
	"age":        "age",
	"sex":        "sex",
	"weight_kg":  "weight",
	"experience": "experience",
	"main_role":  "main-role",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tierrun",
		Short: "Score runs and place runners on the tier ladder",
		Long: `tierrun scores workouts into League Points and places runners on the
ten-tier ladder, either offline against a local profile or by feeding a
running tierrun deployment.

The runner profile comes from flags, a --profile file (yaml, json or toml)
and TIERRUN_* environment variables, in that order of precedence.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.profilePath, "profile", "", "Runner profile file (yaml, json or toml)")
	pf.Int("age", 30, "Runner age in years")
	pf.String("sex", string(ranking.SexOther), "Runner sex: male, female or other")
	pf.Float64("weight", 0, "Runner weight in kg")
	pf.String("experience", string(ranking.Intermediate), "Experience: beginner, intermediate, advanced or elite")
	pf.String("main-role", "", "Preferred role: marathoner or sprinter")

	cmd.AddCommand(
		newScoreCmd(opts),
		newClassifyCmd(),
		newPlaceCmd(opts),
		newGPXCmd(opts),
		newSyncCmd(opts),
		newPublishCmd(),
	)
	return cmd
}

// loadProfile resolves the runner profile from flags, the profile file and the
// environment.
func (o *rootOptions) loadProfile(cmd *cobra.Command) (ranking.Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("TIERRUN")
	v.AutomaticEnv()

	flags := cmd.Root().PersistentFlags()
	for key, flag := range profileKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return ranking.Profile{}, err
		}
	}
	if o.profilePath != "" {
		v.SetConfigFile(o.profilePath)
		if err := v.ReadInConfig(); err != nil {
			return ranking.Profile{}, fmt.Errorf("read profile: %w", err)
		}
	}

	var profile ranking.Profile
	if err := v.Unmarshal(&profile); err != nil {
		return ranking.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	profile.Sex = ranking.Sex(strings.ToLower(string(profile.Sex)))
	profile.Experience = ranking.Experience(strings.ToLower(string(profile.Experience)))
	profile.MainRole = ranking.Role(strings.ToLower(string(profile.MainRole)))
	if err := profile.Validate(); err != nil {
		return ranking.Profile{}, err
	}
	return profile, nil
}
