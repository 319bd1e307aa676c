package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/manager"
	"github.com/derekprior/standings/internal/notify"
	"github.com/derekprior/standings/internal/store"
)

const defaultConfigFile = "standings.yaml"

// loadConfig reads the config file. Without --config and without a
// standings.yaml in the working directory the defaults are used.
func loadConfig(configFlag string) (*config.Config, error) {
	path := configFlag
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); errors.Is(err, fs.ErrNotExist) {
			log.Debug("No config file found, using defaults.", "looked_for", defaultConfigFile)
			cfg := config.Default()
			cfg.ApplyEnv()
			return cfg, nil
		}
		path = defaultConfigFile
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// runner opens the league for one command and closes it afterwards.
type runner struct {
	configFile string
}

func (r *runner) with(fn func(ctx context.Context, mgr *manager.Manager, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(r.configFile)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Storage, store.WithBaseRating(cfg.Rating.BaseRating))
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer st.Close()

		var n notify.Notifier = notify.Nop{}
		if cfg.Notify.SlackWebhookURL != "" || cfg.Notify.DryRun {
			n = notify.NewSlack(cfg.Notify)
		}

		return fn(ctx, manager.New(cfg, st, manager.WithNotifier(n)), args)
	}
}

func setupLogging() {
	log.SetLevel(log.WarnLevel)
	if lvl, ok := os.LookupEnv("STANDINGS_LOG_LEVEL"); ok {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			log.Warn("Invalid log level, keeping default.", "level", lvl, "error", err)
			return
		}
		log.SetLevel(level)
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Error loading .env file", "error", err)
	}
	setupLogging()

	r := &runner{}
	rootCmd := &cobra.Command{
		Use:   "standings",
		Short: "Team league ratings and weekly pairings",
	}
	rootCmd.PersistentFlags().StringVar(&r.configFile, "config", "", "Path to config file (default: standings.yaml in current directory)")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter standings.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	rootCmd.AddCommand(initCmd, teamCommand(r), matchCommand(r), scheduleCommand(r))
	rootCmd.AddCommand(leagueCommands(r)...)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

const configTemplate = `# League Configuration
# ====================
# Ratings, weekly pairing and storage settings for the league.

# Season places league weeks on the calendar. Week 1 is the first match day
# on or after start_date. Blacked-out match days are skipped and push later
# weeks back by one.
season:
  start_date: "2026-04-06"
  match_day: wednesday
  match_time: "19:00"
  blackout_dates:
    - date: "2026-05-27"
      reason: "Gym closed"

# Rating model. Teams start at base_rating and move after every result.
# Winners always gain at least one point; losers lose less in close matches.
rating:
  base_rating: 1000
  k_factor: 20
  point_diff_multiplier: 0.1    # bonus per point of total point difference
  point_diff_cap: 75            # point difference beyond this earns nothing
  placement_matches: 3          # teams are provisional until they play this many
  inactivity_penalty: 10        # applied by "standings penalize"

  # Flat bonus for the winner by exact set line. Keys accept 3-0, 3_0, 3,0 or 3:0.
  margin_bonus:
    "3-0": 5
    "3-1": 3
    "3-2": 1

# Weekly pairing. Teams never meet twice.
schedule:
  matches_per_team: 1
  # Previews use the snake draft when every team is within balanced_spread
  # rating points and there are at least balanced_min_teams teams.
  balanced_spread: 100
  balanced_min_teams: 4
  max_steps: 2000000            # search budget before giving up
  seed: 0                       # 0 seeds from the clock

# Storage backend: json (teams.json + matches.json in dir) or sqlite (dsn).
# An empty sqlite database imports the json files in dir on first use.
storage:
  backend: json
  dir: data
  dsn: standings.db
  backup_dir: backups

# Slack incoming webhook for results and new weeks. The URL can also come
# from STANDINGS_SLACK_WEBHOOK_URL. With dry_run the messages are only logged.
notify:
  slack_webhook_url: ""
  dry_run: false
`
