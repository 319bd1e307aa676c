package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derekprior/standings/internal/config"
	"github.com/derekprior/standings/internal/league"
	"github.com/derekprior/standings/internal/manager"
	"github.com/derekprior/standings/internal/schedule"
	"github.com/derekprior/standings/internal/strategy"
	"github.com/derekprior/standings/internal/validator"
)

func teamCommand(r *runner) *cobra.Command {
	teamCmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	var startRating int
	addCmd := &cobra.Command{
		Use:          "add <name>",
		Short:        "Add a team",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			team, err := mgr.AddTeam(ctx, args[0], startRating)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Added %s (rating %d)\n", team.Name, team.Rating)
			return nil
		}),
	}
	addCmd.Flags().IntVar(&startRating, "rating", -1, "Starting rating (default: base_rating)")

	removeCmd := &cobra.Command{
		Use:          "remove <name>",
		Short:        "Remove a team and every match it played, then recalculate ratings",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			if err := mgr.RemoveTeam(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s\n", args[0])
			return nil
		}),
	}

	activeCmd := func(use, short string, active bool) *cobra.Command {
		status := "inactive"
		if active {
			status = "active"
		}
		return &cobra.Command{
			Use:          use + " <name>",
			Short:        short,
			Args:         cobra.ExactArgs(1),
			SilenceUsage: true,
			RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
				if err := mgr.SetActive(ctx, args[0], active); err != nil {
					return err
				}
				fmt.Printf("✓ %s is now %s\n", args[0], status)
				return nil
			}),
		}
	}

	listCmd := &cobra.Command{
		Use:          "list",
		Short:        "List teams",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			snap, err := mgr.Snapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("  %-24s %6s %4s %4s %6s  %s\n", "Team", "Rating", "W", "L", "Played", "Status")
			for _, t := range snap.Teams {
				fmt.Printf("  %-24s %6d %4d %4d %6d  %s\n", t.Name, t.Rating, t.Wins, t.Losses, t.MatchesPlayed, teamStatus(t))
			}
			return nil
		}),
	}

	historyCmd := &cobra.Command{
		Use:          "history <name>",
		Short:        "Show a team's rating history",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			snap, err := mgr.Snapshot(ctx)
			if err != nil {
				return err
			}
			t, err := snap.Team(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: rating %d, %d-%d (%s)\n", t.Name, t.Rating, t.Wins, t.Losses, teamStatus(*t))
			for _, line := range t.History {
				fmt.Printf("  %s\n", line)
			}
			return nil
		}),
	}

	teamCmd.AddCommand(addCmd, removeCmd,
		activeCmd("activate", "Include a team in future scheduling", true),
		activeCmd("deactivate", "Exclude a team from future scheduling", false),
		listCmd, historyCmd)
	return teamCmd
}

func teamStatus(t league.Team) string {
	switch {
	case !t.Active:
		return "inactive"
	case t.Provisional:
		return "provisional"
	default:
		return "active"
	}
}

// resultFlags collects a result from either set scores or a set line.
type resultFlags struct {
	sets  string
	score string
}

func (f *resultFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sets, "sets", "", `Set scores from team A's side, e.g. "25:20,23:25,25:18,25:15"`)
	cmd.Flags().StringVar(&f.score, "score", "", `Sets won by team A and team B, e.g. "3-1" (default: derived from --sets)`)
}

func (f *resultFlags) result() (league.Result, error) {
	var r league.Result
	if f.sets != "" {
		r.SetScores = strings.FieldsFunc(f.sets, func(c rune) bool { return c == ',' || c == ' ' })
	}
	if f.score != "" {
		line, err := config.ParseSetLine(f.score)
		if err != nil {
			return r, err
		}
		r.SetsA, r.SetsB = line.Won, line.Lost
	}
	if f.sets == "" && f.score == "" {
		return r, fmt.Errorf("a result needs --sets or --score")
	}
	return r, nil
}

func printMatch(m league.Match) {
	score := "-"
	if m.Score != nil {
		score = fmt.Sprintf("%d-%d", m.Score[0], m.Score[1])
	}
	line := fmt.Sprintf("  %-8s wk %-3d %-20s vs %-20s %-5s %-11s", m.ID, m.Week, m.TeamA, m.TeamB, score, m.State())
	if m.Completed {
		line += fmt.Sprintf(" %+d / %+d", m.DeltaA, m.DeltaB)
	} else if m.ScheduledAt != nil {
		line += " " + m.ScheduledAt.Format("Mon 01/02 15:04")
	}
	fmt.Println(strings.TrimRight(line, " "))
}

func matchCommand(r *runner) *cobra.Command {
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Record and manage matches",
	}

	var record resultFlags
	recordCmd := &cobra.Command{
		Use:          "record <match-id>",
		Short:        "Record the result of a scheduled match",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			res, err := record.result()
			if err != nil {
				return err
			}
			m, err := mgr.RecordResult(ctx, args[0], res)
			if err != nil {
				return err
			}
			fmt.Println("✓ Recorded")
			printMatch(m)
			return nil
		}),
	}
	record.register(recordCmd)

	var adhoc resultFlags
	addCmd := &cobra.Command{
		Use:          "add <team-a> <team-b>",
		Short:        "Record a match that was never scheduled",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			res, err := adhoc.result()
			if err != nil {
				return err
			}
			m, err := mgr.RecordMatch(ctx, args[0], args[1], res)
			if err != nil {
				return err
			}
			fmt.Println("✓ Recorded")
			printMatch(m)
			return nil
		}),
	}
	adhoc.register(addCmd)

	var edit resultFlags
	editCmd := &cobra.Command{
		Use:          "edit <match-id>",
		Short:        "Correct a recorded result and recalculate all ratings",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			res, err := edit.result()
			if err != nil {
				return err
			}
			m, err := mgr.EditResult(ctx, args[0], res)
			if err != nil {
				return err
			}
			fmt.Println("✓ Updated and recalculated")
			printMatch(m)
			return nil
		}),
	}
	edit.register(editCmd)

	deleteCmd := &cobra.Command{
		Use:          "delete <match-id>",
		Short:        "Delete a match",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			if err := mgr.DeleteMatch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted %s\n", args[0])
			return nil
		}),
	}

	var at string
	scheduleCmd := &cobra.Command{
		Use:          "schedule <match-id>",
		Short:        "Stage a match for a date and time (default: its week's match night)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			var when *time.Time
			if at != "" {
				t, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				when = &t
			}
			m, err := mgr.ScheduleMatch(ctx, args[0], when)
			if err != nil {
				return err
			}
			printMatch(m)
			return nil
		}),
	}
	scheduleCmd.Flags().StringVar(&at, "at", "", `Date and time, e.g. "2026-04-08 19:00"`)

	unscheduleCmd := &cobra.Command{
		Use:          "unschedule <match-id>",
		Short:        "Clear a match's date and time",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			if err := mgr.UnscheduleMatch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Unscheduled %s\n", args[0])
			return nil
		}),
	}

	var week int
	listCmd := &cobra.Command{
		Use:          "list",
		Short:        "List matches",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			matches, err := mgr.Matches(ctx, week)
			if err != nil {
				return err
			}
			for _, m := range matches {
				printMatch(m)
			}
			return nil
		}),
	}
	listCmd.Flags().IntVarP(&week, "week", "w", 0, "Only show this week")

	matchCmd.AddCommand(recordCmd, addCmd, editCmd, deleteCmd, scheduleCmd, unscheduleCmd, listCmd)
	return matchCmd
}

func scheduleCommand(r *runner) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate, preview and import weekly pairings",
	}

	var perTeam int
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Create next week's matches so every active team gets new opponents",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			created, err := mgr.GenerateWeek(ctx, perTeam)
			if err != nil {
				return err
			}
			if len(created) > 0 {
				fmt.Printf("✓ Week %d: %d matches\n", created[0].Week, len(created))
			}
			for _, m := range created {
				printMatch(m)
			}
			return nil
		}),
	}

	var strategyName, previewOutput string
	previewCmd := &cobra.Command{
		Use:          "preview",
		Short:        "Propose next week's pairings without saving them",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			p, err := mgr.PreviewWeek(ctx, strategyName, perTeam)
			if err != nil {
				return err
			}
			fmt.Printf("Week %d proposal (%s, %d pairs):\n", p.Week, p.Strategy, len(p.Pairs))
			for _, pair := range p.Pairs {
				fmt.Printf("  %s vs %s\n", pair.A, pair.B)
			}
			if previewOutput == "" {
				return nil
			}
			if err := mgr.ExportPreview(p, previewOutput); err != nil {
				return err
			}
			fmt.Printf("\n✓ Proposal saved to %s\n", previewOutput)
			return nil
		}),
	}
	previewCmd.Flags().StringVarP(&strategyName, "strategy", "s", "auto",
		fmt.Sprintf("Preview strategy (%s)", strings.Join(strategy.Names, ", ")))
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "Also write the proposal to an Excel file")

	validateCmd := &cobra.Command{
		Use:          "validate <proposed.xlsx>",
		Short:        "Check a proposed schedule against the league",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			violations, err := mgr.ValidateSchedule(ctx, args[0], perTeam)
			if err != nil {
				return err
			}
			return reportViolations(violations)
		}),
	}

	importCmd := &cobra.Command{
		Use:          "import <proposed.xlsx>",
		Short:        "Validate a proposed schedule and add its matches",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			created, violations, err := mgr.ImportSchedule(ctx, args[0], perTeam)
			if len(violations) > 0 {
				printViolations(violations)
			}
			if err != nil {
				return err
			}
			fmt.Printf("✓ Imported %d matches\n", len(created))
			return nil
		}),
	}

	var weeks int
	calendarCmd := &cobra.Command{
		Use:          "calendar",
		Short:        "Show the match night of each week",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(r.configFile)
			if err != nil {
				return err
			}
			slots, err := schedule.GenerateSlots(cfg.Season, weeks)
			if err != nil {
				return err
			}
			skipped, _ := schedule.GenerateBlackoutSlots(cfg.Season, weeks)
			for _, s := range slots {
				fmt.Printf("  Week %-3d %s\n", s.Week, s.At.Format("Mon 01/02/2006 15:04"))
			}
			for _, b := range skipped {
				fmt.Printf("  Skipped  %s  %s\n", b.Date.Format("Mon 01/02/2006"), b.Reason)
			}
			return nil
		},
	}
	calendarCmd.Flags().IntVarP(&weeks, "weeks", "n", 10, "Number of weeks to show")

	scheduleCmd.PersistentFlags().IntVarP(&perTeam, "matches", "k", 0, "Matches per team (default: schedule.matches_per_team)")
	scheduleCmd.AddCommand(generateCmd, previewCmd, validateCmd, importCmd, calendarCmd)
	return scheduleCmd
}

func printViolations(violations []validator.Violation) (errs, warnings int) {
	for _, v := range violations {
		where := ""
		if v.Row > 0 {
			where = fmt.Sprintf("row %d: ", v.Row)
		}
		switch v.Type {
		case "error":
			errs++
			fmt.Printf("✗ %s%s\n", where, v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ %s%s\n", where, v.Message)
		}
	}
	return errs, warnings
}

func reportViolations(violations []validator.Violation) error {
	errs, warnings := printViolations(violations)
	fmt.Printf("\nValidation complete: %d errors, %d warnings\n", errs, warnings)
	if errs > 0 {
		return fmt.Errorf("%d constraint violations found", errs)
	}
	return nil
}

func leagueCommands(r *runner) []*cobra.Command {
	var all bool
	leaderboardCmd := &cobra.Command{
		Use:          "leaderboard",
		Short:        "Show teams by rating",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			board, err := mgr.Leaderboard(ctx, all)
			if err != nil {
				return err
			}
			if len(board) == 0 {
				fmt.Println("No ranked teams yet.")
				return nil
			}
			fmt.Printf("  %4s  %-24s %6s %4s %4s\n", "Rank", "Team", "Rating", "W", "L")
			for i, t := range board {
				name := t.Name
				if t.Provisional {
					name += " *"
				}
				fmt.Printf("  %4d  %-24s %6d %4d %4d\n", i+1, name, t.Rating, t.Wins, t.Losses)
			}
			return nil
		}),
	}
	leaderboardCmd.Flags().BoolVarP(&all, "all", "a", false, "Include provisional teams (marked *)")

	recalcCmd := &cobra.Command{
		Use:          "recalc",
		Short:        "Rebuild every rating from the match log",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			teams, err := mgr.Recalculate(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Recalculated %d teams\n", len(teams))
			return nil
		}),
	}

	penalizeCmd := &cobra.Command{
		Use:          "penalize",
		Short:        "Apply the inactivity penalty to active teams that have not played",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			penalized, err := mgr.ApplyInactivityPenalties(ctx)
			if err != nil {
				return err
			}
			if len(penalized) == 0 {
				fmt.Println("✓ No inactive teams")
				return nil
			}
			fmt.Printf("✓ Penalized %s\n", strings.Join(penalized, ", "))
			return nil
		}),
	}

	backupCmd := &cobra.Command{
		Use:          "backup",
		Short:        "Copy the league data into the backup directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			path, err := mgr.Backup(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Backup saved to %s\n", path)
			return nil
		}),
	}

	restoreCmd := &cobra.Command{
		Use:          "restore",
		Short:        "Replace the league data with the latest backup",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			path, err := mgr.Restore(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Restored %s\n", path)
			return nil
		}),
	}

	var exportOutput string
	exportCmd := &cobra.Command{
		Use:          "export",
		Short:        "Write standings, matches and team sheets to Excel",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: r.with(func(ctx context.Context, mgr *manager.Manager, args []string) error {
			if err := mgr.Export(ctx, exportOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Standings saved to %s\n", exportOutput)
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "standings.xlsx", "Output Excel file path")

	return []*cobra.Command{leaderboardCmd, recalcCmd, penalizeCmd, backupCmd, restoreCmd, exportCmd}
}
