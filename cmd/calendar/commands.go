package main

import (
	"context"
	"fmt"

	"content-calendar/internal/calendar"
	"content-calendar/internal/model"
	"content-calendar/internal/scoring"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve [id...]",
	Short: "Approve entries and optionally auto-schedule them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := calendar.BatchRequest{}
		for _, raw := range args {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", raw, err)
			}
			req.IDs = append(req.IDs, id)
		}
		req.Actor, _ = cmd.Flags().GetString("actor")
		req.AutoSchedule, _ = cmd.Flags().GetBool("auto-schedule")
		req.PerDay, _ = cmd.Flags().GetInt("per-day")
		if start, _ := cmd.Flags().GetString("start"); start != "" {
			d, err := model.ParseDate(start)
			if err != nil {
				return err
			}
			req.StartDate = &d
		}

		ctx := context.Background()
		app, err := buildApp(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.calendar.ApproveBatch(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print entry counts per status and today's scheduled entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := buildApp(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.calendar.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

type scoreOutput struct {
	Opportunity      int     `json:"opportunity_score"`
	Difficulty       string  `json:"difficulty"`
	CTR              float64 `json:"ctr"`
	EstimatedTraffic int     `json:"estimated_traffic"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a keyword from its research metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		volume := optionalInt(cmd, "volume")
		difficulty := optionalInt(cmd, "difficulty")
		competitors := optionalInt(cmd, "competitors")

		return printJSON(scoreOutput{
			Opportunity:      scoring.OpportunityScore(volume, difficulty, competitors),
			Difficulty:       scoring.DifficultyLabel(difficulty),
			CTR:              scoring.CTR(difficulty),
			EstimatedTraffic: scoring.EstimatedTraffic(volume, difficulty),
		})
	},
}

// optionalInt returns nil for flags the user did not set.
func optionalInt(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate an editorial insight report (or show the latest with --latest)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := buildApp(ctx, true)
		if err != nil {
			return err
		}
		defer app.Close()

		svc := app.Insights()
		if latest, _ := cmd.Flags().GetBool("latest"); latest {
			report, err := svc.Latest()
			if err != nil {
				return err
			}
			return printJSON(report)
		}

		report, err := svc.Generate(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	approveCmd.Flags().String("actor", "", "Approver recorded on the entries (default \""+calendar.DefaultActor+"\")")
	approveCmd.Flags().Bool("auto-schedule", false, "Assign planned dates by priority after approving")
	approveCmd.Flags().String("start", "", "First planned date, YYYY-MM-DD (default tomorrow)")
	approveCmd.Flags().Int("per-day", 0, "Entries per day when auto-scheduling (default from config)")

	scoreCmd.Flags().Int("volume", 0, "Monthly search volume")
	scoreCmd.Flags().Int("difficulty", 0, "Keyword difficulty, 0-100")
	scoreCmd.Flags().Int("competitors", 0, "Number of competing pages")

	insightsCmd.Flags().Bool("latest", false, "Print the latest archived report instead of generating one")
}
