package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/EduMate/internal/config"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// rawAssignment is the offline input format. Deadlines stay strings so that
// unparseable values score as "no deadline" instead of failing the file.
type rawAssignment struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subject  string `json:"subject"`
	Deadline string `json:"deadline"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

type rankOptions struct {
	file   string
	now    string
	focus  int
	asJSON bool
}

func newRankCmd() *cobra.Command {
	var opts rankOptions
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank assignments from a JSON file",
		Long: `Scores a JSON array of assignments offline and prints them in priority order.

Each element may carry id, title, subject, deadline, priority and status.
Submitted assignments are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			scoringCfg := scoring.Config{
				Weights: scoring.Weights{
					Deadline: cfg.Scoring.DeadlineWeight,
					Priority: cfg.Scoring.PriorityWeight,
				},
				TieTolerance: cfg.Scoring.TieTolerance,
			}
			return runRank(cmd.OutOrStdout(), opts, scoringCfg)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "JSON file with an array of assignments (- for stdin)")
	cmd.Flags().StringVar(&opts.now, "now", "", "evaluate as of this RFC3339 time instead of the current time")
	cmd.Flags().IntVar(&opts.focus, "focus", 0, "only show the top N assignments")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runRank(out io.Writer, opts rankOptions, cfg scoring.Config) error {
	var clock scoring.Clock = scoring.SystemClock{}
	if opts.now != "" {
		t, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		clock = scoring.FixedClock{T: t}
	}
	engine, err := scoring.NewEngine(cfg, clock)
	if err != nil {
		return err
	}

	assignments, err := loadAssignments(opts.file)
	if err != nil {
		return err
	}

	var ranked []scoring.RankedAssignment
	if opts.focus > 0 {
		ranked = engine.Focus(assignments, opts.focus)
	} else {
		ranked = engine.Rank(assignments)
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"assignments": ranked,
			"summary":     scoring.Summarize(ranked),
		})
	}
	return printRanking(out, ranked)
}

func loadAssignments(path string) ([]*store.Assignment, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var raw []rawAssignment
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make([]*store.Assignment, 0, len(raw))
	for i, ra := range raw {
		a := &store.Assignment{
			Title:       ra.Title,
			SubjectName: ra.Subject,
			Deadline:    scoring.ParseDeadline(ra.Deadline),
			Priority:    ra.Priority,
			Status:      store.AssignmentStatus(ra.Status),
		}
		if a.Status == "" {
			a.Status = store.StatusPending
		}
		if id, err := uuid.Parse(ra.ID); err == nil {
			a.ID = id
		}
		if a.Title == "" {
			a.Title = fmt.Sprintf("#%d", i+1)
		}
		out = append(out, a)
	}
	return out, nil
}

func printRanking(out io.Writer, ranked []scoring.RankedAssignment) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(out, "no open assignments")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTITLE\tSUBJECT\tDEADLINE\tSCORE\tLEVEL\tRECOMMENDATION")
	for i, ra := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			i+1,
			ra.Assignment.Title,
			orDash(ra.Assignment.SubjectName),
			ra.Assessment.DeadlineLabel(),
			ra.Assessment.Score,
			strings.ToUpper(ra.Assessment.UrgencyLevel),
			ra.Assessment.Recommendation,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := scoring.Summarize(ranked)
	_, err := fmt.Fprintf(out, "\n%d open: %d critical, %d high, %d medium, %d low, %d overdue\n",
		s.Total, s.Critical, s.High, s.Medium, s.Low, s.Overdue)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
