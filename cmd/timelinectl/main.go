package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"narrative-timeline/backend/internal/client"
	"narrative-timeline/backend/pkg/models"
)

type globalFlags struct {
	server  string
	token   string
	timeout time.Duration
}

func main() {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:          "timelinectl",
		Short:        "Create and inspect narrative timelines",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("TIMELINES_SERVER", "http://localhost:8000"), "timeline API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("TIMELINES_TOKEN"), "bearer token for authenticated servers")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "per-request timeout")

	root.AddCommand(
		newCreateCmd(g),
		newStatusCmd(g),
		newGetCmd(g),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.server, g.token, g.timeout)
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create <query>",
		Short: "Start generating a timeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()
			st, err := c.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", color.CyanString(st.ID))
			if !wait {
				printStatus(st)
				return nil
			}

			last := ""
			final, err := c.Wait(cmd.Context(), st.ID, interval, func(s *models.TimelineStatus) {
				if p := s.Progress.String(); p != last {
					last = p
					printStatus(s)
				}
			})
			if err != nil {
				return err
			}
			if final.Status == models.StatusFailed {
				return fmt.Errorf("timeline %s failed at %s", final.ID, final.Progress)
			}
			t, err := c.Get(cmd.Context(), st.ID)
			if err != nil {
				return err
			}
			printTimeline(t)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the timeline finishes and print it")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show status and progress of a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := g.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}
}

func newGetCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a timeline with its events, branches and sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := g.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(t)
			}
			printTimeline(t)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func printStatus(st *models.TimelineStatus) {
	fmt.Printf("  %-10s %s\n", statusColor(st.Status), st.Progress)
}

func statusColor(s models.Status) string {
	switch s {
	case models.StatusCompleted:
		return color.GreenString(string(s))
	case models.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func printTimeline(t *models.Timeline) {
	bold := color.New(color.Bold)
	_, _ = bold.Println(t.Topic)
	fmt.Printf("Query: %s\nStatus: %s (%s)\n", t.Query, statusColor(t.Status), t.Progress)
	if t.DateRangeStart != nil && t.DateRangeEnd != nil {
		fmt.Printf("Range: %s to %s\n", t.DateRangeStart.Format("2006-01-02"), t.DateRangeEnd.Format("2006-01-02"))
	}

	for _, ev := range t.Events {
		fmt.Println()
		_, _ = bold.Printf("%s  %s", ev.EventDate.Format("2006-01-02"), ev.Title)
		fmt.Printf("  [%s]\n", ev.Priority)
		for _, b := range ev.Branches {
			fmt.Printf("  %s %s\n", color.MagentaString("%.2f", b.CredibilityScore), b.Narrative)
		}
		for _, s := range ev.Sources {
			fmt.Printf("    - %s %s\n", s.Outlet, color.HiBlackString(s.URL))
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
