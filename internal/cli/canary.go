package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	canaryStats bool
	canaryClear bool
	canaryDays  int
	canaryLimit int
)

var canaryCmd = &cobra.Command{
	Use:   "canary [--stats | --clear | --days N]",
	Short: "Inspect injection-heuristic telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		switch {
		case canaryClear:
			n, err := st.ClearCanaryEvents()
			if err != nil {
				return cliError("clear telemetry", err)
			}
			if jsonOut {
				emit(map[string]any{"cleared": n})
				return nil
			}
			fmt.Println(color.GreenString("✓"), "cleared", n, "telemetry rows")
			return nil

		case canaryDays > 0:
			n, err := st.PurgeCanaryOlderThan(canaryDays)
			if err != nil {
				return cliError("purge telemetry", err)
			}
			if jsonOut {
				emit(map[string]any{"purged": n})
				return nil
			}
			fmt.Println(color.GreenString("✓"), "purged", n, "telemetry rows older than", canaryDays, "days")
			return nil

		case canaryStats:
			stats, err := st.GetCanaryStats()
			if err != nil {
				return cliError("telemetry stats", err)
			}
			if jsonOut {
				emit(stats)
				return nil
			}
			fmt.Printf("events: %d  mean score: %.2f\n", stats.Count, stats.MeanScore)
			for _, p := range stats.TopPatterns {
				fmt.Printf("  %-22s %d\n", p.Pattern, p.Count)
			}
			return nil

		default:
			events, err := st.ListCanaryEvents(canaryLimit)
			if err != nil {
				return cliError("list telemetry", err)
			}
			if jsonOut {
				emit(map[string]any{"events": events})
				return nil
			}
			if len(events) == 0 {
				fmt.Println("no telemetry")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%s %s (%s) score=%.2f patterns=%v verbs=%v\n  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04"), e.Identifier, e.Platform,
					e.Score, e.Patterns, e.Verbs, e.Preview)
			}
			return nil
		}
	},
}

func init() {
	canaryCmd.Flags().BoolVar(&canaryStats, "stats", false, "Show aggregate telemetry stats")
	canaryCmd.Flags().BoolVar(&canaryClear, "clear", false, "Delete all telemetry rows")
	canaryCmd.Flags().IntVar(&canaryDays, "days", 0, "Purge telemetry older than N days")
	canaryCmd.Flags().IntVar(&canaryLimit, "limit", 20, "Maximum events to show")
	rootCmd.AddCommand(canaryCmd)
}
