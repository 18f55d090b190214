package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

var (
	logLimit     int
	logDecision  string
	logPurgeDays int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the decision audit log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		if logPurgeDays > 0 {
			n, err := st.PurgeAuditOlderThan(logPurgeDays)
			if err != nil {
				return cliError("purge audit", err)
			}
			if jsonOut {
				emit(map[string]any{"purged": n})
				return nil
			}
			fmt.Println(color.GreenString("✓"), "purged", n, "audit entries")
			return nil
		}

		if logDecision != "" {
			switch logDecision {
			case trust.DecisionAllow, trust.DecisionDeny, trust.DecisionLimited:
			default:
				return cliError("invalid input", fmt.Errorf("decision must be allow, deny or limited"))
			}
		}
		entries, err := st.QueryAudit(store.AuditQuery{Limit: logLimit, Decision: logDecision})
		if err != nil {
			return cliError("query audit", err)
		}
		if jsonOut {
			emit(map[string]any{"entries": entries})
			return nil
		}
		if len(entries) == 0 {
			fmt.Println("no audit entries")
			return nil
		}
		for _, e := range entries {
			decision := e.Decision
			switch e.Decision {
			case trust.DecisionAllow:
				decision = color.GreenString("%-7s", e.Decision)
			case trust.DecisionDeny:
				decision = color.RedString("%-7s", e.Decision)
			case trust.DecisionLimited:
				decision = color.YellowString("%-7s", e.Decision)
			}
			fmt.Printf("%s %s %-24s %-10s %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), decision, e.Identifier, e.Platform, e.Reason)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", store.DefaultAuditLimit, "Maximum entries to show")
	logCmd.Flags().StringVar(&logDecision, "decision", "", "Filter by decision: allow, deny or limited")
	logCmd.Flags().IntVar(&logPurgeDays, "purge-days", 0, "Purge entries older than N days instead of listing")
	rootCmd.AddCommand(logCmd)
}
