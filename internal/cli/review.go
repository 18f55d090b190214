package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

var (
	reviewApprove  string
	reviewDeny     string
	reviewPlatform string
)

var reviewCmd = &cobra.Command{
	Use:   "review [--approve <identifier> | --deny <identifier>]",
	Short: "Review quarantined messages: approve releases, deny deletes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewApprove != "" && reviewDeny != "" {
			return cliError("invalid input", fmt.Errorf("--approve and --deny are mutually exclusive"))
		}
		platform, err := trust.ParsePlatform(reviewPlatform)
		if err != nil {
			return cliError("invalid input", err)
		}

		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		switch {
		case reviewApprove != "":
			msgs, err := st.ReleaseQuarantine(reviewApprove, platform)
			if err != nil {
				return cliError("release quarantine", err)
			}
			if len(msgs) == 0 {
				if jsonOut {
					emit(map[string]any{"error": "not found", "detail": "no unreviewed messages for " + reviewApprove})
					return errSilent
				}
				return cliError(fmt.Sprintf("no unreviewed messages for %s on %s", reviewApprove, platform), nil)
			}
			if jsonOut {
				emit(map[string]any{"released": msgs})
				return nil
			}
			fmt.Println(color.GreenString("✓"), "released", len(msgs), "message(s) from", reviewApprove)
			for _, m := range msgs {
				fmt.Printf("  [%d] %s\n", m.ID, m.Preview)
			}
			return nil

		case reviewDeny != "":
			n, err := st.DeleteQuarantine(reviewDeny, platform)
			if errors.Is(err, store.ErrNotFound) {
				if jsonOut {
					emit(map[string]any{"error": "not found", "detail": "no quarantined messages for " + reviewDeny})
					return errSilent
				}
				return cliError(fmt.Sprintf("no quarantined messages for %s on %s", reviewDeny, platform), nil)
			}
			if err != nil {
				return cliError("delete quarantine", err)
			}
			if jsonOut {
				emit(map[string]any{"deleted": n})
				return nil
			}
			fmt.Println(color.GreenString("✓"), "deleted", n, "message(s) from", reviewDeny)
			return nil

		default:
			msgs, err := st.ListUnreviewed(0)
			if err != nil {
				return cliError("list quarantine", err)
			}
			if jsonOut {
				emit(map[string]any{"messages": msgs})
				return nil
			}
			if len(msgs) == 0 {
				fmt.Println("nothing to review")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("[%d] %s %s (%s): %s\n",
					m.ID, m.CreatedAt.Format("2006-01-02 15:04"), m.Identifier, m.Platform, m.Preview)
			}
			return nil
		}
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewApprove, "approve", "", "Release this sender's messages (marks them reviewed)")
	reviewCmd.Flags().StringVar(&reviewDeny, "deny", "", "Delete this sender's quarantined messages")
	reviewCmd.Flags().StringVar(&reviewPlatform, "platform", "", "Platform (default whatsapp)")
	rootCmd.AddCommand(reviewCmd)
}
