package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts and configuration posture",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		status, err := st.GetStatus()
		if err != nil {
			return cliError("read status", err)
		}
		if jsonOut {
			emit(map[string]any{
				"status":       status,
				"default_deny": cfg.Policy.DefaultDeny,
				"canary":       cfg.Canary.Enabled,
				"signature":    cfg.Signature.Enabled,
			})
			return nil
		}
		fmt.Println(color.YellowString("wasp"), "store at", st.Path())
		fmt.Printf("contacts:    %d", status.Contacts)
		if len(status.ContactsByTrust) > 0 {
			fmt.Print(" (")
			first := true
			for _, level := range []string{"sovereign", "trusted", "limited"} {
				if n, ok := status.ContactsByTrust[level]; ok {
					if !first {
						fmt.Print(", ")
					}
					fmt.Printf("%s %d", level, n)
					first = false
				}
			}
			fmt.Print(")")
		}
		fmt.Println()
		fmt.Printf("audit:       %d entries\n", status.AuditEntries)
		fmt.Printf("quarantine:  %d held, %d unreviewed\n", status.QuarantinedMessages, status.UnreviewedMessages)
		fmt.Printf("canary:      %d events\n", status.CanaryEvents)
		if cfg.Policy.DefaultDeny {
			fmt.Println("posture:     default-deny for unlisted tools")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
