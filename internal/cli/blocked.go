package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var blockedLimit int

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List quarantined messages awaiting review",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		msgs, err := st.ListUnreviewed(blockedLimit)
		if err != nil {
			return cliError("list quarantine", err)
		}
		if jsonOut {
			emit(map[string]any{"messages": msgs})
			return nil
		}
		if len(msgs) == 0 {
			fmt.Println("no blocked messages")
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("[%d] %s %s (%s): %s\n",
				m.ID, m.CreatedAt.Format("2006-01-02 15:04"), m.Identifier, m.Platform, m.Preview)
		}
		return nil
	},
}

func init() {
	blockedCmd.Flags().IntVar(&blockedLimit, "limit", 50, "Maximum messages to show")
	rootCmd.AddCommand(blockedCmd)
}
