package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/config"
	"github.com/waspsec/wasp/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory, config file and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.DataDir()
		if err != nil {
			return cliError("resolve data dir", err)
		}

		cfgPath := filepath.Join(dir, config.ConfigFile)
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
				return cliError("write config", err)
			}
		}

		// Schema-ensure is idempotent: repeating init on an initialized
		// store is a no-op.
		st, err := store.Open(dir)
		if err != nil {
			return cliError("initialize store", err)
		}
		defer st.Close()

		if jsonOut {
			emit(map[string]string{"status": "initialized", "data_dir": dir})
			return nil
		}
		fmt.Println(color.GreenString("✓"), "initialized", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
