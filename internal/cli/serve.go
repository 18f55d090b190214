package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/httpapi"
	"github.com/waspsec/wasp/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dir, err := loadConfig()
		if err != nil {
			return cliError("load config", err)
		}
		if !store.Exists(dir) {
			return cliError("store not initialized", fmt.Errorf("run `wasp init` first"))
		}
		st, err := store.Open(dir)
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !jsonOut {
			fmt.Println(color.GreenString("wasp"), "serving on", fmt.Sprintf("http://%s:%d", cfg.Admin.Host, cfg.Admin.Port))
		}
		srv := httpapi.NewServer(cfg, st)
		if err := srv.Serve(ctx); err != nil {
			return cliError("serve", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
