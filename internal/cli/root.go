// Package cli implements the wasp command-line surface.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/config"
	"github.com/waspsec/wasp/internal/store"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/waspsec/wasp/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		" __      ____ _ ___ _ __\n" +
		" \\ \\ /\\ / / _` / __| '_ \\\n" +
		"  \\ V  V / (_| \\__ \\ |_) |\n" +
		"   \\_/\\_/ \\__,_|___/ .__/\n" +
		"                   |_|\n"
)

// jsonOut switches every command to a single newline-terminated JSON
// document instead of human text.
var jsonOut bool

var rootCmd = &cobra.Command{
	Use:   "wasp",
	Short: "wasp - whitelist and policy gateway for agent runtimes",
	Long:  color.YellowString(logo) + "\nGuards an agent runtime from untrusted senders and unsafe tool calls.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && err != errSilent {
		if jsonOut {
			emit(map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output a single JSON document")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wasp version",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOut {
			emit(map[string]string{"version": version})
			return
		}
		fmt.Println("wasp", version)
	},
}

// emit prints one JSON document, newline-terminated.
func emit(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, `{"error":"encoding failure"}`)
		return
	}
	fmt.Println(string(data))
}

// cliError reports a failure in the current output mode and returns an error
// so main exits non-zero. JSON mode emits {error, detail?}.
func cliError(msg string, err error) error {
	if jsonOut {
		doc := map[string]string{"error": msg}
		if err != nil {
			doc["detail"] = err.Error()
		}
		emit(doc)
		return errSilent
	}
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// errSilent marks an error already reported in JSON mode.
var errSilent = fmt.Errorf("already reported")

// loadConfig loads and validates configuration once per invocation.
// WASP_HOME wins over a dataDir recorded in the config file.
func loadConfig() (*config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	dir := cfg.Paths.DataDir
	if dir == "" || os.Getenv("WASP_HOME") != "" {
		dir, err = config.DataDir()
		if err != nil {
			return nil, "", err
		}
	}
	return cfg, dir, nil
}

// openStore opens the database under the configured data directory.
func openStore() (*store.Store, *config.Config, error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}
