package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/waspsec/wasp/internal/trust"
)

var (
	contactPlatform string
	contactTrust    string
	contactName     string
	contactNotes    string
	listTrust       string
	listPlatform    string
)

var addCmd = &cobra.Command{
	Use:   "add <identifier>",
	Short: "Add or update a whitelist contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := trust.ParsePlatform(contactPlatform)
		if err != nil {
			return cliError("invalid input", err)
		}
		level, err := trust.ParseLevel(contactTrust)
		if err != nil {
			return cliError("invalid input", err)
		}

		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		if err := st.UpsertContact(args[0], platform, level, contactName, contactNotes); err != nil {
			return cliError("upsert contact", err)
		}
		if jsonOut {
			emit(map[string]string{"status": "ok", "identifier": args[0], "platform": string(platform), "trust": string(level)})
			return nil
		}
		fmt.Println(color.GreenString("✓"), "added", args[0], "("+string(platform)+", "+string(level)+")")
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <identifier>",
	Short: "Remove a whitelist contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := trust.ParsePlatform(contactPlatform)
		if err != nil {
			return cliError("invalid input", err)
		}
		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		removed, err := st.RemoveContact(args[0], platform)
		if err != nil {
			return cliError("remove contact", err)
		}
		if jsonOut {
			emit(map[string]any{"removed": removed, "identifier": args[0], "platform": string(platform)})
			if !removed {
				return errSilent
			}
			return nil
		}
		if !removed {
			return cliError(fmt.Sprintf("no contact %s on %s", args[0], platform), nil)
		}
		fmt.Println(color.GreenString("✓"), "removed", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelist contacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var platform trust.Platform
		if listPlatform != "" {
			parsed, err := trust.ParsePlatform(listPlatform)
			if err != nil {
				return cliError("invalid input", err)
			}
			platform = parsed
		}
		var level trust.Level
		if listTrust != "" {
			parsed, err := trust.ParseLevel(listTrust)
			if err != nil {
				return cliError("invalid input", err)
			}
			level = parsed
		}

		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		contacts, err := st.ListContacts(platform, level)
		if err != nil {
			return cliError("list contacts", err)
		}
		if jsonOut {
			emit(map[string]any{"contacts": contacts})
			return nil
		}
		if len(contacts) == 0 {
			fmt.Println("no contacts")
			return nil
		}
		for _, c := range contacts {
			label := string(c.Trust)
			switch c.Trust {
			case trust.Sovereign:
				label = color.MagentaString(label)
			case trust.Trusted:
				label = color.GreenString(label)
			case trust.Limited:
				label = color.YellowString(label)
			}
			name := c.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("%-28s %-10s %-22s %s\n", c.Identifier, c.Platform, label, name)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <identifier>",
	Short: "Check whether a sender is whitelisted (exit 0 allowed, 1 denied)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := trust.ParsePlatform(contactPlatform)
		if err != nil {
			return cliError("invalid input", err)
		}
		st, _, err := openStore()
		if err != nil {
			return cliError("open store", err)
		}
		defer st.Close()

		result, err := st.CheckContact(args[0], platform)
		if err != nil {
			return cliError("check contact", err)
		}
		if jsonOut {
			emit(result)
		} else if result.Allowed {
			fmt.Println(color.GreenString("allowed"), "-", result.Reason)
		} else {
			fmt.Println(color.RedString("denied"), "-", result.Reason)
		}
		if !result.Allowed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&contactPlatform, "platform", "", "Platform (default whatsapp)")
	addCmd.Flags().StringVar(&contactTrust, "trust", string(trust.Trusted), "Trust level: sovereign, trusted or limited")
	addCmd.Flags().StringVar(&contactName, "name", "", "Display name")
	addCmd.Flags().StringVar(&contactNotes, "notes", "", "Free-text notes")
	removeCmd.Flags().StringVar(&contactPlatform, "platform", "", "Platform (default whatsapp)")
	checkCmd.Flags().StringVar(&contactPlatform, "platform", "", "Platform (default whatsapp)")
	listCmd.Flags().StringVar(&listPlatform, "platform", "", "Filter by platform")
	listCmd.Flags().StringVar(&listTrust, "trust", "", "Filter by trust level")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
}
