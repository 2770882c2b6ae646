// Package cli implements the agentgate command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/agentgate/agentgate/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"    _                    _    ____       _\n" +
		"   / \\   __ _  ___ _ __ | |_ / ___| __ _| |_ ___\n" +
		"  / _ \\ / _` |/ _ \\ '_ \\| __| | |  _ / _` | __/ _ \\\n" +
		" / ___ \\ (_| |  __/ | | | |_| | |_| | (_| | ||  __/\n" +
		"/_/   \\_\\__, |\\___|_| |_|\\__|\\____|\\__,_|\\__\\___|\n" +
		"        |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "AgentGate - LLM tool-calling gateway with a human confirmation gate",
	Long:  color.CyanString(logo) + "\nA conversational agent backend where shell commands wait for a human yes.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
