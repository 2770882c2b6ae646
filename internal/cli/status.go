package cli

import (
	"fmt"
	"os"

	"github.com/agentgate/agentgate/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ AgentGate Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 AgentGate Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults will be used)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("API Key: ? Unable to load config")
			return
		}
		if cfg.Provider.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found (set AGENTGATE_PROVIDER_API_KEY or OPENAI_API_KEY)")
		}
		if cfg.Gateway.SafeMode {
			fmt.Println("Safe Mode: ✓ On (terminal commands require confirmation)")
		} else {
			fmt.Println("Safe Mode: ✗ Off")
		}
		if cfg.EventLog.Kafka.Enabled {
			fmt.Printf("Kafka:   ✓ Mirroring to %s\n", cfg.EventLog.Kafka.Topic)
		}
	},
}
