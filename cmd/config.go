package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluebridge/bluebridge-go/internal/infrastructure/config"
)

// configCmd is the command to manage configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage BlueBridge configuration.`,
}

// configShowCmd is the command to display configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration",
	Long:  `Display BlueBridge configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := Container.Config
		path := ConfigPath
		if path == "" {
			path = c.GetConfigFilePath()
		}

		fmt.Println("BlueBridge Configuration:")
		fmt.Printf("Config File: %s\n", path)
		fmt.Printf("Transport: %s\n", c.Transport)
		fmt.Printf("Adapter: %s\n", c.Adapter)
		fmt.Printf("Adapter Address: %s\n", valueOr(c.AdapterAddress, "(any)"))
		fmt.Printf("Channel: %d\n", c.Channel)
		fmt.Printf("Backlog: %d\n", c.Backlog)
		fmt.Printf("Buffer Size: %d\n", c.BufferSize)
		fmt.Printf("Service Name: %s\n", c.ServiceName)
		fmt.Printf("Service UUID: %s\n", c.ServiceUUID)
		fmt.Printf("Advertise: %t\n", c.Advertise)
		fmt.Printf("Discoverable: %t\n", c.Discoverable)
		fmt.Printf("WebSocket Address: %s\n", c.WebSocketAddress)
		fmt.Printf("Base URL: %s\n", c.BaseURL)
		fmt.Printf("Forward Timeout: %s\n", c.ForwardTimeout)
		fmt.Printf("Content Type: %s\n", valueOr(c.ContentType, "(none)"))
		fmt.Printf("Codec: %s\n", c.Codec)
		fmt.Printf("Concurrent: %t\n", c.Concurrent)
		fmt.Printf("Idle Timeout: %s\n", c.IdleTimeout)
		fmt.Printf("Log Level: %s\n", c.LogLevel)
		fmt.Printf("Log Format: %s\n", c.LogFormat)
		fmt.Printf("Log File: %s\n", valueOr(c.LogFile, "(stderr)"))
	},
}

// configSetCmd is the command to set configuration
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set configuration",
	Long: `Set BlueBridge configuration.
Examples:
  bluebridge config set channel 5
  bluebridge config set base_url http://localhost:3000
  bluebridge config set transport websocket
  bluebridge config set log_level debug
  bluebridge config set log_file /var/log/bluebridge.log`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		// Update configuration
		if err := Container.ConfigService.Set(Container.Config, key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := config.Validate(Container.Config); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Save configuration
		if err := Container.ConfigService.SaveConfig(Container.Config, ConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to save configuration: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Configuration %s successfully changed to %s\n", key, value)
	},
}

// valueOr returns fallback for empty strings
func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
