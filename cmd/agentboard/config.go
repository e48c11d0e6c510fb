package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration",
	Long: `Inspect and create the agentboard configuration.

Configuration is read from ./agentboard.toml (or .yaml), then
~/.config/agentboard/agentboard.toml. --config selects a file explicitly.
Any key can be overridden with an AGENTBOARD_* environment variable, for
example AGENTBOARD_EXECUTION_TIMEOUT_SECONDS=120.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		displayConfig(cmd.OutOrStdout(), cfg, config.UsedPath(cfgFile))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and API keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if err := cfg.Validate(); err != nil {
			printStatus(w, "✗", "Configuration is invalid:", color.FgRed)
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			return err
		}
		printStatus(w, "✓", fmt.Sprintf("Configuration is valid (%d task agents)", len(cfg.TaskAgents)), color.FgGreen)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if cfgFile != "" {
			path = cfgFile
		}
		if len(args) > 0 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), "✓", "Wrote "+path, color.FgGreen)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
}

// displayConfig prints the configuration with API keys masked.
func displayConfig(w io.Writer, cfg *config.Config, path string) {
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(w, "config file: %s\n\n", path)

	fmt.Fprintln(w, "task_agents:")
	for _, a := range cfg.TaskAgents {
		displayAgent(w, "  - ", a)
	}
	fmt.Fprintln(w, "evaluation_agent:")
	displayAgent(w, "    ", cfg.Evaluation.AgentConfig)
	fmt.Fprintf(w, "    timeout: %s\n", cfg.Evaluation.Timeout())
	fmt.Fprintf(w, "    concurrency: %d\n", cfg.Evaluation.Concurrency)

	fmt.Fprintf(w, "execution.timeout: %s\n", cfg.Execution.Timeout())
	fmt.Fprintf(w, "execution.max_iterations: %d\n", cfg.Execution.MaxIterations)
	fmt.Fprintf(w, "database: %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	fmt.Fprintf(w, "server.addr: %s\n", cfg.Server.Addr)
	if cfg.Cache.Enabled() {
		fmt.Fprintf(w, "cache: %s (ttl %s)\n", cfg.Cache.RedisAddr, cfg.Cache.TTL)
	} else {
		fmt.Fprintln(w, "cache: (disabled)")
	}
	if cfg.Logging.DebugLog != "" {
		fmt.Fprintf(w, "logging.debug_log: %s\n", cfg.Logging.DebugLog)
	}
}

func displayAgent(w io.Writer, prefix string, a config.AgentConfig) {
	fmt.Fprintf(w, "%s%s\n", prefix, a.Ref())
	indent := strings.Repeat(" ", len(prefix))

	switch config.GetAPIKeySource(a) {
	case config.KeySourceAWS:
		fmt.Fprintf(w, "%scredentials: AWS Bedrock (region %s)\n", indent, a.AWSRegion)
	case config.KeySourceEnv:
		key, _ := config.GetAPIKey(a)
		fmt.Fprintf(w, "%s%s: %s\n", indent, a.KeyEnv(), config.MaskAPIKey(key))
	default:
		fmt.Fprintf(w, "%s%s: %s\n", indent, a.KeyEnv(), color.RedString("(not set)"))
	}
	if len(a.Tools) > 0 {
		fmt.Fprintf(w, "%stools: %s\n", indent, strings.Join(a.Tools, ", "))
	}
	if a.BaseURL != "" {
		fmt.Fprintf(w, "%sbase_url: %s\n", indent, a.BaseURL)
	}
	if a.RequestsPerMinute > 0 {
		fmt.Fprintf(w, "%srequests_per_minute: %g\n", indent, a.RequestsPerMinute)
	}
}
