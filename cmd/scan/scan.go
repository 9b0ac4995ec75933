// Package scan implements the graytera scan command: configuration
// loading, CLI overrides, engine orchestration and result display.
package scan

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahmad-20th/GrayTera/pkg/config"
)

// Execute runs the scan command with the provided flags
func Execute(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	noColor, _ := cmd.Root().PersistentFlags().GetBool("no-color")
	configFile, _ := cmd.Root().PersistentFlags().GetString("config")

	cfg, err := config.LoadConfigOrCreateDefault(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Apply CLI overrides on top of the file configuration
	if targetURL, _ := cmd.Flags().GetString("target"); targetURL != "" {
		if err := applyTargetOverride(cfg, targetURL); err != nil {
			return fmt.Errorf("failed to apply target override: %w", err)
		}
		printInfo(fmt.Sprintf("Target override applied: %s", targetURL), noColor)
	}

	if params, _ := cmd.Flags().GetStringSlice("params"); len(params) > 0 {
		cfg.Scan.Parameters = params
		printInfo(fmt.Sprintf("Parameters limited to: %v", params), noColor)
	}

	if techniques, _ := cmd.Flags().GetStringSlice("techniques"); len(techniques) > 0 {
		cfg.Scan.Techniques = techniques
		printInfo(fmt.Sprintf("Techniques limited to: %s", strings.Join(techniques, ", ")), noColor)
	}

	if doExploit, _ := cmd.Flags().GetBool("exploit"); doExploit {
		cfg.Exploit.Enable = true
		printInfo("Exploitation cascade enabled", noColor)
	}

	if outputDir, _ := cmd.Flags().GetString("output"); outputDir != "" {
		cfg.Reports.OutputDir = outputDir
		printInfo(fmt.Sprintf("Output directory: %s", outputDir), noColor)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	orchestrator := NewOrchestrator(cfg, verbose, noColor)

	result, err := orchestrator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan execution failed: %w", err)
	}

	if err := orchestrator.SaveResults(result); err != nil {
		printWarning(fmt.Sprintf("Failed to save results: %v", err), noColor)
	}

	orchestrator.DisplaySummary(result)
	return nil
}

// applyTargetOverride replaces the configured target with a CLI URL
func applyTargetOverride(cfg *config.Config, targetURL string) error {
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		return fmt.Errorf("target URL must start with http:// or https://")
	}
	cfg.Target.BaseURL = targetURL
	if cfg.Target.Name == "" || cfg.Target.Name == "default-target" {
		cfg.Target.Name = "cli-target"
	}
	return nil
}
