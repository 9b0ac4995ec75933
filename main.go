package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahmad-20th/GrayTera/cmd/scan"
	"github.com/ahmad-20th/GrayTera/pkg/config"
)

var (
	// Version information
	Version   = "1.0.0"
	BuildTime = "development"
	GitCommit = "unknown"

	// Global flags
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	noBanner   bool
)

// ASCII Art Banner
const banner = `
 ██████╗ ██████╗  █████╗ ██╗   ██╗████████╗███████╗██████╗  █████╗
██╔════╝ ██╔══██╗██╔══██╗╚██╗ ██╔╝╚══██╔══╝██╔════╝██╔══██╗██╔══██╗
██║  ███╗██████╔╝███████║ ╚████╔╝    ██║   █████╗  ██████╔╝███████║
██║   ██║██╔══██╗██╔══██║  ╚██╔╝     ██║   ██╔══╝  ██╔══██╗██╔══██║
╚██████╔╝██║  ██║██║  ██║   ██║      ██║   ███████╗██║  ██║██║  ██║
 ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝      ╚═╝   ╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝

          SQL Injection Detection & Blind-Extraction Engine
                      Version %s | Build %s
`

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// printBanner displays the GrayTera banner
func printBanner() {
	if noBanner || quiet {
		return
	}

	color := ""
	if !noColor {
		color = ColorCyan + ColorBold
	}

	fmt.Printf(color+banner+ColorReset+"\n\n", Version, BuildTime)
}

// printError prints error messages with proper formatting
func printError(err error) {
	color := ""
	if !noColor {
		color = ColorRed + ColorBold
	}
	fmt.Fprintf(os.Stderr, color+"[ERROR] %v"+ColorReset+"\n", err)
}

// printInfo prints info messages with proper formatting
func printInfo(message string) {
	if quiet {
		return
	}
	color := ""
	if !noColor {
		color = ColorBlue
	}
	fmt.Printf(color+"[INFO] %s"+ColorReset+"\n", message)
}

// printWarning prints warning messages with proper formatting
func printWarning(message string) {
	color := ""
	if !noColor {
		color = ColorYellow + ColorBold
	}
	fmt.Printf(color+"[WARNING] %s"+ColorReset+"\n", message)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "graytera",
	Short: "SQL injection detection and blind-extraction engine",
	Long: `GrayTera detects SQL injection vulnerabilities in web applications and
extracts proof-of-impact data from confirmed findings.

Detection techniques:
• Error-based: database error signature matching
• Boolean-blind: TRUE/FALSE response differentials with control pairs
• Time-blind: conditional delay measurement across repeated trials
• Union-based: column-count probing with sentinel reflection

Confirmed findings can be escalated through the exploitation cascade:
an external tool (sqlmap) gets one bounded attempt, then the built-in
blind-extraction oracle recovers data one bit at a time.

Only test systems you are authorized to assess.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if createConfig, _ := cmd.Flags().GetBool("init-config"); createConfig {
			return writeDefaultConfig()
		}

		if cmd.Name() != "help" && cmd.Name() != "completion" {
			printBanner()
		}

		return initConfig()
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a target for SQL injection vulnerabilities",
	Long: `Scan the configured target for SQL injection vulnerabilities using the
enabled detection techniques.

Injection points are derived from the target URL's query parameters, or
from the configured parameter list when the URL carries none. Each point
is tested by every enabled technique; conflicting findings on the same
point are resolved deterministically in favor of the stronger signal.

With --exploit, confirmed findings are escalated through the
exploitation cascade to recover the current database name, user and
server version.

Example usage:
  graytera scan --target "http://shop.example.com/item?id=1"
  graytera scan --target http://api.example.com --params id,search
  graytera scan --techniques error,boolean_blind --exploit`,

	RunE: scan.Execute,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display detailed version and build information for GrayTera.`,

	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("GrayTera SQL Injection Engine\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("graytera")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("$HOME/.graytera")
		viper.AddConfigPath("/etc/graytera/")
	}

	viper.SetEnvPrefix("GRAYTERA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			printWarning("No configuration file found, using defaults")
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		printInfo(fmt.Sprintf("Using config file: %s", viper.ConfigFileUsed()))
		configFile = viper.ConfigFileUsed()
	}

	return nil
}

// setupCommands configures all CLI commands and flags
func setupCommands() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (default is ./graytera.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"quiet output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false,
		"disable banner display")
	rootCmd.PersistentFlags().Bool("init-config", false,
		"create default configuration file (graytera.yaml)")

	// Scan command specific flags
	scanCmd.Flags().StringP("target", "t", "",
		"target URL, query parameters become injection points")
	scanCmd.Flags().StringSliceP("params", "p", []string{},
		"parameter names to test when the URL has no query string")
	scanCmd.Flags().StringSlice("techniques", []string{},
		"detection techniques to run (error,boolean_blind,time_blind,union)")
	scanCmd.Flags().BoolP("exploit", "e", false,
		"escalate confirmed findings through the exploitation cascade")
	scanCmd.Flags().StringP("output", "o", "",
		"output directory for results")
}

// main is the entry point for GrayTera
func main() {
	setupCommands()

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// writeDefaultConfig creates a default configuration file
func writeDefaultConfig() error {
	filename := config.DefaultConfigFilename
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("config file already exists: %s", filename)
	}

	if err := config.SaveConfig(config.CreateDefaultConfig(), filename); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Default configuration file created: %s\n", filename)
	fmt.Printf("Run 'graytera scan --target YOUR_TARGET_URL' to start testing\n")

	return nil
}
