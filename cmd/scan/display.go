package scan

import (
	"fmt"
	"time"

	"github.com/ahmad-20th/GrayTera/pkg/exploit"
	enginescan "github.com/ahmad-20th/GrayTera/pkg/scan"
)

const summaryRounding = 10 * time.Millisecond

// printInfo prints info messages with proper formatting
func printInfo(message string, noColor bool) {
	color := ""
	reset := ""
	if !noColor {
		color = ColorBlue
		reset = ColorReset
	}
	fmt.Printf("%s[INFO]%s %s\n", color, reset, message)
}

// printSuccess prints success messages with proper formatting
func printSuccess(message string, noColor bool) {
	color := ""
	reset := ""
	if !noColor {
		color = ColorGreen + ColorBold
		reset = ColorReset
	}
	fmt.Printf("%s[SUCCESS]%s %s\n", color, reset, message)
}

// printWarning prints warning messages with proper formatting
func printWarning(message string, noColor bool) {
	color := ""
	reset := ""
	if !noColor {
		color = ColorYellow + ColorBold
		reset = ColorReset
	}
	fmt.Printf("%s[WARNING]%s %s\n", color, reset, message)
}

// printError prints error messages with proper formatting
func printError(message string, noColor bool) {
	color := ""
	reset := ""
	if !noColor {
		color = ColorRed + ColorBold
		reset = ColorReset
	}
	fmt.Printf("%s[ERROR]%s %s\n", color, reset, message)
}

// DisplaySummary prints the human-readable session summary
func (o *Orchestrator) DisplaySummary(result *SessionResult) {
	fmt.Println()
	o.printHeader("SCAN SUMMARY")

	summary := result.Summary
	if summary == nil {
		printWarning("No scan summary available", o.noColor)
		return
	}

	fmt.Printf("  Session:          %s\n", result.SessionID)
	fmt.Printf("  Target:           %s\n", o.target.BaseURL)
	fmt.Printf("  Points scanned:   %d (%d failed)\n", summary.PointsScanned, summary.PointsFailed)
	fmt.Printf("  Duration:         %s\n", result.Duration.Round(summaryRounding))
	fmt.Println()

	if len(summary.Findings) == 0 {
		printSuccess("No SQL injection vulnerabilities detected", o.noColor)
		return
	}

	printWarning(fmt.Sprintf("%d vulnerable injection points found", len(summary.Findings)), o.noColor)
	fmt.Println()

	for i, vuln := range summary.Findings {
		o.displayFinding(i+1, vuln)
	}

	if len(result.Exploits) > 0 {
		fmt.Println()
		o.printHeader("EXPLOITATION RESULTS")
		for _, e := range result.Exploits {
			o.displayExploit(e)
		}
	}
}

func (o *Orchestrator) displayFinding(index int, vuln *enginescan.Vulnerability) {
	marker := ColorRed + ColorBold
	reset := ColorReset
	if o.noColor {
		marker, reset = "", ""
	}

	fmt.Printf("  %s[%d]%s %s parameter %q (%s)\n", marker, index, reset,
		vuln.Technique, vuln.Point.Parameter, vuln.Point.Location)
	fmt.Printf("      Confidence: %.2f   Status: %s\n", vuln.Confidence, vuln.Status)
	if vuln.DBMS != "" && vuln.DBMS != "Unknown" {
		fmt.Printf("      DBMS:       %s\n", vuln.DBMS)
	}
	if o.verbose {
		fmt.Printf("      Payload:    %s\n", vuln.PayloadUsed)
		fmt.Printf("      Evidence:   %s\n", vuln.Evidence)
	}
}

func (o *Orchestrator) displayExploit(e *exploit.ExploitResult) {
	if e.Success {
		printSuccess(fmt.Sprintf("%s via %s", e.VulnerabilityID[:8], e.TechniqueUsed), o.noColor)
		for field, value := range e.ExtractedData {
			fmt.Printf("      %-10s %s\n", field+":", value)
		}
		return
	}

	printError(fmt.Sprintf("%s failed: %s", e.VulnerabilityID[:8], e.Error), o.noColor)
	if len(e.ExtractedData) > 0 {
		fmt.Printf("      partial data recovered: %v\n", e.ExtractedData)
	}
}

func (o *Orchestrator) printHeader(title string) {
	color := ""
	reset := ""
	if !o.noColor {
		color = ColorCyan + ColorBold
		reset = ColorReset
	}
	fmt.Printf("%s=== %s ===%s\n", color, title, reset)
}
