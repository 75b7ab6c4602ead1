package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "samgate",
	Short: "Local API gateway emulator for SAM and CloudFormation templates",
	Long: `Samgate serves the API a SAM or CloudFormation template declares,
locally. It resolves the template (parameters, mappings, intrinsics),
extracts the routes, and forwards matched requests to your function
containers as API Gateway proxy events.

Quick start:
  samgate init      # Create a starter config and template
  samgate serve     # Start the gateway

Inspection:
  samgate validate  # Check a template resolves to a route table
  samgate routes    # Print the route table a template produces`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "samgate.yaml", "config file path")
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
