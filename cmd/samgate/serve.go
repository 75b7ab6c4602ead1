package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/samgate/bootstrap"
	"github.com/artpar/samgate/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API gateway",
	Long: `Start the samgate server.

The server will:
  - Load configuration from samgate.yaml (or --config)
  - Or load configuration from SAMGATE_* environment variables
  - Resolve the template into a route table (startup-fatal on failure)
  - Serve matched requests as API Gateway proxy events to your
    function containers

Environment variables (for Docker deployments):
  SAMGATE_TEMPLATE_PATH       - Template file path (required)
  SAMGATE_FUNCTIONS_ENDPOINTS - Container endpoints (ref=url,ref=url)
  SAMGATE_SERVER_PORT         - Server port (default: 3000)
  SAMGATE_TEMPLATE_STAGE      - Stage name override
  SAMGATE_LOG_LEVEL           - Log level: debug, info, warn, error

Examples:
  samgate serve
  samgate serve --config /etc/samgate/config.yaml
  samgate serve --hot-reload

  # Docker (env vars only):
  SAMGATE_TEMPLATE_PATH=template.yaml samgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", false, "rebuild routes when the template or config changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	// No configuration at all
	if !hasConfigFile && !config.HasEnvConfig() {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Run 'samgate init' to create %s\n", cfgFile)
		fmt.Println("Option 2: Set SAMGATE_TEMPLATE_PATH environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  SAMGATE_TEMPLATE_PATH=template.yaml samgate serve")
		return nil
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		HotReload:  hotReload,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
